package service

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// LedgerService owns every transaction write path. Cached project aggregates,
// budget spend accumulation, and goal milestones are all applied inside the
// same database transaction as the ledger write that causes them.
type LedgerService struct {
	db            *storage.PostgresDB
	txRepo        *storage.TransactionRepository
	projectRepo   *storage.ProjectRepository
	walletRepo    *storage.WalletRepository
	milestoneRepo *storage.MilestoneRepository
	refValidator  *ReferenceValidator
	budgetService *BudgetService
	logger        *logging.Logger
}

// NewLedgerService creates a new ledger service
func NewLedgerService(
	db *storage.PostgresDB,
	txRepo *storage.TransactionRepository,
	projectRepo *storage.ProjectRepository,
	walletRepo *storage.WalletRepository,
	milestoneRepo *storage.MilestoneRepository,
	refValidator *ReferenceValidator,
	budgetService *BudgetService,
	logger *logging.Logger,
) *LedgerService {
	return &LedgerService{
		db:            db,
		txRepo:        txRepo,
		projectRepo:   projectRepo,
		walletRepo:    walletRepo,
		milestoneRepo: milestoneRepo,
		refValidator:  refValidator,
		budgetService: budgetService,
		logger:        logger,
	}
}

// aggregateDelta returns the signed amount a status transition moves across
// the confirmed boundary. Edits that do not cross the boundary return zero,
// so unrelated field updates never double-apply.
func aggregateDelta(prev, next types.TransactionStatus, amountSats int64) int64 {
	wasConfirmed := prev == types.StatusConfirmed
	isConfirmed := next == types.StatusConfirmed

	switch {
	case !wasConfirmed && isConfirmed:
		return amountSats
	case wasConfirmed && !isConfirmed:
		return -amountSats
	default:
		return 0
	}
}

// validTransition encodes the status state machine: pending and processing
// move forward freely, confirmed can only be compensated, failed and
// cancelled are terminal.
func validTransition(from, to types.TransactionStatus) bool {
	switch from {
	case types.StatusPending:
		return to == types.StatusProcessing || to == types.StatusConfirmed ||
			to == types.StatusFailed || to == types.StatusCancelled
	case types.StatusProcessing:
		return to == types.StatusConfirmed || to == types.StatusFailed || to == types.StatusCancelled
	case types.StatusConfirmed:
		return to == types.StatusFailed || to == types.StatusCancelled
	default:
		return false
	}
}

// crossedMilestones returns the goal thresholds that newTotal meets or
// exceeds but prevTotal did not.
func crossedMilestones(prevTotal, newTotal, goalSats int64) []int {
	if goalSats <= 0 || newTotal <= prevTotal {
		return nil
	}

	var crossed []int
	for _, percent := range types.MilestonePercents {
		threshold := goalSats * int64(percent) / 100
		if prevTotal < threshold && newTotal >= threshold {
			crossed = append(crossed, percent)
		}
	}
	return crossed
}

func validateTransactionInput(t *models.Transaction) error {
	if t.AmountSats <= 0 {
		return apperrors.NewValidationError("amountSats", "amount must be positive")
	}
	if t.AmountSats > types.MaxSupplySats {
		return apperrors.NewValidationError("amountSats", "amount exceeds total Bitcoin supply")
	}
	if !types.ValidEntityType(t.FromEntityType) {
		return apperrors.NewInvalidTypeError(string(t.FromEntityType))
	}
	if !types.ValidEntityType(t.ToEntityType) {
		return apperrors.NewInvalidTypeError(string(t.ToEntityType))
	}
	if t.Status == "" {
		t.Status = types.StatusPending
	}
	if !types.ValidTransactionStatus(t.Status) {
		return apperrors.NewValidationError("status", "unknown transaction status")
	}
	if t.PaymentMethod == "" {
		t.PaymentMethod = "onchain"
	}
	return nil
}

// CreateTransaction validates both polymorphic endpoints and inserts the
// ledger entry. An entry born confirmed applies its aggregate, budget, and
// milestone effects in the same transaction.
func (s *LedgerService) CreateTransaction(ctx context.Context, t *models.Transaction, actor string) (*models.Transaction, error) {
	if err := validateTransactionInput(t); err != nil {
		return nil, err
	}

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.refValidator.ValidateReference(ctx, tx, t.FromEntityType, t.FromEntityID); err != nil {
			return err
		}
		if err := s.refValidator.ValidateReference(ctx, tx, t.ToEntityType, t.ToEntityID); err != nil {
			return err
		}

		t.AuditTrail = append(t.AuditTrail, models.AuditEvent{
			At:     time.Now().UTC(),
			Actor:  actor,
			Action: "created",
			To:     string(t.Status),
		})

		if err := s.txRepo.Insert(ctx, tx, t); err != nil {
			return err
		}

		if t.Status == types.StatusConfirmed {
			return s.applyConfirmedEffects(ctx, tx, t, 1)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"transaction_id": t.ID,
		"amount_sats":    t.AmountSats,
		"status":         t.Status,
	}).Info("Created transaction")

	return t, nil
}

// applyConfirmedEffects propagates one confirmed ledger entry into the
// derived state: project aggregates, budget spend on the sender's
// recurring-budget wallets, and (on credit only) goal milestones for the
// receiver. direction is +1 entering confirmed, -1 leaving it.
func (s *LedgerService) applyConfirmedEffects(ctx context.Context, tx pgx.Tx, t *models.Transaction, direction int) error {
	if t.ToEntityType == types.EntityProject {
		if err := s.projectRepo.LockForUpdate(ctx, tx, t.ToEntityID); err != nil {
			return err
		}

		contributorDelta := 0
		if t.FromEntityType == types.EntityProfile {
			contributorDelta = direction
		}
		if err := s.projectRepo.ApplyAggregateDelta(ctx, tx, t.ToEntityID, int64(direction)*t.AmountSats, contributorDelta); err != nil {
			return err
		}
	}

	budgetWallets, err := s.walletRepo.FindBudgetWalletsByOwner(ctx, tx, t.FromEntityType, t.FromEntityID)
	if err != nil {
		return err
	}
	for _, w := range budgetWallets {
		if err := s.budgetService.AddConfirmedSpend(ctx, tx, w.ID, int64(direction)*t.AmountSats); err != nil {
			return err
		}
	}

	// Milestones are one-time events: detected on credit, never retracted
	// by a compensating transition.
	if direction > 0 {
		return s.detectMilestones(ctx, tx, t)
	}
	return nil
}

func (s *LedgerService) detectMilestones(ctx context.Context, tx pgx.Tx, t *models.Transaction) error {
	goalWallets, err := s.walletRepo.FindGoalWalletsByOwner(ctx, tx, t.ToEntityType, t.ToEntityID)
	if err != nil {
		return err
	}
	if len(goalWallets) == 0 {
		return nil
	}

	newTotal, err := s.txRepo.SumConfirmedToEntity(ctx, tx, t.ToEntityType, t.ToEntityID)
	if err != nil {
		return err
	}
	prevTotal := newTotal - t.AmountSats

	now := time.Now().UTC()
	for _, w := range goalWallets {
		if w.GoalAmountSats == nil {
			continue
		}
		for _, percent := range crossedMilestones(prevTotal, newTotal, *w.GoalAmountSats) {
			inserted, err := s.milestoneRepo.InsertIdempotent(ctx, tx, w.ID, percent, now)
			if err != nil {
				return err
			}
			if inserted {
				s.logger.WithFields(map[string]interface{}{
					"wallet_id": w.ID,
					"percent":   percent,
				}).Info("Goal milestone reached")
			}
		}
	}

	return nil
}

// UpdateTransactionStatus moves a ledger entry through its lifecycle with the
// row locked, applying aggregate effects only when the transition crosses the
// confirmed boundary.
func (s *LedgerService) UpdateTransactionStatus(ctx context.Context, id string, newStatus types.TransactionStatus, actor string) (*models.Transaction, error) {
	if !types.ValidTransactionStatus(newStatus) {
		return nil, apperrors.NewValidationError("status", "unknown transaction status")
	}

	var result *models.Transaction
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.txRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if t.Status == newStatus {
			result = t
			return nil
		}
		if !validTransition(t.Status, newStatus) {
			return apperrors.NewConflictError("invalid status transition from " + string(t.Status) + " to " + string(newStatus))
		}

		delta := aggregateDelta(t.Status, newStatus, t.AmountSats)

		t.AuditTrail = append(t.AuditTrail, models.AuditEvent{
			At:     time.Now().UTC(),
			Actor:  actor,
			Action: "status_changed",
			From:   string(t.Status),
			To:     string(newStatus),
		})
		t.Status = newStatus

		if err := s.txRepo.UpdateStatus(ctx, tx, t); err != nil {
			return err
		}

		if delta > 0 {
			if err := s.applyConfirmedEffects(ctx, tx, t, 1); err != nil {
				return err
			}
		} else if delta < 0 {
			if err := s.applyConfirmedEffects(ctx, tx, t, -1); err != nil {
				return err
			}
		}

		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// DeleteTransaction removes a ledger entry, reversing its aggregate effects
// when it was confirmed. Deleting financial records is logged with the actor.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string, actor string) error {
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		t, err := s.txRepo.GetByIDForUpdate(ctx, tx, id)
		if err != nil {
			return err
		}

		if t.Status == types.StatusConfirmed {
			if err := s.applyConfirmedEffects(ctx, tx, t, -1); err != nil {
				return err
			}
		}

		return s.txRepo.Delete(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"transaction_id": id,
		"actor":          actor,
	}).Warn("Deleted ledger entry")

	return nil
}

// GetTransaction retrieves a transaction by ID
func (s *LedgerService) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	return s.txRepo.GetByID(ctx, id)
}

// ListTransactionsByEntity retrieves transactions touching an entity.
func (s *LedgerService) ListTransactionsByEntity(ctx context.Context, entityType types.EntityType, entityID string, filters *storage.TransactionFilters) ([]*models.Transaction, error) {
	if !types.ValidEntityType(entityType) {
		return nil, apperrors.NewInvalidTypeError(string(entityType))
	}
	return s.txRepo.ListByEntity(ctx, entityType, entityID, filters)
}

// VerifyTransaction recomputes the stored integrity hash and reports whether
// it still matches.
func (s *LedgerService) VerifyTransaction(ctx context.Context, id string) (bool, error) {
	t, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return false, err
	}
	return t.Verify(), nil
}
