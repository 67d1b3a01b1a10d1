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
	"github.com/funding-ledger/internal/validation"
)

// WalletService handles wallet creation, ownership, and the per-owner active
// wallet cap. The cap check runs with the owner row locked so two concurrent
// inserts cannot both observe nine wallets and commit an eleventh.
type WalletService struct {
	db               *storage.PostgresDB
	walletRepo       *storage.WalletRepository
	refValidator     *ReferenceValidator
	budgetService    *BudgetService
	maxActiveWallets int
	logger           *logging.Logger
}

// NewWalletService creates a new wallet service
func NewWalletService(
	db *storage.PostgresDB,
	walletRepo *storage.WalletRepository,
	refValidator *ReferenceValidator,
	budgetService *BudgetService,
	maxActiveWallets int,
	logger *logging.Logger,
) *WalletService {
	if maxActiveWallets <= 0 {
		maxActiveWallets = types.MaxActiveWallets
	}
	return &WalletService{
		db:               db,
		walletRepo:       walletRepo,
		refValidator:     refValidator,
		budgetService:    budgetService,
		maxActiveWallets: maxActiveWallets,
		logger:           logger,
	}
}

// validateBehaviorConfig checks that the fields a behavior mode requires are
// present and sane before anything touches the database.
func validateBehaviorConfig(wallet *models.Wallet) error {
	switch wallet.BehaviorType {
	case types.BehaviorGeneral:
		return nil
	case types.BehaviorOneTimeGoal:
		if wallet.GoalAmountSats == nil || *wallet.GoalAmountSats <= 0 {
			return apperrors.NewValidationError("goalAmountSats", "one_time_goal wallets require a positive goal amount")
		}
		return nil
	case types.BehaviorRecurringBudget:
		if wallet.BudgetAmountSats == nil || *wallet.BudgetAmountSats <= 0 {
			return apperrors.NewValidationError("budgetAmountSats", "recurring_budget wallets require a positive budget amount")
		}
		if wallet.BudgetPeriod == nil {
			return apperrors.NewValidationError("budgetPeriod", "recurring_budget wallets require a period type")
		}
		if wallet.BudgetStartDay == nil {
			return apperrors.NewValidationError("budgetStartDay", "recurring_budget wallets require a start day")
		}
		switch *wallet.BudgetPeriod {
		case types.PeriodWeekly:
			if *wallet.BudgetStartDay < 1 || *wallet.BudgetStartDay > 7 {
				return apperrors.NewValidationError("budgetStartDay", "weekly budgets start on a weekday 1-7")
			}
		case types.PeriodMonthly:
			if *wallet.BudgetStartDay < 1 || *wallet.BudgetStartDay > 28 {
				return apperrors.NewValidationError("budgetStartDay", "monthly budgets start on a day 1-28")
			}
		default:
			return apperrors.NewValidationError("budgetPeriod", "unknown budget period type")
		}
		return nil
	default:
		return apperrors.NewValidationError("behaviorType", "unknown behavior type")
	}
}

// CreateWallet validates the handle and behavior config, then atomically
// inserts the wallet, its ownership row, and (for recurring budgets) the
// first spend window, with the owner row locked for the cap check.
func (s *WalletService) CreateWallet(ctx context.Context, wallet *models.Wallet, ownerType types.EntityType, ownerID string) (*models.Wallet, error) {
	if err := validation.ValidateWalletHandle(wallet.WalletType, wallet.Value); err != nil {
		return nil, err
	}
	if err := validateBehaviorConfig(wallet); err != nil {
		return nil, err
	}
	if !types.ValidEntityType(ownerType) {
		return nil, apperrors.NewInvalidTypeError(string(ownerType))
	}

	wallet.Active = true

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.refValidator.LockOwner(ctx, tx, ownerType, ownerID); err != nil {
			return err
		}

		count, err := s.walletRepo.CountActiveByOwner(ctx, tx, ownerType, ownerID)
		if err != nil {
			return err
		}
		if count >= s.maxActiveWallets {
			return apperrors.NewLimitExceededError(ownerType, ownerID, s.maxActiveWallets)
		}

		if err := s.walletRepo.Create(ctx, tx, wallet); err != nil {
			return err
		}

		ownership := &models.WalletOwnership{
			WalletID:  wallet.ID,
			OwnerType: ownerType,
			OwnerID:   ownerID,
			Active:    true,
		}
		if err := s.walletRepo.CreateOwnership(ctx, tx, ownership); err != nil {
			return err
		}

		if wallet.BehaviorType == types.BehaviorRecurringBudget {
			if _, err := s.budgetService.InitialPeriod(ctx, tx, wallet, time.Now()); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"wallet_id":  wallet.ID,
		"owner_type": ownerType,
		"owner_id":   ownerID,
		"behavior":   wallet.BehaviorType,
	}).Info("Created wallet")

	return wallet, nil
}

// GetWallet retrieves a wallet by ID
func (s *WalletService) GetWallet(ctx context.Context, id string) (*models.Wallet, error) {
	return s.walletRepo.GetByID(ctx, id)
}

// ListWalletsByOwner retrieves the active wallets owned by an entity.
func (s *WalletService) ListWalletsByOwner(ctx context.Context, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error) {
	if !types.ValidEntityType(ownerType) {
		return nil, apperrors.NewInvalidTypeError(string(ownerType))
	}
	return s.walletRepo.ListByOwner(ctx, ownerType, ownerID)
}

// UpdateWallet persists label/category/icon edits. Handle and behavior
// changes go through create/deactivate, not update.
func (s *WalletService) UpdateWallet(ctx context.Context, wallet *models.Wallet) error {
	return s.walletRepo.Update(ctx, wallet)
}

// DeactivateWallet frees a slot under the owner's cap without erasing
// history.
func (s *WalletService) DeactivateWallet(ctx context.Context, id string) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.walletRepo.Deactivate(ctx, tx, id)
	})
}

// DeleteWallet removes a wallet; periods, milestones, and ownerships go with
// it through their wallet_id foreign keys.
func (s *WalletService) DeleteWallet(ctx context.Context, id string) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.walletRepo.Delete(ctx, tx, id)
	})
}

// RepointOwnership moves an ownership row to a new owner. The new owner is
// revalidated and its cap rechecked under lock, same as on create.
func (s *WalletService) RepointOwnership(ctx context.Context, ownershipID string, ownerType types.EntityType, ownerID string) error {
	if !types.ValidEntityType(ownerType) {
		return apperrors.NewInvalidTypeError(string(ownerType))
	}

	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.refValidator.LockOwner(ctx, tx, ownerType, ownerID); err != nil {
			return err
		}

		count, err := s.walletRepo.CountActiveByOwner(ctx, tx, ownerType, ownerID)
		if err != nil {
			return err
		}
		if count >= s.maxActiveWallets {
			return apperrors.NewLimitExceededError(ownerType, ownerID, s.maxActiveWallets)
		}

		return s.walletRepo.RepointOwnership(ctx, tx, ownershipID, ownerType, ownerID)
	})
}
