package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// BudgetService maintains the rolling spend windows of recurring-budget
// wallets: one active period per wallet, contiguous, rolled over by an
// external cron-style caller.
type BudgetService struct {
	db         *storage.PostgresDB
	walletRepo *storage.WalletRepository
	periodRepo *storage.BudgetPeriodRepository
	logger     *logging.Logger
}

// NewBudgetService creates a new budget service
func NewBudgetService(
	db *storage.PostgresDB,
	walletRepo *storage.WalletRepository,
	periodRepo *storage.BudgetPeriodRepository,
	logger *logging.Logger,
) *BudgetService {
	return &BudgetService{
		db:         db,
		walletRepo: walletRepo,
		periodRepo: periodRepo,
		logger:     logger,
	}
}

// periodWindow computes the window containing now for a wallet's budget
// configuration. Weekly windows anchor on a weekday (1=Monday..7=Sunday);
// monthly windows anchor on a day of month (1..28, so every month has it).
func periodWindow(periodType types.BudgetPeriodType, startDay int, now time.Time) (time.Time, time.Time) {
	now = now.UTC()

	switch periodType {
	case types.PeriodWeekly:
		weekday := int(now.Weekday())
		if weekday == 0 {
			weekday = 7 // Sunday
		}
		daysBack := (weekday - startDay + 7) % 7
		start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -daysBack)
		return start, start.AddDate(0, 0, 7)
	default: // monthly
		start := time.Date(now.Year(), now.Month(), startDay, 0, 0, 0, 0, time.UTC)
		if start.After(now) {
			start = start.AddDate(0, -1, 0)
		}
		return start, start.AddDate(0, 1, 0)
	}
}

// nextWindow returns the window contiguous with the one ending at prevEnd.
func nextWindow(periodType types.BudgetPeriodType, prevEnd time.Time) (time.Time, time.Time) {
	if periodType == types.PeriodWeekly {
		return prevEnd, prevEnd.AddDate(0, 0, 7)
	}
	return prevEnd, prevEnd.AddDate(0, 1, 0)
}

// completionRate returns spent/budget as a decimal, zero when the budget is
// unset or zero.
func completionRate(spentSats, budgetSats int64) decimal.Decimal {
	if budgetSats <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(spentSats).DivRound(decimal.NewFromInt(budgetSats), 4)
}

// InitialPeriod opens the first window for a freshly created recurring-budget
// wallet, on the caller's transaction so wallet and period commit together.
func (s *BudgetService) InitialPeriod(ctx context.Context, q storage.Querier, wallet *models.Wallet, now time.Time) (*models.BudgetPeriod, error) {
	if wallet.BehaviorType != types.BehaviorRecurringBudget {
		return nil, apperrors.NewValidationError("behaviorType", "wallet does not track budget periods")
	}
	if wallet.BudgetPeriod == nil || wallet.BudgetStartDay == nil {
		return nil, apperrors.NewValidationError("budgetPeriod", "recurring_budget wallets require a period type and start day")
	}

	start, end := periodWindow(*wallet.BudgetPeriod, *wallet.BudgetStartDay, now)

	period := &models.BudgetPeriod{
		WalletID:    wallet.ID,
		PeriodStart: start,
		PeriodEnd:   end,
		AmountSpent: 0,
		Status:      types.PeriodActive,
	}
	if err := s.periodRepo.Insert(ctx, q, period); err != nil {
		return nil, err
	}

	return period, nil
}

// AddConfirmedSpend accumulates a confirmed debit into the wallet's active
// period. Amounts landing after the window expired but before the sweep
// closed it still count toward that window.
func (s *BudgetService) AddConfirmedSpend(ctx context.Context, q storage.Querier, walletID string, amountSats int64) error {
	period, err := s.periodRepo.GetActiveByWallet(ctx, q, walletID)
	if err != nil {
		return err
	}
	return s.periodRepo.AddSpend(ctx, q, period.ID, amountSats)
}

// RollWalletPeriod closes the wallet's expired active period and opens the
// next contiguous one. When multiple windows elapsed between sweeps it keeps
// rolling until the open window contains now, so period history has no gaps.
func (s *BudgetService) RollWalletPeriod(ctx context.Context, walletID string, now time.Time) error {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return err
	}
	if wallet.BehaviorType != types.BehaviorRecurringBudget || wallet.BudgetPeriod == nil {
		return apperrors.NewValidationError("walletId", "wallet does not track budget periods")
	}

	var budget int64
	if wallet.BudgetAmountSats != nil {
		budget = *wallet.BudgetAmountSats
	}

	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		period, err := s.periodRepo.GetActiveByWallet(ctx, tx, walletID)
		if err != nil {
			return err
		}

		for !period.PeriodEnd.After(now) {
			rate := completionRate(period.AmountSpent, budget)
			if err := s.periodRepo.Close(ctx, tx, period.ID, rate); err != nil {
				return err
			}

			start, end := nextWindow(*wallet.BudgetPeriod, period.PeriodEnd)
			next := &models.BudgetPeriod{
				WalletID:    walletID,
				PeriodStart: start,
				PeriodEnd:   end,
				AmountSpent: 0,
				Status:      types.PeriodActive,
			}
			if err := s.periodRepo.Insert(ctx, tx, next); err != nil {
				return err
			}

			s.logger.WithFields(map[string]interface{}{
				"wallet_id":       walletID,
				"closed_period":   period.ID,
				"completion_rate": rate.String(),
				"next_start":      start,
			}).Info("Rolled budget period")

			period = next
		}

		return nil
	})
}

// SweepDuePeriods rolls every wallet whose active period has expired.
// Invoked by cmd/sweep; one wallet failing does not stop the pass.
func (s *BudgetService) SweepDuePeriods(ctx context.Context, now time.Time) (int, error) {
	walletIDs, err := s.periodRepo.ListDueWalletIDs(ctx, now)
	if err != nil {
		return 0, err
	}

	rolled := 0
	var firstErr error
	for _, walletID := range walletIDs {
		if err := s.RollWalletPeriod(ctx, walletID, now); err != nil {
			s.logger.WithError(err).WithField("wallet_id", walletID).Error("Failed to roll budget period")
			if firstErr == nil {
				firstErr = fmt.Errorf("failed to roll wallet %s: %w", walletID, err)
			}
			continue
		}
		rolled++
	}

	return rolled, firstErr
}

// PeriodHistory returns a wallet's budget windows, newest first.
func (s *BudgetService) PeriodHistory(ctx context.Context, walletID string, limit int) ([]*models.BudgetPeriod, error) {
	return s.periodRepo.ListByWallet(ctx, walletID, limit)
}
