package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/types"
)

// BudgetPeriodRepository handles budget period persistence
type BudgetPeriodRepository struct {
	db *PostgresDB
}

// NewBudgetPeriodRepository creates a new budget period repository
func NewBudgetPeriodRepository(db *PostgresDB) *BudgetPeriodRepository {
	return &BudgetPeriodRepository{db: db}
}

const budgetPeriodColumns = `id, wallet_id, period_start, period_end, amount_spent_sats, status, completion_rate::text, created_at`

// Insert creates a new period. The partial unique index on active periods
// rejects a second active period for the same wallet.
func (r *BudgetPeriodRepository) Insert(ctx context.Context, q Querier, period *models.BudgetPeriod) error {
	if period.ID == "" {
		period.ID = uuid.New().String()
	}
	period.CreatedAt = time.Now()

	query := `
		INSERT INTO budget_periods (id, wallet_id, period_start, period_end, amount_spent_sats, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := q.Exec(ctx, query,
		period.ID,
		period.WalletID,
		period.PeriodStart,
		period.PeriodEnd,
		period.AmountSpent,
		period.Status,
		period.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert budget period: %w", err)
	}

	return nil
}

// GetActiveByWallet returns the wallet's single active period, locked for
// update so concurrent spends and the sweeper serialize.
func (r *BudgetPeriodRepository) GetActiveByWallet(ctx context.Context, q Querier, walletID string) (*models.BudgetPeriod, error) {
	query := `
		SELECT ` + budgetPeriodColumns + `
		FROM budget_periods
		WHERE wallet_id = $1 AND status = 'active'
		FOR UPDATE
	`
	return scanBudgetPeriod(q.QueryRow(ctx, query, walletID), walletID)
}

func scanBudgetPeriod(row pgx.Row, key string) (*models.BudgetPeriod, error) {
	var period models.BudgetPeriod
	var completionRate *string

	err := row.Scan(
		&period.ID,
		&period.WalletID,
		&period.PeriodStart,
		&period.PeriodEnd,
		&period.AmountSpent,
		&period.Status,
		&completionRate,
		&period.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("budget period", key)
		}
		return nil, fmt.Errorf("failed to get budget period: %w", err)
	}

	if completionRate != nil {
		rate, err := decimal.NewFromString(*completionRate)
		if err != nil {
			return nil, fmt.Errorf("failed to parse completion rate: %w", err)
		}
		period.CompletionRate = &rate
	}

	return &period, nil
}

// AddSpend accumulates confirmed outbound value into the active period.
func (r *BudgetPeriodRepository) AddSpend(ctx context.Context, q Querier, periodID string, amountSats int64) error {
	query := `UPDATE budget_periods SET amount_spent_sats = GREATEST(0, amount_spent_sats + $2) WHERE id = $1`

	result, err := q.Exec(ctx, query, periodID, amountSats)
	if err != nil {
		return fmt.Errorf("failed to update period spend: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("budget period", periodID)
	}

	return nil
}

// Close marks a period completed and records its completion rate.
func (r *BudgetPeriodRepository) Close(ctx context.Context, q Querier, periodID string, completionRate decimal.Decimal) error {
	query := `
		UPDATE budget_periods
		SET status = $2, completion_rate = $3
		WHERE id = $1 AND status = 'active'
	`

	result, err := q.Exec(ctx, query, periodID, types.PeriodCompleted, completionRate.String())
	if err != nil {
		return fmt.Errorf("failed to close budget period: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("budget period", periodID)
	}

	return nil
}

// ListDueWalletIDs returns wallets whose active period has expired, for the
// rolling sweeper.
func (r *BudgetPeriodRepository) ListDueWalletIDs(ctx context.Context, now time.Time) ([]string, error) {
	query := `
		SELECT wallet_id
		FROM budget_periods
		WHERE status = 'active' AND period_end <= $1
		ORDER BY period_end ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due budget periods: %w", err)
	}
	defer rows.Close()

	var walletIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan wallet id: %w", err)
		}
		walletIDs = append(walletIDs, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating due budget periods: %w", err)
	}

	return walletIDs, nil
}

// ListByWallet returns a wallet's period history, newest first.
func (r *BudgetPeriodRepository) ListByWallet(ctx context.Context, walletID string, limit int) ([]*models.BudgetPeriod, error) {
	query := `
		SELECT ` + budgetPeriodColumns + `
		FROM budget_periods
		WHERE wallet_id = $1
		ORDER BY period_start DESC
	`
	args := []any{walletID}

	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query budget periods: %w", err)
	}
	defer rows.Close()

	var periods []*models.BudgetPeriod
	for rows.Next() {
		var period models.BudgetPeriod
		var completionRate *string

		err := rows.Scan(
			&period.ID,
			&period.WalletID,
			&period.PeriodStart,
			&period.PeriodEnd,
			&period.AmountSpent,
			&period.Status,
			&completionRate,
			&period.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan budget period: %w", err)
		}

		if completionRate != nil {
			rate, err := decimal.NewFromString(*completionRate)
			if err != nil {
				return nil, fmt.Errorf("failed to parse completion rate: %w", err)
			}
			period.CompletionRate = &rate
		}

		periods = append(periods, &period)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget periods: %w", err)
	}

	return periods, nil
}
