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

// WalletRepository handles wallet and wallet-ownership persistence
type WalletRepository struct {
	db *PostgresDB
}

// NewWalletRepository creates a new wallet repository
func NewWalletRepository(db *PostgresDB) *WalletRepository {
	return &WalletRepository{db: db}
}

// balance_btc is selected as text and parsed explicitly; NUMERIC round-trips
// through decimal.Decimal without float conversion that way.
const walletColumns = `id, wallet_type, value, label, category, icon, behavior_type,
	balance_btc::text, tx_count, goal_amount_sats, goal_deadline,
	budget_amount_sats, budget_period, budget_start_day,
	active, last_refreshed, created_at, updated_at`

// Create inserts a wallet row. Runs on the caller's Querier so the wallet,
// its ownership and its first budget period commit atomically.
func (r *WalletRepository) Create(ctx context.Context, q Querier, wallet *models.Wallet) error {
	if wallet.ID == "" {
		wallet.ID = uuid.New().String()
	}
	if wallet.BehaviorType == "" {
		wallet.BehaviorType = types.BehaviorGeneral
	}

	now := time.Now()
	wallet.CreatedAt = now
	wallet.UpdatedAt = now
	wallet.Active = true

	query := `
		INSERT INTO wallets (id, wallet_type, value, label, category, icon, behavior_type,
			balance_btc, goal_amount_sats, goal_deadline,
			budget_amount_sats, budget_period, budget_start_day,
			active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := q.Exec(ctx, query,
		wallet.ID,
		wallet.WalletType,
		wallet.Value,
		wallet.Label,
		wallet.Category,
		wallet.Icon,
		wallet.BehaviorType,
		wallet.BalanceBTC.String(),
		wallet.GoalAmountSats,
		wallet.GoalDeadline,
		wallet.BudgetAmountSats,
		wallet.BudgetPeriod,
		wallet.BudgetStartDay,
		wallet.Active,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet: %w", err)
	}

	return nil
}

// GetByID retrieves a wallet by ID
func (r *WalletRepository) GetByID(ctx context.Context, id string) (*models.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1`

	w, err := scanWallet(r.db.Pool().QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("wallet", id)
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func scanWallet(row pgx.Row) (*models.Wallet, error) {
	var w models.Wallet
	var balance string

	err := row.Scan(
		&w.ID,
		&w.WalletType,
		&w.Value,
		&w.Label,
		&w.Category,
		&w.Icon,
		&w.BehaviorType,
		&balance,
		&w.TxCount,
		&w.GoalAmountSats,
		&w.GoalDeadline,
		&w.BudgetAmountSats,
		&w.BudgetPeriod,
		&w.BudgetStartDay,
		&w.Active,
		&w.LastRefreshed,
		&w.CreatedAt,
		&w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	w.BalanceBTC, err = decimal.NewFromString(balance)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wallet balance: %w", err)
	}

	return &w, nil
}

// Update updates the mutable fields of a wallet
func (r *WalletRepository) Update(ctx context.Context, wallet *models.Wallet) error {
	wallet.UpdatedAt = time.Now()

	query := `
		UPDATE wallets
		SET label = $2, category = $3, icon = $4, goal_amount_sats = $5, goal_deadline = $6,
		    budget_amount_sats = $7, budget_period = $8, budget_start_day = $9, updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		wallet.ID,
		wallet.Label,
		wallet.Category,
		wallet.Icon,
		wallet.GoalAmountSats,
		wallet.GoalDeadline,
		wallet.BudgetAmountSats,
		wallet.BudgetPeriod,
		wallet.BudgetStartDay,
		wallet.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("wallet", wallet.ID)
	}

	return nil
}

// RecordBalance stores an externally refreshed balance and tx count.
func (r *WalletRepository) RecordBalance(ctx context.Context, id string, balanceBTC decimal.Decimal, txCount int, refreshedAt time.Time) error {
	query := `
		UPDATE wallets
		SET balance_btc = $2, tx_count = $3, last_refreshed = $4, updated_at = now()
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query, id, balanceBTC.String(), txCount, refreshedAt)
	if err != nil {
		return fmt.Errorf("failed to record wallet balance: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("wallet", id)
	}

	return nil
}

// Deactivate marks a wallet inactive; its ownership rows stop counting
// toward the owner's active-wallet cap.
func (r *WalletRepository) Deactivate(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `UPDATE wallets SET active = FALSE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to deactivate wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("wallet", id)
	}
	return nil
}

// Delete hard-deletes a wallet; ownerships, budget periods and milestones
// cascade via their foreign keys.
func (r *WalletRepository) Delete(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete wallet: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("wallet", id)
	}
	return nil
}

// CreateOwnership links a wallet to its owning entity on the caller's Querier.
func (r *WalletRepository) CreateOwnership(ctx context.Context, q Querier, ownership *models.WalletOwnership) error {
	if ownership.ID == "" {
		ownership.ID = uuid.New().String()
	}
	ownership.CreatedAt = time.Now()
	ownership.Active = true

	query := `
		INSERT INTO wallet_ownerships (id, wallet_id, owner_type, owner_id, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := q.Exec(ctx, query,
		ownership.ID,
		ownership.WalletID,
		ownership.OwnerType,
		ownership.OwnerID,
		ownership.Active,
		ownership.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wallet ownership: %w", err)
	}

	return nil
}

// CountActiveByOwner counts active ownership rows of active wallets for one
// owner. Must run on a Querier that already holds the owner row lock.
func (r *WalletRepository) CountActiveByOwner(ctx context.Context, q Querier, ownerType types.EntityType, ownerID string) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM wallet_ownerships o
		JOIN wallets w ON w.id = o.wallet_id
		WHERE o.owner_type = $1 AND o.owner_id = $2 AND o.active AND w.active
	`

	var count int
	err := q.QueryRow(ctx, query, ownerType, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active wallets: %w", err)
	}

	return count, nil
}

// RepointOwnership moves an ownership row to a new owner. Callers validate
// the new reference before calling.
func (r *WalletRepository) RepointOwnership(ctx context.Context, q Querier, ownershipID string, ownerType types.EntityType, ownerID string) error {
	query := `UPDATE wallet_ownerships SET owner_type = $2, owner_id = $3 WHERE id = $1`

	result, err := q.Exec(ctx, query, ownershipID, ownerType, ownerID)
	if err != nil {
		return fmt.Errorf("failed to repoint wallet ownership: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("wallet ownership", ownershipID)
	}

	return nil
}

// DeleteOwnershipsByOwner removes every ownership row naming the given
// owner. Emulates the cascade a foreign key would provide.
func (r *WalletRepository) DeleteOwnershipsByOwner(ctx context.Context, q Querier, ownerType types.EntityType, ownerID string) (int64, error) {
	result, err := q.Exec(ctx,
		`DELETE FROM wallet_ownerships WHERE owner_type = $1 AND owner_id = $2`,
		ownerType, ownerID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete ownerships for owner: %w", err)
	}
	return result.RowsAffected(), nil
}

// GetOwnership retrieves one ownership row by ID
func (r *WalletRepository) GetOwnership(ctx context.Context, id string) (*models.WalletOwnership, error) {
	query := `
		SELECT id, wallet_id, owner_type, owner_id, active, created_at
		FROM wallet_ownerships
		WHERE id = $1
	`

	var o models.WalletOwnership
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&o.ID,
		&o.WalletID,
		&o.OwnerType,
		&o.OwnerID,
		&o.Active,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("wallet ownership", id)
		}
		return nil, fmt.Errorf("failed to get wallet ownership: %w", err)
	}

	return &o, nil
}

// ListByOwner retrieves all wallets owned by one entity
func (r *WalletRepository) ListByOwner(ctx context.Context, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id IN (
			SELECT wallet_id FROM wallet_ownerships
			WHERE owner_type = $1 AND owner_id = $2 AND active
		)
		ORDER BY created_at
	`

	rows, err := r.db.Pool().Query(ctx, query, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}

	return wallets, nil
}

// FindGoalWalletsByOwner retrieves active one_time_goal wallets owned by an
// entity. The ledger service uses this to route milestone detection for
// confirmed credits.
func (r *WalletRepository) FindGoalWalletsByOwner(ctx context.Context, q Querier, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error) {
	return r.findBehaviorWalletsByOwner(ctx, q, types.BehaviorOneTimeGoal, ownerType, ownerID)
}

// FindBudgetWalletsByOwner retrieves active recurring_budget wallets owned by
// an entity, for spend accumulation on confirmed debits.
func (r *WalletRepository) FindBudgetWalletsByOwner(ctx context.Context, q Querier, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error) {
	return r.findBehaviorWalletsByOwner(ctx, q, types.BehaviorRecurringBudget, ownerType, ownerID)
}

func (r *WalletRepository) findBehaviorWalletsByOwner(ctx context.Context, q Querier, behavior types.BehaviorType, ownerType types.EntityType, ownerID string) ([]*models.Wallet, error) {
	query := `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE behavior_type = $1 AND active AND id IN (
			SELECT wallet_id FROM wallet_ownerships
			WHERE owner_type = $2 AND owner_id = $3 AND active
		)
	`

	rows, err := q.Query(ctx, query, behavior, ownerType, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to find %s wallets: %w", behavior, err)
	}
	defer rows.Close()

	var wallets []*models.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}

	return wallets, nil
}
