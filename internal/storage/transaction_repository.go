package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/types"
)

// TransactionRepository handles ledger entry persistence
type TransactionRepository struct {
	db *PostgresDB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *PostgresDB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `id, amount_sats, from_entity_type, from_entity_id,
	to_entity_type, to_entity_id, payment_method, status, memo, audit_trail,
	verification_hash, created_at, updated_at`

// Insert inserts a ledger entry on the caller's Querier so it commits
// atomically with the aggregate updates it causes.
func (r *TransactionRepository) Insert(ctx context.Context, q Querier, tx *models.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}

	// timestamptz keeps microseconds; truncate up front so the timestamp
	// covered by the verification hash is the one the row will read back.
	now := time.Now().UTC().Truncate(time.Microsecond)
	tx.CreatedAt = now
	tx.UpdatedAt = now

	if tx.Verification == "" {
		tx.Verification = tx.ComputeVerificationHash()
	}

	auditJSON, err := json.Marshal(tx.AuditTrail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit trail: %w", err)
	}

	query := `
		INSERT INTO transactions (id, amount_sats, from_entity_type, from_entity_id,
			to_entity_type, to_entity_id, payment_method, status, memo, audit_trail,
			verification_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = q.Exec(ctx, query,
		tx.ID,
		tx.AmountSats,
		tx.FromEntityType,
		tx.FromEntityID,
		tx.ToEntityType,
		tx.ToEntityID,
		tx.PaymentMethod,
		tx.Status,
		tx.Memo,
		auditJSON,
		tx.Verification,
		tx.CreatedAt,
		tx.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by ID
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`
	return scanTransactionRow(r.db.Pool().QueryRow(ctx, query, id), id)
}

// GetByIDForUpdate retrieves a transaction and locks its row; status
// transitions read-modify-write behind this lock.
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, q Querier, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`
	return scanTransactionRow(q.QueryRow(ctx, query, id), id)
}

func scanTransactionRow(row pgx.Row, key string) (*models.Transaction, error) {
	var tx models.Transaction
	var auditJSON []byte

	err := row.Scan(
		&tx.ID,
		&tx.AmountSats,
		&tx.FromEntityType,
		&tx.FromEntityID,
		&tx.ToEntityType,
		&tx.ToEntityID,
		&tx.PaymentMethod,
		&tx.Status,
		&tx.Memo,
		&auditJSON,
		&tx.Verification,
		&tx.CreatedAt,
		&tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("transaction", key)
		}
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	if len(auditJSON) > 0 {
		if err := json.Unmarshal(auditJSON, &tx.AuditTrail); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit trail: %w", err)
		}
	}

	return &tx, nil
}

// UpdateStatus persists a status transition and the appended audit trail.
func (r *TransactionRepository) UpdateStatus(ctx context.Context, q Querier, tx *models.Transaction) error {
	tx.UpdatedAt = time.Now()

	auditJSON, err := json.Marshal(tx.AuditTrail)
	if err != nil {
		return fmt.Errorf("failed to marshal audit trail: %w", err)
	}

	query := `UPDATE transactions SET status = $2, audit_trail = $3, updated_at = $4 WHERE id = $1`

	result, err := q.Exec(ctx, query, tx.ID, tx.Status, auditJSON, tx.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update transaction status: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("transaction", tx.ID)
	}

	return nil
}

// Delete removes a ledger entry. Deletion of financial records is guarded
// at the service layer; the repository just executes it.
func (r *TransactionRepository) Delete(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `DELETE FROM transactions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("transaction", id)
	}

	return nil
}

// TransactionFilters defines filters for querying ledger entries
type TransactionFilters struct {
	Status   *types.TransactionStatus
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
	Offset   int
}

// ListByEntity retrieves transactions where the entity is either endpoint.
func (r *TransactionRepository) ListByEntity(ctx context.Context, entityType types.EntityType, entityID string, filters *TransactionFilters) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE ((from_entity_type = $1 AND from_entity_id = $2)
		    OR (to_entity_type = $1 AND to_entity_id = $2))
	`
	args := []any{entityType, entityID}

	if filters != nil {
		if filters.Status != nil {
			args = append(args, *filters.Status)
			query += fmt.Sprintf(" AND status = $%d", len(args))
		}
		if filters.DateFrom != nil {
			args = append(args, *filters.DateFrom)
			query += fmt.Sprintf(" AND created_at >= $%d", len(args))
		}
		if filters.DateTo != nil {
			args = append(args, *filters.DateTo)
			query += fmt.Sprintf(" AND created_at <= $%d", len(args))
		}
	}

	query += " ORDER BY created_at DESC"

	if filters != nil && filters.Limit > 0 {
		args = append(args, filters.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filters != nil && filters.Offset > 0 {
		args = append(args, filters.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		var tx models.Transaction
		var auditJSON []byte

		err := rows.Scan(
			&tx.ID,
			&tx.AmountSats,
			&tx.FromEntityType,
			&tx.FromEntityID,
			&tx.ToEntityType,
			&tx.ToEntityID,
			&tx.PaymentMethod,
			&tx.Status,
			&tx.Memo,
			&auditJSON,
			&tx.Verification,
			&tx.CreatedAt,
			&tx.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if len(auditJSON) > 0 {
			if err := json.Unmarshal(auditJSON, &tx.AuditTrail); err != nil {
				return nil, fmt.Errorf("failed to unmarshal audit trail: %w", err)
			}
		}

		transactions = append(transactions, &tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}

// SumConfirmedToEntity aggregates confirmed inbound value for an entity.
// Readers use the cached project aggregates; this exists for reconciliation
// and statistics.
func (r *TransactionRepository) SumConfirmedToEntity(ctx context.Context, q Querier, entityType types.EntityType, entityID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(amount_sats), 0)
		FROM transactions
		WHERE to_entity_type = $1 AND to_entity_id = $2 AND status = 'confirmed'
	`

	var sum int64
	err := q.QueryRow(ctx, query, entityType, entityID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("failed to sum confirmed transactions: %w", err)
	}

	return sum, nil
}

// EntityStats is a read-side rollup over confirmed inbound transactions.
type EntityStats struct {
	ConfirmedCount     int64 `json:"confirmedCount"`
	TotalSats          int64 `json:"totalSats"`
	DistinctSupporters int64 `json:"distinctSupporters"`
}

// StatsForEntity aggregates confirmed inbound activity for an entity since
// the given time (zero time means all history).
func (r *TransactionRepository) StatsForEntity(ctx context.Context, entityType types.EntityType, entityID string, since time.Time) (*EntityStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(amount_sats), 0),
		       COUNT(DISTINCT (from_entity_type, from_entity_id))
		FROM transactions
		WHERE to_entity_type = $1 AND to_entity_id = $2 AND status = 'confirmed'
		  AND created_at >= $3
	`

	var stats EntityStats
	err := r.db.Pool().QueryRow(ctx, query, entityType, entityID, since).Scan(
		&stats.ConfirmedCount,
		&stats.TotalSats,
		&stats.DistinctSupporters,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate transaction stats: %w", err)
	}

	return &stats, nil
}
