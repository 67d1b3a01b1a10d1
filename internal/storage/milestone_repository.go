package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/funding-ledger/internal/models"
)

// MilestoneRepository handles goal milestone persistence
type MilestoneRepository struct {
	db *PostgresDB
}

// NewMilestoneRepository creates a new milestone repository
func NewMilestoneRepository(db *PostgresDB) *MilestoneRepository {
	return &MilestoneRepository{db: db}
}

// InsertIdempotent records a milestone crossing. The unique constraint on
// (wallet_id, milestone_percent) makes replays a no-op; the return value
// reports whether this call inserted the row.
func (r *MilestoneRepository) InsertIdempotent(ctx context.Context, q Querier, walletID string, percent int, reachedAt time.Time) (bool, error) {
	query := `
		INSERT INTO goal_milestones (id, wallet_id, milestone_percent, reached_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (wallet_id, milestone_percent) DO NOTHING
	`

	result, err := q.Exec(ctx, query, uuid.New().String(), walletID, percent, reachedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert milestone: %w", err)
	}

	return result.RowsAffected() > 0, nil
}

// ListByWallet returns a wallet's reached milestones in ascending percent order.
func (r *MilestoneRepository) ListByWallet(ctx context.Context, walletID string) ([]*models.GoalMilestone, error) {
	query := `
		SELECT id, wallet_id, milestone_percent, reached_at
		FROM goal_milestones
		WHERE wallet_id = $1
		ORDER BY milestone_percent ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()

	var milestones []*models.GoalMilestone
	for rows.Next() {
		var m models.GoalMilestone
		if err := rows.Scan(&m.ID, &m.WalletID, &m.MilestonePercent, &m.ReachedAt); err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestones: %w", err)
	}

	return milestones, nil
}
