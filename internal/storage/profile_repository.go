package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/types"
)

// ProfileRepository handles profile data persistence
type ProfileRepository struct {
	db *PostgresDB
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *PostgresDB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

const profileColumns = `id, username, display_name, bitcoin_address, lightning_address,
	balance_sats, follower_count, following_count, project_count, status, created_at, updated_at`

// Create creates a new profile with signup defaults
func (r *ProfileRepository) Create(ctx context.Context, profile *models.Profile) error {
	if profile.ID == "" {
		profile.ID = uuid.New().String()
	}
	if profile.Status == "" {
		profile.Status = types.ProfileActive
	}

	now := time.Now()
	profile.CreatedAt = now
	profile.UpdatedAt = now

	query := `
		INSERT INTO profiles (id, username, display_name, bitcoin_address, lightning_address, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		profile.ID,
		profile.Username,
		profile.DisplayName,
		profile.BitcoinAddress,
		profile.LightningAddress,
		profile.Status,
		profile.CreatedAt,
		profile.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}

	return nil
}

// GetByID retrieves a profile by ID
func (r *ProfileRepository) GetByID(ctx context.Context, id string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id), id)
}

// GetByUsername retrieves a profile by username
func (r *ProfileRepository) GetByUsername(ctx context.Context, username string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, username), username)
}

func (r *ProfileRepository) scanOne(row pgx.Row, key string) (*models.Profile, error) {
	var p models.Profile
	err := row.Scan(
		&p.ID,
		&p.Username,
		&p.DisplayName,
		&p.BitcoinAddress,
		&p.LightningAddress,
		&p.BalanceSats,
		&p.FollowerCount,
		&p.FollowingCount,
		&p.ProjectCount,
		&p.Status,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("profile", key)
		}
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	return &p, nil
}

// Update updates the mutable fields of a profile
func (r *ProfileRepository) Update(ctx context.Context, profile *models.Profile) error {
	profile.UpdatedAt = time.Now()

	query := `
		UPDATE profiles
		SET username = $2, display_name = $3, bitcoin_address = $4, lightning_address = $5,
		    status = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		profile.ID,
		profile.Username,
		profile.DisplayName,
		profile.BitcoinAddress,
		profile.LightningAddress,
		profile.Status,
		profile.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("profile", profile.ID)
	}

	return nil
}

// Retire soft-retires a profile. The row survives while references exist.
func (r *ProfileRepository) Retire(ctx context.Context, q Querier, id string) error {
	query := `UPDATE profiles SET status = 'retired', updated_at = now() WHERE id = $1`

	result, err := q.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to retire profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("profile", id)
	}

	return nil
}

// Delete hard-deletes a profile row. Callers must clean up polymorphic
// references first; there is no foreign key to cascade them.
func (r *ProfileRepository) Delete(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("profile", id)
	}

	return nil
}

// Exists checks if a profile exists by ID
func (r *ProfileRepository) Exists(ctx context.Context, q Querier, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM profiles WHERE id = $1)`

	err := q.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check profile existence: %w", err)
	}

	return exists, nil
}

// LockForUpdate takes a row-level lock on the profile, serializing
// concurrent wallet-limit checks against the same owner.
func (r *ProfileRepository) LockForUpdate(ctx context.Context, q Querier, id string) error {
	var locked string
	err := q.QueryRow(ctx, `SELECT id FROM profiles WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewReferenceError(types.EntityProfile, id)
		}
		return fmt.Errorf("failed to lock profile: %w", err)
	}
	return nil
}

// List retrieves profiles with pagination
func (r *ProfileRepository) List(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*models.Profile
	for rows.Next() {
		var p models.Profile
		err := rows.Scan(
			&p.ID,
			&p.Username,
			&p.DisplayName,
			&p.BitcoinAddress,
			&p.LightningAddress,
			&p.BalanceSats,
			&p.FollowerCount,
			&p.FollowingCount,
			&p.ProjectCount,
			&p.Status,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan profile: %w", err)
		}
		profiles = append(profiles, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}

	return profiles, nil
}
