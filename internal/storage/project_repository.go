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

// ProjectRepository handles project data persistence
type ProjectRepository struct {
	db *PostgresDB
}

// NewProjectRepository creates a new project repository
func NewProjectRepository(db *PostgresDB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

const projectColumns = `id, owner_profile_id, slug, title, description, goal_amount_sats,
	raised_amount_sats, contributor_count, deadline, created_at, updated_at`

// Create creates a new project on the caller's Querier so it can share a
// transaction with the owner existence check.
func (r *ProjectRepository) Create(ctx context.Context, q Querier, project *models.Project) error {
	if project.ID == "" {
		project.ID = uuid.New().String()
	}

	now := time.Now()
	project.CreatedAt = now
	project.UpdatedAt = now

	query := `
		INSERT INTO projects (id, owner_profile_id, slug, title, description, goal_amount_sats, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := q.Exec(ctx, query,
		project.ID,
		project.OwnerProfileID,
		project.Slug,
		project.Title,
		project.Description,
		project.GoalAmountSats,
		project.Deadline,
		project.CreatedAt,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}

	return nil
}

// GetByID retrieves a project by ID
func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id), id)
}

// GetBySlug retrieves a project by slug
func (r *ProjectRepository) GetBySlug(ctx context.Context, slug string) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE slug = $1`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, slug), slug)
}

func (r *ProjectRepository) scanOne(row pgx.Row, key string) (*models.Project, error) {
	var p models.Project
	err := row.Scan(
		&p.ID,
		&p.OwnerProfileID,
		&p.Slug,
		&p.Title,
		&p.Description,
		&p.GoalAmountSats,
		&p.RaisedAmountSats,
		&p.ContributorCount,
		&p.Deadline,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("project", key)
		}
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return &p, nil
}

// Update updates the mutable fields of a project
func (r *ProjectRepository) Update(ctx context.Context, project *models.Project) error {
	project.UpdatedAt = time.Now()

	query := `
		UPDATE projects
		SET slug = $2, title = $3, description = $4, goal_amount_sats = $5, deadline = $6, updated_at = $7
		WHERE id = $1
	`

	result, err := r.db.Pool().Exec(ctx, query,
		project.ID,
		project.Slug,
		project.Title,
		project.Description,
		project.GoalAmountSats,
		project.Deadline,
		project.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("project", project.ID)
	}

	return nil
}

// Delete hard-deletes a project row. Callers must clean up polymorphic
// references first; there is no foreign key to cascade them.
func (r *ProjectRepository) Delete(ctx context.Context, q Querier, id string) error {
	result, err := q.Exec(ctx, `DELETE FROM projects WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete project: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("project", id)
	}

	return nil
}

// Exists checks if a project exists by ID
func (r *ProjectRepository) Exists(ctx context.Context, q Querier, id string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`

	err := q.QueryRow(ctx, query, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check project existence: %w", err)
	}

	return exists, nil
}

// LockForUpdate takes a row-level lock on the project. Aggregate updates and
// wallet-limit checks for the same project serialize behind this lock.
func (r *ProjectRepository) LockForUpdate(ctx context.Context, q Querier, id string) error {
	var locked string
	err := q.QueryRow(ctx, `SELECT id FROM projects WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NewReferenceError(types.EntityProject, id)
		}
		return fmt.Errorf("failed to lock project: %w", err)
	}
	return nil
}

// ApplyAggregateDelta adjusts the cached raised_amount_sats and
// contributor_count. Decrements clamp at zero so reordered compensating
// events cannot drive the cache negative.
func (r *ProjectRepository) ApplyAggregateDelta(ctx context.Context, q Querier, id string, amountDelta int64, contributorDelta int) error {
	query := `
		UPDATE projects
		SET raised_amount_sats = GREATEST(0, raised_amount_sats + $2),
		    contributor_count = GREATEST(0, contributor_count + $3),
		    updated_at = now()
		WHERE id = $1
	`

	result, err := q.Exec(ctx, query, id, amountDelta, contributorDelta)
	if err != nil {
		return fmt.Errorf("failed to apply aggregate delta: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("project", id)
	}

	return nil
}

// ListByOwner retrieves all projects owned by a profile
func (r *ProjectRepository) ListByOwner(ctx context.Context, ownerProfileID string, limit, offset int) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE owner_profile_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3`

	rows, err := r.db.Pool().Query(ctx, query, ownerProfileID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

// List retrieves projects with pagination
func (r *ProjectRepository) List(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at DESC LIMIT $1 OFFSET $2`

	rows, err := r.db.Pool().Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	return r.scanMany(rows)
}

func (r *ProjectRepository) scanMany(rows pgx.Rows) ([]*models.Project, error) {
	var projects []*models.Project
	for rows.Next() {
		var p models.Project
		err := rows.Scan(
			&p.ID,
			&p.OwnerProfileID,
			&p.Slug,
			&p.Title,
			&p.Description,
			&p.GoalAmountSats,
			&p.RaisedAmountSats,
			&p.ContributorCount,
			&p.Deadline,
			&p.CreatedAt,
			&p.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating projects: %w", err)
	}

	return projects, nil
}
