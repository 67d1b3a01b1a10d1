package service

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// ProjectService handles project lifecycle. Deleting a project sweeps the
// ownership and visibility rows that name it, same as profile deletion.
type ProjectService struct {
	db           *storage.PostgresDB
	projectRepo  *storage.ProjectRepository
	refValidator *ReferenceValidator
	logger       *logging.Logger
}

// NewProjectService creates a new project service
func NewProjectService(
	db *storage.PostgresDB,
	projectRepo *storage.ProjectRepository,
	refValidator *ReferenceValidator,
	logger *logging.Logger,
) *ProjectService {
	return &ProjectService{
		db:           db,
		projectRepo:  projectRepo,
		refValidator: refValidator,
		logger:       logger,
	}
}

func validateProjectInput(project *models.Project) error {
	if strings.TrimSpace(project.Slug) == "" {
		return apperrors.NewValidationError("slug", "slug must not be empty")
	}
	if strings.TrimSpace(project.Title) == "" {
		return apperrors.NewValidationError("title", "title must not be empty")
	}
	if project.GoalAmountSats != nil && *project.GoalAmountSats <= 0 {
		return apperrors.NewValidationError("goalAmountSats", "goal amount must be positive")
	}
	return nil
}

// CreateProject creates a project after confirming the owning profile exists.
func (s *ProjectService) CreateProject(ctx context.Context, project *models.Project) (*models.Project, error) {
	if err := validateProjectInput(project); err != nil {
		return nil, err
	}

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.refValidator.ValidateReference(ctx, tx, types.EntityProfile, project.OwnerProfileID); err != nil {
			return err
		}
		return s.projectRepo.Create(ctx, tx, project)
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"project_id": project.ID,
		"slug":       project.Slug,
		"owner_id":   project.OwnerProfileID,
	}).Info("Created project")

	return project, nil
}

// GetProject retrieves a project by ID
func (s *ProjectService) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.projectRepo.GetByID(ctx, id)
}

// GetProjectBySlug retrieves a project by slug
func (s *ProjectService) GetProjectBySlug(ctx context.Context, slug string) (*models.Project, error) {
	return s.projectRepo.GetBySlug(ctx, slug)
}

// UpdateProject persists project edits. Cached aggregates are not
// writable through this path.
func (s *ProjectService) UpdateProject(ctx context.Context, project *models.Project) error {
	if err := validateProjectInput(project); err != nil {
		return err
	}
	return s.projectRepo.Update(ctx, project)
}

// DeleteProject hard-deletes a project and every ownership/visibility row
// naming it, in one transaction.
func (s *ProjectService) DeleteProject(ctx context.Context, id string) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.refValidator.CleanupOwnerReferences(ctx, tx, types.EntityProject, id); err != nil {
			return err
		}
		return s.projectRepo.Delete(ctx, tx, id)
	})
}

// ListProjectsByOwner returns a profile's projects.
func (s *ProjectService) ListProjectsByOwner(ctx context.Context, ownerProfileID string, limit, offset int) ([]*models.Project, error) {
	return s.projectRepo.ListByOwner(ctx, ownerProfileID, limit, offset)
}

// ListProjects returns projects for paging.
func (s *ProjectService) ListProjects(ctx context.Context, limit, offset int) ([]*models.Project, error) {
	return s.projectRepo.List(ctx, limit, offset)
}
