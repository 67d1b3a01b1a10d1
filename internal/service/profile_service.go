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
	"github.com/funding-ledger/internal/validation"
)

// ProfileService handles profile lifecycle. Profiles are soft-retired by
// default; hard deletion also sweeps the ownership and visibility rows that
// name the profile, since no foreign key exists to cascade them.
type ProfileService struct {
	db           *storage.PostgresDB
	profileRepo  *storage.ProfileRepository
	refValidator *ReferenceValidator
	logger       *logging.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(
	db *storage.PostgresDB,
	profileRepo *storage.ProfileRepository,
	refValidator *ReferenceValidator,
	logger *logging.Logger,
) *ProfileService {
	return &ProfileService{
		db:           db,
		profileRepo:  profileRepo,
		refValidator: refValidator,
		logger:       logger,
	}
}

func validateProfileInput(profile *models.Profile) error {
	username := strings.TrimSpace(profile.Username)
	if username == "" {
		return apperrors.NewValidationError("username", "username must not be empty")
	}
	profile.Username = username

	if profile.BitcoinAddress != nil && *profile.BitcoinAddress != "" {
		if err := validation.ValidateAddress(*profile.BitcoinAddress); err != nil {
			return err
		}
	}
	return nil
}

// CreateProfile creates a profile with sensible defaults.
func (s *ProfileService) CreateProfile(ctx context.Context, profile *models.Profile) (*models.Profile, error) {
	if err := validateProfileInput(profile); err != nil {
		return nil, err
	}
	if profile.Status == "" {
		profile.Status = types.ProfileActive
	}

	if err := s.profileRepo.Create(ctx, profile); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"profile_id": profile.ID,
		"username":   profile.Username,
	}).Info("Created profile")

	return profile, nil
}

// GetProfile retrieves a profile by ID
func (s *ProfileService) GetProfile(ctx context.Context, id string) (*models.Profile, error) {
	return s.profileRepo.GetByID(ctx, id)
}

// GetProfileByUsername retrieves a profile by username
func (s *ProfileService) GetProfileByUsername(ctx context.Context, username string) (*models.Profile, error) {
	return s.profileRepo.GetByUsername(ctx, username)
}

// UpdateProfile persists profile edits, revalidating the Bitcoin address.
func (s *ProfileService) UpdateProfile(ctx context.Context, profile *models.Profile) error {
	if err := validateProfileInput(profile); err != nil {
		return err
	}
	return s.profileRepo.Update(ctx, profile)
}

// RetireProfile soft-retires a profile; the row survives while references
// to it exist.
func (s *ProfileService) RetireProfile(ctx context.Context, id string) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.profileRepo.Retire(ctx, tx, id)
	})
}

// DeleteProfile hard-deletes a profile and every ownership/visibility row
// naming it, in one transaction.
func (s *ProfileService) DeleteProfile(ctx context.Context, id string) error {
	return inTx(ctx, s.db, func(tx pgx.Tx) error {
		if err := s.refValidator.CleanupOwnerReferences(ctx, tx, types.EntityProfile, id); err != nil {
			return err
		}
		return s.profileRepo.Delete(ctx, tx, id)
	})
}

// ListProfiles returns profiles for paging through the directory.
func (s *ProfileService) ListProfiles(ctx context.Context, limit, offset int) ([]*models.Profile, error) {
	return s.profileRepo.List(ctx, limit, offset)
}
