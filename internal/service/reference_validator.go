package service

import (
	"context"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

// ReferenceValidator resolves polymorphic (type, id) references. Ownership
// rows, transaction endpoints, and visibility rows all carry a type tag
// instead of a foreign key, so existence checks branch on the tag here and
// nowhere else.
type ReferenceValidator struct {
	profileRepo *storage.ProfileRepository
	projectRepo *storage.ProjectRepository
	postRepo    *storage.PostRepository
	walletRepo  *storage.WalletRepository
	logger      *logging.Logger
}

// NewReferenceValidator creates a new reference validator
func NewReferenceValidator(
	profileRepo *storage.ProfileRepository,
	projectRepo *storage.ProjectRepository,
	postRepo *storage.PostRepository,
	walletRepo *storage.WalletRepository,
	logger *logging.Logger,
) *ReferenceValidator {
	return &ReferenceValidator{
		profileRepo: profileRepo,
		projectRepo: projectRepo,
		postRepo:    postRepo,
		walletRepo:  walletRepo,
		logger:      logger,
	}
}

// ValidateReference checks that (entityType, id) names an existing row in
// the table the tag selects. Runs on insert and on every repoint.
func (v *ReferenceValidator) ValidateReference(ctx context.Context, q storage.Querier, entityType types.EntityType, id string) error {
	var exists bool
	var err error

	switch entityType {
	case types.EntityProfile:
		exists, err = v.profileRepo.Exists(ctx, q, id)
	case types.EntityProject:
		exists, err = v.projectRepo.Exists(ctx, q, id)
	default:
		return apperrors.NewInvalidTypeError(string(entityType))
	}

	if err != nil {
		return err
	}
	if !exists {
		return apperrors.NewReferenceError(entityType, id)
	}

	return nil
}

// LockOwner takes a row lock on the owning entity, serializing concurrent
// writers that contend on per-owner invariants such as the wallet cap.
// A missing owner surfaces as a ReferenceError.
func (v *ReferenceValidator) LockOwner(ctx context.Context, q storage.Querier, ownerType types.EntityType, ownerID string) error {
	switch ownerType {
	case types.EntityProfile:
		return v.profileRepo.LockForUpdate(ctx, q, ownerID)
	case types.EntityProject:
		return v.projectRepo.LockForUpdate(ctx, q, ownerID)
	default:
		return apperrors.NewInvalidTypeError(string(ownerType))
	}
}

// CleanupOwnerReferences removes ownership and visibility rows naming a
// deleted owner. Without real foreign keys there is nothing to cascade, so
// owner deletion calls this inside its own transaction.
func (v *ReferenceValidator) CleanupOwnerReferences(ctx context.Context, q storage.Querier, ownerType types.EntityType, ownerID string) error {
	if !types.ValidEntityType(ownerType) {
		return apperrors.NewInvalidTypeError(string(ownerType))
	}

	ownerships, err := v.walletRepo.DeleteOwnershipsByOwner(ctx, q, ownerType, ownerID)
	if err != nil {
		return err
	}

	visibilities, err := v.postRepo.DeleteVisibilitiesByOwner(ctx, q, types.TimelineType(ownerType), ownerID)
	if err != nil {
		return err
	}

	if ownerships > 0 || visibilities > 0 {
		v.logger.WithFields(map[string]interface{}{
			"owner_type":   ownerType,
			"owner_id":     ownerID,
			"ownerships":   ownerships,
			"visibilities": visibilities,
		}).Info("Cleaned up references to deleted owner")
	}

	return nil
}
