package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

const communityTimelineKeyPrefix = "timeline:community:"

// PostService handles post creation with visibility fan-out: one post row,
// N visibility rows, all-or-nothing. The hourly per-author rate limit is
// checked with the author row locked so bursts cannot race past it.
type PostService struct {
	db           *storage.PostgresDB
	postRepo     *storage.PostRepository
	profileRepo  *storage.ProfileRepository
	refValidator *ReferenceValidator
	cache        *storage.RedisCache
	postsPerHour int
	cacheTTL     time.Duration
	logger       *logging.Logger
}

// NewPostService creates a new post service
func NewPostService(
	db *storage.PostgresDB,
	postRepo *storage.PostRepository,
	profileRepo *storage.ProfileRepository,
	refValidator *ReferenceValidator,
	cache *storage.RedisCache,
	postsPerHour int,
	cacheTTL time.Duration,
	logger *logging.Logger,
) *PostService {
	return &PostService{
		db:           db,
		postRepo:     postRepo,
		profileRepo:  profileRepo,
		refValidator: refValidator,
		cache:        cache,
		postsPerHour: postsPerHour,
		cacheTTL:     cacheTTL,
		logger:       logger,
	}
}

// validateTargets checks each (timelineType, ownerID) pair: community rows
// carry no owner, profile/project rows carry an existing owner.
func (s *PostService) validateTargets(ctx context.Context, q storage.Querier, targets []models.TimelineTarget) error {
	for i, target := range targets {
		switch target.Type {
		case types.TimelineCommunity:
			if target.OwnerID != nil {
				return apperrors.NewValidationError(
					fmt.Sprintf("targets[%d]", i),
					"community timeline targets must not name an owner",
				)
			}
		case types.TimelineProfile, types.TimelineProject:
			if target.OwnerID == nil {
				return apperrors.NewValidationError(
					fmt.Sprintf("targets[%d]", i),
					string(target.Type)+" timeline targets require an owner",
				)
			}
			if err := s.refValidator.ValidateReference(ctx, q, types.EntityType(target.Type), *target.OwnerID); err != nil {
				return err
			}
		default:
			return apperrors.NewInvalidTypeError(string(target.Type))
		}
	}
	return nil
}

// CreatePostWithVisibility stores one post and fans it out to the given
// timelines. Arity of the raw type/owner arrays is checked before pairing;
// any invalid pair or a tripped rate limit aborts the whole call.
func (s *PostService) CreatePostWithVisibility(ctx context.Context, authorProfileID, content string, timelineTypes []types.TimelineType, ownerIDs []*string) (*models.Post, error) {
	if len(timelineTypes) != len(ownerIDs) {
		return nil, apperrors.NewArityMismatchError(len(timelineTypes), len(ownerIDs))
	}
	if strings.TrimSpace(content) == "" {
		return nil, apperrors.NewValidationError("content", "content must not be empty")
	}

	targets := make([]models.TimelineTarget, len(timelineTypes))
	for i := range timelineTypes {
		targets[i] = models.TimelineTarget{Type: timelineTypes[i], OwnerID: ownerIDs[i]}
	}

	post := &models.Post{
		AuthorProfileID: authorProfileID,
		Content:         content,
	}

	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		// Lock on the author row serializes this author's inserts so the
		// rate-limit count cannot race.
		if err := s.profileRepo.LockForUpdate(ctx, tx, authorProfileID); err != nil {
			return err
		}

		if err := s.validateTargets(ctx, tx, targets); err != nil {
			return err
		}

		recent, err := s.postRepo.CountRecentByAuthor(ctx, tx, authorProfileID, time.Now().Add(-time.Hour))
		if err != nil {
			return err
		}
		if recent >= s.postsPerHour {
			return apperrors.NewRateLimitExceededError(authorProfileID, s.postsPerHour)
		}

		if err := s.postRepo.InsertPost(ctx, tx, post); err != nil {
			return err
		}

		for _, target := range targets {
			visibility := &models.PostVisibility{
				PostID:       post.ID,
				TimelineType: target.Type,
				OwnerID:      target.OwnerID,
			}
			if err := s.postRepo.InsertVisibility(ctx, tx, visibility); err != nil {
				return err
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	s.invalidateCommunityCache(ctx, targets)

	s.logger.WithFields(map[string]interface{}{
		"post_id":   post.ID,
		"author_id": authorProfileID,
		"timelines": len(targets),
	}).Info("Created post")

	return post, nil
}

func (s *PostService) invalidateCommunityCache(ctx context.Context, targets []models.TimelineTarget) {
	if s.cache == nil {
		return
	}
	for _, target := range targets {
		if target.Type == types.TimelineCommunity {
			if err := s.cache.Del(ctx, communityTimelineKeyPrefix+"default"); err != nil {
				s.logger.WithError(err).Warn("Failed to invalidate community timeline cache")
			}
			return
		}
	}
}

// GetPost retrieves a post by ID
func (s *PostService) GetPost(ctx context.Context, id string) (*models.Post, error) {
	return s.postRepo.GetPostByID(ctx, id)
}

// GetTimeline returns the posts visible on a profile or project timeline.
func (s *PostService) GetTimeline(ctx context.Context, timelineType types.TimelineType, ownerID string, limit, offset int) ([]*models.Post, error) {
	switch timelineType {
	case types.TimelineProfile, types.TimelineProject:
		return s.postRepo.GetTimeline(ctx, timelineType, ownerID, limit, offset)
	default:
		return nil, apperrors.NewInvalidTypeError(string(timelineType))
	}
}

// communityCachePageSize is the page cached for the default community feed.
// The cache always holds this full page and requests are sliced from it, so
// a small first read can never starve a later, larger one.
const communityCachePageSize = 500

// GetCommunityTimeline returns the community feed, served from a short-lived
// redis cache for the default page.
func (s *PostService) GetCommunityTimeline(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	cacheable := s.cache != nil && offset == 0 && limit <= communityCachePageSize
	if !cacheable {
		return s.postRepo.GetCommunityTimeline(ctx, limit, offset)
	}

	if raw, err := s.cache.Get(ctx, communityTimelineKeyPrefix+"default"); err == nil && raw != "" {
		var posts []*models.Post
		if err := json.Unmarshal([]byte(raw), &posts); err == nil {
			return slicePage(posts, limit), nil
		}
	}

	posts, err := s.postRepo.GetCommunityTimeline(ctx, communityCachePageSize, 0)
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(posts); err == nil {
		if err := s.cache.Set(ctx, communityTimelineKeyPrefix+"default", string(raw), s.cacheTTL); err != nil {
			s.logger.WithError(err).Warn("Failed to cache community timeline")
		}
	}

	return slicePage(posts, limit), nil
}

func slicePage(posts []*models.Post, limit int) []*models.Post {
	if limit > 0 && len(posts) > limit {
		return posts[:limit]
	}
	return posts
}

// DeletePost soft-deletes a post, hiding it from every timeline.
func (s *PostService) DeletePost(ctx context.Context, id string) error {
	err := inTx(ctx, s.db, func(tx pgx.Tx) error {
		return s.postRepo.SoftDeletePost(ctx, tx, id)
	})
	if err != nil {
		return err
	}

	if s.cache != nil {
		if err := s.cache.Del(ctx, communityTimelineKeyPrefix+"default"); err != nil {
			s.logger.WithError(err).Warn("Failed to invalidate community timeline cache")
		}
	}

	return nil
}

// ListVisibilities returns where a post is displayed.
func (s *PostService) ListVisibilities(ctx context.Context, postID string) ([]*models.PostVisibility, error) {
	return s.postRepo.ListVisibilities(ctx, postID)
}
