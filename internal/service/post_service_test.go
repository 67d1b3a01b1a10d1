package service

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/storage"
	"github.com/funding-ledger/internal/types"
)

func newBarePostService() *PostService {
	return NewPostService(nil, nil, nil, nil, nil, 5, 0, logging.NewLogger(logging.LevelError, logging.FormatText))
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	catErr, ok := err.(*apperrors.CategorizedError)
	require.True(t, ok, "expected a categorized error, got %T", err)
	return catErr.Code
}

func TestCreatePostInputValidation(t *testing.T) {
	svc := newBarePostService()
	ctx := context.Background()
	owner := "some-owner"

	t.Run("arity mismatch rejected before anything else", func(t *testing.T) {
		_, err := svc.CreatePostWithVisibility(ctx, "author", "hello",
			[]types.TimelineType{types.TimelineCommunity, types.TimelineProfile},
			[]*string{nil})
		assert.Equal(t, apperrors.CodeArityMismatch, errorCode(t, err))
	})

	t.Run("empty content rejected", func(t *testing.T) {
		_, err := svc.CreatePostWithVisibility(ctx, "author", "   ",
			[]types.TimelineType{types.TimelineCommunity},
			[]*string{nil})
		assert.Equal(t, apperrors.CodeValidation, errorCode(t, err))
	})

	t.Run("community target with an owner rejected", func(t *testing.T) {
		err := svc.validateTargets(ctx, nil, []models.TimelineTarget{
			{Type: types.TimelineCommunity, OwnerID: &owner},
		})
		assert.Equal(t, apperrors.CodeValidation, errorCode(t, err))
	})

	t.Run("profile target without an owner rejected", func(t *testing.T) {
		err := svc.validateTargets(ctx, nil, []models.TimelineTarget{
			{Type: types.TimelineProfile, OwnerID: nil},
		})
		assert.Equal(t, apperrors.CodeValidation, errorCode(t, err))
	})

	t.Run("unknown timeline type rejected", func(t *testing.T) {
		err := svc.validateTargets(ctx, nil, []models.TimelineTarget{
			{Type: types.TimelineType("group"), OwnerID: &owner},
		})
		assert.Equal(t, apperrors.CodeInvalidType, errorCode(t, err))
	})
}

// TestGetCommunityTimelineSlicesCachedPage reads the community feed twice
// from the same cached page with a growing limit. The second read must see
// the full page, not the slice the first caller asked for.
func TestGetCommunityTimelineSlicesCachedPage(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := storage.NewRedisCacheFromClient(client)
	svc := NewPostService(nil, nil, nil, nil, cache, 5, time.Minute,
		logging.NewLogger(logging.LevelError, logging.FormatText))

	cached := make([]*models.Post, 10)
	for i := range cached {
		cached[i] = &models.Post{
			ID:              uuid.New().String(),
			AuthorProfileID: uuid.New().String(),
			Content:         fmt.Sprintf("update %d", i),
			CreatedAt:       time.Now().UTC(),
		}
	}
	raw, err := json.Marshal(cached)
	require.NoError(t, err)
	require.NoError(t, cache.Set(context.Background(), communityTimelineKeyPrefix+"default", string(raw), time.Minute))

	first, err := svc.GetCommunityTimeline(context.Background(), 3, 0)
	require.NoError(t, err)
	assert.Len(t, first, 3)

	second, err := svc.GetCommunityTimeline(context.Background(), 500, 0)
	require.NoError(t, err)
	assert.Len(t, second, 10)
	assert.Equal(t, cached[0].ID, second[0].ID)
}

func TestGetTimelineRejectsCommunityType(t *testing.T) {
	svc := newBarePostService()

	_, err := svc.GetTimeline(context.Background(), types.TimelineCommunity, "irrelevant", 10, 0)
	assert.Equal(t, apperrors.CodeInvalidType, errorCode(t, err))
}
