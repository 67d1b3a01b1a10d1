package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/logging"
	"github.com/funding-ledger/internal/storage"
)

func setupCooldownTest(t *testing.T, cooldown time.Duration) (*BalanceService, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cache := storage.NewRedisCacheFromClient(client)
	svc := NewBalanceService(nil, cache, nil, cooldown, logging.NewLogger(logging.LevelError, logging.FormatText))
	return svc, mr
}

func TestAcquireCooldown(t *testing.T) {
	ctx := context.Background()

	t.Run("first acquisition succeeds", func(t *testing.T) {
		svc, _ := setupCooldownTest(t, time.Minute)
		assert.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))
	})

	t.Run("second acquisition inside the window fails", func(t *testing.T) {
		svc, _ := setupCooldownTest(t, time.Minute)
		require.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))

		err := svc.acquireCooldown(ctx, "wallet-1")
		require.Error(t, err)

		catErr, ok := err.(*apperrors.CategorizedError)
		require.True(t, ok)
		assert.Equal(t, apperrors.CodeCooldown, catErr.Code)

		retryAfter, ok := catErr.Details["retryAfter"].(int)
		require.True(t, ok)
		assert.Greater(t, retryAfter, 0)
		assert.LessOrEqual(t, retryAfter, 60)
	})

	t.Run("independent wallets do not share cooldowns", func(t *testing.T) {
		svc, _ := setupCooldownTest(t, time.Minute)
		require.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))
		assert.NoError(t, svc.acquireCooldown(ctx, "wallet-2"))
	})

	t.Run("window expiry frees the slot", func(t *testing.T) {
		svc, mr := setupCooldownTest(t, time.Minute)
		require.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))

		mr.FastForward(61 * time.Second)

		assert.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))
	})

	t.Run("nil cache disables the cooldown", func(t *testing.T) {
		svc := NewBalanceService(nil, nil, nil, time.Minute, logging.NewLogger(logging.LevelError, logging.FormatText))
		assert.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))
		assert.NoError(t, svc.acquireCooldown(ctx, "wallet-1"))
	})
}
