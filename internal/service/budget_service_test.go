package service

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/funding-ledger/internal/types"
)

func TestPeriodWindowWeekly(t *testing.T) {
	// 2026-08-26 is a Wednesday.
	now := time.Date(2026, 8, 26, 15, 30, 0, 0, time.UTC)

	tests := []struct {
		name      string
		startDay  int
		wantStart time.Time
	}{
		{"anchored on monday", 1, time.Date(2026, 8, 24, 0, 0, 0, 0, time.UTC)},
		{"anchored on wednesday", 3, time.Date(2026, 8, 26, 0, 0, 0, 0, time.UTC)},
		{"anchored on thursday wraps to last week", 4, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)},
		{"anchored on sunday", 7, time.Date(2026, 8, 23, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := periodWindow(types.PeriodWeekly, tt.startDay, now)
			assert.Equal(t, tt.wantStart, start)
			assert.Equal(t, tt.wantStart.AddDate(0, 0, 7), end)
			assert.False(t, start.After(now))
			assert.True(t, end.After(now))
		})
	}
}

func TestPeriodWindowMonthly(t *testing.T) {
	now := time.Date(2026, 8, 10, 12, 0, 0, 0, time.UTC)

	t.Run("start day already passed", func(t *testing.T) {
		start, end := periodWindow(types.PeriodMonthly, 5, now)
		assert.Equal(t, time.Date(2026, 8, 5, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 9, 5, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("start day still ahead backs up a month", func(t *testing.T) {
		start, end := periodWindow(types.PeriodMonthly, 20, now)
		assert.Equal(t, time.Date(2026, 7, 20, 0, 0, 0, 0, time.UTC), start)
		assert.Equal(t, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), end)
	})

	t.Run("start day equals today", func(t *testing.T) {
		start, _ := periodWindow(types.PeriodMonthly, 10, now)
		assert.Equal(t, time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC), start)
	})
}

func TestNextWindowContiguity(t *testing.T) {
	prevEnd := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)

	start, end := nextWindow(types.PeriodWeekly, prevEnd)
	assert.Equal(t, prevEnd, start)
	assert.Equal(t, prevEnd.AddDate(0, 0, 7), end)

	start, end = nextWindow(types.PeriodMonthly, prevEnd)
	assert.Equal(t, prevEnd, start)
	assert.Equal(t, prevEnd.AddDate(0, 1, 0), end)
}

func TestCompletionRate(t *testing.T) {
	tests := []struct {
		name   string
		spent  int64
		budget int64
		want   string
	}{
		{"half spent", 50_000, 100_000, "0.5"},
		{"fully spent", 100_000, 100_000, "1"},
		{"overspent", 150_000, 100_000, "1.5"},
		{"nothing spent", 0, 100_000, "0"},
		{"zero budget", 50_000, 0, "0"},
		{"rounds to four places", 1, 3, "0.3333"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			want, err := decimal.NewFromString(tt.want)
			assert.NoError(t, err)
			assert.True(t, completionRate(tt.spent, tt.budget).Equal(want))
		})
	}
}
