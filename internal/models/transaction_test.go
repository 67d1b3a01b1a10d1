package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funding-ledger/internal/types"
)

func sampleTransaction(createdAt time.Time) *Transaction {
	return &Transaction{
		ID:             "3f6f4a2e-9a40-4f8f-a5a1-0d3d7a1b2c3d",
		AmountSats:     50_000,
		FromEntityType: types.EntityProfile,
		FromEntityID:   "p1",
		ToEntityType:   types.EntityProject,
		ToEntityID:     "pr1",
		CreatedAt:      createdAt,
	}
}

func TestVerificationHashSurvivesTimestamptzRoundTrip(t *testing.T) {
	// time.Now() carries nanoseconds; a timestamptz column keeps only
	// microseconds, so the hash must match after that precision is lost.
	created := time.Date(2026, 8, 26, 12, 0, 0, 123456789, time.UTC)

	tx := sampleTransaction(created)
	tx.Verification = tx.ComputeVerificationHash()
	require.True(t, tx.Verify())

	tx.CreatedAt = created.Truncate(time.Microsecond)
	assert.True(t, tx.Verify(), "hash must survive microsecond truncation of created_at")
}

func TestVerificationHashDetectsTampering(t *testing.T) {
	created := time.Now().UTC()

	tx := sampleTransaction(created)
	tx.Verification = tx.ComputeVerificationHash()
	require.True(t, tx.Verify())

	tx.AmountSats = 50_001
	assert.False(t, tx.Verify())

	tx.AmountSats = 50_000
	require.True(t, tx.Verify())

	tx.ToEntityID = "pr2"
	assert.False(t, tx.Verify())
}

func TestVerificationHashStableAcrossTimezones(t *testing.T) {
	created := time.Date(2026, 8, 26, 12, 0, 0, 123456000, time.UTC)
	shifted := created.In(time.FixedZone("UTC+9", 9*3600))

	a := sampleTransaction(created)
	b := sampleTransaction(shifted)
	assert.Equal(t, a.ComputeVerificationHash(), b.ComputeVerificationHash())
}
