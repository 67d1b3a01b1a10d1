// Package models provides data models for the funding ledger system.
package models

import (
	"time"

	"github.com/funding-ledger/internal/types"
)

// Profile represents the canonical identity record for an authenticated user.
// One row per auth subject; provisioned with defaults on signup and
// soft-retired via Status rather than hard-deleted while references exist.
type Profile struct {
	ID               string              `json:"id" db:"id"`
	Username         string              `json:"username" db:"username"`
	DisplayName      string              `json:"displayName" db:"display_name"`
	BitcoinAddress   *string             `json:"bitcoinAddress,omitempty" db:"bitcoin_address"`
	LightningAddress *string             `json:"lightningAddress,omitempty" db:"lightning_address"`
	BalanceSats      int64               `json:"balanceSats" db:"balance_sats"`
	FollowerCount    int                 `json:"followerCount" db:"follower_count"`
	FollowingCount   int                 `json:"followingCount" db:"following_count"`
	ProjectCount     int                 `json:"projectCount" db:"project_count"`
	Status           types.ProfileStatus `json:"status" db:"status"`
	CreatedAt        time.Time           `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time           `json:"updatedAt" db:"updated_at"`
}
