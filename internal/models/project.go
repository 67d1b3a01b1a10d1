package models

import "time"

// Project represents a crowdfunding project that can own wallets and
// receive transactions. RaisedAmountSats and ContributorCount are cached
// aggregates maintained by the ledger service in the same database
// transaction as the writes that change them.
type Project struct {
	ID               string     `json:"id" db:"id"`
	OwnerProfileID   string     `json:"ownerProfileId" db:"owner_profile_id"`
	Slug             string     `json:"slug" db:"slug"`
	Title            string     `json:"title" db:"title"`
	Description      string     `json:"description,omitempty" db:"description"`
	GoalAmountSats   *int64     `json:"goalAmountSats,omitempty" db:"goal_amount_sats"`
	RaisedAmountSats int64      `json:"raisedAmountSats" db:"raised_amount_sats"`
	ContributorCount int        `json:"contributorCount" db:"contributor_count"`
	Deadline         *time.Time `json:"deadline,omitempty" db:"deadline"`
	CreatedAt        time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time  `json:"updatedAt" db:"updated_at"`
}
