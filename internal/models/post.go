package models

import (
	"time"

	"github.com/funding-ledger/internal/types"
)

// Post is authored once; the timelines it appears on are declared by
// separate visibility rows, never by duplicating the post.
type Post struct {
	ID              string    `json:"id" db:"id"`
	AuthorProfileID string    `json:"authorProfileId" db:"author_profile_id"`
	Content         string    `json:"content" db:"content"`
	Deleted         bool      `json:"deleted" db:"deleted"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// PostVisibility declares that a post appears on one timeline.
// Community rows carry a nil owner; profile/project rows carry a non-nil,
// existing owner. That pairing is validated by the post service because the
// schema alone cannot express it.
type PostVisibility struct {
	ID           string             `json:"id" db:"id"`
	PostID       string             `json:"postId" db:"post_id"`
	TimelineType types.TimelineType `json:"timelineType" db:"timeline_type"`
	OwnerID      *string            `json:"ownerId,omitempty" db:"owner_id"`
	CreatedAt    time.Time          `json:"createdAt" db:"created_at"`
}

// TimelineTarget is one (type, owner) pair requested at post creation.
type TimelineTarget struct {
	Type    types.TimelineType `json:"type"`
	OwnerID *string            `json:"ownerId"`
}
