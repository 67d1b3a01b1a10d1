package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "github.com/funding-ledger/internal/errors"
	"github.com/funding-ledger/internal/models"
	"github.com/funding-ledger/internal/types"
)

// PostRepository handles post and visibility persistence
type PostRepository struct {
	db *PostgresDB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *PostgresDB) *PostRepository {
	return &PostRepository{db: db}
}

const postColumns = `id, author_profile_id, content, deleted, created_at, updated_at`

// InsertPost inserts the post row on the caller's Querier so the post and
// its visibilities commit or roll back together.
func (r *PostRepository) InsertPost(ctx context.Context, q Querier, post *models.Post) error {
	if post.ID == "" {
		post.ID = uuid.New().String()
	}

	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now

	query := `
		INSERT INTO posts (id, author_profile_id, content, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := q.Exec(ctx, query, post.ID, post.AuthorProfileID, post.Content, post.Deleted, post.CreatedAt, post.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post: %w", err)
	}

	return nil
}

// InsertVisibility attaches one timeline row to a post.
func (r *PostRepository) InsertVisibility(ctx context.Context, q Querier, visibility *models.PostVisibility) error {
	if visibility.ID == "" {
		visibility.ID = uuid.New().String()
	}
	visibility.CreatedAt = time.Now()

	query := `
		INSERT INTO post_visibilities (id, post_id, timeline_type, owner_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := q.Exec(ctx, query, visibility.ID, visibility.PostID, visibility.TimelineType, visibility.OwnerID, visibility.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert post visibility: %w", err)
	}

	return nil
}

// GetPostByID retrieves a post by ID
func (r *PostRepository) GetPostByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`

	var post models.Post
	err := r.db.Pool().QueryRow(ctx, query, id).Scan(
		&post.ID,
		&post.AuthorProfileID,
		&post.Content,
		&post.Deleted,
		&post.CreatedAt,
		&post.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFoundError("post", id)
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return &post, nil
}

// CountRecentByAuthor counts an author's non-deleted posts created since the
// given time, for the hourly rate limit.
func (r *PostRepository) CountRecentByAuthor(ctx context.Context, q Querier, authorProfileID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM posts WHERE author_profile_id = $1 AND NOT deleted AND created_at >= $2`

	var count int
	err := q.QueryRow(ctx, query, authorProfileID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count recent posts: %w", err)
	}

	return count, nil
}

// GetTimeline returns posts visible on one profile or project timeline,
// newest first.
func (r *PostRepository) GetTimeline(ctx context.Context, timelineType types.TimelineType, ownerID string, limit, offset int) ([]*models.Post, error) {
	query := `
		SELECT p.id, p.author_profile_id, p.content, p.deleted, p.created_at, p.updated_at
		FROM posts p
		JOIN post_visibilities v ON v.post_id = p.id
		WHERE v.timeline_type = $1 AND v.owner_id = $2 AND NOT p.deleted
		ORDER BY p.created_at DESC
	`
	args := []any{timelineType, ownerID}

	return r.queryPosts(ctx, query, args, limit, offset)
}

// GetCommunityTimeline returns posts published to the community timeline.
// DISTINCT guards against a post appearing twice when it also targets
// owned timelines.
func (r *PostRepository) GetCommunityTimeline(ctx context.Context, limit, offset int) ([]*models.Post, error) {
	query := `
		SELECT DISTINCT p.id, p.author_profile_id, p.content, p.deleted, p.created_at, p.updated_at
		FROM posts p
		JOIN post_visibilities v ON v.post_id = p.id
		WHERE v.timeline_type = 'community' AND NOT p.deleted
		ORDER BY p.created_at DESC
	`

	return r.queryPosts(ctx, query, nil, limit, offset)
}

func (r *PostRepository) queryPosts(ctx context.Context, query string, args []any, limit, offset int) ([]*models.Post, error) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timeline: %w", err)
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		var post models.Post
		err := rows.Scan(
			&post.ID,
			&post.AuthorProfileID,
			&post.Content,
			&post.Deleted,
			&post.CreatedAt,
			&post.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, &post)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating posts: %w", err)
	}

	return posts, nil
}

// ListVisibilities returns the timeline rows attached to a post.
func (r *PostRepository) ListVisibilities(ctx context.Context, postID string) ([]*models.PostVisibility, error) {
	query := `
		SELECT id, post_id, timeline_type, owner_id, created_at
		FROM post_visibilities
		WHERE post_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.Pool().Query(ctx, query, postID)
	if err != nil {
		return nil, fmt.Errorf("failed to query post visibilities: %w", err)
	}
	defer rows.Close()

	var visibilities []*models.PostVisibility
	for rows.Next() {
		var v models.PostVisibility
		if err := rows.Scan(&v.ID, &v.PostID, &v.TimelineType, &v.OwnerID, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post visibility: %w", err)
		}
		visibilities = append(visibilities, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post visibilities: %w", err)
	}

	return visibilities, nil
}

// SoftDeletePost hides a post from timelines without erasing it.
func (r *PostRepository) SoftDeletePost(ctx context.Context, q Querier, id string) error {
	query := `UPDATE posts SET deleted = TRUE, updated_at = $2 WHERE id = $1`

	result, err := q.Exec(ctx, query, id, time.Now())
	if err != nil {
		return fmt.Errorf("failed to delete post: %w", err)
	}
	if result.RowsAffected() == 0 {
		return apperrors.NewNotFoundError("post", id)
	}

	return nil
}

// DeleteVisibilitiesByOwner removes all timeline rows pointing at a retired
// or deleted owner. Returns the number of rows removed.
func (r *PostRepository) DeleteVisibilitiesByOwner(ctx context.Context, q Querier, timelineType types.TimelineType, ownerID string) (int64, error) {
	query := `DELETE FROM post_visibilities WHERE timeline_type = $1 AND owner_id = $2`

	result, err := q.Exec(ctx, query, timelineType, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete post visibilities: %w", err)
	}

	return result.RowsAffected(), nil
}
