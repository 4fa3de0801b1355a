package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mollik/internal/models"
)

// LikeStore handles the likes table.
type LikeStore struct {
	db *sql.DB
}

// NewLikeStore creates a new LikeStore.
func NewLikeStore(db *sql.DB) *LikeStore {
	return &LikeStore{db: db}
}

// ToggleLike removes the (user, content) like if present and inserts it
// otherwise, in one statement. An unknown content id violates the foreign
// key and is reported as models.ErrNotFound.
func (s *LikeStore) ToggleLike(ctx context.Context, userID, contentID uuid.UUID) (models.LikeResult, error) {
	var res models.LikeResult
	err := s.db.QueryRowContext(ctx, `
		WITH removed AS (
			DELETE FROM likes WHERE user_id = $1 AND content_id = $2
			RETURNING 1
		), added AS (
			INSERT INTO likes (user_id, content_id)
			SELECT $1, $2 WHERE NOT EXISTS (SELECT 1 FROM removed)
			ON CONFLICT (user_id, content_id) DO NOTHING
			RETURNING 1
		)
		SELECT NOT EXISTS (SELECT 1 FROM removed)
	`, userID, contentID).Scan(&res.Liked)
	if err != nil {
		return models.LikeResult{}, mapErr("toggle like", err)
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM likes WHERE content_id = $1`, contentID).Scan(&res.LikeCount); err != nil {
		return models.LikeResult{}, fmt.Errorf("count likes: %w", err)
	}
	return res, nil
}

// LikeState reports whether userID likes the item and the item's like
// count. uuid.Nil matches no user.
func (s *LikeStore) LikeState(ctx context.Context, userID, contentID uuid.UUID) (models.LikeResult, error) {
	var res models.LikeResult
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND content_id = c.id),
		       (SELECT COUNT(*) FROM likes WHERE content_id = c.id)
		FROM content_items c
		WHERE c.id = $2
	`, userID, contentID).Scan(&res.Liked, &res.LikeCount)
	if err != nil {
		return models.LikeResult{}, mapErr("like state", err)
	}
	return res, nil
}

// ListByUser returns the ids of the items a user liked, newest first.
func (s *LikeStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Like, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, content_id, created_at FROM likes
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list likes: %w", err)
	}
	defer rows.Close()

	var likes []models.Like
	for rows.Next() {
		var l models.Like
		if err := rows.Scan(&l.UserID, &l.ContentID, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		likes = append(likes, l)
	}
	return likes, rows.Err()
}
