package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"mollik/internal/models"
)

// TransitionStore reads the status audit trail. Records are written by
// ContentStore.UpdateStatus.
type TransitionStore struct {
	db *sql.DB
}

// NewTransitionStore creates a new TransitionStore.
func NewTransitionStore(db *sql.DB) *TransitionStore {
	return &TransitionStore{db: db}
}

// ListTransitions returns the transitions of an item, newest first.
func (s *TransitionStore) ListTransitions(ctx context.Context, contentID uuid.UUID) ([]models.StatusTransition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content_id, from_status, to_status, actor_id, note, created_at
		FROM status_transitions
		WHERE content_id = $1
		ORDER BY id DESC
	`, contentID)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []models.StatusTransition
	for rows.Next() {
		var tr models.StatusTransition
		if err := rows.Scan(&tr.ID, &tr.ContentID, &tr.From, &tr.To, &tr.ActorID, &tr.Note, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}
