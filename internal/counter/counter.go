// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package counter implements the engagement counters: item views, likes
// and the site-wide visitor count. Every change is a single atomic
// operation in the backing store; nothing is counted in process memory.
package counter

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"mollik/internal/authz"
	"mollik/internal/models"
)

// ViewStore increments view counts.
type ViewStore interface {
	IncrementViews(ctx context.Context, id uuid.UUID) (int64, error)
}

// LikeStore flips and reads like state.
type LikeStore interface {
	ToggleLike(ctx context.Context, userID, contentID uuid.UUID) (models.LikeResult, error)
	LikeState(ctx context.Context, userID, contentID uuid.UUID) (models.LikeResult, error)
}

// VisitorStore counts visitor tokens once per window.
type VisitorStore interface {
	Record(ctx context.Context, token string, at time.Time) (models.VisitorStats, bool, error)
	Totals(ctx context.Context, at time.Time) (models.VisitorStats, error)
}

// KeyStore reserves idempotency keys.
type KeyStore interface {
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Service is the counter service.
type Service struct {
	views    ViewStore
	likes    LikeStore
	visitors VisitorStore
	keys     KeyStore
	keyTTL   time.Duration
	now      func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithIdempotency enables double-submit protection for like toggles.
func WithIdempotency(keys KeyStore, ttl time.Duration) Option {
	return func(s *Service) {
		s.keys = keys
		s.keyTTL = ttl
	}
}

// New creates a counter service.
func New(views ViewStore, likes LikeStore, visitors VisitorStore, opts ...Option) *Service {
	s := &Service{views: views, likes: likes, visitors: visitors, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IncrementView adds one view to the item and returns the new count.
func (s *Service) IncrementView(ctx context.Context, id uuid.UUID) (int64, error) {
	n, err := s.views.IncrementViews(ctx, id)
	if err != nil {
		return 0, fmt.Errorf("increment view: %w", err)
	}
	return n, nil
}

// ToggleLike flips the like of actor on item id.
//
// requestKey identifies one client submission. When set, a repeat of the
// same key within the idempotency TTL does not toggle again and returns
// the current state instead, so a double click yields one toggle.
func (s *Service) ToggleLike(ctx context.Context, actor authz.Actor, id uuid.UUID, requestKey string) (models.LikeResult, error) {
	if !actor.Authenticated() {
		return models.LikeResult{}, fmt.Errorf("toggle like: %w", models.ErrUnauthenticated)
	}

	if key := strings.TrimSpace(requestKey); key != "" && s.keys != nil {
		fresh, err := s.keys.Reserve(ctx, likeKey(actor.UserID, id, key), s.keyTTL)
		if err != nil {
			// Degrade to a plain toggle rather than refusing the like.
			slog.Warn("like idempotency unavailable", "content_id", id, "error", err)
		} else if !fresh {
			return s.LikeState(ctx, actor.UserID, id)
		}
	}

	res, err := s.likes.ToggleLike(ctx, actor.UserID, id)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("toggle like: %w", err)
	}
	return res, nil
}

// LikeState reads whether userID likes the item and the total like count.
// uuid.Nil reads only the count.
func (s *Service) LikeState(ctx context.Context, userID, id uuid.UUID) (models.LikeResult, error) {
	res, err := s.likes.LikeState(ctx, userID, id)
	if err != nil {
		return models.LikeResult{}, fmt.Errorf("like state: %w", err)
	}
	return res, nil
}

// RecordVisitor counts the session token once per counting window and
// returns the current totals.
func (s *Service) RecordVisitor(ctx context.Context, token string) (models.VisitorStats, error) {
	token = strings.TrimSpace(token)
	if token == "" || len(token) > maxTokenLen {
		return models.VisitorStats{}, fmt.Errorf("record visitor: token: %w", models.ErrInvalidInput)
	}
	stats, counted, err := s.visitors.Record(ctx, token, s.now())
	if err != nil {
		return models.VisitorStats{}, fmt.Errorf("record visitor: %w", err)
	}
	if counted {
		slog.Debug("visitor counted", "total", stats.Total)
	}
	return stats, nil
}

// VisitorTotals reads the visitor counters without counting.
func (s *Service) VisitorTotals(ctx context.Context) (models.VisitorStats, error) {
	stats, err := s.visitors.Totals(ctx, s.now())
	if err != nil {
		return models.VisitorStats{}, fmt.Errorf("visitor totals: %w", err)
	}
	return stats, nil
}

const maxTokenLen = 128

func likeKey(userID, contentID uuid.UUID, requestKey string) string {
	return userID.String() + ":" + contentID.String() + ":" + requestKey
}
