// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"mollik/internal/authz"
	"mollik/internal/models"
)

// Store is the persistence the engine needs.
type Store interface {
	// GetByID returns models.ErrNotFound for unknown ids.
	GetByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error)

	// UpdateStatus sets the status to tr.To only if it is still tr.From,
	// fills published_at on the first publish and writes tr as the audit
	// record, all atomically. A lost compare-and-set returns
	// models.ErrIllegalTransition.
	UpdateStatus(ctx context.Context, tr models.StatusTransition) (*models.ContentItem, error)
}

// AuditLog reads transition history.
type AuditLog interface {
	ListTransitions(ctx context.Context, contentID uuid.UUID) ([]models.StatusTransition, error)
}

// Listener is notified after a transition has been committed.
type Listener func(ctx context.Context, item *models.ContentItem, tr models.StatusTransition) error

// Engine applies status transitions.
type Engine struct {
	store Store
	audit AuditLog
	authz authz.Authorizer
	now   func() time.Time

	mu        sync.RWMutex
	listeners []Listener
}

// NewEngine creates an engine. A nil authorizer denies every transition.
func NewEngine(store Store, audit AuditLog, az authz.Authorizer) *Engine {
	return &Engine{store: store, audit: audit, authz: az, now: time.Now}
}

// OnTransition registers fn to run after every committed transition.
func (e *Engine) OnTransition(fn Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, fn)
}

// Transition moves item id to status to on behalf of actor.
//
// Errors: models.ErrNotFound for unknown or invisible items,
// *models.TransitionError (matching models.ErrIllegalTransition) for edges
// outside the graph or a concurrent change, models.ErrUnauthenticated and
// models.ErrUnauthorized from the policy.
func (e *Engine) Transition(ctx context.Context, actor authz.Actor, id uuid.UUID, to models.ContentStatus, note string) (*models.ContentItem, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("transition to %q: %w", to, models.ErrInvalidInput)
	}

	item, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("transition %s: %w", id, err)
	}
	if !actor.Authenticated() {
		return nil, fmt.Errorf("transition %s: %w", id, models.ErrUnauthenticated)
	}
	if !Visible(item, actor) {
		return nil, fmt.Errorf("transition %s: %w", id, models.ErrNotFound)
	}

	edge, ok := Rule(item.Kind, item.Status, to)
	if !ok {
		return nil, &models.TransitionError{From: item.Status, To: to, Kind: item.Kind}
	}
	if err := authorize(e.authz, actor, edge, item); err != nil {
		return nil, fmt.Errorf("transition %s -> %s: %w", item.Status, to, err)
	}

	tr := models.StatusTransition{
		ContentID: item.ID,
		From:      item.Status,
		To:        to,
		ActorID:   actor.UserID,
		Note:      note,
		CreatedAt: e.now().UTC(),
	}
	updated, err := e.store.UpdateStatus(ctx, tr)
	if err != nil {
		if errors.Is(err, models.ErrIllegalTransition) {
			return nil, &models.TransitionError{From: item.Status, To: to, Kind: item.Kind}
		}
		return nil, fmt.Errorf("update status: %w", err)
	}

	slog.Info("content status changed",
		"content_id", updated.ID, "kind", updated.Kind,
		"from", tr.From, "to", tr.To, "actor_id", tr.ActorID)

	e.notify(ctx, updated, tr)
	return updated, nil
}

// History returns the audit trail of an item, newest first. Only staff and
// the author may read it.
func (e *Engine) History(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]models.StatusTransition, error) {
	item, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}
	if err := authz.Check(e.authz, actor, authz.ActionViewUnpublished, item); err != nil {
		return nil, fmt.Errorf("history %s: %w", id, err)
	}
	if e.audit == nil {
		return nil, nil
	}
	return e.audit.ListTransitions(ctx, id)
}

func (e *Engine) notify(ctx context.Context, item *models.ContentItem, tr models.StatusTransition) {
	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners...)
	e.mu.RUnlock()

	for _, fn := range listeners {
		if err := fn(ctx, item, tr); err != nil {
			slog.Warn("transition listener failed", "content_id", item.ID, "to", tr.To, "error", err)
		}
	}
}
