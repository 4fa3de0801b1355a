// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package moderation routes public submissions through review. A
// submission enters PENDING; staff approve it into PUBLISHED or reject it
// into REJECTED, from where the author may resubmit.
package moderation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"mollik/internal/authz"
	"mollik/internal/content"
	"mollik/internal/models"
	"mollik/internal/workflow"
)

// Pipeline is the moderation pipeline.
type Pipeline struct {
	content *content.Service
	engine  *workflow.Engine
	authz   authz.Authorizer
}

// New creates a pipeline. A nil authorizer makes every decision fail.
func New(content *content.Service, engine *workflow.Engine, az authz.Authorizer) *Pipeline {
	return &Pipeline{content: content, engine: engine, authz: az}
}

// Submit stores a submission and moves it to PENDING.
func (p *Pipeline) Submit(ctx context.Context, actor authz.Actor, d content.Draft) (*models.ContentItem, error) {
	if d.Kind == "" {
		d.Kind = models.KindBlog
	}
	if !d.Kind.Moderated() {
		return nil, fmt.Errorf("submit %s: not a moderated kind: %w", d.Kind, models.ErrInvalidInput)
	}
	if !actor.Authenticated() {
		return nil, fmt.Errorf("submit: %w", models.ErrUnauthenticated)
	}

	draft, err := p.content.Create(ctx, actor, d)
	if err != nil {
		return nil, fmt.Errorf("submit: %w", err)
	}
	item, err := p.engine.Transition(ctx, actor, draft.ID, models.StatusPending, "submitted")
	if err != nil {
		// The draft stays with its author, who can submit it again.
		slog.Warn("submission left in draft", "content_id", draft.ID, "error", err)
		return nil, fmt.Errorf("submit: %w", err)
	}
	return item, nil
}

// SubmitDraft moves an existing draft of a moderated kind to PENDING.
func (p *Pipeline) SubmitDraft(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error) {
	return p.engine.Transition(ctx, actor, id, models.StatusPending, "submitted")
}

// Resubmit moves a rejected submission back to PENDING. Only its author
// may do this.
func (p *Pipeline) Resubmit(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error) {
	return p.engine.Transition(ctx, actor, id, models.StatusPending, "resubmitted")
}

// Approve publishes a pending submission.
func (p *Pipeline) Approve(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error) {
	if err := authz.Check(p.authz, actor, authz.ActionModerate, nil); err != nil {
		return nil, fmt.Errorf("approve %s: %w", id, err)
	}
	return p.decide(ctx, actor, id, models.StatusPublished, "approved")
}

// Reject turns down a pending submission with an optional reason.
func (p *Pipeline) Reject(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string) (*models.ContentItem, error) {
	if err := authz.Check(p.authz, actor, authz.ActionModerate, nil); err != nil {
		return nil, fmt.Errorf("reject %s: %w", id, err)
	}
	note := "rejected"
	if r := strings.TrimSpace(reason); r != "" {
		note = r
	}
	return p.decide(ctx, actor, id, models.StatusRejected, note)
}

// decide applies a staff decision to a pending item. Only PENDING items of
// moderated kinds are eligible, so approve cannot double as a direct
// publish.
func (p *Pipeline) decide(ctx context.Context, actor authz.Actor, id uuid.UUID, to models.ContentStatus, note string) (*models.ContentItem, error) {
	item, err := p.content.Get(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("moderate %s: %w", id, err)
	}
	if !item.Kind.Moderated() || item.Status != models.StatusPending {
		return nil, &models.TransitionError{From: item.Status, To: to, Kind: item.Kind}
	}
	return p.engine.Transition(ctx, actor, id, to, note)
}

// Queue lists pending submissions, oldest first.
func (p *Pipeline) Queue(ctx context.Context, actor authz.Actor) ([]models.ContentItem, error) {
	var queue []models.ContentItem
	for _, kind := range models.Kinds {
		if !kind.Moderated() {
			continue
		}
		items, err := p.content.ListByStatus(ctx, actor, kind, models.StatusPending)
		if err != nil {
			return nil, fmt.Errorf("moderation queue: %w", err)
		}
		queue = append(queue, items...)
	}
	return queue, nil
}
