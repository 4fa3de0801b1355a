// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"mollik/internal/authz"
	"mollik/internal/content"
	"mollik/internal/middleware"
	"mollik/internal/models"
	"mollik/internal/workflow"
)

// Editor is the content service as used by staff.
type Editor interface {
	Create(ctx context.Context, actor authz.Actor, d content.Draft) (*models.ContentItem, error)
	Update(ctx context.Context, actor authz.Actor, id uuid.UUID, p content.Patch) (*models.ContentItem, error)
	Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error)
	Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error
	SetFeatured(ctx context.Context, actor authz.Actor, id uuid.UUID, featured bool) (*models.ContentItem, error)
	ListByStatus(ctx context.Context, actor authz.Actor, kind models.ContentKind, status models.ContentStatus) ([]models.ContentItem, error)
}

// Workflow moves items between statuses and reads their audit trail.
type Workflow interface {
	Transition(ctx context.Context, actor authz.Actor, id uuid.UUID, to models.ContentStatus, note string) (*models.ContentItem, error)
	History(ctx context.Context, actor authz.Actor, id uuid.UUID) ([]models.StatusTransition, error)
}

// Moderator decides on pending submissions.
type Moderator interface {
	Queue(ctx context.Context, actor authz.Actor) ([]models.ContentItem, error)
	Approve(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error)
	Reject(ctx context.Context, actor authz.Actor, id uuid.UUID, reason string) (*models.ContentItem, error)
}

// StatusCounter reports how many items sit in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.ContentStatus]int, error)
}

// VisitorReader reads the site visitor totals.
type VisitorReader interface {
	VisitorTotals(ctx context.Context) (models.VisitorStats, error)
}

// Admin groups the staff-only handlers. Routes are mounted behind
// RequireAuth, RequireStaff and Require2FA; the services still check
// every action against the role policy.
type Admin struct {
	editor    Editor
	workflow  Workflow
	moderator Moderator
	counts    StatusCounter
	visitors  VisitorReader
}

// NewAdmin creates the admin handler group.
func NewAdmin(editor Editor, wf Workflow, moderator Moderator, counts StatusCounter, visitors VisitorReader) *Admin {
	return &Admin{editor: editor, workflow: wf, moderator: moderator, counts: counts, visitors: visitors}
}

type itemsResponse struct {
	Items []models.ContentItem `json:"items"`
}

func items(list []models.ContentItem) itemsResponse {
	if list == nil {
		list = []models.ContentItem{}
	}
	return itemsResponse{Items: list}
}

// adminItem is an item with the statuses it may move to next.
type adminItem struct {
	*models.ContentItem
	Targets []models.ContentStatus `json:"targets"`
}

func withTargets(item *models.ContentItem) adminItem {
	targets := workflow.Targets(item.Kind, item.Status)
	if targets == nil {
		targets = []models.ContentStatus{}
	}
	return adminItem{ContentItem: item, Targets: targets}
}

// ListContent serves GET /api/admin/content?status=&kind=.
func (a *Admin) ListContent(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := models.ContentStatus(q.Get("status"))
	if status == "" {
		status = models.StatusDraft
	}
	if !status.Valid() {
		writeError(w, r, fmt.Errorf("status %q: %w", status, models.ErrInvalidInput))
		return
	}
	kind := models.ContentKind(q.Get("kind"))
	if kind != "" && !kind.Valid() {
		writeError(w, r, fmt.Errorf("kind %q: %w", kind, models.ErrInvalidInput))
		return
	}

	list, err := a.editor.ListByStatus(r.Context(), middleware.ActorFromCtx(r.Context()), kind, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items(list))
}

// CreateContent serves POST /api/admin/content.
func (a *Admin) CreateContent(w http.ResponseWriter, r *http.Request) {
	var d content.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.editor.Create(r.Context(), middleware.ActorFromCtx(r.Context()), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, withTargets(item))
}

// GetContent serves GET /api/admin/content/{id}.
func (a *Admin) GetContent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.editor.Get(r.Context(), middleware.ActorFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, withTargets(item))
}

// UpdateContent serves PATCH /api/admin/content/{id}.
func (a *Admin) UpdateContent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var p content.Patch
	if err := decodeJSON(w, r, &p); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.editor.Update(r.Context(), middleware.ActorFromCtx(r.Context()), id, p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, withTargets(item))
}

// DeleteContent serves DELETE /api/admin/content/{id}.
func (a *Admin) DeleteContent(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := a.editor.Delete(r.Context(), middleware.ActorFromCtx(r.Context()), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transitionRequest struct {
	To   models.ContentStatus `json:"to"`
	Note string               `json:"note"`
}

// Transition serves POST /api/admin/content/{id}/transitions.
func (a *Admin) Transition(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req transitionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.workflow.Transition(r.Context(), middleware.ActorFromCtx(r.Context()), id, req.To, req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, withTargets(item))
}

// History serves GET /api/admin/content/{id}/history, newest first.
func (a *Admin) History(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	history, err := a.workflow.History(r.Context(), middleware.ActorFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if history == nil {
		history = []models.StatusTransition{}
	}
	writeJSON(w, r, http.StatusOK, map[string]any{"transitions": history})
}

type featuredRequest struct {
	Featured bool `json:"featured"`
}

// SetFeatured serves PUT /api/admin/content/{id}/featured.
func (a *Admin) SetFeatured(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req featuredRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.editor.SetFeatured(r.Context(), middleware.ActorFromCtx(r.Context()), id, req.Featured)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, withTargets(item))
}

// ModerationQueue serves GET /api/admin/moderation, oldest first.
func (a *Admin) ModerationQueue(w http.ResponseWriter, r *http.Request) {
	list, err := a.moderator.Queue(r.Context(), middleware.ActorFromCtx(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, items(list))
}

// Approve serves POST /api/admin/moderation/{id}/approve.
func (a *Admin) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := a.moderator.Approve(r.Context(), middleware.ActorFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

// Reject serves POST /api/admin/moderation/{id}/reject.
func (a *Admin) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req rejectRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	item, err := a.moderator.Reject(r.Context(), middleware.ActorFromCtx(r.Context()), id, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

type statsResponse struct {
	Content  map[models.ContentStatus]int `json:"content"`
	Visitors models.VisitorStats          `json:"visitors"`
}

// Stats serves GET /api/admin/stats.
func (a *Admin) Stats(w http.ResponseWriter, r *http.Request) {
	if !middleware.ActorFromCtx(r.Context()).IsStaff() {
		writeError(w, r, models.ErrUnauthorized)
		return
	}
	counts, err := a.counts.CountByStatus(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	visitors, err := a.visitors.VisitorTotals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, statsResponse{Content: counts, Visitors: visitors})
}
