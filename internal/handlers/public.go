// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"mollik/internal/authz"
	"mollik/internal/cache"
	"mollik/internal/content"
	"mollik/internal/markdown"
	"mollik/internal/middleware"
	"mollik/internal/models"
)

// Catalog is the read side of the content service used by the public API.
type Catalog interface {
	ListPublished(ctx context.Context, kind models.ContentKind, opts models.ListOptions) ([]models.ContentItem, error)
	GetPublic(ctx context.Context, actor authz.Actor, kind models.ContentKind, slug string) (*models.ContentItem, error)
}

// Counters is the engagement side of the public API.
type Counters interface {
	IncrementView(ctx context.Context, id uuid.UUID) (int64, error)
	ToggleLike(ctx context.Context, actor authz.Actor, id uuid.UUID, requestKey string) (models.LikeResult, error)
	LikeState(ctx context.Context, userID, id uuid.UUID) (models.LikeResult, error)
	RecordVisitor(ctx context.Context, token string) (models.VisitorStats, error)
	VisitorTotals(ctx context.Context) (models.VisitorStats, error)
}

// Submissions is the reader-facing part of the moderation pipeline.
type Submissions interface {
	Submit(ctx context.Context, actor authz.Actor, d content.Draft) (*models.ContentItem, error)
	Resubmit(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error)
}

// ResponseCache stores encoded public responses. Keys embed the kind's
// generation, which must be read before the underlying lookup.
type ResponseCache interface {
	Generation(ctx context.Context, kind models.ContentKind) (int64, bool)
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, body []byte)
}

// Public groups the handlers for anonymous and signed-in readers.
type Public struct {
	catalog     Catalog
	counters    Counters
	submissions Submissions
	pages       ResponseCache
}

// NewPublic creates the public handler group. pages may be nil to
// disable response caching.
func NewPublic(catalog Catalog, counters Counters, submissions Submissions, pages ResponseCache) *Public {
	return &Public{catalog: catalog, counters: counters, submissions: submissions, pages: pages}
}

type listResponse struct {
	Items  []models.ContentItem `json:"items"`
	Limit  int                  `json:"limit"`
	Offset int                  `json:"offset"`
}

// detailResponse is a published item with the caller's engagement view.
type detailResponse struct {
	*models.ContentItem
	BodyHTML  string `json:"body_html"`
	LikeCount int64  `json:"like_count"`
	Liked     bool   `json:"liked"`
}

// List serves GET /api/{kind}.
func (p *Public) List(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts, err := listOptions(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	gen, cacheable := p.generation(r.Context(), kind)
	key := cache.ListKey(kind, gen, opts)
	if cacheable {
		if body, ok := p.cacheGet(r.Context(), key); ok {
			writeRaw(w, body)
			return
		}
	}

	items, err := p.catalog.ListPublished(r.Context(), kind, opts)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if items == nil {
		items = []models.ContentItem{}
	}

	body, err := json.Marshal(listResponse{Items: items, Limit: opts.Limit, Offset: opts.Offset})
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cacheable {
		p.cacheSet(r.Context(), key, body)
	}
	writeRaw(w, body)
}

// Detail serves GET /api/{kind}/{slug}. The item itself may come from
// the cache; the view count and like state are always live.
func (p *Public) Detail(w http.ResponseWriter, r *http.Request) {
	kind, err := kindParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	slug := chi.URLParam(r, "slug")
	actor := middleware.ActorFromCtx(r.Context())

	item, err := p.loadItem(r.Context(), actor, kind, slug)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := detailResponse{ContentItem: item}
	if resp.BodyHTML, err = markdown.ToHTML(item.Kind, item.Body); err != nil {
		slog.Warn("body render failed", "content_id", item.ID, "error", err)
	}

	g, ctx := errgroup.WithContext(r.Context())
	if item.IsPublished() {
		g.Go(func() error {
			views, err := p.counters.IncrementView(ctx, item.ID)
			if err != nil {
				slog.Warn("view increment failed", "content_id", item.ID, "error", err)
				return nil
			}
			resp.Views = views
			return nil
		})
	}
	g.Go(func() error {
		state, err := p.counters.LikeState(ctx, actor.UserID, item.ID)
		if err != nil {
			slog.Warn("like state read failed", "content_id", item.ID, "error", err)
			return nil
		}
		resp.LikeCount = state.LikeCount
		resp.Liked = state.Liked
		return nil
	})
	// Counter failures are logged above and never hide the item.
	g.Wait()

	writeJSON(w, r, http.StatusOK, resp)
}

// loadItem returns a private copy of the item, from the cache when the
// item is published and cached. The generation is read before the
// catalog so an unpublish racing this lookup retires what it writes.
func (p *Public) loadItem(ctx context.Context, actor authz.Actor, kind models.ContentKind, slug string) (*models.ContentItem, error) {
	gen, cacheable := p.generation(ctx, kind)
	key := cache.ItemKey(kind, gen, slug)
	if cacheable {
		if body, ok := p.cacheGet(ctx, key); ok {
			var item models.ContentItem
			if err := json.Unmarshal(body, &item); err == nil && item.IsPublished() {
				return &item, nil
			}
			slog.Warn("discarding unusable cached item", "key", key)
		}
	}

	item, err := p.catalog.GetPublic(ctx, actor, kind, slug)
	if err != nil {
		return nil, err
	}
	if cacheable && item.IsPublished() {
		if body, err := json.Marshal(item); err == nil {
			p.cacheSet(ctx, key, body)
		}
	}
	return item, nil
}

type likeRequest struct {
	RequestKey string `json:"request_key"`
}

// ToggleLike serves POST /api/content/{id}/like. The request key comes
// from the Idempotency-Key header or the body.
func (p *Public) ToggleLike(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req likeRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	if key := strings.TrimSpace(r.Header.Get("Idempotency-Key")); key != "" {
		req.RequestKey = key
	}

	res, err := p.counters.ToggleLike(r.Context(), middleware.ActorFromCtx(r.Context()), id, req.RequestKey)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, res)
}

type visitorRequest struct {
	Token string `json:"token"`
}

// RecordVisitor serves POST /api/visitors.
func (p *Public) RecordVisitor(w http.ResponseWriter, r *http.Request) {
	var req visitorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := p.counters.RecordVisitor(r.Context(), req.Token)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// VisitorTotals serves GET /api/visitors.
func (p *Public) VisitorTotals(w http.ResponseWriter, r *http.Request) {
	stats, err := p.counters.VisitorTotals(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, stats)
}

// Submit serves POST /api/submissions.
func (p *Public) Submit(w http.ResponseWriter, r *http.Request) {
	var d content.Draft
	if err := decodeJSON(w, r, &d); err != nil {
		writeError(w, r, err)
		return
	}
	d.Kind = models.KindBlog

	item, err := p.submissions.Submit(r.Context(), middleware.ActorFromCtx(r.Context()), d)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, item)
}

// Resubmit serves POST /api/submissions/{id}/resubmit.
func (p *Public) Resubmit(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	item, err := p.submissions.Resubmit(r.Context(), middleware.ActorFromCtx(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, item)
}

func (p *Public) generation(ctx context.Context, kind models.ContentKind) (int64, bool) {
	if p.pages == nil {
		return 0, false
	}
	return p.pages.Generation(ctx, kind)
}

func (p *Public) cacheGet(ctx context.Context, key string) ([]byte, bool) {
	if p.pages == nil {
		return nil, false
	}
	return p.pages.Get(ctx, key)
}

func (p *Public) cacheSet(ctx context.Context, key string, body []byte) {
	if p.pages != nil {
		p.pages.Set(ctx, key, body)
	}
}

func writeRaw(w http.ResponseWriter, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
