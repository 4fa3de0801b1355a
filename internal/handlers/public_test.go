// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"mollik/internal/authz"
	"mollik/internal/cache"
	"mollik/internal/content"
	"mollik/internal/models"
	"mollik/internal/session"
)

func TestPublicListCachesAndInvalidates(t *testing.T) {
	env := newTestEnv(t)
	staff := testSession(models.RoleEditor)
	env.publishPoem(t, staff, "Bidrohi")

	rr := serve(env.Public.List, newRequest(t, http.MethodGet, "/api/poem", nil, nil, "kind", "poem"))
	wantStatus(t, rr, http.StatusOK)
	if got := decode[listResponse](t, rr); len(got.Items) != 1 || got.Items[0].Slug != "bidrohi" {
		t.Fatalf("items = %+v, want bidrohi", got.Items)
	}

	serve(env.Public.List, newRequest(t, http.MethodGet, "/api/poem", nil, nil, "kind", "poem"))
	if env.Pages.hits != 1 {
		t.Errorf("cache hits = %d, want 1", env.Pages.hits)
	}

	env.publishPoem(t, staff, "Dhumketu")
	rr = serve(env.Public.List, newRequest(t, http.MethodGet, "/api/poem", nil, nil, "kind", "poem"))
	if got := decode[listResponse](t, rr); len(got.Items) != 2 {
		t.Errorf("after publish: %d items, want 2 (stale cache?)", len(got.Items))
	}
}

func TestPublicListRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		target string
		kind   string
		want   int
	}{
		{"unknown kind", "/api/recipes", "recipes", http.StatusNotFound},
		{"negative limit", "/api/poem?limit=-1", "poem", http.StatusBadRequest},
		{"bad featured", "/api/poem?featured=maybe", "poem", http.StatusBadRequest},
		{"empty kind list", "/api/song?limit=5", "song", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := serve(env.Public.List, newRequest(t, http.MethodGet, tt.target, nil, nil, "kind", tt.kind))
			wantStatus(t, rr, tt.want)
		})
	}
}

func TestPublicDetailCountsViewsOnCachedHits(t *testing.T) {
	env := newTestEnv(t)
	staff := testSession(models.RoleAdmin)
	item := env.publishPoem(t, staff, "Bidrohi")

	for i := int64(1); i <= 3; i++ {
		rr := serve(env.Public.Detail, newRequest(t, http.MethodGet, "/api/poem/bidrohi", nil, nil, "kind", "poem", "slug", "bidrohi"))
		wantStatus(t, rr, http.StatusOK)
		got := decode[detailResponse](t, rr)
		if got.ID != item.ID {
			t.Fatalf("id = %s, want %s", got.ID, item.ID)
		}
		if got.Views != i {
			t.Errorf("request %d: views = %d, want %d", i, got.Views, i)
		}
		if !strings.HasPrefix(got.BodyHTML, "<p>") {
			t.Errorf("request %d: body_html = %q, want a rendered paragraph", i, got.BodyHTML)
		}
	}
	if env.Pages.hits < 2 {
		t.Errorf("cache hits = %d, want at least 2", env.Pages.hits)
	}
}

func TestPublicDetailLikeState(t *testing.T) {
	env := newTestEnv(t)
	staff := testSession(models.RoleAdmin)
	reader := testSession(models.RoleReader)
	item := env.publishPoem(t, staff, "Bidrohi")

	if _, err := env.Counters.ToggleLike(context.Background(), reader.Actor(), item.ID, ""); err != nil {
		t.Fatalf("ToggleLike: %v", err)
	}

	rr := serve(env.Public.Detail, newRequest(t, http.MethodGet, "/api/poem/bidrohi", nil, reader, "kind", "poem", "slug", "bidrohi"))
	wantStatus(t, rr, http.StatusOK)
	if got := decode[detailResponse](t, rr); !got.Liked || got.LikeCount != 1 {
		t.Errorf("reader view: liked=%v count=%d, want true 1", got.Liked, got.LikeCount)
	}

	rr = serve(env.Public.Detail, newRequest(t, http.MethodGet, "/api/poem/bidrohi", nil, nil, "kind", "poem", "slug", "bidrohi"))
	if got := decode[detailResponse](t, rr); got.Liked || got.LikeCount != 1 {
		t.Errorf("anonymous view: liked=%v count=%d, want false 1", got.Liked, got.LikeCount)
	}
}

func TestPublicDetailHidesUnpublished(t *testing.T) {
	env := newTestEnv(t)
	staff := testSession(models.RoleEditor)
	if _, err := env.Content.Create(context.Background(), staff.Actor(), content.Draft{Kind: models.KindSong, Title: "Draft Song"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	status := func(sess *session.Data) int {
		r := newRequest(t, http.MethodGet, "/api/song/draft-song", nil, sess, "kind", "song", "slug", "draft-song")
		return serve(env.Public.Detail, r).Code
	}

	if got := status(nil); got != http.StatusNotFound {
		t.Errorf("anonymous: got %d, want 404", got)
	}
	if got := status(testSession(models.RoleReader)); got != http.StatusNotFound {
		t.Errorf("reader: got %d, want 404", got)
	}
	if got := status(staff); got != http.StatusOK {
		t.Errorf("staff preview: got %d, want 200", got)
	}
	gen, _ := env.Pages.Generation(context.Background(), models.KindSong)
	if _, ok := env.Pages.Get(context.Background(), cache.ItemKey(models.KindSong, gen, "draft-song")); ok {
		t.Error("unpublished items must not be cached")
	}
}

// unpublishingCatalog unpublishes the item right after the catalog read,
// so the handler holds a published copy that is already stale.
type unpublishingCatalog struct {
	Catalog
	after func()
}

func (c unpublishingCatalog) GetPublic(ctx context.Context, actor authz.Actor, kind models.ContentKind, slug string) (*models.ContentItem, error) {
	item, err := c.Catalog.GetPublic(ctx, actor, kind, slug)
	if err == nil {
		c.after()
	}
	return item, err
}

func TestPublicDetailUnpublishDuringLookup(t *testing.T) {
	env := newTestEnv(t)
	staff := testSession(models.RoleAdmin)
	item := env.publishPoem(t, staff, "Bidrohi")

	racing := NewPublic(unpublishingCatalog{
		Catalog: env.Content,
		after: func() {
			if _, err := env.Workflow.Transition(context.Background(), staff.Actor(), item.ID, models.StatusDraft, ""); err != nil {
				t.Errorf("unpublish: %v", err)
			}
		},
	}, env.Counters, env.Pipeline, env.Pages)

	get := func(h http.HandlerFunc) int {
		r := newRequest(t, http.MethodGet, "/api/poem/bidrohi", nil, nil, "kind", "poem", "slug", "bidrohi")
		return serve(h, r).Code
	}

	// The in-flight request still answers with what it read.
	if got := get(racing.Detail); got != http.StatusOK {
		t.Fatalf("racing request: got %d, want 200", got)
	}
	if got := get(env.Public.Detail); got != http.StatusNotFound {
		t.Errorf("anonymous after unpublish: got %d, want 404", got)
	}
}

func TestPublicDetailSurvivesLikeStateFailure(t *testing.T) {
	env := newTestEnv(t)
	item := env.publishPoem(t, testSession(models.RoleAdmin), "Bidrohi")
	public := NewPublic(env.Content, failingLikeState{env.Counters}, env.Pipeline, nil)

	rr := serve(public.Detail, newRequest(t, http.MethodGet, "/api/poem/bidrohi", nil, nil, "kind", "poem", "slug", "bidrohi"))
	wantStatus(t, rr, http.StatusOK)
	got := decode[detailResponse](t, rr)
	if got.ID != item.ID || got.LikeCount != 0 || got.Liked {
		t.Errorf("detail = id %s likes %d liked %v, want item with no likes", got.ID, got.LikeCount, got.Liked)
	}
	if got.Views != 1 {
		t.Errorf("views = %d, want 1", got.Views)
	}
}

// failingLikeState is a Counters whose like read always fails.
type failingLikeState struct {
	Counters
}

func (failingLikeState) LikeState(context.Context, uuid.UUID, uuid.UUID) (models.LikeResult, error) {
	return models.LikeResult{}, errors.New("valkey down")
}

func TestToggleLikeHandler(t *testing.T) {
	env := newTestEnv(t)
	item := env.publishPoem(t, testSession(models.RoleAdmin), "Bidrohi")
	reader := testSession(models.RoleReader)

	like := func(sess *session.Data, key string) *httptest.ResponseRecorder {
		r := newRequest(t, http.MethodPost, "/api/content/"+item.ID.String()+"/like", nil, sess, "id", item.ID.String())
		if key != "" {
			r.Header.Set("Idempotency-Key", key)
		}
		return serve(env.Public.ToggleLike, r)
	}

	rr := like(nil, "")
	wantStatus(t, rr, http.StatusUnauthorized)
	if body := decode[errorResponse](t, rr); !body.LoginRequired {
		t.Error("anonymous like should ask for login")
	}

	rr = like(reader, "click-1")
	wantStatus(t, rr, http.StatusOK)
	if got := decode[models.LikeResult](t, rr); !got.Liked || got.LikeCount != 1 {
		t.Errorf("first like = %+v, want liked 1", got)
	}

	// A repeated request key is a double click, not a second toggle.
	if got := decode[models.LikeResult](t, like(reader, "click-1")); !got.Liked || got.LikeCount != 1 {
		t.Errorf("repeated key = %+v, want liked 1", got)
	}

	if got := decode[models.LikeResult](t, like(reader, "click-2")); got.Liked || got.LikeCount != 0 {
		t.Errorf("second toggle = %+v, want unliked 0", got)
	}

	r := newRequest(t, http.MethodPost, "/api/content/nope/like", nil, reader, "id", "nope")
	wantStatus(t, serve(env.Public.ToggleLike, r), http.StatusNotFound)
}

func TestVisitorHandlers(t *testing.T) {
	env := newTestEnv(t)

	record := func(token string) *httptest.ResponseRecorder {
		return serve(env.Public.RecordVisitor, newRequest(t, http.MethodPost, "/api/visitors", visitorRequest{Token: token}, nil))
	}

	wantStatus(t, record(""), http.StatusBadRequest)

	for range 3 {
		wantStatus(t, record("tab-a"), http.StatusOK)
	}
	got := decode[models.VisitorStats](t, record("tab-b"))
	if got.Total != 2 || got.Today != 2 || got.Month != 2 {
		t.Errorf("stats = %+v, want 2 everywhere", got)
	}

	rr := serve(env.Public.VisitorTotals, newRequest(t, http.MethodGet, "/api/visitors", nil, nil))
	wantStatus(t, rr, http.StatusOK)
	if got := decode[models.VisitorStats](t, rr); got.Total != 2 {
		t.Errorf("totals = %+v, want total 2", got)
	}
}

func TestSubmitAndResubmit(t *testing.T) {
	env := newTestEnv(t)
	reader := testSession(models.RoleReader)
	staff := testSession(models.RoleEditor)

	rr := serve(env.Public.Submit, newRequest(t, http.MethodPost, "/api/submissions", nil, reader))
	wantStatus(t, rr, http.StatusBadRequest)

	draft := content.Draft{Kind: models.KindPoem, Title: "Amar Kotha", Body: "..."}
	rr = serve(env.Public.Submit, newRequest(t, http.MethodPost, "/api/submissions", draft, reader))
	wantStatus(t, rr, http.StatusCreated)
	item := decode[models.ContentItem](t, rr)
	if item.Kind != models.KindBlog || item.Status != models.StatusPending {
		t.Fatalf("submission = %s/%s, want blog/pending", item.Kind, item.Status)
	}

	if _, err := env.Pipeline.Reject(context.Background(), staff.Actor(), item.ID, "needs sources"); err != nil {
		t.Fatalf("Reject: %v", err)
	}

	other := testSession(models.RoleReader)
	r := newRequest(t, http.MethodPost, "/resubmit", nil, other, "id", item.ID.String())
	if code := serve(env.Public.Resubmit, r).Code; code != http.StatusNotFound && code != http.StatusForbidden {
		t.Errorf("stranger resubmit: got %d, want 403 or 404", code)
	}

	r = newRequest(t, http.MethodPost, "/resubmit", nil, reader, "id", item.ID.String())
	rr = serve(env.Public.Resubmit, r)
	wantStatus(t, rr, http.StatusOK)
	if got := decode[models.ContentItem](t, rr); got.Status != models.StatusPending {
		t.Errorf("resubmitted status = %s, want pending", got.Status)
	}

	// Resubmitting a pending item is not an edge of the graph.
	rr = serve(env.Public.Resubmit, newRequest(t, http.MethodPost, "/resubmit", nil, reader, "id", item.ID.String()))
	wantStatus(t, rr, http.StatusConflict)
}
