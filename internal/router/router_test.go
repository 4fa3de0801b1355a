// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package router tests verify the route table and middleware chains
// against the real services over the in-memory store.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"mollik/internal/authz"
	"mollik/internal/content"
	"mollik/internal/counter"
	"mollik/internal/handlers"
	"mollik/internal/metrics"
	"mollik/internal/middleware"
	"mollik/internal/models"
	"mollik/internal/moderation"
	"mollik/internal/session"
	"mollik/internal/store/memory"
	"mollik/internal/workflow"
)

// cookieSessions resolves the session cookie value through a map.
type cookieSessions map[string]*session.Data

func (c cookieSessions) Get(_ context.Context, r *http.Request) (*session.Data, error) {
	cookie, err := r.Cookie(session.CookieName)
	if err != nil {
		return nil, nil
	}
	return c[cookie.Value], nil
}

func (c cookieSessions) Create(_ context.Context, w http.ResponseWriter, d *session.Data) (string, error) {
	id := uuid.NewString()
	c[id] = d
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: id})
	return id, nil
}

func (c cookieSessions) Update(context.Context, *http.Request, *session.Data) error { return nil }

func (c cookieSessions) Destroy(context.Context, http.ResponseWriter, *http.Request) error {
	return nil
}

type nopUsers struct{}

func (nopUsers) FindByEmail(context.Context, string) (*models.User, error) {
	return nil, models.ErrNotFound
}
func (nopUsers) FindByID(context.Context, uuid.UUID) (*models.User, error) {
	return nil, models.ErrNotFound
}
func (nopUsers) Create(context.Context, string, string, string, models.Role) (*models.User, error) {
	return nil, errors.New("not implemented")
}
func (nopUsers) SetTOTPSecret(context.Context, uuid.UUID, string) error { return nil }
func (nopUsers) EnableTOTP(context.Context, uuid.UUID) error            { return nil }
func (nopUsers) CheckPassword(*models.User, string) bool                { return false }

type testServer struct {
	handler  http.Handler
	sessions cookieSessions
	content  *content.Service
	engine   *workflow.Engine
}

func newTestServer(t *testing.T, limits Limiters, opts ...func(*Deps)) *testServer {
	t.Helper()

	mem := memory.New()
	az := authz.Policy{}
	contentSvc := content.NewService(mem, az)
	engine := workflow.NewEngine(mem, mem, az)
	pipeline := moderation.New(contentSvc, engine, az)
	counters := counter.New(mem, mem, memory.NewVisitors(time.Hour))
	sessions := cookieSessions{}

	t.Cleanup(limits.Stop)
	deps := Deps{
		Sessions: sessions,
		Public:   handlers.NewPublic(contentSvc, counters, pipeline, nil),
		Auth:     handlers.NewAuth(sessions, nopUsers{}),
		Admin:    handlers.NewAdmin(contentSvc, engine, pipeline, mem, counters),
		Limits:   limits,
	}
	for _, opt := range opts {
		opt(&deps)
	}
	return &testServer{
		handler:  New(deps),
		sessions: sessions,
		content:  contentSvc,
		engine:   engine,
	}
}

// login registers a session and returns its cookie ID.
func (s *testServer) login(role models.Role, twoFADone bool) (string, *session.Data) {
	sess := &session.Data{UserID: uuid.New(), Email: string(role) + "@mollik.local", Role: role, TwoFADone: twoFADone}
	id := uuid.NewString()
	s.sessions[id] = sess
	return id, sess
}

const testCSRF = "test-csrf-token"

func (s *testServer) do(method, path, sid, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: testCSRF})
	req.Header.Set(middleware.CSRFHeaderName, testCSRF)
	if sid != "" {
		req.AddCookie(&http.Cookie{Name: session.CookieName, Value: sid})
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	healthHandler(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestReadyHandler(t *testing.T) {
	tests := []struct {
		name  string
		check func(context.Context) error
		want  int
	}{
		{"no check", nil, http.StatusOK},
		{"healthy", func(context.Context) error { return nil }, http.StatusOK},
		{"database down", func(context.Context) error { return errors.New("dial tcp: refused") }, http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			readyHandler(tt.check)(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestAdminChain(t *testing.T) {
	srv := newTestServer(t, Limiters{})
	reader, _ := srv.login(models.RoleReader, true)
	pendingEditor, _ := srv.login(models.RoleEditor, false)
	editor, _ := srv.login(models.RoleEditor, true)

	tests := []struct {
		name string
		sid  string
		want int
	}{
		{"anonymous", "", http.StatusUnauthorized},
		{"reader", reader, http.StatusForbidden},
		{"editor before 2fa", pendingEditor, http.StatusForbidden},
		{"editor", editor, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := srv.do(http.MethodGet, "/api/admin/moderation", tt.sid, "")
			if rr.Code != tt.want {
				t.Errorf("status: got %d, want %d (%s)", rr.Code, tt.want, rr.Body.String())
			}
		})
	}
}

func TestPublishFlowThroughRouter(t *testing.T) {
	srv := newTestServer(t, Limiters{})
	editor, _ := srv.login(models.RoleAdmin, true)
	reader, _ := srv.login(models.RoleReader, true)

	rr := srv.do(http.MethodPost, "/api/admin/content", editor, `{"kind":"poem","title":"Bidrohi","body":"Bolo bir"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created models.ContentItem
	json.Unmarshal(rr.Body.Bytes(), &created)

	if rr := srv.do(http.MethodGet, "/api/poem/bidrohi", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("draft visible publicly: %d", rr.Code)
	}

	rr = srv.do(http.MethodPost, "/api/admin/content/"+created.ID.String()+"/transitions", editor, `{"to":"published"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("publish: %d %s", rr.Code, rr.Body.String())
	}

	if rr := srv.do(http.MethodGet, "/api/poem/bidrohi", "", ""); rr.Code != http.StatusOK {
		t.Errorf("published detail: %d", rr.Code)
	}
	if rr := srv.do(http.MethodGet, "/api/poem", "", ""); rr.Code != http.StatusOK {
		t.Errorf("published list: %d", rr.Code)
	}

	rr = srv.do(http.MethodPost, "/api/content/"+created.ID.String()+"/like", reader, "")
	if rr.Code != http.StatusOK {
		t.Errorf("like: %d %s", rr.Code, rr.Body.String())
	}
	if rr := srv.do(http.MethodPost, "/api/content/"+created.ID.String()+"/like", "", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("anonymous like: %d, want 401", rr.Code)
	}
}

func TestBlogSubmissionRoute(t *testing.T) {
	srv := newTestServer(t, Limiters{})
	reader, _ := srv.login(models.RoleReader, true)

	rr := srv.do(http.MethodPost, "/api/submissions", reader, `{"title":"Smriti"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("submit: %d %s", rr.Code, rr.Body.String())
	}
	var item models.ContentItem
	json.Unmarshal(rr.Body.Bytes(), &item)
	if item.Status != models.StatusPending {
		t.Errorf("status = %s, want pending", item.Status)
	}

	// Pending submissions are not public.
	if rr := srv.do(http.MethodGet, "/api/blog/"+item.Slug, "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("pending blog detail: %d, want 404", rr.Code)
	}
}

// A blog post may use any slug; submission routes live outside the kinds.
func TestBlogSlugNotShadowedBySubmissions(t *testing.T) {
	srv := newTestServer(t, Limiters{})
	admin, _ := srv.login(models.RoleAdmin, true)

	rr := srv.do(http.MethodPost, "/api/admin/content", admin, `{"kind":"blog","title":"Reader Submissions","slug":"submissions"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: %d %s", rr.Code, rr.Body.String())
	}
	var created models.ContentItem
	json.Unmarshal(rr.Body.Bytes(), &created)
	for _, to := range []string{"pending", "published"} {
		rr := srv.do(http.MethodPost, "/api/admin/content/"+created.ID.String()+"/transitions", admin, `{"to":"`+to+`"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("-> %s: %d %s", to, rr.Code, rr.Body.String())
		}
	}

	rr = srv.do(http.MethodGet, "/api/blog/submissions", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("blog detail: %d %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"slug":"submissions"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestCSRFRequiredWithSession(t *testing.T) {
	srv := newTestServer(t, Limiters{})
	reader, _ := srv.login(models.RoleReader, true)

	req := httptest.NewRequest(http.MethodPost, "/api/submissions", strings.NewReader(`{"title":"x"}`))
	req.AddCookie(&http.Cookie{Name: session.CookieName, Value: reader})
	req.AddCookie(&http.Cookie{Name: middleware.CSRFCookieName, Value: testCSRF})
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Errorf("missing CSRF header: got %d, want 403", rr.Code)
	}
}

func TestVisitorRateLimit(t *testing.T) {
	srv := newTestServer(t, Limiters{Visitors: middleware.NewRateLimiter(2, time.Minute)})

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rr := srv.do(http.MethodPost, "/api/visitors", "", `{"token":"tab"}`)
		if rr.Code != want {
			t.Errorf("request %d: got %d, want %d", i+1, rr.Code, want)
		}
	}
	if rr := srv.do(http.MethodGet, "/api/visitors", "", ""); rr.Code != http.StatusOK {
		t.Errorf("totals are not limited: got %d", rr.Code)
	}
}

func TestUnknownKind(t *testing.T) {
	srv := newTestServer(t, Limiters{})
	if rr := srv.do(http.MethodGet, "/api/recipes", "", ""); rr.Code != http.StatusNotFound {
		t.Errorf("got %d, want 404", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	const site = "https://mollik.example"
	srv := newTestServer(t, Limiters{}, func(d *Deps) { d.CORSOrigins = []string{site} })

	preflight := func(origin string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/content/x/like", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		req.Header.Set("Access-Control-Request-Headers", middleware.CSRFHeaderName)
		rr := httptest.NewRecorder()
		srv.handler.ServeHTTP(rr, req)
		return rr
	}

	rr := preflight(site)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != site {
		t.Errorf("allowed origin: Access-Control-Allow-Origin = %q, want %q", got, site)
	}
	if got := rr.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q, want true", got)
	}

	rr = preflight("https://elsewhere.example")
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("foreign origin: Access-Control-Allow-Origin = %q, want none", got)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	srv := newTestServer(t, Limiters{}, func(d *Deps) { d.Metrics = m })

	if rr := srv.do(http.MethodGet, "/api/poem", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("list: got %d", rr.Code)
	}
	rr := srv.do(http.MethodGet, "/metrics", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("metrics: got %d", rr.Code)
	}
	want := `mollik_http_requests_total{method="GET",route="/api/{kind}",status="200"} 1`
	if !strings.Contains(rr.Body.String(), want) {
		t.Errorf("metrics output missing %s", want)
	}
}
