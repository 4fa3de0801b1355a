// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// handler_test.go provides the shared test environment: the real
// services over the in-memory store, with fake users and sessions.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"mollik/internal/authz"
	"mollik/internal/content"
	"mollik/internal/counter"
	"mollik/internal/middleware"
	"mollik/internal/models"
	"mollik/internal/moderation"
	"mollik/internal/session"
	"mollik/internal/store/memory"
	"mollik/internal/workflow"
)

// mapCache is an in-process ResponseCache that bumps a kind's generation
// and drops its entries the same way the Valkey page cache does.
type mapCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	gens    map[models.ContentKind]int64
	hits    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string][]byte), gens: make(map[models.ContentKind]int64)}
}

func (c *mapCache) Generation(_ context.Context, kind models.ContentKind) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gens[kind], true
}

func (c *mapCache) Get(_ context.Context, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	body, ok := c.entries[key]
	if ok {
		c.hits++
	}
	return body, ok
}

func (c *mapCache) Set(_ context.Context, key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = body
}

func (c *mapCache) invalidate(_ context.Context, item *models.ContentItem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gens[item.Kind]++
	for key := range c.entries {
		if strings.HasPrefix(key, string(item.Kind)+":") {
			delete(c.entries, key)
		}
	}
}

// fakeUsers is an in-memory Users store with real bcrypt hashes.
type fakeUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]*models.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{users: make(map[uuid.UUID]*models.User)}
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) Create(ctx context.Context, email, password, displayName string, role models.Role) (*models.User, error) {
	if _, err := f.FindByEmail(ctx, email); err == nil {
		return nil, models.ErrConflict
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}
	u := &models.User{
		ID: uuid.New(), Email: strings.ToLower(email), PasswordHash: string(hash),
		DisplayName: displayName, Role: role, CreatedAt: time.Now(), UpdatedAt: time.Now(),
	}
	f.mu.Lock()
	f.users[u.ID] = u
	f.mu.Unlock()
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) SetTOTPSecret(_ context.Context, id uuid.UUID, secret string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.TOTPSecret = &secret
	return nil
}

func (f *fakeUsers) EnableTOTP(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return models.ErrNotFound
	}
	u.TOTPEnabled = true
	return nil
}

func (f *fakeUsers) CheckPassword(u *models.User, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) == nil
}

// fakeSessions records the sessions the handlers create and update.
type fakeSessions struct {
	mu        sync.Mutex
	created   []*session.Data
	updated   []*session.Data
	destroyed int
}

func (f *fakeSessions) Create(_ context.Context, w http.ResponseWriter, data *session.Data) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, data)
	http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: "sid"})
	return "sid", nil
}

func (f *fakeSessions) Update(_ context.Context, _ *http.Request, data *session.Data) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *data
	f.updated = append(f.updated, &cp)
	return nil
}

func (f *fakeSessions) Destroy(context.Context, http.ResponseWriter, *http.Request) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroyed++
	return nil
}

// testEnv holds the services and handler groups under test.
type testEnv struct {
	Store    *memory.Store
	Content  *content.Service
	Workflow *workflow.Engine
	Pipeline *moderation.Pipeline
	Counters *counter.Service
	Pages    *mapCache
	Users    *fakeUsers
	Sessions *fakeSessions
	Public   *Public
	Admin    *Admin
	Auth     *Auth
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	mem := memory.New()
	az := authz.Policy{}
	contentSvc := content.NewService(mem, az)
	engine := workflow.NewEngine(mem, mem, az)
	pipeline := moderation.New(contentSvc, engine, az)
	counters := counter.New(mem, mem, memory.NewVisitors(24*time.Hour),
		counter.WithIdempotency(memory.NewKeys(), 10*time.Second))

	pages := newMapCache()
	contentSvc.OnChange(pages.invalidate)
	engine.OnTransition(func(ctx context.Context, item *models.ContentItem, _ models.StatusTransition) error {
		pages.invalidate(ctx, item)
		return nil
	})

	users := newFakeUsers()
	sessions := &fakeSessions{}

	return &testEnv{
		Store:    mem,
		Content:  contentSvc,
		Workflow: engine,
		Pipeline: pipeline,
		Counters: counters,
		Pages:    pages,
		Users:    users,
		Sessions: sessions,
		Public:   NewPublic(contentSvc, counters, pipeline, pages),
		Admin:    NewAdmin(contentSvc, engine, pipeline, mem, counters),
		Auth:     NewAuth(sessions, users),
	}
}

// testSession returns a trusted session for a new user of role.
func testSession(role models.Role) *session.Data {
	return &session.Data{
		UserID:      uuid.New(),
		Email:       string(role) + "@mollik.local",
		DisplayName: "Test " + string(role),
		Role:        role,
		TwoFADone:   true,
	}
}

func ctxWithSession(ctx context.Context, data *session.Data) context.Context {
	return context.WithValue(ctx, middleware.SessionKey, data)
}

// newRequest builds a request with optional JSON body, session and chi
// URL params given as key, value pairs.
func newRequest(t *testing.T, method, target string, body any, sess *session.Data, params ...string) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	r := httptest.NewRequest(method, target, &buf)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}

	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(params); i += 2 {
		rctx.URLParams.Add(params[i], params[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	if sess != nil {
		ctx = ctxWithSession(ctx, sess)
	}
	return r.WithContext(ctx)
}

func serve(h http.HandlerFunc, r *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, r)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func wantStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("status: got %d, want %d (body %s)", rr.Code, want, rr.Body.String())
	}
}

// publishPoem creates and publishes a poem as staff.
func (e *testEnv) publishPoem(t *testing.T, staff *session.Data, title string) *models.ContentItem {
	t.Helper()
	ctx := context.Background()
	item, err := e.Content.Create(ctx, staff.Actor(), content.Draft{Kind: models.KindPoem, Title: title, Body: "..."})
	if err != nil {
		t.Fatalf("create poem: %v", err)
	}
	item, err = e.Workflow.Transition(ctx, staff.Actor(), item.ID, models.StatusPublished, "")
	if err != nil {
		t.Fatalf("publish poem: %v", err)
	}
	return item
}
