// Package router sets up the HTTP routes and middleware chains of the
// mollik API: public reading and engagement, sign-in, and the staff
// admin area.
package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"mollik/internal/handlers"
	"mollik/internal/metrics"
	"mollik/internal/middleware"
)

// Limiters holds the per-endpoint rate limiters. A nil limiter leaves
// its endpoints unlimited.
type Limiters struct {
	Auth        *middleware.RateLimiter
	Likes       *middleware.RateLimiter
	Submissions *middleware.RateLimiter
	Visitors    *middleware.RateLimiter
}

// Stop ends the cleanup goroutines of every configured limiter.
func (l Limiters) Stop() {
	for _, rl := range []*middleware.RateLimiter{l.Auth, l.Likes, l.Submissions, l.Visitors} {
		if rl != nil {
			rl.Stop()
		}
	}
}

// Deps are the collaborators the router mounts.
type Deps struct {
	Sessions      middleware.SessionGetter
	Public        *handlers.Public
	Auth          *handlers.Auth
	Admin         *handlers.Admin
	Limits        Limiters
	SecureCookies bool

	// Metrics, when set, instruments every route and serves /metrics.
	Metrics *metrics.Metrics

	// CORSOrigins lists the browser origins allowed to call the API with
	// credentials. Empty disables CORS.
	CORSOrigins []string

	// Ready reports whether backing services are reachable. Nil means
	// always ready.
	Ready func(ctx context.Context) error
}

// New creates the chi router with every route group wired up.
func New(d Deps) chi.Router {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if d.Metrics != nil {
		r.Use(d.Metrics.Middleware)
	}
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	if len(d.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   d.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
			AllowedHeaders:   []string{"Content-Type", middleware.CSRFHeaderName, "Idempotency-Key"},
			ExposedHeaders:   []string{"Retry-After"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(middleware.SecureHeaders(d.SecureCookies))
	r.Use(middleware.LoadSession(d.Sessions))
	r.Use(middleware.CSRF(d.SecureCookies))

	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(d.Ready))
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(limit(d.Limits.Auth))
				r.Post("/register", d.Auth.Register)
				r.Post("/login", d.Auth.Login)
			})
			r.Post("/logout", d.Auth.Logout)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/me", d.Auth.Me)
				r.Post("/2fa/setup", d.Auth.TwoFASetup)
				r.With(limit(d.Limits.Auth)).Post("/2fa/verify", d.Auth.TwoFAVerify)
			})
		})

		r.Route("/visitors", func(r chi.Router) {
			r.Get("/", d.Public.VisitorTotals)
			r.With(limit(d.Limits.Visitors)).Post("/", d.Public.RecordVisitor)
		})

		r.With(middleware.RequireAuth, limit(d.Limits.Likes)).
			Post("/content/{id}/like", d.Public.ToggleLike)

		r.Route("/submissions", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(limit(d.Limits.Submissions))
			r.Post("/", d.Public.Submit)
			r.Post("/{id}/resubmit", d.Public.Resubmit)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Use(middleware.RequireStaff)
			r.Use(middleware.Require2FA)

			r.Get("/stats", d.Admin.Stats)

			r.Route("/content", func(r chi.Router) {
				r.Get("/", d.Admin.ListContent)
				r.Post("/", d.Admin.CreateContent)
				r.Get("/{id}", d.Admin.GetContent)
				r.Patch("/{id}", d.Admin.UpdateContent)
				r.Delete("/{id}", d.Admin.DeleteContent)
				r.Post("/{id}/transitions", d.Admin.Transition)
				r.Get("/{id}/history", d.Admin.History)
				r.Put("/{id}/featured", d.Admin.SetFeatured)
			})

			r.Route("/moderation", func(r chi.Router) {
				r.Get("/", d.Admin.ModerationQueue)
				r.Post("/{id}/approve", d.Admin.Approve)
				r.Post("/{id}/reject", d.Admin.Reject)
			})
		})

		// Public reading. Registered last; chi prefers the static
		// routes above over these patterns.
		r.Get("/{kind}", d.Public.List)
		r.Get("/{kind}/{slug}", d.Public.Detail)
	})

	return r
}

func limit(rl *middleware.RateLimiter) func(http.Handler) http.Handler {
	if rl == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return rl.Middleware
}

// healthHandler reports that the process is serving requests.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ok"}`))
}

// readyHandler reports whether the database and Valkey answer in time.
func readyHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if check != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := check(ctx); err != nil {
				slog.Warn("readiness check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte(`{"status":"unavailable"}`))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ready"}`))
	}
}
