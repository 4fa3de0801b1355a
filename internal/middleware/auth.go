// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"mollik/internal/authz"
	"mollik/internal/session"
)

type contextKey string

const (
	// SessionKey is the context key for the session data.
	SessionKey contextKey = "session"
)

// SessionGetter loads the session attached to a request.
type SessionGetter interface {
	Get(ctx context.Context, r *http.Request) (*session.Data, error)
}

// errorBody is the JSON shape of every error the middleware writes.
type errorBody struct {
	Error         string `json:"error"`
	LoginRequired bool   `json:"login_required,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body errorBody) {
	render.Status(r, status)
	render.JSON(w, r, body)
}

// LoadSession stores the request's session, if any, in the context.
// It never rejects a request; a failed lookup is treated as anonymous.
func LoadSession(store SessionGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			data, err := store.Get(r.Context(), r)
			if err != nil {
				slog.Warn("session lookup failed", "error", err, "path", r.URL.Path)
				next.ServeHTTP(w, r)
				return
			}

			if data != nil {
				r = r.WithContext(context.WithValue(r.Context(), SessionKey, data))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without a session with 401 and a
// login_required flag so clients can prompt for sign-in.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if SessionFromCtx(r.Context()) == nil {
			writeError(w, r, http.StatusUnauthorized, errorBody{Error: "login required", LoginRequired: true})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// RequireStaff returns 403 unless the session belongs to an admin or
// editor. Must be applied after RequireAuth.
func RequireStaff(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if sess == nil || !sess.Role.IsStaff() {
			writeError(w, r, http.StatusForbidden, errorBody{Error: "staff only"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Require2FA returns 403 for sessions that have not completed the TOTP
// step. Must be applied after RequireAuth.
func Require2FA(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := SessionFromCtx(r.Context())
		if sess != nil && !sess.TwoFADone {
			writeError(w, r, http.StatusForbidden, errorBody{Error: "two-factor verification required"})
			return
		}

		next.ServeHTTP(w, r)
	})
}

// SessionFromCtx returns the session loaded by LoadSession, or nil.
func SessionFromCtx(ctx context.Context) *session.Data {
	data, _ := ctx.Value(SessionKey).(*session.Data)
	return data
}

// ActorFromCtx returns the authorization identity for the request.
// Requests without a session are anonymous.
func ActorFromCtx(ctx context.Context) authz.Actor {
	return SessionFromCtx(ctx).Actor()
}
