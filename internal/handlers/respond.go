// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the JSON API on top of the content,
// workflow, moderation and counter services.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/render"

	"mollik/internal/models"
)

// errorResponse is the body of every failed request.
type errorResponse struct {
	Error         string               `json:"error"`
	LoginRequired bool                 `json:"login_required,omitempty"`
	From          models.ContentStatus `json:"from,omitempty"`
	To            models.ContentStatus `json:"to,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	render.Status(r, status)
	render.JSON(w, r, v)
}

// writeError maps a service error to its HTTP status. Anything not
// recognised is logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var te *models.TransitionError
	switch {
	case errors.Is(err, models.ErrUnauthenticated):
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "login required", LoginRequired: true})
	case errors.Is(err, models.ErrUnauthorized):
		writeJSON(w, r, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, models.ErrNotFound):
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.As(err, &te):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: te.Error(), From: te.From, To: te.To})
	case errors.Is(err, models.ErrIllegalTransition):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: models.ErrIllegalTransition.Error()})
	case errors.Is(err, models.ErrConflict):
		writeJSON(w, r, http.StatusConflict, errorResponse{Error: "conflict"})
	case errors.Is(err, models.ErrInvalidInput):
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: invalidMessage(err)})
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// invalidMessage drops the sentinel suffix so clients see only the
// field problem, e.g. "create content: title is required".
func invalidMessage(err error) string {
	return strings.TrimSuffix(err.Error(), ": "+models.ErrInvalidInput.Error())
}
