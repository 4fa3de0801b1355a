package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"mollik/internal/models"
)

// maxBodyBytes caps every JSON request body.
const maxBodyBytes = 1 << 20

// decodeJSON reads the request body into v. Malformed or oversized
// bodies are invalid input.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := render.DecodeJSON(r.Body, v); err != nil {
		return fmt.Errorf("decode body: %v: %w", err, models.ErrInvalidInput)
	}
	return nil
}

// idParam parses the {id} URL parameter. A malformed ID cannot name any
// item, so it is reported as not found.
func idParam(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, fmt.Errorf("parse id: %w", models.ErrNotFound)
	}
	return id, nil
}

// kindParam parses the {kind} URL parameter. Unknown kinds are not found.
func kindParam(r *http.Request) (models.ContentKind, error) {
	kind := models.ContentKind(chi.URLParam(r, "kind"))
	if !kind.Valid() {
		return "", fmt.Errorf("kind %q: %w", kind, models.ErrNotFound)
	}
	return kind, nil
}

// listOptions reads limit, offset and featured from the query string.
func listOptions(r *http.Request) (models.ListOptions, error) {
	q := r.URL.Query()
	var opts models.ListOptions
	for name, dst := range map[string]*int{"limit": &opts.Limit, "offset": &opts.Offset} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return opts, fmt.Errorf("%s must be a non-negative integer: %w", name, models.ErrInvalidInput)
		}
		*dst = n
	}
	if raw := q.Get("featured"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("featured must be a boolean: %w", models.ErrInvalidInput)
		}
		opts.FeaturedFirst = b
	}
	return opts.Normalize(), nil
}
