// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package content manages the editable side of content items: creation,
// edits, featuring, deletion and the public read paths. Status changes
// go through the workflow package.
package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"mollik/internal/authz"
	"mollik/internal/models"
	"mollik/internal/slug"
	"mollik/internal/workflow"
)

// Store is the persistence the content service needs.
type Store interface {
	slug.Lookup
	GetByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error)
	GetBySlug(ctx context.Context, ns models.Namespace, slug string) (*models.ContentItem, error)
	Create(ctx context.Context, c *models.ContentItem) (*models.ContentItem, error)
	Update(ctx context.Context, c *models.ContentItem) (*models.ContentItem, error)
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*models.ContentItem, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListPublished(ctx context.Context, kind models.ContentKind, opts models.ListOptions) ([]models.ContentItem, error)
	ListByStatus(ctx context.Context, kind models.ContentKind, status models.ContentStatus) ([]models.ContentItem, error)
}

// Draft holds the fields of a new item.
type Draft struct {
	Kind       models.ContentKind `json:"kind"`
	Title      string             `json:"title"`
	Slug       string             `json:"slug,omitempty"` // explicit slug, pinned when set
	Body       string             `json:"body"`
	Excerpt    *string            `json:"excerpt,omitempty"`
	CategoryID *uuid.UUID         `json:"category_id,omitempty"`
	BookID     *uuid.UUID         `json:"book_id,omitempty"`
}

// Patch holds the fields of an edit. Nil fields are left unchanged.
type Patch struct {
	Title      *string    `json:"title,omitempty"`
	Slug       *string    `json:"slug,omitempty"`
	Body       *string    `json:"body,omitempty"`
	Excerpt    *string    `json:"excerpt,omitempty"`
	CategoryID *uuid.UUID `json:"category_id,omitempty"`
	BookID     *uuid.UUID `json:"book_id,omitempty"`
}

// ChangeFunc is called after an item was written or deleted.
type ChangeFunc func(ctx context.Context, item *models.ContentItem)

// createAttempts bounds retries when a concurrent writer takes the
// allocated slug between the check and the insert.
const createAttempts = 3

// Service implements content operations.
type Service struct {
	store Store
	slugs *slug.Allocator
	authz authz.Authorizer

	mu       sync.RWMutex
	onChange []ChangeFunc
}

// NewService creates a content service.
func NewService(store Store, az authz.Authorizer) *Service {
	return &Service{store: store, slugs: slug.NewAllocator(store), authz: az}
}

// OnChange registers fn to run after every create, edit, feature or delete.
func (s *Service) OnChange(fn ChangeFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

func (s *Service) changed(ctx context.Context, item *models.ContentItem) {
	s.mu.RLock()
	fns := append([]ChangeFunc(nil), s.onChange...)
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, item)
	}
}

// Create stores a new DRAFT item authored by actor. Staff may create any
// kind; other signed-in users may only start moderated submissions.
func (s *Service) Create(ctx context.Context, actor authz.Actor, d Draft) (*models.ContentItem, error) {
	if !d.Kind.Valid() {
		return nil, fmt.Errorf("create content: kind %q: %w", d.Kind, models.ErrInvalidInput)
	}
	action := authz.ActionCreate
	if d.Kind.Moderated() && !actor.IsStaff() {
		action = authz.ActionSubmit
	}
	if err := authz.Check(s.authz, actor, action, nil); err != nil {
		return nil, fmt.Errorf("create content: %w", err)
	}
	if strings.TrimSpace(d.Slug) != "" && !actor.IsStaff() {
		return nil, fmt.Errorf("create content: explicit slug: %w", models.ErrUnauthorized)
	}
	if err := validateFields(d.Title, d.Slug, d.Body, d.Excerpt); err != nil {
		return nil, err
	}

	item := &models.ContentItem{
		Kind:       d.Kind,
		Title:      strings.TrimSpace(d.Title),
		Body:       d.Body,
		Excerpt:    d.Excerpt,
		Status:     models.StatusDraft,
		AuthorID:   actor.UserID,
		CategoryID: d.CategoryID,
		BookID:     d.BookID,
	}
	ns := d.Kind.Namespace()

	var lastErr error
	for range createAttempts {
		var err error
		if strings.TrimSpace(d.Slug) != "" {
			item.Slug, err = s.slugs.Claim(ctx, d.Slug, ns, uuid.Nil)
			item.SlugPinned = true
		} else {
			item.Slug, err = s.slugs.Allocate(ctx, item.Title, ns, uuid.Nil)
		}
		if err != nil {
			return nil, fmt.Errorf("create content: %w", err)
		}

		created, err := s.store.Create(ctx, item)
		if err == nil {
			slog.Info("content created", "content_id", created.ID, "kind", created.Kind, "slug", created.Slug)
			s.changed(ctx, created)
			return created, nil
		}
		if !errors.Is(err, models.ErrConflict) || item.SlugPinned {
			return nil, fmt.Errorf("create content: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("create content: %w", lastErr)
}

// Update applies p to item id. The slug follows the title until staff
// set it explicitly once; from then on it only changes when staff set it
// again.
func (s *Service) Update(ctx context.Context, actor authz.Actor, id uuid.UUID, p Patch) (*models.ContentItem, error) {
	item, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}
	if err := authz.Check(s.authz, actor, authz.ActionEdit, item); err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}

	if p.Slug != nil && !actor.IsStaff() {
		return nil, fmt.Errorf("update content: explicit slug: %w", models.ErrUnauthorized)
	}

	titleChanged := false
	if p.Title != nil {
		t := strings.TrimSpace(*p.Title)
		titleChanged = t != item.Title
		item.Title = t
	}
	if p.Body != nil {
		item.Body = *p.Body
	}
	if p.Excerpt != nil {
		item.Excerpt = p.Excerpt
	}
	if p.CategoryID != nil {
		item.CategoryID = p.CategoryID
	}
	if p.BookID != nil {
		item.BookID = p.BookID
	}
	var requested string
	if p.Slug != nil {
		requested = *p.Slug
	}
	if err := validateFields(item.Title, requested, item.Body, item.Excerpt); err != nil {
		return nil, err
	}

	ns := item.Namespace()
	switch {
	case strings.TrimSpace(requested) != "":
		if item.Slug, err = s.slugs.Claim(ctx, requested, ns, item.ID); err != nil {
			return nil, fmt.Errorf("update content: %w", err)
		}
		item.SlugPinned = true
	case titleChanged && !item.SlugPinned:
		if item.Slug, err = s.slugs.Allocate(ctx, item.Title, ns, item.ID); err != nil {
			return nil, fmt.Errorf("update content: %w", err)
		}
	}

	updated, err := s.store.Update(ctx, item)
	if err != nil {
		return nil, fmt.Errorf("update content: %w", err)
	}
	s.changed(ctx, updated)
	return updated, nil
}

// SetFeatured marks or unmarks an item as featured, whatever its status.
func (s *Service) SetFeatured(ctx context.Context, actor authz.Actor, id uuid.UUID, featured bool) (*models.ContentItem, error) {
	if err := authz.Check(s.authz, actor, authz.ActionFeature, nil); err != nil {
		return nil, fmt.Errorf("set featured: %w", err)
	}
	item, err := s.store.SetFeatured(ctx, id, featured)
	if err != nil {
		return nil, fmt.Errorf("set featured: %w", err)
	}
	s.changed(ctx, item)
	return item, nil
}

// Delete removes an item and, through the store, its likes.
func (s *Service) Delete(ctx context.Context, actor authz.Actor, id uuid.UUID) error {
	if err := authz.Check(s.authz, actor, authz.ActionDelete, nil); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	slog.Info("content deleted", "content_id", id, "kind", item.Kind, "actor_id", actor.UserID)
	s.changed(ctx, item)
	return nil
}

// Get returns item id if actor may see it.
func (s *Service) Get(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error) {
	item, err := s.visible(ctx, actor, id)
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	return item, nil
}

// GetPublic resolves a kind and slug from a public URL. Items the actor
// may not see are reported as not found.
func (s *Service) GetPublic(ctx context.Context, actor authz.Actor, kind models.ContentKind, slugValue string) (*models.ContentItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("get %s: %w", kind, models.ErrNotFound)
	}
	item, err := s.store.GetBySlug(ctx, kind.Namespace(), slugValue)
	if err != nil {
		return nil, fmt.Errorf("get %s/%s: %w", kind, slugValue, err)
	}
	if item.Kind != kind || !workflow.Visible(item, actor) {
		return nil, fmt.Errorf("get %s/%s: %w", kind, slugValue, models.ErrNotFound)
	}
	return item, nil
}

// ListPublished lists published items of kind, newest first.
func (s *Service) ListPublished(ctx context.Context, kind models.ContentKind, opts models.ListOptions) ([]models.ContentItem, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("list %s: %w", kind, models.ErrNotFound)
	}
	items, err := s.store.ListPublished(ctx, kind, opts.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return items, nil
}

// ListByStatus lists items of kind in a given status for the admin panel.
// An empty kind lists every kind.
func (s *Service) ListByStatus(ctx context.Context, actor authz.Actor, kind models.ContentKind, status models.ContentStatus) ([]models.ContentItem, error) {
	if err := authz.Check(s.authz, actor, authz.ActionModerate, nil); err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("list by status: kind %q: %w", kind, models.ErrInvalidInput)
	}
	if !status.Valid() {
		return nil, fmt.Errorf("list by status: status %q: %w", status, models.ErrInvalidInput)
	}
	items, err := s.store.ListByStatus(ctx, kind, status)
	if err != nil {
		return nil, fmt.Errorf("list by status: %w", err)
	}
	return items, nil
}

// visible loads item id and hides it from actors who may not see it.
func (s *Service) visible(ctx context.Context, actor authz.Actor, id uuid.UUID) (*models.ContentItem, error) {
	item, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !workflow.Visible(item, actor) {
		return nil, fmt.Errorf("content %s: %w", id, models.ErrNotFound)
	}
	return item, nil
}
