// Package memory is an in-process implementation of the publication
// store used by unit tests and local tooling. Items are copied on the way
// in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"mollik/internal/models"
)

type likeKey struct {
	user    uuid.UUID
	content uuid.UUID
}

// Store holds content items, likes and the transition audit log.
type Store struct {
	mu          sync.RWMutex
	items       map[uuid.UUID]*models.ContentItem
	likes       map[likeKey]time.Time
	transitions []models.StatusTransition
	nextID      int64
	now         func() time.Time
}

// New creates an empty store.
func New() *Store {
	return &Store{
		items: make(map[uuid.UUID]*models.ContentItem),
		likes: make(map[likeKey]time.Time),
		now:   time.Now,
	}
}

func clone(c *models.ContentItem) *models.ContentItem {
	cp := *c
	return &cp
}

// slugOwner returns the id of the item holding slug in ns. Caller holds mu.
func (s *Store) slugOwner(ns models.Namespace, slug string) (uuid.UUID, bool) {
	for _, it := range s.items {
		if it.Namespace() == ns && it.Slug == slug {
			return it.ID, true
		}
	}
	return uuid.Nil, false
}

// SlugTaken reports whether slug is used in ns by an item other than excludeID.
func (s *Store) SlugTaken(_ context.Context, ns models.Namespace, slug string, excludeID uuid.UUID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owner, ok := s.slugOwner(ns, slug)
	return ok && owner != excludeID, nil
}

// GetByID returns a copy of the item.
func (s *Store) GetByID(_ context.Context, id uuid.UUID) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("get content %s: %w", id, models.ErrNotFound)
	}
	return clone(it), nil
}

// GetBySlug returns the item holding slug in ns, whatever its status.
func (s *Store) GetBySlug(_ context.Context, ns models.Namespace, slug string) (*models.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.slugOwner(ns, slug)
	if !ok {
		return nil, fmt.Errorf("get content %s/%s: %w", ns, slug, models.ErrNotFound)
	}
	return clone(s.items[id]), nil
}

// Create inserts a new item. The slug must be free in the item's namespace.
func (s *Store) Create(_ context.Context, c *models.ContentItem) (*models.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.slugOwner(c.Namespace(), c.Slug); taken {
		return nil, fmt.Errorf("create content: slug %q: %w", c.Slug, models.ErrConflict)
	}
	it := clone(c)
	if it.ID == uuid.Nil {
		it.ID = uuid.New()
	}
	now := s.now().UTC()
	it.CreatedAt, it.UpdatedAt = now, now
	if it.Status == models.StatusPublished && it.PublishedAt == nil {
		it.PublishedAt = &now
	}
	s.items[it.ID] = it
	return clone(it), nil
}

// Update writes the editable fields of c. Status, views, author,
// featured and published_at are left alone.
func (s *Store) Update(_ context.Context, c *models.ContentItem) (*models.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[c.ID]
	if !ok {
		return nil, fmt.Errorf("update content %s: %w", c.ID, models.ErrNotFound)
	}
	if owner, taken := s.slugOwner(it.Namespace(), c.Slug); taken && owner != c.ID {
		return nil, fmt.Errorf("update content: slug %q: %w", c.Slug, models.ErrConflict)
	}
	it.Title = c.Title
	it.Slug = c.Slug
	it.SlugPinned = c.SlugPinned
	it.Body = c.Body
	it.Excerpt = c.Excerpt
	it.CategoryID = c.CategoryID
	it.BookID = c.BookID
	it.UpdatedAt = s.now().UTC()
	return clone(it), nil
}

// SetFeatured toggles the featured flag.
func (s *Store) SetFeatured(_ context.Context, id uuid.UUID, featured bool) (*models.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("set featured %s: %w", id, models.ErrNotFound)
	}
	it.Featured = featured
	it.UpdatedAt = s.now().UTC()
	return clone(it), nil
}

// Delete removes an item together with its likes and history.
func (s *Store) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("delete content %s: %w", id, models.ErrNotFound)
	}
	delete(s.items, id)
	for k := range s.likes {
		if k.content == id {
			delete(s.likes, k)
		}
	}
	kept := s.transitions[:0]
	for _, tr := range s.transitions {
		if tr.ContentID != id {
			kept = append(kept, tr)
		}
	}
	s.transitions = kept
	return nil
}

// ListPublished returns published items of kind, newest first.
func (s *Store) ListPublished(_ context.Context, kind models.ContentKind, opts models.ListOptions) ([]models.ContentItem, error) {
	opts = opts.Normalize()
	s.mu.RLock()
	var out []models.ContentItem
	for _, it := range s.items {
		if it.Kind == kind && it.IsPublished() {
			out = append(out, *it)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if opts.FeaturedFirst && a.Featured != b.Featured {
			return a.Featured
		}
		if !a.PublishedAt.Equal(*b.PublishedAt) {
			return a.PublishedAt.After(*b.PublishedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	return page(out, opts), nil
}

// ListByStatus returns items of kind in status, oldest first. An empty
// kind matches every kind.
func (s *Store) ListByStatus(_ context.Context, kind models.ContentKind, status models.ContentStatus) ([]models.ContentItem, error) {
	s.mu.RLock()
	var out []models.ContentItem
	for _, it := range s.items {
		if (kind == "" || it.Kind == kind) && it.Status == status {
			out = append(out, *it)
		}
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// CountByStatus returns item counts per status.
func (s *Store) CountByStatus(_ context.Context) (map[models.ContentStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.ContentStatus]int)
	for _, it := range s.items {
		counts[it.Status]++
	}
	return counts, nil
}

func page(items []models.ContentItem, opts models.ListOptions) []models.ContentItem {
	if opts.Offset >= len(items) {
		return nil
	}
	items = items[opts.Offset:]
	if len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

// UpdateStatus compares and sets the status and appends the audit record.
func (s *Store) UpdateStatus(_ context.Context, tr models.StatusTransition) (*models.ContentItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	it, ok := s.items[tr.ContentID]
	if !ok {
		return nil, fmt.Errorf("update status %s: %w", tr.ContentID, models.ErrNotFound)
	}
	if it.Status != tr.From {
		return nil, fmt.Errorf("update status %s: status is %s, not %s: %w",
			tr.ContentID, it.Status, tr.From, models.ErrIllegalTransition)
	}
	it.Status = tr.To
	it.UpdatedAt = tr.CreatedAt
	if tr.To == models.StatusPublished && it.PublishedAt == nil {
		at := tr.CreatedAt
		it.PublishedAt = &at
	}
	s.nextID++
	tr.ID = s.nextID
	s.transitions = append(s.transitions, tr)
	return clone(it), nil
}

// ListTransitions returns the audit trail of an item, newest first.
func (s *Store) ListTransitions(_ context.Context, contentID uuid.UUID) ([]models.StatusTransition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.StatusTransition
	for i := len(s.transitions) - 1; i >= 0; i-- {
		if s.transitions[i].ContentID == contentID {
			out = append(out, s.transitions[i])
		}
	}
	return out, nil
}

// IncrementViews adds one view and returns the new total.
func (s *Store) IncrementViews(_ context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return 0, fmt.Errorf("increment views %s: %w", id, models.ErrNotFound)
	}
	it.Views++
	return it.Views, nil
}

// ToggleLike deletes the like if present, otherwise inserts it.
func (s *Store) ToggleLike(_ context.Context, userID, contentID uuid.UUID) (models.LikeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[contentID]; !ok {
		return models.LikeResult{}, fmt.Errorf("toggle like %s: %w", contentID, models.ErrNotFound)
	}
	k := likeKey{user: userID, content: contentID}
	_, liked := s.likes[k]
	if liked {
		delete(s.likes, k)
	} else {
		s.likes[k] = s.now().UTC()
	}
	return models.LikeResult{Liked: !liked, LikeCount: s.countLikes(contentID)}, nil
}

// LikeState reports whether userID likes the item and its like count.
// uuid.Nil reads only the count.
func (s *Store) LikeState(_ context.Context, userID, contentID uuid.UUID) (models.LikeResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.items[contentID]; !ok {
		return models.LikeResult{}, fmt.Errorf("like state %s: %w", contentID, models.ErrNotFound)
	}
	_, liked := s.likes[likeKey{user: userID, content: contentID}]
	return models.LikeResult{Liked: liked, LikeCount: s.countLikes(contentID)}, nil
}

func (s *Store) countLikes(contentID uuid.UUID) int64 {
	var n int64
	for k := range s.likes {
		if k.content == contentID {
			n++
		}
	}
	return n
}
