// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mollik/internal/models"
)

// contentColumns lists all columns for content_items SELECTs.
const contentColumns = `id, kind, title, slug, slug_pinned, body, excerpt, status,
	author_id, category_id, book_id, views, featured,
	published_at, created_at, updated_at`

// ContentStore handles content item persistence, including status
// changes and view counts.
type ContentStore struct {
	db *sql.DB
}

// NewContentStore creates a new ContentStore with the given database connection.
func NewContentStore(db *sql.DB) *ContentStore {
	return &ContentStore{db: db}
}

// scanContent scans a single content_items row.
func scanContent(scanner interface{ Scan(...any) error }) (*models.ContentItem, error) {
	var c models.ContentItem
	err := scanner.Scan(
		&c.ID, &c.Kind, &c.Title, &c.Slug, &c.SlugPinned, &c.Body, &c.Excerpt, &c.Status,
		&c.AuthorID, &c.CategoryID, &c.BookID, &c.Views, &c.Featured,
		&c.PublishedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanContents(rows *sql.Rows) ([]models.ContentItem, error) {
	defer rows.Close()
	var items []models.ContentItem
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan content: %w", err)
		}
		items = append(items, *c)
	}
	return items, rows.Err()
}

// GetByID retrieves a content item by its UUID.
func (s *ContentStore) GetByID(ctx context.Context, id uuid.UUID) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id = $1`, id)
	c, err := scanContent(row)
	if err != nil {
		return nil, mapErr("get content by id", err)
	}
	return c, nil
}

// GetBySlug retrieves the item holding slug in ns, whatever its status.
// Visibility is decided by the caller.
func (s *ContentStore) GetBySlug(ctx context.Context, ns models.Namespace, slug string) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE namespace = $1 AND slug = $2
	`, ns, slug)
	c, err := scanContent(row)
	if err != nil {
		return nil, mapErr("get content by slug", err)
	}
	return c, nil
}

// SlugTaken reports whether slug is used in ns by an item other than excludeID.
func (s *ContentStore) SlugTaken(ctx context.Context, ns models.Namespace, slug string, excludeID uuid.UUID) (bool, error) {
	var taken bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM content_items
			WHERE namespace = $1 AND slug = $2 AND id <> $3
		)
	`, ns, slug, excludeID).Scan(&taken)
	if err != nil {
		return false, fmt.Errorf("check slug: %w", err)
	}
	return taken, nil
}

// Create inserts a new content item and returns it with the generated ID.
// A slug collision in the namespace is reported as models.ErrConflict.
func (s *ContentStore) Create(ctx context.Context, c *models.ContentItem) (*models.ContentItem, error) {
	var publishedAt *time.Time
	if c.Status == models.StatusPublished {
		now := time.Now()
		publishedAt = &now
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO content_items (kind, namespace, title, slug, slug_pinned, body, excerpt,
		                           status, author_id, category_id, book_id, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING `+contentColumns,
		c.Kind, c.Namespace(), c.Title, c.Slug, c.SlugPinned, c.Body, c.Excerpt,
		c.Status, c.AuthorID, c.CategoryID, c.BookID, publishedAt,
	)
	created, err := scanContent(row)
	if err != nil {
		return nil, mapErr("create content", err)
	}
	return created, nil
}

// Update writes the editable fields of c. Status, views, author, featured
// and published_at have their own paths and are not touched.
func (s *ContentStore) Update(ctx context.Context, c *models.ContentItem) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE content_items SET
			title = $1, slug = $2, slug_pinned = $3, body = $4, excerpt = $5,
			category_id = $6, book_id = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING `+contentColumns,
		c.Title, c.Slug, c.SlugPinned, c.Body, c.Excerpt, c.CategoryID, c.BookID, c.ID,
	)
	updated, err := scanContent(row)
	if err != nil {
		return nil, mapErr("update content", err)
	}
	return updated, nil
}

// SetFeatured sets the featured flag.
func (s *ContentStore) SetFeatured(ctx context.Context, id uuid.UUID, featured bool) (*models.ContentItem, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE content_items SET featured = $1, updated_at = NOW()
		WHERE id = $2
		RETURNING `+contentColumns, featured, id)
	c, err := scanContent(row)
	if err != nil {
		return nil, mapErr("set featured", err)
	}
	return c, nil
}

// Delete removes a content item. Likes and transitions cascade.
func (s *ContentStore) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete content: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("delete content %s: %w", id, models.ErrNotFound)
	}
	return nil
}

// ListPublished returns published items of kind, newest first, optionally
// with featured items ahead of the rest.
func (s *ContentStore) ListPublished(ctx context.Context, kind models.ContentKind, opts models.ListOptions) ([]models.ContentItem, error) {
	opts = opts.Normalize()
	order := "published_at DESC, id"
	if opts.FeaturedFirst {
		order = "featured DESC, " + order
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE kind = $1 AND status = 'published'
		ORDER BY `+order+`
		LIMIT $2 OFFSET $3
	`, kind, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("list published content: %w", err)
	}
	return scanContents(rows)
}

// ListByStatus returns items in status, oldest first. An empty kind
// matches every kind.
func (s *ContentStore) ListByStatus(ctx context.Context, kind models.ContentKind, status models.ContentStatus) ([]models.ContentItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE ($1::text = '' OR kind = $1) AND status = $2
		ORDER BY created_at, id
	`, string(kind), status)
	if err != nil {
		return nil, fmt.Errorf("list content by status: %w", err)
	}
	return scanContents(rows)
}

// UpdateStatus moves an item from tr.From to tr.To and records tr in
// status_transitions in the same transaction. published_at is filled on
// the first publish and never changed afterwards. If the stored status is
// no longer tr.From the update matches no row and
// models.ErrIllegalTransition is returned.
func (s *ContentStore) UpdateStatus(ctx context.Context, tr models.StatusTransition) (*models.ContentItem, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("update status begin: %w", err)
	}
	defer tx.Rollback()

	// publishAt stays NULL unless the item is being published, so the
	// COALESCE keeps the existing value on every other move.
	var publishAt *time.Time
	if tr.To == models.StatusPublished {
		publishAt = &tr.CreatedAt
	}
	row := tx.QueryRowContext(ctx, `
		UPDATE content_items SET
			status = $3,
			published_at = COALESCE(published_at, $5),
			updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+contentColumns,
		tr.ContentID, tr.From, tr.To, tr.CreatedAt, publishAt,
	)
	item, err := scanContent(row)
	if err == sql.ErrNoRows {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM content_items WHERE id = $1)`, tr.ContentID).Scan(&exists); err != nil {
			return nil, fmt.Errorf("update status: %w", err)
		}
		if !exists {
			return nil, fmt.Errorf("update status %s: %w", tr.ContentID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("update status %s from %s: %w", tr.ContentID, tr.From, models.ErrIllegalTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_transitions (content_id, from_status, to_status, actor_id, note, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, tr.ContentID, tr.From, tr.To, tr.ActorID, tr.Note, tr.CreatedAt)
	if err != nil {
		return nil, mapErr("record transition", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("update status commit: %w", err)
	}
	return item, nil
}

// IncrementViews adds one view in a single statement and returns the new
// total.
func (s *ContentStore) IncrementViews(ctx context.Context, id uuid.UUID) (int64, error) {
	var views int64
	err := s.db.QueryRowContext(ctx, `
		UPDATE content_items SET views = views + 1 WHERE id = $1 RETURNING views
	`, id).Scan(&views)
	if err != nil {
		return 0, mapErr("increment views", err)
	}
	return views, nil
}

// CountByStatus returns item counts per status for the admin dashboard.
func (s *ContentStore) CountByStatus(ctx context.Context) (map[models.ContentStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM content_items GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count content: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ContentStatus]int)
	for rows.Next() {
		var status models.ContentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan content count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
