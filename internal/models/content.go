// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package models

import (
	"time"

	"github.com/google/uuid"
)

// ContentKind distinguishes the kinds of material kept in the archive.
// All kinds share the content_items table.
type ContentKind string

const (
	KindPoem  ContentKind = "poem"
	KindSong  ContentKind = "song"
	KindProse ContentKind = "prose"
	KindBlog  ContentKind = "blog"
	KindVideo ContentKind = "video"
	KindAudio ContentKind = "audio"
)

// Kinds lists every content kind in display order.
var Kinds = []ContentKind{KindPoem, KindSong, KindProse, KindBlog, KindVideo, KindAudio}

// Valid reports whether k is one of the known kinds.
func (k ContentKind) Valid() bool {
	switch k {
	case KindPoem, KindSong, KindProse, KindBlog, KindVideo, KindAudio:
		return true
	}
	return false
}

// Moderated reports whether items of this kind may be submitted by the
// public and therefore go through the approve/reject step. Everything
// else is authored by staff and published directly.
func (k ContentKind) Moderated() bool {
	return k == KindBlog
}

// Namespace returns the slug uniqueness scope for the kind.
func (k ContentKind) Namespace() Namespace {
	switch k {
	case KindBlog:
		return NamespaceBlog
	case KindPoem, KindSong, KindProse:
		return NamespaceLiterature
	case KindVideo:
		return NamespaceVideo
	case KindAudio:
		return NamespaceAudio
	}
	return ""
}

// Namespace is a slug uniqueness scope. Two items in different namespaces
// may share a slug.
type Namespace string

const (
	NamespaceBlog       Namespace = "blog"
	NamespaceLiterature Namespace = "literature"
	NamespaceVideo      Namespace = "video"
	NamespaceAudio      Namespace = "audio"
)

// ContentStatus is the publication state of a content item.
type ContentStatus string

const (
	StatusDraft     ContentStatus = "draft"
	StatusPending   ContentStatus = "pending"
	StatusPublished ContentStatus = "published"
	StatusRejected  ContentStatus = "rejected"
	StatusArchived  ContentStatus = "archived"
)

// Valid reports whether s is one of the known statuses.
func (s ContentStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusPublished, StatusRejected, StatusArchived:
		return true
	}
	return false
}

// ContentItem is a poem, song, prose piece, blog post, video or audio track.
type ContentItem struct {
	ID          uuid.UUID     `json:"id"`
	Kind        ContentKind   `json:"kind"`
	Title       string        `json:"title"`
	Slug        string        `json:"slug"`
	SlugPinned  bool          `json:"slug_pinned"`
	Body        string        `json:"body"`
	Excerpt     *string       `json:"excerpt,omitempty"`
	Status      ContentStatus `json:"status"`
	AuthorID    uuid.UUID     `json:"author_id"`
	CategoryID  *uuid.UUID    `json:"category_id,omitempty"`
	BookID      *uuid.UUID    `json:"book_id,omitempty"`
	Views       int64         `json:"views"`
	Featured    bool          `json:"featured"`
	PublishedAt *time.Time    `json:"published_at,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// IsPublished returns true if the item is publicly visible.
func (c *ContentItem) IsPublished() bool {
	return c.Status == StatusPublished
}

// Namespace returns the slug scope the item belongs to.
func (c *ContentItem) Namespace() Namespace {
	return c.Kind.Namespace()
}

// Like records that a user liked a content item. Presence of the row is the
// liked state; rows are inserted or deleted, never updated.
type Like struct {
	UserID    uuid.UUID `json:"user_id"`
	ContentID uuid.UUID `json:"content_id"`
	CreatedAt time.Time `json:"created_at"`
}

// StatusTransition is the audit record of one status change.
type StatusTransition struct {
	ID        int64         `json:"id"`
	ContentID uuid.UUID     `json:"content_id"`
	From      ContentStatus `json:"from"`
	To        ContentStatus `json:"to"`
	ActorID   uuid.UUID     `json:"actor_id"`
	Note      string        `json:"note,omitempty"`
	CreatedAt time.Time     `json:"created_at"`
}

// ListOptions controls paging of public listings.
type ListOptions struct {
	Limit         int
	Offset        int
	FeaturedFirst bool
}

// DefaultListLimit and MaxListLimit bound the page size of listings.
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Normalize clamps the options to sane paging values.
func (o ListOptions) Normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultListLimit
	}
	if o.Limit > MaxListLimit {
		o.Limit = MaxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}
