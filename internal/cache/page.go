// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// page.go caches rendered public API responses in Valkey so repeated
// list and detail requests skip the database. Entries are grouped by
// content kind and dropped whenever an item of that kind changes.
//
// Every key carries the kind's generation, read before the database
// lookup. Invalidation bumps the generation first, so a response that
// was fetched before an unpublish lands under a key nobody reads.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/redis/go-redis/v9"

	"mollik/internal/models"
)

const (
	// pageKeyPrefix is the Valkey key prefix for cached responses.
	pageKeyPrefix = "page:"

	// generationPrefix holds the per-kind generation counters. It is
	// outside pageKeyPrefix so a full flush never resets them.
	generationPrefix = "pagegen:"

	// DefaultPageTTL is how long a rendered response stays cached.
	DefaultPageTTL = 5 * time.Minute
)

// PageCache manages response caching in Valkey.
type PageCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPageCache creates a new page cache backed by the given Valkey client.
func NewPageCache(client *redis.Client, ttl time.Duration) *PageCache {
	if ttl == 0 {
		ttl = DefaultPageTTL
	}
	return &PageCache{client: client, ttl: ttl}
}

// Get retrieves a cached response. Errors count as a miss.
func (pc *PageCache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := pc.client.Get(ctx, pageKeyPrefix+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		slog.Warn("page cache get error", "key", key, "error", err)
		return nil, false
	}
	slog.Debug("page cache hit", "key", key)
	return val, true
}

// Set stores a response with the configured TTL.
func (pc *PageCache) Set(ctx context.Context, key string, body []byte) {
	if err := pc.client.Set(ctx, pageKeyPrefix+key, body, pc.ttl).Err(); err != nil {
		slog.Warn("page cache set error", "key", key, "error", err)
	}
}

// Generation returns the current generation of kind. ok is false when
// Valkey cannot be read, in which case the caller must not cache.
func (pc *PageCache) Generation(ctx context.Context, kind models.ContentKind) (gen int64, ok bool) {
	gen, err := pc.client.Get(ctx, generationPrefix+string(kind)).Int64()
	if err == redis.Nil {
		return 0, true
	}
	if err != nil {
		slog.Warn("page cache generation error", "kind", kind, "error", err)
		return 0, false
	}
	return gen, true
}

// InvalidateKind retires every cached list and detail response of kind
// by bumping its generation, then deletes the old entries.
func (pc *PageCache) InvalidateKind(ctx context.Context, kind models.ContentKind) {
	if err := pc.client.Incr(ctx, generationPrefix+string(kind)).Err(); err != nil {
		slog.Warn("page cache generation bump error", "kind", kind, "error", err)
	}
	n := pc.deleteMatching(ctx, pageKeyPrefix+string(kind)+":*")
	slog.Debug("page cache invalidated", "kind", kind, "deleted", n)
}

// ContentChanged drops the cached responses of the item's kind after an
// edit, feature toggle or delete.
func (pc *PageCache) ContentChanged(ctx context.Context, item *models.ContentItem) {
	pc.InvalidateKind(ctx, item.Kind)
}

// StatusChanged drops the cached responses of the item's kind after a
// workflow transition. It never fails the transition.
func (pc *PageCache) StatusChanged(ctx context.Context, item *models.ContentItem, _ models.StatusTransition) error {
	pc.InvalidateKind(ctx, item.Kind)
	return nil
}

// InvalidateAll retires every kind and removes all cached responses.
func (pc *PageCache) InvalidateAll(ctx context.Context) {
	for _, kind := range models.Kinds {
		if err := pc.client.Incr(ctx, generationPrefix+string(kind)).Err(); err != nil {
			slog.Warn("page cache generation bump error", "kind", kind, "error", err)
		}
	}
	if n := pc.deleteMatching(ctx, pageKeyPrefix+"*"); n > 0 {
		slog.Info("page cache fully cleared", "deleted", n)
	}
}

// deleteMatching removes keys matching pattern using SCAN.
func (pc *PageCache) deleteMatching(ctx context.Context, pattern string) int {
	var cursor uint64
	var deleted int
	for {
		keys, nextCursor, err := pc.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			slog.Warn("page cache scan error", "pattern", pattern, "error", err)
			return deleted
		}
		if len(keys) > 0 {
			if err := pc.client.Del(ctx, keys...).Err(); err != nil {
				slog.Warn("page cache bulk delete error", "error", err)
			}
			deleted += len(keys)
		}
		cursor = nextCursor
		if cursor == 0 {
			return deleted
		}
	}
}

// ListKey returns the cache key for a public listing page at generation gen.
func ListKey(kind models.ContentKind, gen int64, opts models.ListOptions) string {
	return fmt.Sprintf("%s:%d:list:%d:%d:%t", kind, gen, opts.Limit, opts.Offset, opts.FeaturedFirst)
}

// ItemKey returns the cache key for a public detail response at
// generation gen. The slug is escaped so Bengali slugs and glob
// characters are safe in key patterns.
func ItemKey(kind models.ContentKind, gen int64, slug string) string {
	return fmt.Sprintf("%s:%d:item:%s", kind, gen, url.PathEscape(slug))
}
