// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package slug

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"mollik/internal/models"
)

const (
	// fallbackSlug is used when a title has no characters a slug can keep.
	fallbackSlug = "untitled"

	// DefaultMaxAttempts bounds the numeric suffix search.
	DefaultMaxAttempts = 100
)

// Lookup reports whether a slug is already used in a namespace by an item
// other than excludeID. uuid.Nil excludes nothing.
type Lookup interface {
	SlugTaken(ctx context.Context, ns models.Namespace, slug string, excludeID uuid.UUID) (bool, error)
}

// Allocator derives collision-free slugs within a namespace.
type Allocator struct {
	lookup      Lookup
	maxAttempts int
}

// NewAllocator creates an allocator backed by the given lookup.
func NewAllocator(lookup Lookup) *Allocator {
	return &Allocator{lookup: lookup, maxAttempts: DefaultMaxAttempts}
}

// Allocate turns title into a slug that is unique in ns, appending -2, -3, …
// on collision. excludeID lets an item keep its own slug when re-allocating.
func (a *Allocator) Allocate(ctx context.Context, title string, ns models.Namespace, excludeID uuid.UUID) (string, error) {
	base := Generate(title)
	if base == "" {
		base = fallbackSlug
	}

	for n := 1; n <= a.maxAttempts; n++ {
		candidate := base
		if n > 1 {
			suffix := "-" + strconv.Itoa(n)
			candidate = truncate(base, MaxLength-len(suffix)) + suffix
		}
		taken, err := a.lookup.SlugTaken(ctx, ns, candidate, excludeID)
		if err != nil {
			return "", fmt.Errorf("allocate slug: %w", err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("allocate slug %q in %s: %w", base, ns, models.ErrConflict)
}

// Claim validates an explicit, caller-supplied slug. The value is normalised
// with Generate; a collision with another item is a conflict rather than
// being resolved with a suffix.
func (a *Allocator) Claim(ctx context.Context, requested string, ns models.Namespace, excludeID uuid.UUID) (string, error) {
	s := Generate(requested)
	if s == "" {
		return "", fmt.Errorf("claim slug %q: %w", requested, models.ErrInvalidInput)
	}
	taken, err := a.lookup.SlugTaken(ctx, ns, s, excludeID)
	if err != nil {
		return "", fmt.Errorf("claim slug: %w", err)
	}
	if taken {
		return "", fmt.Errorf("claim slug %q in %s: %w", s, ns, models.ErrConflict)
	}
	return s, nil
}
