package slug

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"mollik/internal/models"
)

// fakeLookup is an in-memory slug index keyed by namespace and slug.
type fakeLookup struct {
	owners map[string]uuid.UUID
	err    error
}

func newFakeLookup() *fakeLookup {
	return &fakeLookup{owners: make(map[string]uuid.UUID)}
}

func (f *fakeLookup) add(ns models.Namespace, s string, id uuid.UUID) {
	f.owners[string(ns)+"/"+s] = id
}

func (f *fakeLookup) SlugTaken(_ context.Context, ns models.Namespace, s string, excludeID uuid.UUID) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	owner, ok := f.owners[string(ns)+"/"+s]
	return ok && owner != excludeID, nil
}

func TestAllocateUnique(t *testing.T) {
	ctx := context.Background()
	lookup := newFakeLookup()
	a := NewAllocator(lookup)

	first, err := a.Allocate(ctx, "Bidrohi", models.NamespaceLiterature, uuid.Nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if first != "bidrohi" {
		t.Errorf("first slug = %q, want %q", first, "bidrohi")
	}
	lookup.add(models.NamespaceLiterature, first, uuid.New())

	second, err := a.Allocate(ctx, "Bidrohi!", models.NamespaceLiterature, uuid.Nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if second != "bidrohi-2" {
		t.Errorf("second slug = %q, want %q", second, "bidrohi-2")
	}
	lookup.add(models.NamespaceLiterature, second, uuid.New())

	third, _ := a.Allocate(ctx, "bidrohi", models.NamespaceLiterature, uuid.Nil)
	if third != "bidrohi-3" {
		t.Errorf("third slug = %q, want %q", third, "bidrohi-3")
	}
}

// TestAllocateNamespaces verifies that the same title gets the same slug in
// different namespaces.
func TestAllocateNamespaces(t *testing.T) {
	ctx := context.Background()
	lookup := newFakeLookup()
	lookup.add(models.NamespaceLiterature, "amar-gaan", uuid.New())
	a := NewAllocator(lookup)

	got, err := a.Allocate(ctx, "Amar Gaan", models.NamespaceBlog, uuid.Nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "amar-gaan" {
		t.Errorf("blog slug = %q, want %q", got, "amar-gaan")
	}
}

// TestAllocateExcludesSelf verifies an item keeps its own slug when it is
// re-allocated from an unchanged title.
func TestAllocateExcludesSelf(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	lookup := newFakeLookup()
	lookup.add(models.NamespaceBlog, "notun-din", self)
	a := NewAllocator(lookup)

	got, err := a.Allocate(ctx, "Notun Din", models.NamespaceBlog, self)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != "notun-din" {
		t.Errorf("slug = %q, want %q", got, "notun-din")
	}
}

func TestAllocateFallback(t *testing.T) {
	a := NewAllocator(newFakeLookup())
	got, err := a.Allocate(context.Background(), "!!!", models.NamespaceBlog, uuid.Nil)
	if err != nil {
		t.Fatalf("Allocate: %v", err)
	}
	if got != fallbackSlug {
		t.Errorf("slug = %q, want %q", got, fallbackSlug)
	}
}

func TestAllocateExhausted(t *testing.T) {
	lookup := newFakeLookup()
	lookup.add(models.NamespaceBlog, "full", uuid.New())
	for n := 2; n <= 3; n++ {
		lookup.add(models.NamespaceBlog, fmt.Sprintf("full-%d", n), uuid.New())
	}
	a := NewAllocator(lookup)
	a.maxAttempts = 3

	_, err := a.Allocate(context.Background(), "Full", models.NamespaceBlog, uuid.Nil)
	if !errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
}

func TestAllocateLookupError(t *testing.T) {
	lookup := newFakeLookup()
	lookup.err = errors.New("db down")
	a := NewAllocator(lookup)

	_, err := a.Allocate(context.Background(), "title", models.NamespaceBlog, uuid.Nil)
	if err == nil || errors.Is(err, models.ErrConflict) {
		t.Fatalf("err = %v, want wrapped lookup error", err)
	}
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	self := uuid.New()
	other := uuid.New()
	lookup := newFakeLookup()
	lookup.add(models.NamespaceLiterature, "taken", other)
	lookup.add(models.NamespaceLiterature, "mine", self)
	a := NewAllocator(lookup)

	tests := []struct {
		name    string
		slug    string
		exclude uuid.UUID
		want    string
		wantErr error
	}{
		{name: "free slug normalised", slug: "My Custom Slug", exclude: self, want: "my-custom-slug"},
		{name: "own slug kept", slug: "mine", exclude: self, want: "mine"},
		{name: "collision is conflict", slug: "taken", exclude: self, wantErr: models.ErrConflict},
		{name: "collision without exclusion", slug: "mine", exclude: uuid.Nil, wantErr: models.ErrConflict},
		{name: "empty after normalising", slug: "???", exclude: self, wantErr: models.ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := a.Claim(ctx, tt.slug, models.NamespaceLiterature, tt.exclude)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Claim: %v", err)
			}
			if got != tt.want {
				t.Errorf("Claim = %q, want %q", got, tt.want)
			}
		})
	}
}
