package memory

import (
	"context"
	"sync"
	"time"

	"mollik/internal/models"
)

// Visitors is an in-process visitor counter with the same day and month
// buckets as the Valkey implementation.
type Visitors struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	total  int64
	days   map[string]int64
	months map[string]int64
}

// NewVisitors creates a counter that credits a token once per window.
func NewVisitors(window time.Duration) *Visitors {
	return &Visitors{
		window: window,
		seen:   make(map[string]time.Time),
		days:   make(map[string]int64),
		months: make(map[string]int64),
	}
}

// Record counts token unless it was seen within the window.
func (v *Visitors) Record(_ context.Context, token string, at time.Time) (models.VisitorStats, bool, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	at = at.UTC()
	counted := false
	if exp, ok := v.seen[token]; !ok || !at.Before(exp) {
		v.seen[token] = at.Add(v.window)
		v.total++
		v.days[at.Format(time.DateOnly)]++
		v.months[at.Format("2006-01")]++
		counted = true
	}
	return v.stats(at), counted, nil
}

// Totals reads the counters without counting.
func (v *Visitors) Totals(_ context.Context, at time.Time) (models.VisitorStats, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.stats(at.UTC()), nil
}

func (v *Visitors) stats(at time.Time) models.VisitorStats {
	return models.VisitorStats{
		Total: v.total,
		Today: v.days[at.Format(time.DateOnly)],
		Month: v.months[at.Format("2006-01")],
	}
}

// Keys is an in-process set of expiring idempotency keys.
type Keys struct {
	mu   sync.Mutex
	keys map[string]time.Time
	now  func() time.Time
}

// NewKeys creates an empty key set.
func NewKeys() *Keys {
	return &Keys{keys: make(map[string]time.Time), now: time.Now}
}

// Reserve stores key for ttl and reports whether it was new.
func (k *Keys) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	now := k.now()
	if exp, ok := k.keys[key]; ok && now.Before(exp) {
		return false, nil
	}
	k.keys[key] = now.Add(ttl)
	return true, nil
}
