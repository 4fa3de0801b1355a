package cache

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"mollik/internal/models"
)

const (
	visitorPrefix   = "visitors:"
	visitorTotalKey = visitorPrefix + "total"
)

// VisitorCounter counts distinct session tokens in Valkey. A token is
// remembered for the counting window with SET NX EX; the all-time, day
// and month counters are bumped together in one MULTI/EXEC.
type VisitorCounter struct {
	client *redis.Client
	window time.Duration
}

// NewVisitorCounter creates a counter that credits a token once per window.
func NewVisitorCounter(client *redis.Client, window time.Duration) *VisitorCounter {
	return &VisitorCounter{client: client, window: window}
}

func dayKey(at time.Time) string   { return visitorPrefix + "day:" + at.UTC().Format(time.DateOnly) }
func monthKey(at time.Time) string { return visitorPrefix + "month:" + at.UTC().Format("2006-01") }
func seenKey(token string) string  { return visitorPrefix + "seen:" + token }

// Record counts token unless it was already seen in the current window.
// It reports the totals after the call and whether the token was counted.
func (v *VisitorCounter) Record(ctx context.Context, token string, at time.Time) (models.VisitorStats, bool, error) {
	fresh, err := v.client.SetNX(ctx, seenKey(token), 1, v.window).Result()
	if err != nil {
		return models.VisitorStats{}, false, fmt.Errorf("mark visitor: %w", err)
	}
	if !fresh {
		stats, err := v.Totals(ctx, at)
		return stats, false, err
	}

	var total, day, month *redis.IntCmd
	_, err = v.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.Incr(ctx, visitorTotalKey)
		day = pipe.Incr(ctx, dayKey(at))
		month = pipe.Incr(ctx, monthKey(at))
		return nil
	})
	if err != nil {
		return models.VisitorStats{}, false, fmt.Errorf("count visitor: %w", err)
	}
	return models.VisitorStats{Total: total.Val(), Today: day.Val(), Month: month.Val()}, true, nil
}

// Totals reads the counters for the period containing at.
func (v *VisitorCounter) Totals(ctx context.Context, at time.Time) (models.VisitorStats, error) {
	vals, err := v.client.MGet(ctx, visitorTotalKey, dayKey(at), monthKey(at)).Result()
	if err != nil {
		return models.VisitorStats{}, fmt.Errorf("read visitors: %w", err)
	}
	var out [3]int64
	for i, raw := range vals {
		s, ok := raw.(string)
		if !ok {
			continue // missing key
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return models.VisitorStats{}, fmt.Errorf("parse visitor counter: %w", err)
		}
		out[i] = n
	}
	return models.VisitorStats{Total: out[0], Today: out[1], Month: out[2]}, nil
}
