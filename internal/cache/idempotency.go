package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idem:"

// IdempotencyKeys reserves short-lived request keys in Valkey.
type IdempotencyKeys struct {
	client *redis.Client
	scope  string
}

// NewIdempotencyKeys creates a key set. scope separates operations that
// share a client, for example "like".
func NewIdempotencyKeys(client *redis.Client, scope string) *IdempotencyKeys {
	return &IdempotencyKeys{client: client, scope: scope}
}

// Reserve stores key for ttl and reports whether this call was the first.
func (k *IdempotencyKeys) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := k.client.SetNX(ctx, idempotencyPrefix+k.scope+":"+key, 1, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve idempotency key: %w", err)
	}
	return ok, nil
}
