package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ResultCache implements ports.ResultCache using Redis. It caches apply
// results keyed by transaction reference so replayed webhooks can be
// answered without touching the ledger tables. Best-effort only: the
// database unique index remains the authority on duplicates.
type ResultCache struct {
	client *goredis.Client
	prefix string
}

// NewResultCache creates a new Redis-backed apply-result cache.
func NewResultCache(client *goredis.Client) *ResultCache {
	return &ResultCache{
		client: client,
		prefix: "ledger:result:",
	}
}

// Get retrieves a cached apply result by reference.
// Returns nil, nil if the reference has not been cached.
func (c *ResultCache) Get(ctx context.Context, reference string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+reference).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis result get: %w", err)
	}
	return val, nil
}

// Set stores an apply result with TTL.
func (c *ResultCache) Set(ctx context.Context, reference string, value []byte, ttl time.Duration) error {
	err := c.client.Set(ctx, c.prefix+reference, value, ttl).Err()
	if err != nil {
		return fmt.Errorf("redis result set: %w", err)
	}
	return nil
}
