// Package cache is a read-through response cache over redis. Query handlers
// key entries by a stable hash of their query signature; any write path calls
// Invalidate, which drops the whole namespace. Cache failures are never
// surfaced: a broken redis degrades to uncached reads.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "sh:q:"

// DefaultTTL bounds staleness between invalidations.
const DefaultTTL = 45 * time.Second

// Cache wraps a redis client. A nil *Cache is valid and disables caching.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *slog.Logger
}

// New builds a cache around an existing redis client.
func New(rdb *redis.Client, ttl time.Duration, log *slog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// Key derives the cache key for a query signature. Identical signatures
// always map to the same key regardless of part length or content.
func Key(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return keyPrefix + hex.EncodeToString(sum[:])[:16]
}

// Get returns the cached value for a query signature, or ok=false on miss
// or any redis failure.
func (c *Cache) Get(ctx context.Context, parts ...string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	val, err := c.rdb.Get(ctx, Key(parts...)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("cache get failed", "error", err)
		}
		return nil, false
	}
	return val, true
}

// Set stores a value under a query signature. Failures are logged at debug
// and swallowed.
func (c *Cache) Set(ctx context.Context, value []byte, parts ...string) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, Key(parts...), value, c.ttl).Err(); err != nil {
		c.log.Debug("cache set failed", "error", err)
	}
}

// Invalidate drops every cached query. Invalidation is coarse: any graph or
// vector write clears the namespace rather than tracking which queries a
// write could affect.
func (c *Cache) Invalidate(ctx context.Context) {
	if c == nil || c.rdb == nil {
		return
	}
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, keyPrefix+"*", 200).Result()
		if err != nil {
			c.log.Debug("cache invalidate scan failed", "error", err)
			return
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				c.log.Debug("cache invalidate del failed", "error", err)
				return
			}
		}
		cursor = next
		if cursor == 0 {
			return
		}
	}
}

// Healthy reports whether redis answers a ping.
func (c *Cache) Healthy(ctx context.Context) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	return c.rdb.Ping(ctx).Err()
}
