// Package redis implements cache.Cache on Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/simd-personal/Inno-Supps/cache"
)

// Compile-time interface check.
var _ cache.Cache = (*Cache)(nil)

// Cache is a Redis-backed cache.Cache. Keys are written verbatim so they
// line up with what operators see in redis-cli.
type Cache struct {
	client goredis.Cmdable
}

// New wraps client. The caller owns the client lifecycle.
func New(client goredis.Cmdable) *Cache {
	return &Cache{client: client}
}

// Get returns the value at key.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache/redis: get %s: %w", key, err)
	}
	return v, true, nil
}

// Set stores value with an optional ttl.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache/redis: set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache/redis: delete %s: %w", key, err)
	}
	return n > 0, nil
}

// Exists reports whether key is present.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("cache/redis: exists %s: %w", key, err)
	}
	return n > 0, nil
}

// TTL returns the remaining lifetime of key.
func (c *Cache) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := c.client.TTL(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("cache/redis: ttl %s: %w", key, err)
	}
	// go-redis reports the raw -1/-2 replies as nanosecond durations.
	switch d {
	case -1:
		return cache.NoExpiry, nil
	case -2:
		return cache.KeyMissing, nil
	}
	return d, nil
}

// Incr adds by to the integer at key.
func (c *Cache) Incr(ctx context.Context, key string, by int64) (int64, error) {
	n, err := c.client.IncrBy(ctx, key, by).Result()
	if err != nil {
		return 0, fmt.Errorf("cache/redis: incr %s: %w", key, err)
	}
	return n, nil
}

// Expire sets a new ttl on key.
func (c *Cache) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := c.client.Expire(ctx, key, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("cache/redis: expire %s: %w", key, err)
	}
	return ok, nil
}
