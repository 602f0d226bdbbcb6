// Package memory implements cache.Cache in process memory with lazy
// expiry. The clock is injectable so TTL behaviour is testable without
// sleeping.
package memory

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/simd-personal/Inno-Supps/cache"
)

// Compile-time interface check.
var _ cache.Cache = (*Cache)(nil)

type item struct {
	value     []byte
	expiresAt time.Time
}

func (it item) expired(now time.Time) bool {
	return !it.expiresAt.IsZero() && !now.Before(it.expiresAt)
}

// Cache is an in-memory cache.Cache.
type Cache struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]item
}

// Option configures the Cache.
type Option func(*Cache)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{now: time.Now, items: make(map[string]item)}
	for _, o := range opts {
		o(c)
	}
	return c
}

// lookup returns the live item at key, evicting it when expired. Callers
// hold c.mu.
func (c *Cache) lookup(key string) (item, bool) {
	it, ok := c.items[key]
	if !ok {
		return item{}, false
	}
	if it.expired(c.now()) {
		delete(c.items, key)
		return item{}, false
	}
	return it, true
}

// Get returns a copy of the value at key.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.lookup(key)
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), it.value...), true, nil
}

// Set stores a copy of value.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	it := item{value: append([]byte(nil), value...)}
	if ttl > 0 {
		it.expiresAt = c.now().Add(ttl)
	}
	c.items[key] = it
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	delete(c.items, key)
	return ok, nil
}

// Exists reports whether key is live.
func (c *Cache) Exists(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.lookup(key)
	return ok, nil
}

// TTL returns the remaining lifetime of key.
func (c *Cache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.lookup(key)
	switch {
	case !ok:
		return cache.KeyMissing, nil
	case it.expiresAt.IsZero():
		return cache.NoExpiry, nil
	default:
		return it.expiresAt.Sub(c.now()), nil
	}
}

// Incr adds by to the integer at key, keeping its expiry.
func (c *Cache) Incr(_ context.Context, key string, by int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, _ := c.lookup(key)
	var cur int64
	if len(it.value) > 0 {
		n, err := strconv.ParseInt(string(it.value), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("cache/memory: incr %s: value is not an integer", key)
		}
		cur = n
	}
	cur += by
	it.value = []byte(strconv.FormatInt(cur, 10))
	c.items[key] = it
	return cur, nil
}

// Expire sets a new ttl on key. A non-positive ttl deletes it, as Redis
// does.
func (c *Cache) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	it, ok := c.lookup(key)
	if !ok {
		return false, nil
	}
	if ttl <= 0 {
		delete(c.items, key)
		return true, nil
	}
	it.expiresAt = c.now().Add(ttl)
	c.items[key] = it
	return true, nil
}
