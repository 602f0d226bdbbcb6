// Package ratelimit gates side effects with a lazily refilled token bucket
// stored in the KV cache, plus a per-recipient email cooldown layered on
// top of a workspace-wide email bucket.
//
// Bucket updates are a read-modify-write against the cache without a
// transaction. Concurrent callers on one key can race and over-consume by
// a few tokens; that is acceptable for pacing email and API traffic.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/simd-personal/Inno-Supps/cache"
)

// bucket is the cached state. LastRefill is unix seconds.
type bucket struct {
	Tokens     int64 `json:"tokens"`
	LastRefill int64 `json:"last_refill"`
}

func bucketKey(key string) string { return "rate_limit:" + key }

// Limiter is a token-bucket limiter over a cache.Cache.
type Limiter struct {
	cache cache.Cache
	now   func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// New creates a Limiter storing buckets in c.
func New(c cache.Cache, opts ...Option) *Limiter {
	l := &Limiter{cache: c, now: time.Now}
	for _, o := range opts {
		o(l)
	}
	return l
}

func windowSeconds(window time.Duration) int64 {
	s := int64(window / time.Second)
	if s < 1 {
		return 1
	}
	return s
}

// refill adds floor(elapsed*limit/window) tokens, capped at limit. The
// refill timestamp only moves when at least one token was added, so short
// gaps accumulate instead of being lost.
func (b *bucket) refill(now, limit, window int64) {
	elapsed := now - b.LastRefill
	if elapsed <= 0 {
		return
	}
	add := elapsed * limit / window
	if add > 0 {
		b.Tokens = min(limit, b.Tokens+add)
		b.LastRefill = now
	}
}

// IsAllowed consumes one token for key and reports whether the action may
// proceed. The first call for a key creates a bucket holding limit-1
// tokens. A denied call consumes nothing.
func (l *Limiter) IsAllowed(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	now := l.now().Unix()
	lim := int64(limit)
	win := windowSeconds(window)

	var b bucket
	found, err := cache.GetJSON(ctx, l.cache, bucketKey(key), &b)
	if err != nil {
		return false, fmt.Errorf("ratelimit: load %s: %w", key, err)
	}
	if !found {
		b = bucket{Tokens: lim - 1, LastRefill: now}
		if err := cache.SetJSON(ctx, l.cache, bucketKey(key), b, window); err != nil {
			return false, fmt.Errorf("ratelimit: init %s: %w", key, err)
		}
		return true, nil
	}

	b.refill(now, lim, win)
	if b.Tokens <= 0 {
		return false, nil
	}
	b.Tokens--
	if err := cache.SetJSON(ctx, l.cache, bucketKey(key), b, window); err != nil {
		return false, fmt.Errorf("ratelimit: store %s: %w", key, err)
	}
	return true, nil
}

// Remaining reports the tokens available for key after refill, without
// consuming. It is always within [0, limit].
func (l *Limiter) Remaining(ctx context.Context, key string, limit int, window time.Duration) (int, error) {
	var b bucket
	found, err := cache.GetJSON(ctx, l.cache, bucketKey(key), &b)
	if err != nil {
		return 0, fmt.Errorf("ratelimit: load %s: %w", key, err)
	}
	if !found {
		return limit, nil
	}
	b.refill(l.now().Unix(), int64(limit), windowSeconds(window))
	return int(max(0, min(b.Tokens, int64(limit)))), nil
}

// Reset deletes the bucket so the next call starts fresh.
func (l *Limiter) Reset(ctx context.Context, key string) error {
	if _, err := l.cache.Delete(ctx, bucketKey(key)); err != nil {
		return fmt.Errorf("ratelimit: reset %s: %w", key, err)
	}
	return nil
}
