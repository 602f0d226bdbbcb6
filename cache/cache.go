// Package cache defines the key-value contract used for rate-limit
// buckets, cooldown flags and sessions. Contents are an accelerant: losing
// them relaxes throttling but never corrupts job state.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// TTL sentinels returned by Cache.TTL, matching Redis semantics.
const (
	NoExpiry   time.Duration = -1
	KeyMissing time.Duration = -2
)

// Cache is a byte-valued key-value store with per-key expiry.
type Cache interface {
	// Get returns the value and true, or false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores value. A zero ttl means the key never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime, NoExpiry, or KeyMissing.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Incr adds by to the integer stored at key, creating it at zero.
	Incr(ctx context.Context, key string, by int64) (int64, error)

	// Expire sets a new ttl on an existing key and reports whether it
	// existed.
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// GetJSON decodes the value at key into v. It returns false when the key
// is absent.
func GetJSON(ctx context.Context, c Cache, key string, v any) (bool, error) {
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	return c.Set(ctx, key, raw, ttl)
}

// MGetJSON decodes several keys. Missing keys yield nil entries.
func MGetJSON(ctx context.Context, c Cache, keys []string) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, len(keys))
	for i, k := range keys {
		raw, ok, err := c.Get(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = raw
		}
	}
	return out, nil
}

// MSetJSON encodes and stores every entry without expiry.
func MSetJSON(ctx context.Context, c Cache, entries map[string]any) error {
	for k, v := range entries {
		if err := SetJSON(ctx, c, k, v, 0); err != nil {
			return err
		}
	}
	return nil
}
