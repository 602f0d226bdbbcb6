// Package cachetest holds the behavioural suite every cache.Cache
// implementation must pass.
package cachetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/cache"
)

// Factory builds a fresh cache and a function that advances its notion
// of time.
type Factory func(t *testing.T) (cache.Cache, func(time.Duration))

// Run executes the suite.
func Run(t *testing.T, newCache Factory) {
	t.Helper()

	t.Run("GetSetDelete", func(t *testing.T) {
		ctx := context.Background()
		c, _ := newCache(t)

		_, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
		v, ok, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("v"), v)

		existed, err := c.Delete(ctx, "k")
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = c.Delete(ctx, "k")
		require.NoError(t, err)
		assert.False(t, existed)
	})

	t.Run("Expiry", func(t *testing.T) {
		ctx := context.Background()
		c, advance := newCache(t)

		require.NoError(t, c.Set(ctx, "short", []byte("1"), 10*time.Second))
		require.NoError(t, c.Set(ctx, "forever", []byte("1"), 0))

		ttl, err := c.TTL(ctx, "short")
		require.NoError(t, err)
		assert.InDelta(t, float64(10*time.Second), float64(ttl), float64(time.Second))

		ttl, err = c.TTL(ctx, "forever")
		require.NoError(t, err)
		assert.Equal(t, cache.NoExpiry, ttl)

		ttl, err = c.TTL(ctx, "absent")
		require.NoError(t, err)
		assert.Equal(t, cache.KeyMissing, ttl)

		advance(11 * time.Second)

		ok, err := c.Exists(ctx, "short")
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = c.Exists(ctx, "forever")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Incr", func(t *testing.T) {
		ctx := context.Background()
		c, _ := newCache(t)

		n, err := c.Incr(ctx, "counter", 1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		n, err = c.Incr(ctx, "counter", 5)
		require.NoError(t, err)
		assert.Equal(t, int64(6), n)

		require.NoError(t, c.Set(ctx, "text", []byte("abc"), 0))
		_, err = c.Incr(ctx, "text", 1)
		assert.Error(t, err)
	})

	t.Run("Expire", func(t *testing.T) {
		ctx := context.Background()
		c, advance := newCache(t)

		ok, err := c.Expire(ctx, "absent", time.Second)
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
		ok, err = c.Expire(ctx, "k", 5*time.Second)
		require.NoError(t, err)
		assert.True(t, ok)

		advance(6 * time.Second)
		_, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("JSONHelpersAndSessions", func(t *testing.T) {
		ctx := context.Background()
		c, advance := newCache(t)

		type doc struct {
			Name string `json:"name"`
		}
		require.NoError(t, cache.SetJSON(ctx, c, "doc", doc{Name: "acme"}, 0))
		var got doc
		ok, err := cache.GetJSON(ctx, c, "doc", &got)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "acme", got.Name)

		require.NoError(t, cache.MSetJSON(ctx, c, map[string]any{"a": 1, "b": "two"}))
		vals, err := cache.MGetJSON(ctx, c, []string{"a", "missing", "b"})
		require.NoError(t, err)
		require.Len(t, vals, 3)
		assert.JSONEq(t, `1`, string(vals[0]))
		assert.Nil(t, vals[1])
		assert.JSONEq(t, `"two"`, string(vals[2]))

		sess := cache.Session{UserID: "u1", WorkspaceID: "ws1"}
		require.NoError(t, cache.SetSession(ctx, c, "s1", sess, 0))
		loaded, ok, err := cache.GetSession(ctx, c, "s1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "u1", loaded.UserID)

		advance(cache.DefaultSessionTTL + time.Second)
		_, ok, err = cache.GetSession(ctx, c, "s1")
		require.NoError(t, err)
		assert.False(t, ok)

		require.NoError(t, cache.SetSession(ctx, c, "s2", sess, time.Hour))
		require.NoError(t, cache.DeleteSession(ctx, c, "s2"))
		_, ok, err = cache.GetSession(ctx, c, "s2")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}
