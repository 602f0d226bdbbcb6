// Package brokertest holds the behavioural suite every broker.Broker
// implementation must pass.
package brokertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/broker"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock fixed at start.
func NewClock(start time.Time) *Clock { return &Clock{now: start} }

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Factory builds a fresh broker wired to clock.
type Factory func(t *testing.T, clock *Clock) broker.Broker

func env(id, queue string) broker.Envelope {
	return broker.Envelope{JobID: id, Function: "noop", Queue: queue, Timeout: time.Minute}
}

// Run executes the suite against brokers built by newBroker.
func Run(t *testing.T, newBroker Factory) {
	t.Helper()
	start := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	t.Run("PriorityOrder", func(t *testing.T) {
		ctx := context.Background()
		b := newBroker(t, NewClock(start))

		require.NoError(t, b.Submit(ctx, env("low-1", "low")))
		require.NoError(t, b.Submit(ctx, env("def-1", "default")))
		require.NoError(t, b.Submit(ctx, env("high-1", "high")))
		require.NoError(t, b.Submit(ctx, env("high-2", "high")))

		got, err := b.Dequeue(ctx, []string{"high", "default", "low"}, 3)
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, "high-1", got[0].JobID)
		assert.Equal(t, "high-2", got[1].JobID)
		assert.Equal(t, "def-1", got[2].JobID)

		rest, err := b.Dequeue(ctx, []string{"high", "default", "low"}, 10)
		require.NoError(t, err)
		require.Len(t, rest, 1)
		assert.Equal(t, "low-1", rest[0].JobID)
	})

	t.Run("ScheduledPromotedWhenDue", func(t *testing.T) {
		ctx := context.Background()
		clock := NewClock(start)
		b := newBroker(t, clock)

		require.NoError(t, b.Schedule(ctx, env("later", "default"), start.Add(time.Minute)))

		got, err := b.Dequeue(ctx, []string{"default"}, 1)
		require.NoError(t, err)
		assert.Empty(t, got)

		stats, err := b.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats["default"].Scheduled)

		clock.Advance(2 * time.Minute)
		got, err = b.Dequeue(ctx, []string{"default"}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "later", got[0].JobID)
	})

	t.Run("CancelWaiting", func(t *testing.T) {
		ctx := context.Background()
		b := newBroker(t, NewClock(start))

		require.NoError(t, b.Submit(ctx, env("a", "default")))
		require.NoError(t, b.Submit(ctx, env("b", "low")))
		require.NoError(t, b.Schedule(ctx, env("c", "high"), start.Add(time.Hour)))

		ok, err := b.Cancel(ctx, "b")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.Cancel(ctx, "c")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.Cancel(ctx, "missing")
		require.NoError(t, err)
		assert.False(t, ok)

		has, err := b.Has(ctx, "b")
		require.NoError(t, err)
		assert.False(t, has)

		got, err := b.Dequeue(ctx, []string{"high", "default", "low"}, 10)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "a", got[0].JobID)
	})

	t.Run("CancelClaimedIsNoop", func(t *testing.T) {
		ctx := context.Background()
		b := newBroker(t, NewClock(start))

		require.NoError(t, b.Submit(ctx, env("run", "default")))
		got, err := b.Dequeue(ctx, []string{"default"}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)
		require.NoError(t, b.MarkStarted(ctx, got[0]))

		ok, err := b.Cancel(ctx, "run")
		require.NoError(t, err)
		assert.False(t, ok)

		has, err := b.Has(ctx, "run")
		require.NoError(t, err)
		assert.True(t, has, "claimed job is still tracked until settled")
	})

	t.Run("PendingExcludesClaimed", func(t *testing.T) {
		ctx := context.Background()
		b := newBroker(t, NewClock(start))

		require.NoError(t, b.Submit(ctx, env("wait", "default")))
		require.NoError(t, b.Schedule(ctx, env("later", "default"), start.Add(time.Hour)))
		require.NoError(t, b.Submit(ctx, env("claim", "high")))

		got, err := b.Dequeue(ctx, []string{"high"}, 1)
		require.NoError(t, err)
		require.Len(t, got, 1)

		for jobID, want := range map[string]bool{"wait": true, "later": true, "claim": false, "missing": false} {
			pending, err := b.Pending(ctx, jobID)
			require.NoError(t, err)
			assert.Equal(t, want, pending, jobID)
		}
		has, err := b.Has(ctx, "claim")
		require.NoError(t, err)
		assert.True(t, has)

		// Re-submitting a claimed envelope makes it deliverable again.
		require.NoError(t, b.Submit(ctx, got[0]))
		pending, err := b.Pending(ctx, "claim")
		require.NoError(t, err)
		assert.True(t, pending)
	})

	t.Run("LifecycleStats", func(t *testing.T) {
		ctx := context.Background()
		b := newBroker(t, NewClock(start))

		for _, id := range []string{"j1", "j2", "j3"} {
			require.NoError(t, b.Submit(ctx, env(id, "default")))
		}
		got, err := b.Dequeue(ctx, []string{"default"}, 2)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, e := range got {
			require.NoError(t, b.MarkStarted(ctx, e))
		}

		stats, err := b.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, broker.Counts{Queued: 1, Started: 2}, stats["default"])

		require.NoError(t, b.MarkFinished(ctx, got[0]))
		require.NoError(t, b.MarkFailed(ctx, got[1]))

		stats, err = b.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, broker.Counts{Queued: 1, Finished: 1, Failed: 1}, stats["default"])

		has, err := b.Has(ctx, got[0].JobID)
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("ResubmitClearsStarted", func(t *testing.T) {
		ctx := context.Background()
		b := newBroker(t, NewClock(start))

		e := env("retry", "high")
		require.NoError(t, b.Submit(ctx, e))
		_, err := b.Dequeue(ctx, []string{"high"}, 1)
		require.NoError(t, err)
		require.NoError(t, b.MarkStarted(ctx, e))

		require.NoError(t, b.Schedule(ctx, e, start.Add(time.Second)))
		stats, err := b.Stats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats["high"].Started)
		assert.Equal(t, int64(1), stats["high"].Scheduled)
	})
}
