package queue_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/queue"
)

func TestManager_UnconfiguredQueueAlwaysAcquires(t *testing.T) {
	t.Parallel()

	m := queue.NewManager()
	for range 100 {
		require.True(t, m.Acquire("anything", ""))
	}
	assert.Equal(t, 0, m.ActiveCount("anything"))
}

func TestManager_MaxConcurrency(t *testing.T) {
	t.Parallel()

	m := queue.NewManager(queue.Config{Name: "low", MaxConcurrency: 2})

	require.True(t, m.Acquire("low", ""))
	require.True(t, m.Acquire("low", ""))
	assert.False(t, m.Acquire("low", ""))
	assert.Equal(t, 2, m.ActiveCount("low"))

	m.Release("low", "")
	assert.True(t, m.Acquire("low", ""))
}

func TestManager_RateLimit(t *testing.T) {
	t.Parallel()

	m := queue.NewManager(queue.Config{Name: "high", RateLimit: 1, RateBurst: 2})

	assert.True(t, m.Acquire("high", ""))
	assert.True(t, m.Acquire("high", ""))
	assert.False(t, m.Acquire("high", ""), "burst exhausted")
}

func TestManager_ConcurrencyCheckedBeforeRateTokens(t *testing.T) {
	t.Parallel()

	m := queue.NewManager(queue.Config{Name: "q", MaxConcurrency: 1, RateLimit: 0.001, RateBurst: 2})

	require.True(t, m.Acquire("q", ""))
	// Blocked on concurrency; must not burn the second token.
	require.False(t, m.Acquire("q", ""))
	m.Release("q", "")
	assert.True(t, m.Acquire("q", ""))
}

func TestManager_WorkspaceDefaultLimit(t *testing.T) {
	t.Parallel()

	m := queue.FromConfig(innosupps.DefaultConfig().Queues, queue.WorkspaceLimit{MaxConcurrency: 1})

	require.True(t, m.Acquire(innosupps.QueueDefault, "ws_a"))
	assert.False(t, m.Acquire(innosupps.QueueDefault, "ws_a"), "ws_a is at its cap")
	assert.True(t, m.Acquire(innosupps.QueueDefault, "ws_b"), "ws_b is isolated from ws_a")
	assert.True(t, m.Acquire(innosupps.QueueHigh, "ws_a"), "caps are per queue")

	assert.Equal(t, 1, m.WorkspaceActiveCount(innosupps.QueueDefault, "ws_a"))
	m.Release(innosupps.QueueDefault, "ws_a")
	assert.Equal(t, 0, m.WorkspaceActiveCount(innosupps.QueueDefault, "ws_a"))
	assert.True(t, m.Acquire(innosupps.QueueDefault, "ws_a"))
}

func TestManager_SetWorkspaceLimitOverridesDefault(t *testing.T) {
	t.Parallel()

	m := queue.FromConfig(innosupps.DefaultConfig().Queues, queue.WorkspaceLimit{MaxConcurrency: 1})
	m.SetWorkspaceLimit(innosupps.QueueLow, "ws_big", queue.WorkspaceLimit{MaxConcurrency: 3})

	for range 3 {
		require.True(t, m.Acquire(innosupps.QueueLow, "ws_big"))
	}
	assert.False(t, m.Acquire(innosupps.QueueLow, "ws_big"))
}

func TestManager_NamesAndNormalize(t *testing.T) {
	t.Parallel()

	m := queue.FromConfig(innosupps.DefaultConfig().Queues, queue.WorkspaceLimit{})
	assert.Equal(t, []string{"high", "default", "low"}, m.Names())

	assert.Equal(t, "high", m.Normalize("high"))
	assert.Equal(t, "default", m.Normalize("urgent"))
	assert.Equal(t, "default", m.Normalize(""))

	m.SetQueueConfig(queue.Config{Name: "bulk"})
	assert.Equal(t, []string{"high", "default", "low", "bulk"}, m.Names())
	assert.Equal(t, "bulk", m.Normalize("bulk"))
}

func TestManager_SetQueueConfigKeepsActiveCount(t *testing.T) {
	t.Parallel()

	m := queue.NewManager(queue.Config{Name: "q", MaxConcurrency: 5})
	require.True(t, m.Acquire("q", ""))
	require.True(t, m.Acquire("q", ""))

	m.SetQueueConfig(queue.Config{Name: "q", MaxConcurrency: 2})
	assert.Equal(t, 2, m.ActiveCount("q"))
	assert.False(t, m.Acquire("q", ""))
}

func TestManager_ReleaseUnderflow(t *testing.T) {
	t.Parallel()

	m := queue.NewManager(queue.Config{Name: "q", MaxConcurrency: 1})
	m.Release("q", "ws")
	m.Release("q", "ws")
	assert.Equal(t, 0, m.ActiveCount("q"))
	assert.True(t, m.Acquire("q", "ws"))
}

func TestManager_ConcurrentAccess(t *testing.T) {
	t.Parallel()

	m := queue.NewManager(queue.Config{Name: "q", MaxConcurrency: 4})
	var peak, cur atomic.Int64
	var wg sync.WaitGroup

	for range 32 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				if !m.Acquire("q", "") {
					continue
				}
				n := cur.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				time.Sleep(time.Microsecond)
				cur.Add(-1)
				m.Release("q", "")
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(4))
	assert.Equal(t, 0, m.ActiveCount("q"))
}
