package memory_test

import (
	"sync"
	"testing"
	"time"

	"github.com/simd-personal/Inno-Supps/cache"
	"github.com/simd-personal/Inno-Supps/cache/cachetest"
	"github.com/simd-personal/Inno-Supps/cache/memory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
}

func TestCache(t *testing.T) {
	cachetest.Run(t, func(_ *testing.T) (cache.Cache, func(time.Duration)) {
		clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
		return memory.New(memory.WithClock(clock.Now)), clock.Advance
	})
}
