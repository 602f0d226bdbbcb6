package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/store"
	"github.com/simd-personal/Inno-Supps/store/memory"
	"github.com/simd-personal/Inno-Supps/store/storetest"
)

var _ store.Store = (*memory.Store)(nil)

func TestStore(t *testing.T) {
	storetest.Run(t, func(_ *testing.T) store.Store { return memory.New() })
}

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.fn())
		})
	}
}

func TestInspectionHelpers(t *testing.T) {
	t.Parallel()
	s := memory.New()
	ctx := context.Background()

	require.NoError(t, s.InsertJob(ctx, storetest.NewJob(t, "ws-1", "noop")))
	assert.Empty(t, s.Calls("ws-1"))
	assert.Empty(t, s.ResearchBriefs("ws-1"))
	assert.Empty(t, s.GrowthPlans("ws-1"))
}
