package agentmem_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/store/memory"
)

func TestSetRejectsEmptyKey(t *testing.T) {
	t.Parallel()
	m := agentmem.New(memory.New(), "ws-1", "")
	err := m.Set(context.Background(), "", "v", 0)
	assert.ErrorIs(t, err, innosupps.ErrValidation)
}

func TestGetIntoMissing(t *testing.T) {
	t.Parallel()
	m := agentmem.New(memory.New(), "ws-1", "")
	var v map[string]any
	ok, err := m.GetInto(context.Background(), "absent", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetIntoTypeMismatch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	m := agentmem.New(memory.New(), "ws-1", "")
	require.NoError(t, m.Set(ctx, "n", 42, 0))

	var s string
	_, err := m.GetInto(ctx, "n", &s)
	assert.Error(t, err)
}

func TestEntryLive(t *testing.T) {
	t.Parallel()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	past := now.Add(-time.Second)

	assert.True(t, (&agentmem.Entry{}).Live(now))
	assert.False(t, (&agentmem.Entry{ExpiresAt: &past}).Live(now))
	assert.False(t, (&agentmem.Entry{ExpiresAt: &now}).Live(now))
}
