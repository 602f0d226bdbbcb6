package bunstore_test

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simd-personal/Inno-Supps/job"
	"github.com/simd-personal/Inno-Supps/store"
	bunstore "github.com/simd-personal/Inno-Supps/store/bun"
	"github.com/simd-personal/Inno-Supps/store/storetest"
)

// setupSQLiteStore opens a private shared-cache in-memory database.
func setupSQLiteStore(t *testing.T) store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := bunstore.OpenSQLite(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := bunstore.New(db, bunstore.WithLogger(slog.Default()))
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, setupSQLiteStore)
}

func TestSQLiteMigrateIsIdempotent(t *testing.T) {
	s := setupSQLiteStore(t)
	require.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteOffsetWithoutLimit(t *testing.T) {
	ctx := context.Background()
	s := setupSQLiteStore(t)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.InsertJob(ctx, storetest.NewJob(t, "ws-1", "noop", i)))
	}

	got, err := s.ListJobsByWorkspace(ctx, "ws-1", job.ListOpts{Offset: 2})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}
