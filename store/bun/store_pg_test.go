//go:build integration

package bunstore_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	pgmodule "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/simd-personal/Inno-Supps/store"
	bunstore "github.com/simd-personal/Inno-Supps/store/bun"
	"github.com/simd-personal/Inno-Supps/store/storetest"
)

// setupPostgresStore creates a Postgres container and returns a connected
// Bun store on the pg dialect.
func setupPostgresStore(t *testing.T) store.Store {
	t.Helper()

	ctx := context.Background()

	container, err := pgmodule.Run(ctx,
		"postgres:16-alpine",
		pgmodule.WithDatabase("innosupps_test"),
		pgmodule.WithUsername("test"),
		pgmodule.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if termErr := container.Terminate(ctx); termErr != nil {
			t.Logf("terminate container: %v", termErr)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	db := bunstore.OpenPostgres(connStr)
	t.Cleanup(func() { _ = db.Close() })

	s := bunstore.New(db, bunstore.WithLogger(slog.Default()))
	require.NoError(t, s.Migrate(ctx))
	return s
}

func TestPostgresDialect(t *testing.T) {
	storetest.Run(t, setupPostgresStore)
}
