// Package store defines the aggregate persistence interface. Each subsystem
// (job, agentmem, crm) defines its own store interface and the composite
// Store composes them all. Backends: Postgres, Bun (Postgres or SQLite) and
// Memory.
package store

import (
	"context"

	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/crm"
	"github.com/simd-personal/Inno-Supps/job"
)

// Store is the aggregate persistence interface.
// A single backend implements every subsystem store.
type Store interface {
	job.Store
	agentmem.Store
	crm.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
