// Package agentmem provides persisted, TTL-bounded key-value memory for
// agents, scoped to a workspace and optionally a user. Unlike the cache it
// lives in the relational store and survives restarts.
package agentmem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/id"
)

// Scope identifies whose memory is addressed. An empty UserID is the
// workspace-level memory shared by every user.
type Scope struct {
	WorkspaceID string
	UserID      string
}

// Entry is one stored value. It is unique per (workspace, user, key).
type Entry struct {
	innosupps.Entity

	ID          id.ID           `json:"id"`
	WorkspaceID string          `json:"workspace_id"`
	UserID      string          `json:"user_id,omitempty"`
	Key         string          `json:"key"`
	Value       json.RawMessage `json:"value"`
	ExpiresAt   *time.Time      `json:"expires_at,omitempty"`
}

// Live reports whether the entry is readable at now. Entries without an
// expiry never lapse.
func (e *Entry) Live(now time.Time) bool {
	return e.ExpiresAt == nil || e.ExpiresAt.After(now)
}

// Store is the persistence contract for agent memory.
type Store interface {
	// UpsertMemory inserts e or overwrites the value and expiry of the
	// entry with the same scope and key.
	UpsertMemory(ctx context.Context, e *Entry) error

	// GetMemory returns the live entry for key, or ErrMemoryNotFound.
	GetMemory(ctx context.Context, scope Scope, key string, now time.Time) (*Entry, error)

	// DeleteMemory removes the entry for key and reports whether it existed.
	DeleteMemory(ctx context.Context, scope Scope, key string) (bool, error)

	// ListMemory returns the live entries of the scope, ordered by key.
	ListMemory(ctx context.Context, scope Scope, now time.Time) ([]*Entry, error)

	// PurgeExpiredMemory deletes entries that expired before now. An empty
	// workspaceID purges every workspace.
	PurgeExpiredMemory(ctx context.Context, workspaceID string, now time.Time) (int64, error)

	// DeleteAllMemory deletes every entry of the scope.
	DeleteAllMemory(ctx context.Context, scope Scope) (int64, error)
}

// Memory is a scoped view over a Store.
type Memory struct {
	store Store
	scope Scope
	now   func() time.Time
}

// Option configures a Memory.
type Option func(*Memory)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) { m.now = now }
}

// New returns the memory of workspaceID, narrowed to userID when non-empty.
func New(store Store, workspaceID, userID string, opts ...Option) *Memory {
	m := &Memory{
		store: store,
		scope: Scope{WorkspaceID: workspaceID, UserID: userID},
		now:   time.Now,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Get returns the stored value and true, or false when absent or expired.
func (m *Memory) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	e, err := m.store.GetMemory(ctx, m.scope, key, m.now().UTC())
	if errors.Is(err, innosupps.ErrMemoryNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return e.Value, true, nil
}

// GetInto decodes the stored value into v.
func (m *Memory) GetInto(ctx context.Context, key string, v any) (bool, error) {
	raw, ok, err := m.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, fmt.Errorf("agentmem: decode %q: %w", key, err)
	}
	return true, nil
}

// Set upserts value under key. A zero ttl stores it without expiry.
func (m *Memory) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if key == "" {
		return innosupps.Invalid("memory key must not be empty")
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("agentmem: encode %q: %w", key, err)
	}

	now := m.now().UTC()
	e := &Entry{
		Entity:      innosupps.Entity{CreatedAt: now, UpdatedAt: now},
		ID:          id.NewMemoryID(),
		WorkspaceID: m.scope.WorkspaceID,
		UserID:      m.scope.UserID,
		Key:         key,
		Value:       raw,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		e.ExpiresAt = &exp
	}
	return m.store.UpsertMemory(ctx, e)
}

// Delete removes key and reports whether it existed.
func (m *Memory) Delete(ctx context.Context, key string) (bool, error) {
	return m.store.DeleteMemory(ctx, m.scope, key)
}

// ListKeys returns the live keys, sorted.
func (m *Memory) ListKeys(ctx context.Context) ([]string, error) {
	entries, err := m.store.ListMemory(ctx, m.scope, m.now().UTC())
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys, nil
}

// ClearExpired deletes the workspace's expired entries and returns how
// many were removed.
func (m *Memory) ClearExpired(ctx context.Context) (int, error) {
	n, err := m.store.PurgeExpiredMemory(ctx, m.scope.WorkspaceID, m.now().UTC())
	return int(n), err
}

// ClearAll deletes every entry of the scope and returns how many were
// removed.
func (m *Memory) ClearAll(ctx context.Context) (int, error) {
	n, err := m.store.DeleteAllMemory(ctx, m.scope)
	return int(n), err
}
