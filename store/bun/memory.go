package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/id"
)

// UpsertMemory inserts or overwrites an entry. On conflict the stored ID and
// creation time win and are written back into e.
func (s *Store) UpsertMemory(ctx context.Context, e *agentmem.Entry) error {
	m := toMemoryModel(e)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (workspace_id, user_id, key) DO UPDATE").
		Set("value = EXCLUDED.value").
		Set("expires_at = EXCLUDED.expires_at").
		Set("updated_at = EXCLUDED.updated_at").
		Returning("id, created_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("innosupps/bun: upsert memory: %w", err)
	}

	parsed, err := id.Parse(m.ID)
	if err != nil {
		return fmt.Errorf("innosupps/bun: parse memory id %q: %w", m.ID, err)
	}
	e.ID = parsed
	e.CreatedAt = m.CreatedAt
	return nil
}

func liveAt(now time.Time) func(*bun.SelectQuery) *bun.SelectQuery {
	return func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.WhereOr("expires_at IS NULL").WhereOr("expires_at > ?", now.UTC())
	}
}

// GetMemory returns the live entry for key.
func (s *Store) GetMemory(ctx context.Context, scope agentmem.Scope, key string, now time.Time) (*agentmem.Entry, error) {
	m := new(memoryModel)
	err := s.db.NewSelect().Model(m).
		Where("workspace_id = ?", scope.WorkspaceID).
		Where("user_id = ?", scope.UserID).
		Where("key = ?", key).
		WhereGroup(" AND ", liveAt(now)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrMemoryNotFound
		}
		return nil, fmt.Errorf("innosupps/bun: get memory: %w", err)
	}
	return fromMemoryModel(m)
}

// DeleteMemory removes the entry for key.
func (s *Store) DeleteMemory(ctx context.Context, scope agentmem.Scope, key string) (bool, error) {
	res, err := s.db.NewDelete().Model((*memoryModel)(nil)).
		Where("workspace_id = ?", scope.WorkspaceID).
		Where("user_id = ?", scope.UserID).
		Where("key = ?", key).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("innosupps/bun: delete memory: %w", err)
	}
	return rowsAffected(res) > 0, nil
}

// ListMemory returns the live entries of the scope, ordered by key.
func (s *Store) ListMemory(ctx context.Context, scope agentmem.Scope, now time.Time) ([]*agentmem.Entry, error) {
	var models []memoryModel
	err := s.db.NewSelect().Model(&models).
		Where("workspace_id = ?", scope.WorkspaceID).
		Where("user_id = ?", scope.UserID).
		WhereGroup(" AND ", liveAt(now)).
		OrderExpr("key ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("innosupps/bun: list memory: %w", err)
	}

	out := make([]*agentmem.Entry, 0, len(models))
	for i := range models {
		e, err := fromMemoryModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

// PurgeExpiredMemory deletes entries that expired at or before now.
func (s *Store) PurgeExpiredMemory(ctx context.Context, workspaceID string, now time.Time) (int64, error) {
	q := s.db.NewDelete().Model((*memoryModel)(nil)).
		Where("expires_at IS NOT NULL").
		Where("expires_at <= ?", now.UTC())
	if workspaceID != "" {
		q = q.Where("workspace_id = ?", workspaceID)
	}
	res, err := q.Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("innosupps/bun: purge memory: %w", err)
	}
	return rowsAffected(res), nil
}

// DeleteAllMemory deletes every entry of the scope.
func (s *Store) DeleteAllMemory(ctx context.Context, scope agentmem.Scope) (int64, error) {
	res, err := s.db.NewDelete().Model((*memoryModel)(nil)).
		Where("workspace_id = ?", scope.WorkspaceID).
		Where("user_id = ?", scope.UserID).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("innosupps/bun: clear memory: %w", err)
	}
	return rowsAffected(res), nil
}
