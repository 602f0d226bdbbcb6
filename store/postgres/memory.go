package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	innosupps "github.com/simd-personal/Inno-Supps"
	"github.com/simd-personal/Inno-Supps/agentmem"
	"github.com/simd-personal/Inno-Supps/id"
)

const memoryColumns = `id, workspace_id, user_id, key, value, expires_at, created_at, updated_at`

// UpsertMemory inserts or overwrites an entry. On conflict the stored ID and
// creation time win and are written back into e.
func (s *Store) UpsertMemory(ctx context.Context, e *agentmem.Entry) error {
	var (
		idStr     string
		createdAt time.Time
	)
	err := s.pool.QueryRow(ctx, `
		INSERT INTO agent_memory (`+memoryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (workspace_id, user_id, key) DO UPDATE SET
			value = EXCLUDED.value,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
		RETURNING id, created_at`,
		e.ID.String(), e.WorkspaceID, e.UserID, e.Key, jsonbOr(e.Value, "null"),
		e.ExpiresAt, e.CreatedAt, e.UpdatedAt,
	).Scan(&idStr, &createdAt)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: upsert memory: %w", err)
	}

	parsed, err := id.Parse(idStr)
	if err != nil {
		return fmt.Errorf("innosupps/postgres: parse memory id %q: %w", idStr, err)
	}
	e.ID = parsed
	e.CreatedAt = createdAt
	return nil
}

// GetMemory returns the live entry for key.
func (s *Store) GetMemory(ctx context.Context, scope agentmem.Scope, key string, now time.Time) (*agentmem.Entry, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+memoryColumns+`
		FROM agent_memory
		WHERE workspace_id = $1 AND user_id = $2 AND key = $3
		  AND (expires_at IS NULL OR expires_at > $4)`,
		scope.WorkspaceID, scope.UserID, key, now,
	)
	e, err := scanMemory(row)
	if err != nil {
		if isNoRows(err) {
			return nil, innosupps.ErrMemoryNotFound
		}
		return nil, fmt.Errorf("innosupps/postgres: get memory: %w", err)
	}
	return e, nil
}

// DeleteMemory removes the entry for key.
func (s *Store) DeleteMemory(ctx context.Context, scope agentmem.Scope, key string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM agent_memory WHERE workspace_id = $1 AND user_id = $2 AND key = $3`,
		scope.WorkspaceID, scope.UserID, key,
	)
	if err != nil {
		return false, fmt.Errorf("innosupps/postgres: delete memory: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListMemory returns the live entries of the scope, ordered by key.
func (s *Store) ListMemory(ctx context.Context, scope agentmem.Scope, now time.Time) ([]*agentmem.Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+memoryColumns+`
		FROM agent_memory
		WHERE workspace_id = $1 AND user_id = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY key`,
		scope.WorkspaceID, scope.UserID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: list memory: %w", err)
	}
	defer rows.Close()

	var out []*agentmem.Entry
	for rows.Next() {
		e, scanErr := scanMemory(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("innosupps/postgres: scan memory row: %w", scanErr)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("innosupps/postgres: iterate memory rows: %w", err)
	}
	return out, nil
}

// PurgeExpiredMemory deletes entries that expired at or before now.
func (s *Store) PurgeExpiredMemory(ctx context.Context, workspaceID string, now time.Time) (int64, error) {
	query := `DELETE FROM agent_memory WHERE expires_at IS NOT NULL AND expires_at <= $1`
	args := []any{now}
	if workspaceID != "" {
		query += ` AND workspace_id = $2`
		args = append(args, workspaceID)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("innosupps/postgres: purge memory: %w", err)
	}
	return tag.RowsAffected(), nil
}

// DeleteAllMemory deletes every entry of the scope.
func (s *Store) DeleteAllMemory(ctx context.Context, scope agentmem.Scope) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM agent_memory WHERE workspace_id = $1 AND user_id = $2`,
		scope.WorkspaceID, scope.UserID,
	)
	if err != nil {
		return 0, fmt.Errorf("innosupps/postgres: clear memory: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanMemory(row pgx.Row) (*agentmem.Entry, error) {
	var (
		e     agentmem.Entry
		idStr string
		value []byte
	)
	if err := row.Scan(&idStr, &e.WorkspaceID, &e.UserID, &e.Key, &value,
		&e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	parsed, err := id.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: parse memory id %q: %w", idStr, err)
	}
	e.ID = parsed
	e.Value = value
	return &e, nil
}
