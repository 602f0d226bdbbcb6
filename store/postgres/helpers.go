package postgres

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/simd-personal/Inno-Supps/id"
)

// isNoRows returns true when err indicates no rows were found.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isDuplicateKey checks if a PostgreSQL error is a unique_violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// jsonb returns raw as a JSONB parameter, mapping empty input to NULL.
func jsonb(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}

// jsonbOr is jsonb with a fallback literal for NOT NULL columns.
func jsonbOr(raw json.RawMessage, fallback string) []byte {
	if len(raw) == 0 {
		return []byte(fallback)
	}
	return raw
}

// nullableID maps an optional reference to a nullable TEXT parameter.
func nullableID(ref *id.ID) any {
	if ref == nil || ref.IsNil() {
		return nil
	}
	return ref.String()
}

// parseNullableID is the inverse of nullableID.
func parseNullableID(s *string) (*id.ID, error) {
	if s == nil || *s == "" {
		return nil, nil //nolint:nilnil // absent reference
	}
	parsed, err := id.Parse(*s)
	if err != nil {
		return nil, fmt.Errorf("innosupps/postgres: %w", err)
	}
	return &parsed, nil
}
