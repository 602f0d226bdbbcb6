// Package postgres implements store.Store on PostgreSQL using pgx/v5 with
// raw SQL and embedded migrations. Job deduplication is enforced by a
// partial unique index over (workspace_id, dedupe_key) restricted to the
// active states, so concurrent enqueues of the same call race on the index
// rather than on a read-then-write.
package postgres
