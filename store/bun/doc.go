// Package bunstore implements store.Store using the Bun ORM on either the
// PostgreSQL or the SQLite dialect. Each dialect has its own embedded
// migration set; both declare the partial unique index that makes job
// deduplication atomic.
//
// The caller owns the *bun.DB lifecycle; bunstore never closes it. Use
// OpenPostgres or OpenSQLite, or bring your own handle:
//
//	db, err := bunstore.OpenSQLite("file:innosupps.db")
//	store := bunstore.New(db)
//	store.Migrate(ctx)
package bunstore
