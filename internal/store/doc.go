// Package store persists videos, chunks, detection records, batches, and
// audit events in SQLite.
//
// The schema is migrated with golang-migrate from SQL files embedded in the
// binary. Writes go through a busy-retry helper so the daemon and CLI can
// share the database file; WAL mode and a busy timeout are applied on open.
// Lookups that find nothing return (nil, nil) rather than an error.
package store
