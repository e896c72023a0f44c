// Package store provides persistent storage for the gateway using SQLite.
//
// # Architecture
//
// The package is interface-driven: Store defines the operations the rest of
// the gateway needs (projects, sessions, append-only messages), SQLiteStore
// implements it with modernc.org/sqlite, and MockStore provides an in-memory
// double for tests.
//
// # Data Model
//
//   - Project: a workspace directory the CLI runs in
//   - Session: one conversation context with cumulative usage metrics
//   - Message: one conversation turn; rows are append-only
//
// Timestamps are stored as RFC3339 strings in UTC. The schema is created
// automatically on open.
//
// # Semantics
//
// Session metric updates are cumulative increments, never overwrites, so the
// in-memory session layer and the database stay monotonic. EndSession is
// idempotent: ending an unknown or already-ended session is a no-op.
package store
