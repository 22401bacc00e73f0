// Package ledger persists every discovered episode in SQLite and exposes
// helpers for driving episode lifecycle across runs.
//
// The Store manages database connections, schema initialization, the
// merge-preserving upsert used by scans, partial-update status marks, page
// cursors for resumable enumeration, a per-producer RSS lookup cache, and
// free-form metadata. Episode keys are SHA-1 content hashes of whatever
// stable identity a source exposes, so rows survive title edits and listing
// reshuffles.
//
// Unlike a transient work queue, the ledger is the long-term record of an
// archive. Writes commit before the calls return; a crash between two calls
// leaves a consistent database that the next run picks up from.
//
// Treat this package as the single source of truth for episode semantics;
// when you add statuses or columns, update schema.sql and bump schemaVersion.
package ledger
