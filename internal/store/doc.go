// Package store is the embedded document store of the dictation client.
//
// It persists recordings, transformations, pipelines, pipeline runs, and
// transformation results in a single SQLite file (WAL mode, single writer).
// Opening the store runs the schema migration engine: every generation
// between the on-disk version and the current one is applied in strictly
// increasing order, each step in its own transaction, so a failed step rolls
// back to the pre-migration state and surfaces a diagnostic dump instead of
// leaving the file half-migrated.
//
// All operations return tagged errors (see Error); not-found conditions are
// distinguishable from transport failures so callers can branch on
// missing-vs-failed. Mutations notify registered subscribers synchronously
// after commit, which keeps the in-memory mirror at most one call stale.
package store
