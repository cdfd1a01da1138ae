// Package store provides the SQLite-backed temporal record store.
//
// Each version row carries a half-open validity interval; the row whose
// valid_to equals the sentinel (9999-12-31 23:59:59 UTC, stored as unix
// microseconds) is the subject's current version.
//
// # Critical patterns
//
// Atomic supersede: close-then-insert runs inside one transaction with
// an optimistic re-check of the open version (UPDATE ... WHERE valid_to
// = sentinel, RowsAffected must be 1). The partial unique index on
// (subject_id) WHERE valid_to = sentinel is the final arbiter: two
// racing supersedes can never both commit an open version.
//
// Deterministic reads: history queries ORDER BY valid_from ASC, id ASC
// so repeated traversals of unchanged data are identical.
//
// Error mapping: SQLITE_BUSY/SQLITE_LOCKED and connection faults map to
// STORAGE_UNAVAILABLE (retryable); unique-constraint conflicts on the
// open-version index map to the logical DUPLICATE_SUBJECT /
// INVALID_TRANSITION outcomes.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - foreign_keys=ON: enforce referential integrity
package store
