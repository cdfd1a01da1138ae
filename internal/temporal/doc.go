// Package temporal defines the core model of the Chronicle valid-time
// versioned record store.
//
// A logical entity (a "subject") is represented as a sequence of
// immutable versions, each effective over a half-open interval
// [ValidFrom, ValidTo). The version whose ValidTo equals the far-future
// Sentinel is the subject's current version; a subject with no open
// version is retired.
//
// # Invariants
//
//   - For a fixed subject, version intervals never overlap.
//   - At most one version per subject is open at any instant.
//   - ValidFrom < ValidTo for every version.
//   - A closed version is immutable history; versions are never
//     physically deleted.
//
// Mutations (Create, Supersede, Retire) must be applied atomically by the
// backing store: superseding closes the open version and inserts its
// successor in one transaction, so two current versions can never be
// observed. Backends live in internal/store (SQLite), internal/pgstore
// (PostgreSQL) and internal/memstore (in-memory).
package temporal
