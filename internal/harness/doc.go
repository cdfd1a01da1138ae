// Package harness executes YAML-described store scenarios and snapshots
// their outcomes as golden files.
//
// A scenario is a linear script of store operations (create, supersede,
// retire) interleaved with queries (current, asof, history, verify).
// The harness runs the script against a deterministic in-memory store,
// records every outcome, and compares the serialized event log against
// a golden file under testdata/golden/. Determinism comes from explicit
// timestamps in the scenario and a sequence-based ID generator, so the
// same scenario always produces byte-identical snapshots.
//
// To regenerate golden files after an intentional behavior change:
//
//	go test ./internal/harness -update
package harness
