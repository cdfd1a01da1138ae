package store

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// createTestStore creates a file-backed store in a temp dir with
// deterministic version IDs.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithIDGenerator(temporal.NewSequenceGenerator("v")))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// payload builds a minimal order-status payload.
func payload(status string) json.RawMessage {
	return json.RawMessage(`{"status":"` + status + `"}`)
}

// at converts seconds-since-epoch to a store timestamp.
func at(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}
