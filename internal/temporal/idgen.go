package temporal

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator produces surrogate IDs for version rows.
type IDGenerator interface {
	NewID() string
}

// UUIDv7Generator generates time-ordered UUIDv7 version IDs.
//
// UUIDv7 keeps version rows roughly insertion-ordered in ID indexes.
// Panics if UUID generation fails (should never happen in practice).
type UUIDv7Generator struct{}

// NewID implements IDGenerator.
func (UUIDv7Generator) NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// SequenceGenerator produces deterministic IDs "<prefix>-0001",
// "<prefix>-0002", ... for tests and golden snapshot comparison.
//
// Thread-safety: safe for concurrent use (atomic counter).
type SequenceGenerator struct {
	prefix string
	n      atomic.Int64
}

// NewSequenceGenerator creates a generator with the given ID prefix.
// An empty prefix defaults to "v".
func NewSequenceGenerator(prefix string) *SequenceGenerator {
	if prefix == "" {
		prefix = "v"
	}
	return &SequenceGenerator{prefix: prefix}
}

// NewID implements IDGenerator.
func (g *SequenceGenerator) NewID() string {
	return fmt.Sprintf("%s-%04d", g.prefix, g.n.Add(1))
}
