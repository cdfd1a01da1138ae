package temporal

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Generator_ValidAndUnique(t *testing.T) {
	g := UUIDv7Generator{}

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := g.NewID()
		parsed, err := uuid.Parse(id)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
		assert.False(t, seen[id], "id %s generated twice", id)
		seen[id] = true
	}
}

func TestSequenceGenerator_Deterministic(t *testing.T) {
	g := NewSequenceGenerator("v")

	assert.Equal(t, "v-0001", g.NewID())
	assert.Equal(t, "v-0002", g.NewID())
	assert.Equal(t, "v-0003", g.NewID())
}

func TestSequenceGenerator_DefaultPrefix(t *testing.T) {
	g := NewSequenceGenerator("")
	assert.Equal(t, "v-0001", g.NewID())
}
