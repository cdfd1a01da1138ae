package store

import (
	"testing"

	"github.com/hollis-dev/chronicle/internal/storetest"
	"github.com/hollis-dev/chronicle/internal/temporal"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) temporal.Store {
		return createTestStore(t)
	})
}
