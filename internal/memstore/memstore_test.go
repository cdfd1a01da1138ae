package memstore

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-dev/chronicle/internal/storetest"
	"github.com/hollis-dev/chronicle/internal/temporal"
)

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) temporal.Store {
		return New(WithIDGenerator(temporal.NewSequenceGenerator("m")))
	})
}

func TestStore_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, "order/1", "order_status", json.RawMessage(`{}`), time.Unix(100, 0).UTC())
	assert.True(t, temporal.IsStorageUnavailable(err), "got %v", err)

	_, _, err = s.Current(ctx, "order/1")
	assert.True(t, temporal.IsStorageUnavailable(err), "got %v", err)
}

func TestStore_HistorySnapshotIsolation(t *testing.T) {
	s := New(WithIDGenerator(temporal.NewSequenceGenerator("m")))
	ctx := context.Background()

	_, err := s.Create(ctx, "order/1", "order_status", json.RawMessage(`{"status":"ordered"}`), time.Unix(100, 0).UTC())
	require.NoError(t, err)

	// A sequence started before a mutation must not observe it
	// mid-iteration; mutating while ranging must not deadlock.
	for v, err := range s.History(ctx, "order/1") {
		require.NoError(t, err)
		if v.Open() {
			_, serr := s.Supersede(ctx, "order/1", json.RawMessage(`{"status":"paid"}`), time.Unix(200, 0).UTC())
			require.NoError(t, serr)
		}
	}

	history, err := temporal.CollectHistory(s.History(ctx, "order/1"))
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStore_Subjects(t *testing.T) {
	s := New(WithIDGenerator(temporal.NewSequenceGenerator("m")))
	ctx := context.Background()

	for _, id := range []string{"q/2", "order/1", "p/3"} {
		_, err := s.Create(ctx, id, "k", json.RawMessage(`{}`), time.Unix(100, 0).UTC())
		require.NoError(t, err)
	}

	got, err := s.Subjects(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"order/1", "p/3", "q/2"}, got)
}
