// Package storetest provides a conformance suite that every temporal
// store backend must pass. Backend packages call Run from their own
// tests, so SQLite, PostgreSQL and the in-memory store are held to
// identical semantics.
package storetest

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Factory creates a fresh, empty store for one subtest. Cleanup should
// be registered on t.
type Factory func(t *testing.T) temporal.Store

// Run executes the full conformance suite against the backend.
func Run(t *testing.T, open Factory) {
	t.Run("CreateSetsCurrent", func(t *testing.T) { testCreateSetsCurrent(t, open(t)) })
	t.Run("CreateDuplicateSubject", func(t *testing.T) { testCreateDuplicateSubject(t, open(t)) })
	t.Run("SupersedeLifecycle", func(t *testing.T) { testSupersedeLifecycle(t, open(t)) })
	t.Run("SupersedeNotFound", func(t *testing.T) { testSupersedeNotFound(t, open(t)) })
	t.Run("SupersedeNonMonotonic", func(t *testing.T) { testSupersedeNonMonotonic(t, open(t)) })
	t.Run("RetireLifecycle", func(t *testing.T) { testRetireLifecycle(t, open(t)) })
	t.Run("RetireNotFound", func(t *testing.T) { testRetireNotFound(t, open(t)) })
	t.Run("RecreateAfterRetire", func(t *testing.T) { testRecreateAfterRetire(t, open(t)) })
	t.Run("SubMicrosecondTimestamps", func(t *testing.T) { testSubMicrosecondTimestamps(t, open(t)) })
	t.Run("AsOfContainment", func(t *testing.T) { testAsOfContainment(t, open(t)) })
	t.Run("HistoryRestartable", func(t *testing.T) { testHistoryRestartable(t, open(t)) })
	t.Run("PayloadCanonicalized", func(t *testing.T) { testPayloadCanonicalized(t, open(t)) })
	t.Run("ConcurrentSupersede", func(t *testing.T) { testConcurrentSupersede(t, open(t)) })
	t.Run("InvariantsAfterMixedUse", func(t *testing.T) { testInvariantsAfterMixedUse(t, open(t)) })
}

func ts(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func pl(s string) json.RawMessage {
	return json.RawMessage(`{"status":"` + s + `"}`)
}

// Scenario: create(42, P1, t=100) -> current returns (P1, 100, sentinel).
func testCreateSetsCurrent(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	created, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	assert.True(t, created.Open())

	v, ok, err := s.Current(ctx, "order/42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, created.ID, v.ID)
	assert.Equal(t, `{"status":"ordered"}`, string(v.Payload))
	assert.True(t, v.ValidFrom.Equal(ts(100)))
	assert.True(t, temporal.IsSentinel(v.ValidTo))
}

func testCreateDuplicateSubject(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)

	_, err = s.Create(ctx, "order/42", "order_status", pl("paid"), ts(200))
	assert.True(t, temporal.IsDuplicateSubject(err), "got %v", err)

	// The failed create has no side effect.
	history, herr := temporal.CollectHistory(s.History(ctx, "order/42"))
	require.NoError(t, herr)
	assert.Len(t, history, 1)
}

// Scenario: supersede(42, P2, t=200) -> current is (P2, 200, sentinel);
// as_of(42, 150) is (P1, 100, 200); as_of(42, 250) is (P2, 200, sentinel).
func testSupersedeLifecycle(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	next, err := s.Supersede(ctx, "order/42", pl("paid"), ts(200))
	require.NoError(t, err)

	cur, ok, err := s.Current(ctx, "order/42")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next.ID, cur.ID)
	assert.True(t, cur.ValidFrom.Equal(ts(200)))
	assert.True(t, temporal.IsSentinel(cur.ValidTo))
	assert.Equal(t, "order_status", cur.Kind, "kind is inherited")

	old, ok, err := s.AsOf(ctx, "order/42", ts(150))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"status":"ordered"}`, string(old.Payload))
	assert.True(t, old.ValidFrom.Equal(ts(100)))
	assert.True(t, old.ValidTo.Equal(ts(200)))

	now, ok, err := s.AsOf(ctx, "order/42", ts(250))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next.ID, now.ID)
}

func testSupersedeNotFound(t *testing.T, s temporal.Store) {
	_, err := s.Supersede(context.Background(), "order/404", pl("paid"), ts(200))
	assert.True(t, temporal.IsNotFound(err), "got %v", err)
}

// Scenario: supersede at t not greater than the open version's
// valid_from fails with INVALID_TRANSITION.
func testSupersedeNonMonotonic(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "order/42", pl("paid"), ts(200))
	require.NoError(t, err)

	_, err = s.Supersede(ctx, "order/42", pl("shipped"), ts(150))
	assert.True(t, temporal.IsInvalidTransition(err), "got %v", err)

	_, err = s.Supersede(ctx, "order/42", pl("shipped"), ts(200))
	assert.True(t, temporal.IsInvalidTransition(err), "equal timestamps must be rejected, got %v", err)
}

// Scenario: retire(42, t=300) -> current absent; as_of(42, 250) still
// returns the closed version (P2, 200, 300).
func testRetireLifecycle(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "order/42", pl("paid"), ts(200))
	require.NoError(t, err)
	require.NoError(t, s.Retire(ctx, "order/42", ts(300)))

	_, ok, err := s.Current(ctx, "order/42")
	require.NoError(t, err)
	assert.False(t, ok, "retired subject must report absent")

	v, ok, err := s.AsOf(ctx, "order/42", ts(250))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `{"status":"paid"}`, string(v.Payload))
	assert.True(t, v.ValidFrom.Equal(ts(200)))
	assert.True(t, v.ValidTo.Equal(ts(300)))

	_, ok, err = s.AsOf(ctx, "order/42", ts(350))
	require.NoError(t, err)
	assert.False(t, ok, "no version is effective after retirement")
}

func testRetireNotFound(t *testing.T, s temporal.Store) {
	err := s.Retire(context.Background(), "order/404", ts(100))
	assert.True(t, temporal.IsNotFound(err), "got %v", err)
}

func testRecreateAfterRetire(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	require.NoError(t, s.Retire(ctx, "order/42", ts(200)))

	// Overlapping re-creation is rejected.
	_, err = s.Create(ctx, "order/42", "order_status", pl("again"), ts(150))
	assert.True(t, temporal.IsInvalidTransition(err), "got %v", err)

	// Contiguous re-creation is fine.
	_, err = s.Create(ctx, "order/42", "order_status", pl("again"), ts(200))
	require.NoError(t, err)

	history, err := temporal.CollectHistory(s.History(ctx, "order/42"))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.False(t, history[0].Open())
	assert.True(t, history[1].Open())
}

// Timestamps are stored at microsecond precision, so a mutation whose t
// falls inside the open version's microsecond must be rejected the same
// way an equal timestamp is. Without normalizing before the ordering
// check, such a write would truncate into a zero-width interval.
func testSubMicrosecondTimestamps(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)

	inside := ts(100).Add(500 * time.Nanosecond)
	_, err = s.Supersede(ctx, "order/42", pl("paid"), inside)
	assert.True(t, temporal.IsInvalidTransition(err), "got %v", err)

	err = s.Retire(ctx, "order/42", inside)
	assert.True(t, temporal.IsInvalidTransition(err), "got %v", err)

	// One whole microsecond later is a valid transition, and the stored
	// boundary drops the sub-microsecond remainder.
	next, err := s.Supersede(ctx, "order/42", pl("paid"), ts(100).Add(time.Microsecond+300*time.Nanosecond))
	require.NoError(t, err)
	assert.True(t, next.ValidFrom.Equal(ts(100).Add(time.Microsecond)))

	history, err := temporal.CollectHistory(s.History(ctx, "order/42"))
	require.NoError(t, err)
	for _, v := range history {
		assert.True(t, v.ValidFrom.Before(v.ValidTo), "no zero-width intervals: %s", v.ID)
	}

	if auditor, ok := s.(temporal.Auditor); ok {
		violations, err := auditor.Verify(ctx)
		require.NoError(t, err)
		assert.Empty(t, violations)
	}
}

// as_of(id, t) for t inside version V's interval always returns V,
// including the inclusive/exclusive boundary behavior.
func testAsOfContainment(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "q/7", "quantity", pl("10"), ts(100))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "q/7", pl("8"), ts(200))
	require.NoError(t, err)

	_, ok, err := s.AsOf(ctx, "q/7", ts(99))
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := s.AsOf(ctx, "q/7", ts(100))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.ValidFrom.Equal(ts(100)), "valid_from is inclusive")

	v, ok, err = s.AsOf(ctx, "q/7", ts(200))
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, v.ValidFrom.Equal(ts(200)), "valid_to is exclusive: boundary belongs to successor")
}

// history() called twice with no mutation in between returns identical
// ordered sequences.
func testHistoryRestartable(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "order/42", pl("paid"), ts(200))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "order/42", pl("shipped"), ts(300))
	require.NoError(t, err)

	seq := s.History(ctx, "order/42")
	first, err := temporal.CollectHistory(seq)
	require.NoError(t, err)
	second, err := temporal.CollectHistory(seq)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	for i := 1; i < len(first); i++ {
		assert.False(t, first[i].ValidFrom.Before(first[i-1].ValidFrom), "ascending valid_from")
	}
}

func testPayloadCanonicalized(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	v, err := s.Create(ctx, "p/1", "product_detail", json.RawMessage(`{"name": "셔츠", "price": 15000}`), ts(100))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"셔츠","price":15000}`, string(v.Payload))

	w, err := s.Supersede(ctx, "p/1", json.RawMessage(`{"price": 12000,   "name": "셔츠"}`), ts(200))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"셔츠","price":12000}`, string(w.Payload))
}

// Two concurrent supersedes racing on the same open version: exactly
// one succeeds, and at most one open version exists afterwards.
func testConcurrentSupersede(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	_, err := s.Create(ctx, "order/42", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)

	const writers = 8
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Supersede(ctx, "order/42", pl("paid"), ts(500))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded int
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, temporal.IsInvalidTransition(err) || temporal.IsStorageUnavailable(err),
			"unexpected race outcome: %v", err)
	}
	assert.Equal(t, 1, succeeded, "exactly one racing supersede must win")

	history, err := temporal.CollectHistory(s.History(ctx, "order/42"))
	require.NoError(t, err)

	var open int
	for _, v := range history {
		if v.Open() {
			open++
		}
	}
	assert.LessOrEqual(t, open, 1, "at most one open version after the race")
}

func testInvariantsAfterMixedUse(t *testing.T, s temporal.Store) {
	ctx := context.Background()

	auditor, ok := s.(temporal.Auditor)
	if !ok {
		t.Skip("backend does not implement Auditor")
	}

	_, err := s.Create(ctx, "order/1", "order_status", pl("ordered"), ts(100))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "order/1", pl("paid"), ts(200))
	require.NoError(t, err)
	require.NoError(t, s.Retire(ctx, "order/1", ts(300)))

	_, err = s.Create(ctx, "q/1", "quantity", pl("5"), ts(150))
	require.NoError(t, err)
	_, err = s.Supersede(ctx, "q/1", pl("4"), ts(250))
	require.NoError(t, err)

	violations, err := auditor.Verify(ctx)
	require.NoError(t, err)
	assert.Empty(t, violations)
}
