package store

import (
	"context"
	"sync"
	"testing"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

func TestCreate_FirstVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	v, err := s.Create(ctx, "order/42", "order_status", payload("ordered"), at(100))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if v.ID != "v-0001" {
		t.Errorf("version ID = %q, want v-0001", v.ID)
	}
	if !v.Open() {
		t.Error("first version should be open")
	}
	if !v.ValidFrom.Equal(at(100)) {
		t.Errorf("valid_from = %s, want %s", v.ValidFrom, at(100))
	}
	if v.Kind != "order_status" {
		t.Errorf("kind = %q, want order_status", v.Kind)
	}
}

func TestCreate_CanonicalizesPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	v, err := s.Create(ctx, "p/1", "product_detail", []byte(`{"b": 2, "a": 1}`), at(100))
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}

	if string(v.Payload) != `{"a":1,"b":2}` {
		t.Errorf("payload = %s, want canonical form", v.Payload)
	}
}

func TestCreate_InvalidPayload(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Create(context.Background(), "p/1", "", []byte(`{"broken`), at(100))
	if err == nil {
		t.Fatal("expected error for invalid JSON payload")
	}
}

func TestCreate_DuplicateSubject(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if _, err := s.Create(ctx, "order/42", "order_status", payload("ordered"), at(100)); err != nil {
		t.Fatalf("first Create() failed: %v", err)
	}

	_, err := s.Create(ctx, "order/42", "order_status", payload("paid"), at(200))
	if !temporal.IsDuplicateSubject(err) {
		t.Errorf("expected DUPLICATE_SUBJECT, got %v", err)
	}
}

func TestCreate_AfterRetire(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if err := s.Retire(ctx, "order/42", at(200)); err != nil {
		t.Fatalf("Retire() failed: %v", err)
	}

	// Re-creation at the retirement instant is allowed (intervals stay
	// disjoint: [100,200) then [200, sentinel)).
	v, err := s.Create(ctx, "order/42", "order_status", payload("reordered"), at(200))
	if err != nil {
		t.Fatalf("Create() after retire failed: %v", err)
	}
	if !v.Open() {
		t.Error("re-created version should be open")
	}
}

func TestCreate_AfterRetire_Overlapping(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if err := s.Retire(ctx, "order/42", at(200)); err != nil {
		t.Fatalf("Retire() failed: %v", err)
	}

	// Re-creating inside the closed interval would overlap history.
	_, err := s.Create(ctx, "order/42", "order_status", payload("bad"), at(150))
	if !temporal.IsInvalidTransition(err) {
		t.Errorf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestSupersede_ClosesPrevious(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)

	next, err := s.Supersede(ctx, "order/42", payload("paid"), at(200))
	if err != nil {
		t.Fatalf("Supersede() failed: %v", err)
	}
	if !next.Open() {
		t.Error("successor should be open")
	}
	if next.Kind != "order_status" {
		t.Errorf("successor kind = %q, want inherited order_status", next.Kind)
	}

	history := mustHistory(t, s, "order/42")
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if !history[0].ValidTo.Equal(at(200)) {
		t.Errorf("previous valid_to = %s, want %s", history[0].ValidTo, at(200))
	}
	if !history[1].ValidFrom.Equal(at(200)) {
		t.Errorf("successor valid_from = %s, want %s", history[1].ValidFrom, at(200))
	}
}

func TestSupersede_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Supersede(context.Background(), "order/404", payload("paid"), at(200))
	if !temporal.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestSupersede_AfterRetire_NotFound(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if err := s.Retire(ctx, "order/42", at(200)); err != nil {
		t.Fatalf("Retire() failed: %v", err)
	}

	_, err := s.Supersede(ctx, "order/42", payload("paid"), at(300))
	if !temporal.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND after retire, got %v", err)
	}
}

func TestSupersede_NonMonotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if _, err := s.Supersede(ctx, "order/42", payload("paid"), at(200)); err != nil {
		t.Fatalf("Supersede() failed: %v", err)
	}

	// at equal to or before the open version's valid_from is rejected.
	for _, sec := range []int64{200, 150} {
		_, err := s.Supersede(ctx, "order/42", payload("shipped"), at(sec))
		if !temporal.IsInvalidTransition(err) {
			t.Errorf("Supersede at t=%d: expected INVALID_TRANSITION, got %v", sec, err)
		}
	}
}

func TestSupersede_FailedAttemptLeavesHistoryIntact(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if _, err := s.Supersede(ctx, "order/42", payload("bad"), at(50)); err == nil {
		t.Fatal("expected failure")
	}

	history := mustHistory(t, s, "order/42")
	if len(history) != 1 {
		t.Fatalf("history length = %d after failed supersede, want 1", len(history))
	}
	if !history[0].Open() {
		t.Error("original version should still be open")
	}
}

func TestRetire_ClosesWithoutSuccessor(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if err := s.Retire(ctx, "order/42", at(300)); err != nil {
		t.Fatalf("Retire() failed: %v", err)
	}

	if _, ok, err := s.Current(ctx, "order/42"); err != nil || ok {
		t.Errorf("Current() after retire = ok=%v err=%v, want absent", ok, err)
	}

	history := mustHistory(t, s, "order/42")
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if !history[0].ValidTo.Equal(at(300)) {
		t.Errorf("valid_to = %s, want %s", history[0].ValidTo, at(300))
	}
}

func TestRetire_NotFound(t *testing.T) {
	s := createTestStore(t)

	err := s.Retire(context.Background(), "order/404", at(100))
	if !temporal.IsNotFound(err) {
		t.Errorf("expected NOT_FOUND, got %v", err)
	}
}

func TestRetire_NonMonotonic(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)

	err := s.Retire(ctx, "order/42", at(100))
	if !temporal.IsInvalidTransition(err) {
		t.Errorf("expected INVALID_TRANSITION, got %v", err)
	}
}

func TestSupersede_ConcurrentRace(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)

	const writers = 8
	errs := make(chan error, writers)

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Supersede(ctx, "order/42", payload("paid"), at(500))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, conflicted int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case temporal.IsInvalidTransition(err):
			conflicted++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}

	if succeeded != 1 {
		t.Errorf("%d supersedes succeeded, want exactly 1", succeeded)
	}
	if conflicted != writers-1 {
		t.Errorf("%d supersedes conflicted, want %d", conflicted, writers-1)
	}

	// At most one open version afterwards.
	violations, err := s.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if len(violations) != 0 {
		t.Errorf("invariant violations after race: %+v", violations)
	}
}

// mustCreate creates a subject or fails the test.
func mustCreate(t *testing.T, s *Store, subjectID string, p []byte, sec int64) temporal.Version {
	t.Helper()
	v, err := s.Create(context.Background(), subjectID, "order_status", p, at(sec))
	if err != nil {
		t.Fatalf("Create(%s) failed: %v", subjectID, err)
	}
	return v
}

// mustHistory collects a subject's history or fails the test.
func mustHistory(t *testing.T, s *Store, subjectID string) []temporal.Version {
	t.Helper()
	history, err := temporal.CollectHistory(s.History(context.Background(), subjectID))
	if err != nil {
		t.Fatalf("History(%s) failed: %v", subjectID, err)
	}
	return history
}
