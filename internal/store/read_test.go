package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

func TestCurrent_ReturnsOpenVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	created := mustCreate(t, s, "order/42", payload("ordered"), 100)

	v, ok, err := s.Current(ctx, "order/42")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if !ok {
		t.Fatal("Current() reported absent for live subject")
	}
	if v.ID != created.ID {
		t.Errorf("Current() ID = %q, want %q", v.ID, created.ID)
	}
	if !v.Open() {
		t.Error("Current() returned a closed version")
	}
}

func TestCurrent_AbsentSubject(t *testing.T) {
	s := createTestStore(t)

	_, ok, err := s.Current(context.Background(), "order/404")
	if err != nil {
		t.Fatalf("Current() failed: %v", err)
	}
	if ok {
		t.Error("Current() reported present for unknown subject")
	}
}

func TestAsOf_Boundaries(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if _, err := s.Supersede(ctx, "order/42", payload("paid"), at(200)); err != nil {
		t.Fatalf("Supersede() failed: %v", err)
	}

	tests := []struct {
		name   string
		sec    int64
		wantID string
		wantOK bool
	}{
		{"before creation", 50, "", false},
		{"at valid_from (inclusive)", 100, "v-0001", true},
		{"inside first interval", 150, "v-0001", true},
		{"at boundary (exclusive for old, inclusive for new)", 200, "v-0002", true},
		{"inside open interval", 250, "v-0002", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok, err := s.AsOf(ctx, "order/42", at(tt.sec))
			if err != nil {
				t.Fatalf("AsOf() failed: %v", err)
			}
			if ok != tt.wantOK {
				t.Fatalf("AsOf() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && v.ID != tt.wantID {
				t.Errorf("AsOf() ID = %q, want %q", v.ID, tt.wantID)
			}
		})
	}
}

func TestAsOf_RetiredGap(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if err := s.Retire(ctx, "order/42", at(300)); err != nil {
		t.Fatalf("Retire() failed: %v", err)
	}

	// Inside the closed interval: still visible.
	if _, ok, _ := s.AsOf(ctx, "order/42", at(250)); !ok {
		t.Error("AsOf inside closed interval should return the version")
	}

	// After retirement: absent.
	if _, ok, _ := s.AsOf(ctx, "order/42", at(300)); ok {
		t.Error("AsOf at retirement instant should be absent")
	}
	if _, ok, _ := s.AsOf(ctx, "order/42", at(400)); ok {
		t.Error("AsOf after retirement should be absent")
	}
}

func TestHistory_OrderedAscending(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	for _, step := range []struct {
		status string
		sec    int64
	}{
		{"paid", 200},
		{"shipped", 300},
		{"delivered", 400},
	} {
		if _, err := s.Supersede(ctx, "order/42", payload(step.status), at(step.sec)); err != nil {
			t.Fatalf("Supersede(%s) failed: %v", step.status, err)
		}
	}

	history := mustHistory(t, s, "order/42")
	if len(history) != 4 {
		t.Fatalf("history length = %d, want 4", len(history))
	}

	for i := 1; i < len(history); i++ {
		if history[i].ValidFrom.Before(history[i-1].ValidFrom) {
			t.Errorf("history not ordered by valid_from at index %d", i)
		}
		if !history[i-1].ValidTo.Equal(history[i].ValidFrom) {
			t.Errorf("history not contiguous at index %d", i)
		}
	}

	if !history[len(history)-1].Open() {
		t.Error("last version should be open")
	}
}

func TestHistory_Restartable(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if _, err := s.Supersede(ctx, "order/42", payload("paid"), at(200)); err != nil {
		t.Fatalf("Supersede() failed: %v", err)
	}

	seq := s.History(ctx, "order/42")

	first, err := temporal.CollectHistory(seq)
	if err != nil {
		t.Fatalf("first traversal failed: %v", err)
	}
	second, err := temporal.CollectHistory(seq)
	if err != nil {
		t.Fatalf("second traversal failed: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("two traversals of an unmutated subject differ")
	}
}

func TestHistory_EarlyBreak(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	mustCreate(t, s, "order/42", payload("ordered"), 100)
	if _, err := s.Supersede(ctx, "order/42", payload("paid"), at(200)); err != nil {
		t.Fatalf("Supersede() failed: %v", err)
	}

	// Abandoning the traversal early must not wedge the store.
	for range s.History(ctx, "order/42") {
		break
	}

	if _, ok, err := s.Current(ctx, "order/42"); err != nil || !ok {
		t.Errorf("store unusable after early break: ok=%v err=%v", ok, err)
	}
}

func TestHistory_UnknownSubject(t *testing.T) {
	s := createTestStore(t)

	history := mustHistory(t, s, "order/404")
	if len(history) != 0 {
		t.Errorf("history length = %d for unknown subject, want 0", len(history))
	}
}

func TestSubjects(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	subjects, err := s.Subjects(ctx)
	if err != nil {
		t.Fatalf("Subjects() failed: %v", err)
	}
	if len(subjects) != 0 {
		t.Errorf("Subjects() on empty store = %v, want empty", subjects)
	}

	mustCreate(t, s, "order/2", payload("ordered"), 100)
	mustCreate(t, s, "order/1", payload("ordered"), 100)
	if err := s.Retire(ctx, "order/1", at(200)); err != nil {
		t.Fatalf("Retire() failed: %v", err)
	}

	subjects, err = s.Subjects(ctx)
	if err != nil {
		t.Fatalf("Subjects() failed: %v", err)
	}
	// Retired subjects keep their history and stay listed.
	want := []string{"order/1", "order/2"}
	if !reflect.DeepEqual(subjects, want) {
		t.Errorf("Subjects() = %v, want %v", subjects, want)
	}
}
