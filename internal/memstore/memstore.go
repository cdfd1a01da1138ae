// Package memstore provides an in-memory temporal record store.
//
// It implements the same semantics as the SQLite and PostgreSQL
// backends with a mutex in place of storage transactions: every
// mutation holds the write lock for its whole read-check-write span, so
// per-subject serializability holds trivially. Intended for tests and
// for embedding where durability is not needed.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"sort"
	"sync"
	"time"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Store is a mutex-guarded in-memory temporal record store.
type Store struct {
	mu       sync.RWMutex
	subjects map[string][]temporal.Version
	ids      temporal.IDGenerator
}

// Option configures a Store.
type Option func(*Store)

// WithIDGenerator overrides the version ID generator (UUIDv7 by default).
func WithIDGenerator(g temporal.IDGenerator) Option {
	return func(s *Store) { s.ids = g }
}

// New creates an empty in-memory store.
func New(opts ...Option) *Store {
	s := &Store{
		subjects: make(map[string][]temporal.Version),
		ids:      temporal.UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var (
	_ temporal.Store   = (*Store)(nil)
	_ temporal.Auditor = (*Store)(nil)
)

// Create inserts the first version for a new subject.
func (s *Store) Create(ctx context.Context, subjectID, kind string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	canonical, err := temporal.CanonicalizePayload(payload)
	if err != nil {
		return temporal.Version{}, fmt.Errorf("create: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return temporal.Version{}, temporal.NewStorageUnavailable("create", err)
	}
	at = temporal.Normalize(at)

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.subjects[subjectID]
	if openIndex(versions) >= 0 {
		return temporal.Version{}, temporal.NewDuplicateSubject(subjectID)
	}
	for _, v := range versions {
		if at.Before(v.ValidTo) {
			return temporal.Version{}, temporal.NewInvalidTransition(subjectID, at, v.ValidTo)
		}
	}

	v := temporal.Version{
		ID:        s.ids.NewID(),
		SubjectID: subjectID,
		Kind:      kind,
		Payload:   canonical,
		ValidFrom: at,
		ValidTo:   temporal.Sentinel,
	}
	s.subjects[subjectID] = append(versions, v)
	return v, nil
}

// Supersede closes the open version and inserts its successor, both
// under one lock acquisition.
func (s *Store) Supersede(ctx context.Context, subjectID string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	canonical, err := temporal.CanonicalizePayload(payload)
	if err != nil {
		return temporal.Version{}, fmt.Errorf("supersede: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return temporal.Version{}, temporal.NewStorageUnavailable("supersede", err)
	}
	at = temporal.Normalize(at)

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.subjects[subjectID]
	i := openIndex(versions)
	if i < 0 {
		return temporal.Version{}, temporal.NewNotFound(subjectID)
	}
	if !at.After(versions[i].ValidFrom) {
		return temporal.Version{}, temporal.NewInvalidTransition(subjectID, at, versions[i].ValidFrom)
	}

	versions[i].ValidTo = at

	next := temporal.Version{
		ID:        s.ids.NewID(),
		SubjectID: subjectID,
		Kind:      versions[i].Kind,
		Payload:   canonical,
		ValidFrom: at,
		ValidTo:   temporal.Sentinel,
	}
	s.subjects[subjectID] = append(versions, next)
	return next, nil
}

// Retire closes the open version without a successor.
func (s *Store) Retire(ctx context.Context, subjectID string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return temporal.NewStorageUnavailable("retire", err)
	}
	at = temporal.Normalize(at)

	s.mu.Lock()
	defer s.mu.Unlock()

	versions := s.subjects[subjectID]
	i := openIndex(versions)
	if i < 0 {
		return temporal.NewNotFound(subjectID)
	}
	if !at.After(versions[i].ValidFrom) {
		return temporal.NewInvalidTransition(subjectID, at, versions[i].ValidFrom)
	}

	versions[i].ValidTo = at
	return nil
}

// Current returns the subject's open version.
func (s *Store) Current(ctx context.Context, subjectID string) (temporal.Version, bool, error) {
	if err := ctx.Err(); err != nil {
		return temporal.Version{}, false, temporal.NewStorageUnavailable("current", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.subjects[subjectID]
	if i := openIndex(versions); i >= 0 {
		return versions[i], true, nil
	}
	return temporal.Version{}, false, nil
}

// AsOf returns the version effective at t.
func (s *Store) AsOf(ctx context.Context, subjectID string, t time.Time) (temporal.Version, bool, error) {
	if err := ctx.Err(); err != nil {
		return temporal.Version{}, false, temporal.NewStorageUnavailable("as-of", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.subjects[subjectID] {
		if v.Contains(t) {
			return v, true, nil
		}
	}
	return temporal.Version{}, false, nil
}

// History returns a lazy traversal over a snapshot of the subject's
// versions, ordered by ValidFrom ascending. Each range takes a fresh
// snapshot, so the sequence is restartable.
func (s *Store) History(ctx context.Context, subjectID string) iter.Seq2[temporal.Version, error] {
	return func(yield func(temporal.Version, error) bool) {
		if err := ctx.Err(); err != nil {
			yield(temporal.Version{}, temporal.NewStorageUnavailable("history", err))
			return
		}

		s.mu.RLock()
		snapshot := make([]temporal.Version, len(s.subjects[subjectID]))
		copy(snapshot, s.subjects[subjectID])
		s.mu.RUnlock()

		sort.Slice(snapshot, func(i, j int) bool {
			if !snapshot[i].ValidFrom.Equal(snapshot[j].ValidFrom) {
				return snapshot[i].ValidFrom.Before(snapshot[j].ValidFrom)
			}
			return snapshot[i].ID < snapshot[j].ID
		})

		for _, v := range snapshot {
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Subjects returns the distinct subject IDs, ordered lexicographically.
func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, temporal.NewStorageUnavailable("subjects", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	subjects := make([]string, 0, len(s.subjects))
	for id := range s.subjects {
		subjects = append(subjects, id)
	}
	sort.Strings(subjects)
	return subjects, nil
}

// Verify audits every subject against the interval invariants.
func (s *Store) Verify(ctx context.Context) ([]temporal.Violation, error) {
	subjects, err := s.Subjects(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	violations := []temporal.Violation{}
	for _, id := range subjects {
		violations = append(violations, temporal.CheckIntervals(id, s.subjects[id])...)
	}
	return violations, nil
}

// openIndex returns the index of the open version, or -1.
func openIndex(versions []temporal.Version) int {
	for i := len(versions) - 1; i >= 0; i-- {
		if versions[i].Open() {
			return i
		}
	}
	return -1
}
