package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// ValidatingStore wraps a temporal store and rejects writes whose
// payload fails the registered schema for the subject's kind. Reads
// pass through untouched.
type ValidatingStore struct {
	inner    temporal.Store
	registry *Registry
}

// Wrap returns a store that validates payloads through registry before
// delegating to inner.
func Wrap(inner temporal.Store, registry *Registry) *ValidatingStore {
	return &ValidatingStore{inner: inner, registry: registry}
}

func (s *ValidatingStore) Create(ctx context.Context, subjectID, kind string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	if err := s.registry.Validate(kind, payload); err != nil {
		return temporal.Version{}, err
	}
	return s.inner.Create(ctx, subjectID, kind, payload, at)
}

// Supersede validates against the open version's kind, since successors
// inherit it. The kind read races with concurrent writers, but the
// inner store's transition checks still hold: at worst a payload is
// validated against a kind that was just retired, and the write then
// fails inside the inner store.
func (s *ValidatingStore) Supersede(ctx context.Context, subjectID string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	open, ok, err := s.inner.Current(ctx, subjectID)
	if err != nil {
		return temporal.Version{}, err
	}
	if !ok {
		return temporal.Version{}, temporal.NewNotFound(subjectID)
	}
	if err := s.registry.Validate(open.Kind, payload); err != nil {
		return temporal.Version{}, err
	}
	return s.inner.Supersede(ctx, subjectID, payload, at)
}

func (s *ValidatingStore) Retire(ctx context.Context, subjectID string, at time.Time) error {
	return s.inner.Retire(ctx, subjectID, at)
}

func (s *ValidatingStore) Current(ctx context.Context, subjectID string) (temporal.Version, bool, error) {
	return s.inner.Current(ctx, subjectID)
}

func (s *ValidatingStore) AsOf(ctx context.Context, subjectID string, t time.Time) (temporal.Version, bool, error) {
	return s.inner.AsOf(ctx, subjectID, t)
}

func (s *ValidatingStore) History(ctx context.Context, subjectID string) iter.Seq2[temporal.Version, error] {
	return s.inner.History(ctx, subjectID)
}

// Verify delegates to the wrapped store's auditor.
func (s *ValidatingStore) Verify(ctx context.Context) ([]temporal.Violation, error) {
	auditor, ok := s.inner.(temporal.Auditor)
	if !ok {
		return nil, fmt.Errorf("wrapped store does not support verification")
	}
	return auditor.Verify(ctx)
}

var _ temporal.Store = (*ValidatingStore)(nil)
