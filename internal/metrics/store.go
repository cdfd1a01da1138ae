package metrics

import (
	"context"
	"encoding/json"
	"iter"
	"time"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// InstrumentedStore wraps a temporal store and records one observation
// per operation. Successful Create and Retire calls also move the
// open-subjects gauge, so it counts only mutations made through this
// wrapper.
type InstrumentedStore struct {
	inner temporal.Store
	m     *Metrics
}

// Instrument wraps inner with operation counters and latency histograms.
func Instrument(inner temporal.Store, m *Metrics) *InstrumentedStore {
	return &InstrumentedStore{inner: inner, m: m}
}

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	s.m.RecordOperation(op, status, time.Since(start))
}

func (s *InstrumentedStore) Create(ctx context.Context, subjectID, kind string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	start := time.Now()
	v, err := s.inner.Create(ctx, subjectID, kind, payload, at)
	s.observe("create", start, err)
	if err == nil {
		s.m.OpenSubjects.Inc()
	}
	return v, err
}

func (s *InstrumentedStore) Supersede(ctx context.Context, subjectID string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	start := time.Now()
	v, err := s.inner.Supersede(ctx, subjectID, payload, at)
	s.observe("supersede", start, err)
	return v, err
}

func (s *InstrumentedStore) Retire(ctx context.Context, subjectID string, at time.Time) error {
	start := time.Now()
	err := s.inner.Retire(ctx, subjectID, at)
	s.observe("retire", start, err)
	if err == nil {
		s.m.OpenSubjects.Dec()
	}
	return err
}

func (s *InstrumentedStore) Current(ctx context.Context, subjectID string) (temporal.Version, bool, error) {
	start := time.Now()
	v, ok, err := s.inner.Current(ctx, subjectID)
	s.observe("current", start, err)
	return v, ok, err
}

func (s *InstrumentedStore) AsOf(ctx context.Context, subjectID string, t time.Time) (temporal.Version, bool, error) {
	start := time.Now()
	v, ok, err := s.inner.AsOf(ctx, subjectID, t)
	s.observe("asof", start, err)
	return v, ok, err
}

// History observes once per range over the sequence, when iteration
// finishes or the consumer breaks.
func (s *InstrumentedStore) History(ctx context.Context, subjectID string) iter.Seq2[temporal.Version, error] {
	inner := s.inner.History(ctx, subjectID)
	return func(yield func(temporal.Version, error) bool) {
		start := time.Now()
		var iterErr error
		for v, err := range inner {
			if err != nil {
				iterErr = err
			}
			if !yield(v, err) {
				break
			}
		}
		s.observe("history", start, iterErr)
	}
}

var _ temporal.Store = (*InstrumentedStore)(nil)
