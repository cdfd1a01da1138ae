package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hollis-dev/chronicle/internal/memstore"
	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Event records the outcome of one scenario step.
type Event struct {
	Seq        int            `json:"seq"`
	Op         string         `json:"op"`
	Subject    string         `json:"subject,omitempty"`
	Status     string         `json:"status"` // "ok", "error", "absent"
	Error      string         `json:"error,omitempty"`
	Version    *EventVersion  `json:"version,omitempty"`
	History    []EventVersion `json:"history,omitempty"`
	Violations int            `json:"violations,omitempty"`
}

// EventVersion is the snapshot shape of one version.
type EventVersion struct {
	ID        string `json:"id"`
	Kind      string `json:"kind,omitempty"`
	Payload   string `json:"payload"`
	ValidFrom string `json:"valid_from"`
	ValidTo   string `json:"valid_to"`
}

// Result holds the full event log of a scenario run.
type Result struct {
	ScenarioName string  `json:"scenario_name"`
	Events       []Event `json:"events"`
}

// Run executes the scenario against a fresh deterministic in-memory
// store. A step whose outcome contradicts its expect_error clause
// aborts the run with an error.
func Run(scenario *Scenario) (*Result, error) {
	s := memstore.New(memstore.WithIDGenerator(temporal.NewSequenceGenerator("v")))
	return RunAgainst(scenario, s)
}

// RunAgainst executes the scenario against the given store. For
// deterministic snapshots the store must generate deterministic IDs.
func RunAgainst(scenario *Scenario, s temporal.Store) (*Result, error) {
	ctx := context.Background()
	result := &Result{ScenarioName: scenario.Name}

	for i, step := range scenario.Steps {
		event, err := runStep(ctx, s, i+1, step)
		if err != nil {
			return nil, fmt.Errorf("step %d (%s %s): %w", i+1, step.Op, step.Subject, err)
		}
		result.Events = append(result.Events, event)
	}

	return result, nil
}

func runStep(ctx context.Context, s temporal.Store, seq int, step Step) (Event, error) {
	event := Event{Seq: seq, Op: step.Op, Subject: step.Subject}

	var at time.Time
	if step.At != "" {
		at, _ = time.Parse(time.RFC3339, step.At) // validated at load time
		at = at.UTC()
	}

	switch step.Op {
	case OpCreate:
		v, err := s.Create(ctx, step.Subject, step.Kind, json.RawMessage(step.Payload), at)
		return mutationEvent(event, step, v, err)

	case OpSupersede:
		v, err := s.Supersede(ctx, step.Subject, json.RawMessage(step.Payload), at)
		return mutationEvent(event, step, v, err)

	case OpRetire:
		err := s.Retire(ctx, step.Subject, at)
		return mutationEvent(event, step, temporal.Version{}, err)

	case OpCurrent:
		v, ok, err := s.Current(ctx, step.Subject)
		return queryEvent(event, v, ok, err)

	case OpAsOf:
		v, ok, err := s.AsOf(ctx, step.Subject, at)
		return queryEvent(event, v, ok, err)

	case OpHistory:
		versions, err := temporal.CollectHistory(s.History(ctx, step.Subject))
		if err != nil {
			return event, err
		}
		event.Status = "ok"
		event.History = make([]EventVersion, 0, len(versions))
		for _, v := range versions {
			event.History = append(event.History, versionOf(v))
		}
		return event, nil

	case OpVerify:
		auditor, ok := s.(temporal.Auditor)
		if !ok {
			return event, fmt.Errorf("store does not support verification")
		}
		violations, err := auditor.Verify(ctx)
		if err != nil {
			return event, err
		}
		event.Status = "ok"
		event.Violations = len(violations)
		return event, nil
	}

	return event, fmt.Errorf("unknown op %q", step.Op)
}

// mutationEvent resolves a mutation outcome against the step's
// expect_error clause.
func mutationEvent(event Event, step Step, v temporal.Version, err error) (Event, error) {
	if err != nil {
		code := errorCode(err)
		if step.ExpectError == "" {
			return event, fmt.Errorf("unexpected error: %w", err)
		}
		if code != step.ExpectError {
			return event, fmt.Errorf("expected error %s, got %s", step.ExpectError, code)
		}
		event.Status = "error"
		event.Error = code
		return event, nil
	}

	if step.ExpectError != "" {
		return event, fmt.Errorf("expected error %s, but step succeeded", step.ExpectError)
	}
	event.Status = "ok"
	if v.ID != "" {
		ev := versionOf(v)
		event.Version = &ev
	}
	return event, nil
}

func queryEvent(event Event, v temporal.Version, ok bool, err error) (Event, error) {
	if err != nil {
		return event, err
	}
	if !ok {
		event.Status = "absent"
		return event, nil
	}
	event.Status = "ok"
	ev := versionOf(v)
	event.Version = &ev
	return event, nil
}

func versionOf(v temporal.Version) EventVersion {
	validTo := "open"
	if !v.Open() {
		validTo = v.ValidTo.Format(time.RFC3339Nano)
	}
	return EventVersion{
		ID:        v.ID,
		Kind:      v.Kind,
		Payload:   string(v.Payload),
		ValidFrom: v.ValidFrom.Format(time.RFC3339Nano),
		ValidTo:   validTo,
	}
}

func errorCode(err error) string {
	var storeErr *temporal.StoreError
	if errors.As(err, &storeErr) {
		return string(storeErr.Code)
	}
	return "ERROR"
}
