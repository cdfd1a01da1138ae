package temporal

import (
	"context"
	"encoding/json"
	"iter"
	"time"
)

// Sentinel is the open-ended ValidTo marker: a version with this ValidTo
// is the subject's current version. The value matches the far-future
// timestamp used by the source schema ('9999-12-31 23:59:59').
var Sentinel = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)

// IsSentinel reports whether t is the open-ended marker.
func IsSentinel(t time.Time) bool {
	return t.Equal(Sentinel)
}

// Version is one valid-time slice of a subject's history.
//
// ID is unique per version row, not per subject. Kind is a free-form
// discriminator set at subject creation (e.g. "order_status",
// "quantity") and inherited by every successor version.
type Version struct {
	ID        string          `json:"id"`
	SubjectID string          `json:"subject_id"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	ValidFrom time.Time       `json:"valid_from"`
	ValidTo   time.Time       `json:"valid_to"`
}

// Open reports whether this is the subject's current version.
func (v Version) Open() bool {
	return IsSentinel(v.ValidTo)
}

// Contains reports whether t falls inside [ValidFrom, ValidTo).
func (v Version) Contains(t time.Time) bool {
	return !t.Before(v.ValidFrom) && t.Before(v.ValidTo)
}

// Overlaps reports whether the intervals of v and w share any instant.
func (v Version) Overlaps(w Version) bool {
	return v.ValidFrom.Before(w.ValidTo) && w.ValidFrom.Before(v.ValidTo)
}

// Store is the operation surface of a temporal record store.
//
// All mutating operations are serializable per subject: when two
// mutations race on the same subject, one commits and the other fails
// with a logical error. Read operations run against committed versions
// and never block writers.
type Store interface {
	// Create inserts the first version of a new subject, open-ended from
	// at. Fails with DUPLICATE_SUBJECT if the subject already has an open
	// version, and with INVALID_TRANSITION if at would overlap the
	// subject's closed history (re-creation after retirement must start
	// at or after the retirement instant).
	Create(ctx context.Context, subjectID, kind string, payload json.RawMessage, at time.Time) (Version, error)

	// Supersede atomically closes the subject's open version at the
	// given instant and inserts an open successor carrying the new
	// payload. Fails with NOT_FOUND if no open version exists and with
	// INVALID_TRANSITION if at is not strictly after the open version's
	// ValidFrom.
	Supersede(ctx context.Context, subjectID string, payload json.RawMessage, at time.Time) (Version, error)

	// Retire closes the subject's open version without a successor.
	// Fails with NOT_FOUND if no open version exists and with
	// INVALID_TRANSITION if at is not strictly after the open version's
	// ValidFrom.
	Retire(ctx context.Context, subjectID string, at time.Time) error

	// Current returns the subject's open version. The boolean is false
	// when the subject is retired or was never created.
	Current(ctx context.Context, subjectID string) (Version, bool, error)

	// AsOf returns the version whose interval contains t. The boolean is
	// false when the subject did not exist or was retired at t.
	AsOf(ctx context.Context, subjectID string, t time.Time) (Version, bool, error)

	// History returns a lazy traversal of all versions of the subject,
	// ordered by ValidFrom ascending. The sequence is finite and
	// restartable: every range over it performs a fresh traversal of the
	// committed data.
	History(ctx context.Context, subjectID string) iter.Seq2[Version, error]
}

// Auditor is implemented by backends that can check the stored data
// against the interval invariants. The source schema cannot enforce
// these itself, so every backend in this module does.
type Auditor interface {
	// Verify scans all subjects and reports invariant violations.
	// An empty slice means the store is consistent.
	Verify(ctx context.Context) ([]Violation, error)
}

// CollectHistory materializes a History sequence into a slice.
func CollectHistory(seq iter.Seq2[Version, error]) ([]Version, error) {
	versions := []Version{}
	for v, err := range seq {
		if err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, nil
}
