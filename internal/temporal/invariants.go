package temporal

import (
	"fmt"
	"sort"
)

// Violation describes one invariant breach found by an Auditor.
type Violation struct {
	SubjectID  string   `json:"subject_id"`
	Kind       string   `json:"kind,omitempty"`
	Message    string   `json:"message"`
	VersionIDs []string `json:"version_ids,omitempty"`
}

// CheckIntervals audits one subject's versions against the interval
// invariants: ValidFrom < ValidTo, no overlapping intervals, and at most
// one open version. Backends share this logic; their Verify methods only
// differ in how they enumerate subjects.
//
// The input slice is not mutated.
func CheckIntervals(subjectID string, versions []Version) []Violation {
	if len(versions) == 0 {
		return nil
	}

	sorted := make([]Version, len(versions))
	copy(sorted, versions)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ValidFrom.Before(sorted[j].ValidFrom)
	})

	var violations []Violation
	kind := sorted[0].Kind

	var openIDs []string
	for _, v := range sorted {
		if !v.ValidFrom.Before(v.ValidTo) {
			violations = append(violations, Violation{
				SubjectID:  subjectID,
				Kind:       kind,
				Message:    fmt.Sprintf("valid_from %s is not before valid_to %s", v.ValidFrom, v.ValidTo),
				VersionIDs: []string{v.ID},
			})
		}
		if v.Open() {
			openIDs = append(openIDs, v.ID)
		}
	}

	if len(openIDs) > 1 {
		violations = append(violations, Violation{
			SubjectID:  subjectID,
			Kind:       kind,
			Message:    fmt.Sprintf("%d open versions, want at most 1", len(openIDs)),
			VersionIDs: openIDs,
		})
	}

	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if prev.Overlaps(cur) {
			violations = append(violations, Violation{
				SubjectID:  subjectID,
				Kind:       kind,
				Message:    "overlapping intervals",
				VersionIDs: []string{prev.ID, cur.ID},
			})
		}
	}

	return violations
}
