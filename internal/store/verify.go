package store

import (
	"context"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Verify audits every subject against the interval invariants: no
// overlapping intervals, at most one open version, valid_from strictly
// before valid_to. The schema's partial unique index enforces
// single-current for new writes; Verify additionally catches data
// imported from sources without that protection.
func (s *Store) Verify(ctx context.Context) ([]temporal.Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		ORDER BY subject_id ASC, valid_from ASC, id ASC
	`)
	if err != nil {
		return nil, mapStorageErr("verify", err)
	}
	defer rows.Close()

	violations := []temporal.Violation{}
	var subject string
	var batch []temporal.Version

	flush := func() {
		if len(batch) > 0 {
			violations = append(violations, temporal.CheckIntervals(subject, batch)...)
		}
		batch = batch[:0]
	}

	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, mapStorageErr("verify", err)
		}
		if v.SubjectID != subject {
			flush()
			subject = v.SubjectID
		}
		batch = append(batch, v)
	}
	flush()

	if err := rows.Err(); err != nil {
		return nil, mapStorageErr("verify", err)
	}

	return violations, nil
}
