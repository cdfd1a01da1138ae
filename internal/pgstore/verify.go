package pgstore

import (
	"context"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Verify audits every subject's intervals against the store invariants
// and returns a violation per breach. Rows are streamed in subject
// order and checked one subject at a time.
func (s *Store) Verify(ctx context.Context) ([]temporal.Violation, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		ORDER BY subject_id ASC, valid_from ASC, id ASC
	`)
	if err != nil {
		return nil, mapStorageErr("verify", err)
	}
	defer rows.Close()

	violations := []temporal.Violation{}
	var (
		current string
		batch   []temporal.Version
	)
	flush := func() {
		if len(batch) > 0 {
			violations = append(violations, temporal.CheckIntervals(current, batch)...)
			batch = batch[:0]
		}
	}

	for rows.Next() {
		var row versionRow
		if err := rows.StructScan(&row); err != nil {
			return nil, mapStorageErr("verify", err)
		}
		if row.SubjectID != current {
			flush()
			current = row.SubjectID
		}
		batch = append(batch, row.toVersion())
	}
	if err := rows.Err(); err != nil {
		return nil, mapStorageErr("verify", err)
	}
	flush()

	return violations, nil
}
