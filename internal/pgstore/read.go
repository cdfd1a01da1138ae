package pgstore

import (
	"context"
	"database/sql"
	"errors"
	"iter"
	"time"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Current returns the open version for the subject, or ok=false if the
// subject has no open version.
func (s *Store) Current(ctx context.Context, subjectID string) (temporal.Version, bool, error) {
	var row versionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		WHERE subject_id = $1 AND valid_to = $2
	`, subjectID, int64(sentinelMicros))
	if errors.Is(err, sql.ErrNoRows) {
		return temporal.Version{}, false, nil
	}
	if err != nil {
		return temporal.Version{}, false, mapStorageErr("current", err)
	}
	return row.toVersion(), true, nil
}

// AsOf returns the version whose interval contains t: valid_from
// inclusive, valid_to exclusive.
func (s *Store) AsOf(ctx context.Context, subjectID string, t time.Time) (temporal.Version, bool, error) {
	us := micros(t.UTC().Truncate(time.Microsecond))

	var row versionRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		WHERE subject_id = $1 AND valid_from <= $2 AND $2 < valid_to
	`, subjectID, us)
	if errors.Is(err, sql.ErrNoRows) {
		return temporal.Version{}, false, nil
	}
	if err != nil {
		return temporal.Version{}, false, mapStorageErr("asof", err)
	}
	return row.toVersion(), true, nil
}

// History returns the subject's versions ordered by valid_from. Each
// range over the sequence issues a fresh query, so the sequence is
// restartable and reflects the store at iteration time.
func (s *Store) History(ctx context.Context, subjectID string) iter.Seq2[temporal.Version, error] {
	return func(yield func(temporal.Version, error) bool) {
		rows, err := s.db.QueryxContext(ctx, `
			SELECT id, subject_id, kind, payload, valid_from, valid_to
			FROM versions
			WHERE subject_id = $1
			ORDER BY valid_from ASC, id ASC
		`, subjectID)
		if err != nil {
			yield(temporal.Version{}, mapStorageErr("history", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var row versionRow
			if err := rows.StructScan(&row); err != nil {
				yield(temporal.Version{}, mapStorageErr("history", err))
				return
			}
			if !yield(row.toVersion(), nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(temporal.Version{}, mapStorageErr("history", err))
		}
	}
}

// Subjects lists every subject ID that has at least one version,
// retired subjects included.
func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	subjects := []string{}
	err := s.db.SelectContext(ctx, &subjects, `
		SELECT DISTINCT subject_id FROM versions ORDER BY subject_id ASC
	`)
	if err != nil {
		return nil, mapStorageErr("subjects", err)
	}
	return subjects, nil
}
