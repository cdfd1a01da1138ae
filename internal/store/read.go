package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"time"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Current returns the subject's open version, or absent if the subject
// is retired or was never created.
func (s *Store) Current(ctx context.Context, subjectID string) (temporal.Version, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		WHERE subject_id = ? AND valid_to = ?
	`, subjectID, int64(sentinelMicros))

	v, err := scanVersionRow(row)
	if err == sql.ErrNoRows {
		return temporal.Version{}, false, nil
	}
	if err != nil {
		return temporal.Version{}, false, mapStorageErr("current", err)
	}
	return v, true, nil
}

// AsOf returns the version whose interval contains t
// (valid_from <= t < valid_to), or absent if the subject did not exist
// or was retired at that instant.
func (s *Store) AsOf(ctx context.Context, subjectID string, t time.Time) (temporal.Version, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		WHERE subject_id = ? AND valid_from <= ? AND ? < valid_to
	`, subjectID, micros(t), micros(t))

	v, err := scanVersionRow(row)
	if err == sql.ErrNoRows {
		return temporal.Version{}, false, nil
	}
	if err != nil {
		return temporal.Version{}, false, mapStorageErr("as-of", err)
	}
	return v, true, nil
}

// History returns a lazy traversal of the subject's versions ordered by
// valid_from ascending. Every range over the sequence runs a fresh query
// against committed data, so the traversal is restartable and two
// back-to-back traversals of an unmutated subject are identical.
func (s *Store) History(ctx context.Context, subjectID string) iter.Seq2[temporal.Version, error] {
	return func(yield func(temporal.Version, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, subject_id, kind, payload, valid_from, valid_to
			FROM versions
			WHERE subject_id = ?
			ORDER BY valid_from ASC, id ASC
		`, subjectID)
		if err != nil {
			yield(temporal.Version{}, mapStorageErr("history", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			v, err := scanVersion(rows)
			if err != nil {
				yield(temporal.Version{}, mapStorageErr("history", err))
				return
			}
			if !yield(v, nil) {
				return
			}
		}

		if err := rows.Err(); err != nil {
			yield(temporal.Version{}, mapStorageErr("history", err))
		}
	}
}

// Subjects returns the distinct subject IDs present in the store,
// ordered lexicographically. Used by Verify and the CLI.
func (s *Store) Subjects(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT subject_id FROM versions ORDER BY subject_id ASC
	`)
	if err != nil {
		return nil, mapStorageErr("subjects", err)
	}
	defer rows.Close()

	var subjects []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, mapStorageErr("subjects", err)
		}
		subjects = append(subjects, id)
	}

	if err := rows.Err(); err != nil {
		return nil, mapStorageErr("subjects", err)
	}

	// Return empty slice instead of nil
	if subjects == nil {
		subjects = []string{}
	}

	return subjects, nil
}

// scanVersion scans a multi-row result into a Version.
func scanVersion(rows *sql.Rows) (temporal.Version, error) {
	var v temporal.Version
	var payload string
	var from, to int64

	if err := rows.Scan(&v.ID, &v.SubjectID, &v.Kind, &payload, &from, &to); err != nil {
		return temporal.Version{}, fmt.Errorf("scan version: %w", err)
	}

	v.Payload = json.RawMessage(payload)
	v.ValidFrom = fromMicros(from)
	v.ValidTo = fromMicros(to)
	return v, nil
}

// scanVersionRow scans a single-row result into a Version.
// Returns sql.ErrNoRows unchanged so callers can map it to absence.
func scanVersionRow(row *sql.Row) (temporal.Version, error) {
	var v temporal.Version
	var payload string
	var from, to int64

	if err := row.Scan(&v.ID, &v.SubjectID, &v.Kind, &payload, &from, &to); err != nil {
		return temporal.Version{}, err
	}

	v.Payload = json.RawMessage(payload)
	v.ValidFrom = fromMicros(from)
	v.ValidTo = fromMicros(to)
	return v, nil
}
