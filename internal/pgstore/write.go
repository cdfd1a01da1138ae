package pgstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Create inserts the first version for a new subject, open-ended from at.
//
// Runs in a transaction: the open-version check, the overlap check
// against closed history, and the insert commit together. The partial
// unique index on open versions is the final arbiter against a racing
// Create on the same subject.
func (s *Store) Create(ctx context.Context, subjectID, kind string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	canonical, err := temporal.CanonicalizePayload(payload)
	if err != nil {
		return temporal.Version{}, fmt.Errorf("create: %w", err)
	}
	at = temporal.Normalize(at)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return temporal.Version{}, mapStorageErr("create", err)
	}
	defer tx.Rollback() // No-op if committed

	// An open version means the subject is alive: definitive conflict.
	var openID string
	err = tx.GetContext(ctx, &openID, `
		SELECT id FROM versions
		WHERE subject_id = $1 AND valid_to = $2
	`, subjectID, int64(sentinelMicros))
	switch {
	case err == nil:
		return temporal.Version{}, temporal.NewDuplicateSubject(subjectID)
	case !errors.Is(err, sql.ErrNoRows):
		return temporal.Version{}, mapStorageErr("create", err)
	}

	// Re-creation after retirement must not overlap closed history.
	var lastClose sql.NullInt64
	err = tx.GetContext(ctx, &lastClose, `
		SELECT MAX(valid_to) FROM versions WHERE subject_id = $1
	`, subjectID)
	if err != nil {
		return temporal.Version{}, mapStorageErr("create", err)
	}
	if lastClose.Valid && micros(at) < lastClose.Int64 {
		return temporal.Version{}, temporal.NewInvalidTransition(subjectID, at, fromMicros(lastClose.Int64))
	}

	v := temporal.Version{
		ID:        s.ids.NewID(),
		SubjectID: subjectID,
		Kind:      kind,
		Payload:   canonical,
		ValidFrom: at,
		ValidTo:   temporal.Sentinel,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (id, subject_id, kind, payload, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.SubjectID, v.Kind, string(v.Payload), micros(v.ValidFrom), int64(sentinelMicros))
	if err != nil {
		if openIndexConflict(err) {
			// Lost the race: another Create committed an open version.
			return temporal.Version{}, temporal.NewDuplicateSubject(subjectID)
		}
		return temporal.Version{}, mapStorageErr("create", err)
	}

	if err := tx.Commit(); err != nil {
		return temporal.Version{}, mapStorageErr("create", err)
	}

	s.log.Debug().Str("subject", subjectID).Str("kind", kind).Str("version", v.ID).
		Time("valid_from", v.ValidFrom).Msg("subject created")
	return v, nil
}

// Supersede atomically closes the open version at the given instant and
// inserts its successor.
//
// The open-version read takes a row lock (FOR UPDATE), so concurrent
// writers on the same subject queue up rather than both reading the
// same open row. The optimistic WHERE on the close and the partial
// unique index still guard the insert, matching the SQLite backend.
func (s *Store) Supersede(ctx context.Context, subjectID string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	canonical, err := temporal.CanonicalizePayload(payload)
	if err != nil {
		return temporal.Version{}, fmt.Errorf("supersede: %w", err)
	}
	at = temporal.Normalize(at)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return temporal.Version{}, mapStorageErr("supersede", err)
	}
	defer tx.Rollback()

	open, err := s.openVersionTx(ctx, tx, subjectID)
	if err != nil {
		return temporal.Version{}, err
	}

	if !at.After(open.ValidFrom) {
		return temporal.Version{}, temporal.NewInvalidTransition(subjectID, at, open.ValidFrom)
	}

	if err := s.closeOpenTx(ctx, tx, subjectID, open.ID, at); err != nil {
		return temporal.Version{}, err
	}

	next := temporal.Version{
		ID:        s.ids.NewID(),
		SubjectID: subjectID,
		Kind:      open.Kind,
		Payload:   canonical,
		ValidFrom: at,
		ValidTo:   temporal.Sentinel,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO versions (id, subject_id, kind, payload, valid_from, valid_to)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, next.ID, next.SubjectID, next.Kind, string(next.Payload), micros(next.ValidFrom), int64(sentinelMicros))
	if err != nil {
		if openIndexConflict(err) {
			return temporal.Version{}, temporal.NewTransitionConflict(subjectID)
		}
		return temporal.Version{}, mapStorageErr("supersede", err)
	}

	if err := tx.Commit(); err != nil {
		return temporal.Version{}, mapStorageErr("supersede", err)
	}

	s.log.Debug().Str("subject", subjectID).Str("version", next.ID).
		Str("supersedes", open.ID).Time("valid_from", next.ValidFrom).Msg("subject superseded")
	return next, nil
}

// Retire closes the open version without a successor. Subsequent Current
// calls report the subject absent; closed history stays queryable.
func (s *Store) Retire(ctx context.Context, subjectID string, at time.Time) error {
	at = temporal.Normalize(at)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapStorageErr("retire", err)
	}
	defer tx.Rollback()

	open, err := s.openVersionTx(ctx, tx, subjectID)
	if err != nil {
		return err
	}

	if !at.After(open.ValidFrom) {
		return temporal.NewInvalidTransition(subjectID, at, open.ValidFrom)
	}

	if err := s.closeOpenTx(ctx, tx, subjectID, open.ID, at); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return mapStorageErr("retire", err)
	}

	s.log.Debug().Str("subject", subjectID).Str("version", open.ID).
		Time("valid_to", at).Msg("subject retired")
	return nil
}

// openVersionTx reads and locks the subject's open version inside tx.
// Returns NOT_FOUND if the subject is retired or was never created.
//
// The read runs twice on a miss. A writer that blocked on a concurrent
// supersede's row lock resumes with its original statement snapshot,
// which predates the winner's successor row; the row it was waiting on
// no longer matches valid_to = sentinel, so the first read comes back
// empty even though an open version exists. The second read is a fresh
// statement with a fresh snapshot and sees the successor.
func (s *Store) openVersionTx(ctx context.Context, tx *sqlx.Tx, subjectID string) (temporal.Version, error) {
	for attempt := 0; attempt < 2; attempt++ {
		var row versionRow
		err := tx.GetContext(ctx, &row, `
			SELECT id, subject_id, kind, payload, valid_from, valid_to
			FROM versions
			WHERE subject_id = $1 AND valid_to = $2
			FOR UPDATE
		`, subjectID, int64(sentinelMicros))
		if err == nil {
			return row.toVersion(), nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return temporal.Version{}, mapStorageErr("read open version", err)
		}
	}
	return temporal.Version{}, temporal.NewNotFound(subjectID)
}

// closeOpenTx sets valid_to on the open version, optimistically guarded:
// the WHERE clause re-checks both the row identity and that it is still
// open, so a concurrently closed version fails the mutation.
func (s *Store) closeOpenTx(ctx context.Context, tx *sqlx.Tx, subjectID, versionID string, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE versions SET valid_to = $1
		WHERE id = $2 AND valid_to = $3
	`, micros(at), versionID, int64(sentinelMicros))
	if err != nil {
		return mapStorageErr("close open version", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return mapStorageErr("close open version", err)
	}
	if rows != 1 {
		return temporal.NewTransitionConflict(subjectID)
	}
	return nil
}
