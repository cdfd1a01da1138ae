package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

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

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return temporal.Version{}, mapStorageErr("create", err)
	}
	defer tx.Rollback() // No-op if committed

	// An open version means the subject is alive: definitive conflict.
	var openID string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM versions
		WHERE subject_id = ? AND valid_to = ?
	`, subjectID, int64(sentinelMicros)).Scan(&openID)
	switch {
	case err == nil:
		return temporal.Version{}, temporal.NewDuplicateSubject(subjectID)
	case err != sql.ErrNoRows:
		return temporal.Version{}, mapStorageErr("create", err)
	}

	// Re-creation after retirement must not overlap closed history.
	var lastClose sql.NullInt64
	err = tx.QueryRowContext(ctx, `
		SELECT MAX(valid_to) FROM versions WHERE subject_id = ?
	`, subjectID).Scan(&lastClose)
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
		VALUES (?, ?, ?, ?, ?, ?)
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
// The ordering inside the transaction is: read the open version, verify
// monotonicity, close it with an optimistic WHERE on valid_to = sentinel,
// insert the successor, commit. If the optimistic update touches zero
// rows a concurrent writer got there first and the whole transaction
// fails with INVALID_TRANSITION.
func (s *Store) Supersede(ctx context.Context, subjectID string, payload json.RawMessage, at time.Time) (temporal.Version, error) {
	canonical, err := temporal.CanonicalizePayload(payload)
	if err != nil {
		return temporal.Version{}, fmt.Errorf("supersede: %w", err)
	}
	at = temporal.Normalize(at)

	tx, err := s.db.BeginTx(ctx, nil)
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
		VALUES (?, ?, ?, ?, ?, ?)
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

	tx, err := s.db.BeginTx(ctx, nil)
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

// openVersionTx reads the subject's open version inside tx.
// Returns NOT_FOUND if the subject is retired or was never created.
func (s *Store) openVersionTx(ctx context.Context, tx *sql.Tx, subjectID string) (temporal.Version, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT id, subject_id, kind, payload, valid_from, valid_to
		FROM versions
		WHERE subject_id = ? AND valid_to = ?
	`, subjectID, int64(sentinelMicros))

	v, err := scanVersionRow(row)
	if err == sql.ErrNoRows {
		return temporal.Version{}, temporal.NewNotFound(subjectID)
	}
	if err != nil {
		return temporal.Version{}, mapStorageErr("read open version", err)
	}
	return v, nil
}

// closeOpenTx sets valid_to on the open version, optimistically guarded:
// the WHERE clause re-checks both the row identity and that it is still
// open, so a concurrently closed version fails the mutation.
func (s *Store) closeOpenTx(ctx context.Context, tx *sql.Tx, subjectID, versionID string, at time.Time) error {
	result, err := tx.ExecContext(ctx, `
		UPDATE versions SET valid_to = ?
		WHERE id = ? AND valid_to = ?
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
