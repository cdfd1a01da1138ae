package store

import (
	"errors"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// openIndexConflict reports whether err is a unique-constraint violation
// on the open-version partial index, i.e. a concurrent writer committed
// an open version first.
func openIndexConflict(err error) bool {
	var serr sqlite3.Error
	if !errors.As(err, &serr) {
		return false
	}
	return serr.Code == sqlite3.ErrConstraint &&
		(serr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
}

// mapStorageErr classifies a backend failure as STORAGE_UNAVAILABLE.
// Logical outcomes (DUPLICATE_SUBJECT, NOT_FOUND, INVALID_TRANSITION)
// are produced explicitly by the write path before this runs; everything
// else that reaches a caller - lock contention, cancelled context,
// closed connection - is a storage-level fault, and a failed transaction
// has no partial effect, so retrying with the same arguments is safe.
func mapStorageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	// Never re-wrap an already classified error.
	var se *temporal.StoreError
	if errors.As(err, &se) {
		return err
	}
	return temporal.NewStorageUnavailable(op, err)
}
