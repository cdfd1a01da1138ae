package pgstore

import (
	"errors"

	"github.com/lib/pq"

	"github.com/hollis-dev/chronicle/internal/temporal"
)

// uniqueViolation is the Postgres error class for unique constraint
// failures, raised by the partial open-version index.
const uniqueViolation = "23505"

func openIndexConflict(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

// mapStorageErr classifies err for the caller. Logical outcomes
// (duplicates, missing subjects, bad transitions) are produced
// explicitly before this point; anything else is an infrastructure
// failure the caller may retry.
func mapStorageErr(op string, err error) error {
	var storeErr *temporal.StoreError
	if errors.As(err, &storeErr) {
		return err
	}
	return temporal.NewStorageUnavailable(op, err)
}
