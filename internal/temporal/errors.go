package temporal

import (
	"errors"
	"fmt"
	"time"
)

// StoreError represents a failed store operation.
//
// Logical errors (DUPLICATE_SUBJECT, NOT_FOUND, INVALID_TRANSITION) are
// definitive outcomes: they indicate caller misuse or a lost race and
// must never be retried automatically. STORAGE_UNAVAILABLE is the only
// retryable code; mutations are all-or-nothing, so retrying with the
// same arguments is safe.
type StoreError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// SubjectID identifies the affected subject, when known.
	SubjectID string

	// Err is the underlying backend error (for STORAGE_UNAVAILABLE).
	Err error
}

// ErrorCode categorizes store errors.
type ErrorCode string

const (
	// ErrCodeDuplicateSubject indicates Create on a subject that already
	// has an open version.
	ErrCodeDuplicateSubject ErrorCode = "DUPLICATE_SUBJECT"

	// ErrCodeNotFound indicates a mutation or read of a subject with no
	// open version (retired or never created).
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeInvalidTransition indicates a mutation whose timestamp
	// would produce non-monotonic or overlapping history, or a mutation
	// that lost a race against a concurrent writer.
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION"

	// ErrCodeStorageUnavailable indicates a transient backend fault
	// (lock contention, connection loss, timeout).
	ErrCodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.SubjectID != "" {
		return fmt.Sprintf("%s: %s (subject=%s)", e.Code, e.Message, e.SubjectID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying backend error, if any.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the caller may retry the operation with the
// same arguments.
func (e *StoreError) Retryable() bool {
	return e.Code == ErrCodeStorageUnavailable
}

// IsDuplicateSubject returns true if the error is a DUPLICATE_SUBJECT.
// Uses errors.As to handle wrapped errors.
func IsDuplicateSubject(err error) bool {
	return hasCode(err, ErrCodeDuplicateSubject)
}

// IsNotFound returns true if the error is a NOT_FOUND.
func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

// IsInvalidTransition returns true if the error is an INVALID_TRANSITION.
func IsInvalidTransition(err error) bool {
	return hasCode(err, ErrCodeInvalidTransition)
}

// IsStorageUnavailable returns true if the error is a STORAGE_UNAVAILABLE.
func IsStorageUnavailable(err error) bool {
	return hasCode(err, ErrCodeStorageUnavailable)
}

func hasCode(err error, code ErrorCode) bool {
	var se *StoreError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// NewDuplicateSubject creates a StoreError for Create on an open subject.
func NewDuplicateSubject(subjectID string) *StoreError {
	return &StoreError{
		Code:      ErrCodeDuplicateSubject,
		Message:   "subject already has an open version",
		SubjectID: subjectID,
	}
}

// NewNotFound creates a StoreError for a subject with no open version.
func NewNotFound(subjectID string) *StoreError {
	return &StoreError{
		Code:      ErrCodeNotFound,
		Message:   "no open version for subject",
		SubjectID: subjectID,
	}
}

// NewInvalidTransition creates a StoreError for a non-monotonic mutation:
// at must move strictly forward past the given history boundary (the
// open version's ValidFrom, or the last closed ValidTo on re-creation).
func NewInvalidTransition(subjectID string, at, boundary time.Time) *StoreError {
	return &StoreError{
		Code:      ErrCodeInvalidTransition,
		Message:   fmt.Sprintf("timestamp %s does not advance past %s", at.Format(time.RFC3339Nano), boundary.Format(time.RFC3339Nano)),
		SubjectID: subjectID,
	}
}

// NewTransitionConflict creates a StoreError for a mutation that lost a
// race: the open version it read was closed by a concurrent writer
// before the transaction committed.
func NewTransitionConflict(subjectID string) *StoreError {
	return &StoreError{
		Code:      ErrCodeInvalidTransition,
		Message:   "open version changed concurrently",
		SubjectID: subjectID,
	}
}

// NewStorageUnavailable wraps a transient backend fault.
func NewStorageUnavailable(op string, err error) *StoreError {
	return &StoreError{
		Code:    ErrCodeStorageUnavailable,
		Message: fmt.Sprintf("%s: backend unavailable", op),
		Err:     err,
	}
}
