package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hollis-dev/chronicle/internal/schema"
	"github.com/hollis-dev/chronicle/internal/temporal"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Domain failure (subject missing, bad transition, invariant breach)
	ExitCommandError = 2 // Command error (bad flags, store not reachable, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`          // "ok" or "error"
	Data   interface{} `json:"data,omitempty"`  // success payload
	Error  *CLIError   `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string      `json:"code"`              // "NOT_FOUND", "INVALID_TRANSITION", etc.
	Message string      `json:"message"`           // human-readable message
	Details interface{} `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details interface{}) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...interface{}) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// VersionView is the wire shape of a version in CLI output. The open
// sentinel renders as "open" rather than the year-9999 timestamp.
type VersionView struct {
	ID        string          `json:"id"`
	SubjectID string          `json:"subject_id"`
	Kind      string          `json:"kind,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	ValidFrom string          `json:"valid_from"`
	ValidTo   string          `json:"valid_to"`
}

func viewOf(v temporal.Version) VersionView {
	validTo := "open"
	if !v.Open() {
		validTo = v.ValidTo.Format(time.RFC3339Nano)
	}
	return VersionView{
		ID:        v.ID,
		SubjectID: v.SubjectID,
		Kind:      v.Kind,
		Payload:   v.Payload,
		ValidFrom: v.ValidFrom.Format(time.RFC3339Nano),
		ValidTo:   validTo,
	}
}

// printVersion renders one version in text format.
func printVersion(w io.Writer, v temporal.Version) {
	view := viewOf(v)
	fmt.Fprintf(w, "%s  [%s, %s)  %s\n", view.ID, view.ValidFrom, view.ValidTo, view.Payload)
}

// outputStoreError maps a store error onto the formatter and an exit
// code: domain failures exit 1, infrastructure failures exit 2.
func outputStoreError(formatter *OutputFormatter, err error) error {
	var storeErr *temporal.StoreError
	if errors.As(err, &storeErr) {
		_ = formatter.Error(string(storeErr.Code), storeErr.Message, storeErr.SubjectID)
		code := ExitFailure
		if temporal.IsStorageUnavailable(err) {
			code = ExitCommandError
		}
		return NewExitError(code, fmt.Sprintf("%s: %s", storeErr.Code, storeErr.Message))
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		_ = formatter.Error("SCHEMA_VIOLATION", verr.Message, verr.Kind)
		return NewExitError(ExitFailure, verr.Error())
	}

	_ = formatter.Error("ERROR", err.Error(), nil)
	return WrapExitError(ExitCommandError, "command failed", err)
}
