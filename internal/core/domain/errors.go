// Package domain defines the core domain models for TabMesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business domain error with a structured error code.
type DomainError struct {
	Code    string // Error code (e.g., "TB-SESS-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison by code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks whether the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrSessionNotFound indicates the requested session was not found.
	ErrSessionNotFound = NewDomainError("TB-SESS-4040", "session not found")

	// ErrSessionQuotaExceeded indicates the session retained-size cap was hit.
	// The triggering commit is rejected and the version log is left unchanged.
	ErrSessionQuotaExceeded = NewDomainError("TB-SESS-4002", "session size quota exceeded")
)

// ============================================================================
// Table Errors (TABL)
// ============================================================================

var (
	// ErrTableNotFound indicates the named table is not registered in the session.
	ErrTableNotFound = NewDomainError("TB-TABL-4040", "table not found")

	// ErrTableConflict indicates the table name is already registered.
	ErrTableConflict = NewDomainError("TB-TABL-4090", "table already exists")
)

// ============================================================================
// Snapshot Errors (SNAP)
// ============================================================================

var (
	// ErrSchemaViolation indicates a malformed snapshot: ragged columns,
	// duplicate or empty column names, or a cell incompatible with its
	// declared column type.
	ErrSchemaViolation = NewDomainError("TB-SNAP-4001", "snapshot schema violation")
)

// ============================================================================
// History Errors (HIST)
// ============================================================================

var (
	// ErrNothingToUndo indicates the version cursor is at the initial load.
	ErrNothingToUndo = NewDomainError("TB-HIST-4090", "nothing to undo")

	// ErrNothingToRedo indicates the version cursor is at the newest snapshot.
	ErrNothingToRedo = NewDomainError("TB-HIST-4091", "nothing to redo")

	// ErrEmptyHistory indicates a version log without an initial snapshot.
	// Cannot occur for logs constructed through the registry.
	ErrEmptyHistory = NewDomainError("TB-HIST-5000", "version log has no history")

	// ErrInvalidOperation indicates an operation record whose parameters do
	// not match the fixed field set of its kind.
	ErrInvalidOperation = NewDomainError("TB-HIST-4001", "invalid operation record")
)

// ============================================================================
// Boundary Errors (LOAD / PERS)
// ============================================================================

var (
	// ErrLoadFailed indicates the ingestion loader could not produce an
	// initial snapshot. The table is left unregistered so a retry is possible.
	ErrLoadFailed = NewDomainError("TB-LOAD-5020", "initial data load failed")

	// ErrAdapterFailure indicates a persistence adapter error. It is
	// recovered locally: logged, with the in-memory commit proceeding.
	ErrAdapterFailure = NewDomainError("TB-PERS-5001", "persistence adapter failure")

	// ErrSnapshotNotPersisted indicates the adapter has no stored snapshot
	// for the requested (session, table).
	ErrSnapshotNotPersisted = NewDomainError("TB-PERS-4040", "no persisted snapshot")
)

// ============================================================================
// Argument / System Errors (ARG / SYS)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("TB-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("TB-ARG-1002", "missing required argument")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("TB-SYS-4000", "bad request")

	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("TB-SYS-5000", "internal server error")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("TB-SYS-4290", "too many requests")
)
