package errors

import (
	"errors"
	"fmt"
)

// ErrRecordNotFound is returned by repositories when no record matches.
var ErrRecordNotFound = errors.New("record not found")

// Sync error types.
const (
	ErrTypeValidationFailed    = "VALIDATION_FAILED"
	ErrTypeRemoteWriteFailed   = "REMOTE_WRITE_FAILED"
	ErrTypeLoadFailed          = "LOAD_FAILED"
	ErrTypeAccessDenied        = "ACCESS_DENIED"
	ErrTypeLiveSyncUnavailable = "LIVE_SYNC_UNAVAILABLE"
)

// SyncError represents a failure in the client-side sync engine.
type SyncError struct {
	Type       string
	Collection string
	RecordID   string
	Message    string
	Cause      error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (collection: %s, record: %s) - %v",
			e.Type, e.Message, e.Collection, e.RecordID, e.Cause)
	}
	return fmt.Sprintf("%s: %s (collection: %s, record: %s)",
		e.Type, e.Message, e.Collection, e.RecordID)
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// NewValidationError creates an error for input rejected before any local
// or remote effect.
func NewValidationError(collection string, cause error) *SyncError {
	return &SyncError{
		Type:       ErrTypeValidationFailed,
		Collection: collection,
		Message:    "input validation failed",
		Cause:      cause,
	}
}

// NewRemoteWriteError creates an error for a failed remote create, update,
// delete or upsert.
func NewRemoteWriteError(collection, recordID string, cause error) *SyncError {
	return &SyncError{
		Type:       ErrTypeRemoteWriteFailed,
		Collection: collection,
		RecordID:   recordID,
		Message:    "remote write failed",
		Cause:      cause,
	}
}

// NewLoadError creates an error for a failed initial snapshot load.
func NewLoadError(collection string, cause error) *SyncError {
	return &SyncError{
		Type:       ErrTypeLoadFailed,
		Collection: collection,
		Message:    "failed to load project snapshot",
		Cause:      cause,
	}
}

// NewAccessDeniedError creates an error for a project the user may not open.
func NewAccessDeniedError(projectID string, cause error) *SyncError {
	return &SyncError{
		Type:       ErrTypeAccessDenied,
		Collection: "projects",
		RecordID:   projectID,
		Message:    "access to project denied",
		Cause:      cause,
	}
}

// NewLiveSyncUnavailableError creates an error for a failed realtime
// subscription. The session stays usable without live updates.
func NewLiveSyncUnavailableError(cause error) *SyncError {
	return &SyncError{
		Type:    ErrTypeLiveSyncUnavailable,
		Message: "realtime subscription unavailable",
		Cause:   cause,
	}
}
