package upload

import "fmt"

// StorageError wraps a failed chunk store operation. Safe for the caller
// to retry: chunk writes are idempotent.
type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s failed for %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// DecodeError wraps a failed metadata extraction. Terminal for the upload
// attempt: the track moves to 'failed' and recovery requires a fresh
// session.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("duration decode failed: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// FinalizationError reports why a completed chunk set could not be turned
// into a visible track. The session and chunk rows are retained so the
// resume listing can still show progress for diagnostics.
type FinalizationError struct {
	TrackID string
	Reason  string
	Err     error
}

func (e *FinalizationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("finalization of track %s failed: %s: %v", e.TrackID, e.Reason, e.Err)
	}
	return fmt.Sprintf("finalization of track %s failed: %s", e.TrackID, e.Reason)
}

func (e *FinalizationError) Unwrap() error { return e.Err }
