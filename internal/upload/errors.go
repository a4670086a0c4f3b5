package upload

import (
	"errors"
	"fmt"
)

// Reason tags an ingestion failure so callers can tell validation
// classes apart without parsing message text.
type Reason string

const (
	ReasonTooLarge   Reason = "oversized"
	ReasonWrongType  Reason = "wrong-type"
	ReasonNotImage   Reason = "not-an-image"
	ReasonUnwritable Reason = "directory-unwritable"
	ReasonIO         Reason = "io-error"
)

// Error is the failure type returned by every pipeline operation. The
// wrapped Err holds the underlying cause for server-side logs; only the
// Reason should influence the user-facing message.
type Error struct {
	Reason Reason
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("upload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("upload: %s", e.Reason)
}

func (e *Error) Unwrap() error { return e.Err }

func failf(reason Reason, format string, args ...any) *Error {
	return &Error{Reason: reason, Err: fmt.Errorf(format, args...)}
}

// ReasonOf extracts the tagged reason from err, or "" when err is not a
// pipeline error.
func ReasonOf(err error) Reason {
	var e *Error
	if errors.As(err, &e) {
		return e.Reason
	}
	return ""
}
