package core

import (
	"errors"
	"fmt"
)

// Boundary error taxonomy. Structural errors fail fast at the intent
// router; staleness is reported to the caller for retry; numeric edge
// cases never become errors at all (they are carried as undefined
// metric values inside results).
var (
	// ErrInvalidIntent marks an intent kind outside the closed set.
	ErrInvalidIntent = errors.New("invalid intent kind")

	// ErrStaleState marks a state snapshot that could not be confirmed
	// current. The caller must re-read and retry.
	ErrStaleState = errors.New("stale state snapshot")

	// ErrConfigConflict marks overlapping budget or goal definitions
	// that the tie-break rule cannot resolve.
	ErrConfigConflict = errors.New("configuration conflict")
)

// MissingFieldError reports a structurally valid intent lacking a
// required field for its kind. It maps to a clarify response, never a
// crash.
type MissingFieldError struct {
	Kind  string
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("intent %q missing required field %q", e.Kind, e.Field)
}

// IsMissingField reports whether err is a MissingFieldError and
// returns it when so.
func IsMissingField(err error) (*MissingFieldError, bool) {
	var mf *MissingFieldError
	if errors.As(err, &mf) {
		return mf, true
	}
	return nil, false
}
