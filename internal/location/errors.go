package location

import (
	"errors"
	"fmt"
)

// PositioningCause classifies why a position read failed.
type PositioningCause string

const (
	CausePermissionDenied PositioningCause = "permission_denied"
	CauseUnavailable      PositioningCause = "position_unavailable"
	CauseTimeout          PositioningCause = "timeout"
	CauseUnknown          PositioningCause = "unknown"
)

// PositioningError is returned when a position source cannot produce a
// fix and no last-known fallback exists.
type PositioningError struct {
	Cause PositioningCause
	Err   error
}

func (e *PositioningError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("positioning failed (%s): %v", e.Cause, e.Err)
	}
	return fmt.Sprintf("positioning failed (%s)", e.Cause)
}

func (e *PositioningError) Unwrap() error { return e.Err }

// ClassifyPositioning wraps err with the given cause, preserving an
// existing classification if err already carries one.
func ClassifyPositioning(err error, cause PositioningCause) *PositioningError {
	var pe *PositioningError
	if errors.As(err, &pe) {
		return pe
	}
	return &PositioningError{Cause: cause, Err: err}
}

// ErrProviderDisabled is returned by provider calls when no API key is
// configured; callers fall back locally.
var ErrProviderDisabled = errors.New("directions provider disabled")
