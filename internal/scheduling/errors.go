package scheduling

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrAccessDenied is returned before any engine state is touched when
// the billing subsystem reports scheduling as disabled for a business.
var ErrAccessDenied = errors.New("scheduling is not enabled for this business")

// ConflictError decorates a domain rejection with the entity that caused
// it, so callers can explain the refusal without another lookup. It
// unwraps to the underlying sentinel for errors.Is checks.
type ConflictError struct {
	Err      error
	EntityID uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.EntityID == uuid.Nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("%v (conflicting entity %s)", e.Err, e.EntityID)
}

func (e *ConflictError) Unwrap() error { return e.Err }
