package topology

import (
	"errors"
	"fmt"
)

// Common sentinel errors
var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidEndpoint = errors.New("endpoint must reference exactly one node or device")
	ErrValidation      = errors.New("validation failed")
	ErrNotLoaded       = errors.New("data not loaded")
)

// LoadError reports that the initial fetch of an aggregate failed. The
// editor shows a blocking message instead of a partial UI.
type LoadError struct {
	Aggregate string // "topology" or "routes"
	Cause     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.Aggregate, e.Cause)
}

func (e *LoadError) Unwrap() error {
	return e.Cause
}

// MutationError reports a failed write. It is shown as a transient
// notification and followed by a reconciling reload where applicable.
type MutationError struct {
	Op     string // Operation that failed (e.g., "assign-link")
	Entity string // Entity type (e.g., "route", "link")
	ID     int64  // Entity ID (if applicable)
	Cause  error
}

func (e *MutationError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("%s %s %d: %v", e.Op, e.Entity, e.ID, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Cause)
}

func (e *MutationError) Unwrap() error {
	return e.Cause
}

// NotFound builds an ErrNotFound wrapped with entity context
func NotFound(entity string, id int64) error {
	return fmt.Errorf("%s %d: %w", entity, id, ErrNotFound)
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
