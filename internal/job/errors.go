package job

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyCommand is returned by launch when argv is empty.
	ErrEmptyCommand = errors.New("command cannot be empty")
	// ErrNotFound is returned when no job with the given id exists.
	ErrNotFound = errors.New("job not found")
)

// InvalidTransitionError is returned when a status mutation would violate the
// job state machine (e.g. terminal → RUNNING).
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}
