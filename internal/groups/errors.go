package groups

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an update targets a group that does not exist.
var ErrNotFound = errors.New("groups: group not found")

// DispatchError reports that a group change was persisted but its control
// message could not be handed to the dispatcher. The local state is durable;
// only propagation failed.
type DispatchError struct {
	GroupID string
	Err     error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("groups: dispatch update for %s: %v", e.GroupID, e.Err)
}

func (e *DispatchError) Unwrap() error { return e.Err }
