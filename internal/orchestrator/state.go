// ABOUTME: Orchestrator lifecycle states and the status snapshot type.

package orchestrator

import (
	"github.com/2389/pause-notify/internal/identity"
)

// State is the orchestrator's lifecycle state.
type State int

const (
	Idle State = iota
	Initializing
	Subscribing
	Active
	Disabled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Initializing:
		return "initializing"
	case Subscribing:
		return "subscribing"
	case Active:
		return "active"
	case Disabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Status is a snapshot of the orchestrator. Err is set only when Disabled
// and wraps permission.ErrPermissionDenied or
// subscription.ErrSubscriptionFailed.
type Status struct {
	State    State
	Identity identity.ID
	Err      error
}

func (s Status) String() string {
	if s.Identity.IsZero() {
		return s.State.String()
	}
	return s.State.String() + " (" + s.Identity.String() + ")"
}
