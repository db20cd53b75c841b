// Package lifecycle manages the service process lifecycle: a validated
// state machine, startup and shutdown hooks, and aggregate health
// reporting for the authentication service and its backing dependencies.
//
// The lifecycle flow for a healthy service is:
//
//	Unknown → Starting → Running → Stopping → Stopped
//
// Any non-terminal state may transition to Failed on error, and both
// terminal states (Stopped, Failed) may transition back to Starting for
// restart.
//
// State management in [Service] is protected by a [sync.RWMutex]; all
// methods are safe for concurrent use.
package lifecycle

// State represents the lifecycle state of the service process. States form
// a finite state machine with transitions validated by [ValidTransition].
//
// The zero value ("") is not a valid state; services are initialized with
// [StateUnknown] at construction time.
type State string

const (
	// StateUnknown is the initial state of a newly built service before
	// [Service.Start] has been called.
	StateUnknown State = "unknown"

	// StateStarting is the transient state while startup hooks run.
	StateStarting State = "starting"

	// StateRunning indicates the service started successfully and is
	// accepting requests. This is the only state in which
	// [Service.Health] can report healthy.
	StateRunning State = "running"

	// StateStopping is the transient state while shutdown hooks drain
	// in-flight work.
	StateStopping State = "stopping"

	// StateStopped indicates a clean shutdown. Terminal; a stopped
	// service may be restarted with [Service.Start].
	StateStopped State = "stopped"

	// StateFailed indicates an unrecoverable error during a transition.
	// Terminal; a failed service may be restarted with [Service.Start].
	StateFailed State = "failed"
)

// String returns the string representation of the state.
func (s State) String() string {
	return string(s)
}

// Valid reports whether the state is one of the recognized lifecycle
// states. The zero value ("") is not valid.
func (s State) Valid() bool {
	switch s {
	case StateUnknown, StateStarting, StateRunning,
		StateStopping, StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the state is a terminal lifecycle state.
// Terminal states are [StateStopped] and [StateFailed].
func (s State) IsTerminal() bool {
	switch s {
	case StateStopped, StateFailed:
		return true
	default:
		return false
	}
}

// validTransitions defines the allowed state transitions. Each key is a
// source state; the value is the set of states it may transition to.
//
// Transition matrix:
//
//	Unknown  → Starting, Failed
//	Starting → Running, Failed, Stopping
//	Running  → Stopping, Failed
//	Stopping → Stopped, Failed
//	Stopped  → Starting              (restart)
//	Failed   → Starting              (recovery restart)
var validTransitions = map[State][]State{
	StateUnknown:  {StateStarting, StateFailed},
	StateStarting: {StateRunning, StateFailed, StateStopping},
	StateRunning:  {StateStopping, StateFailed},
	StateStopping: {StateStopped, StateFailed},
	StateStopped:  {StateStarting},
	StateFailed:   {StateStarting},
}

// ValidTransition reports whether transitioning from state from to state to
// is allowed. Same-state transitions are always rejected.
func ValidTransition(from, to State) bool {
	if from == to {
		return false
	}
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, t := range targets {
		if t == to {
			return true
		}
	}
	return false
}
