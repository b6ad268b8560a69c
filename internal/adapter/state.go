package adapter

// State represents the lifecycle state of an adapter.
type State int

// Adapter states.
const (
	// StateUninitialized - Adapter is registered but not initialized.
	StateUninitialized State = iota

	// StateInitializing - Initialize is running.
	StateInitializing

	// StateReady - Adapter is initialized and may be activated.
	StateReady

	// StateActive - Adapter is active and receives events.
	StateActive

	// StatePaused - Adapter was deactivated and may be activated again.
	StatePaused

	// StateError - A lifecycle step failed. Recover or Cleanup may follow.
	StateError

	// StateCleaningUp - Cleanup is running.
	StateCleaningUp

	// StateCleanedUp - Terminal. Every further operation is rejected.
	StateCleanedUp
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateActive:
		return "active"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	case StateCleaningUp:
		return "cleaning-up"
	case StateCleanedUp:
		return "cleaned-up"
	default:
		return "unknown"
	}
}

// CanActivate reports whether Activate may run from s.
func (s State) CanActivate() bool {
	return s == StateReady || s == StatePaused
}

// CanCleanup reports whether Cleanup may run from s.
func (s State) CanCleanup() bool {
	switch s {
	case StateUninitialized, StateReady, StateActive, StatePaused, StateError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether s is the terminal state.
func (s State) IsTerminal() bool {
	return s == StateCleanedUp
}
