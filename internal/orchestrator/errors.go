package orchestrator

import (
	"errors"
	"fmt"
)

// Orchestrator errors.
var (
	// ErrDuplicateAdapter is returned when an adapter id is registered twice.
	ErrDuplicateAdapter = errors.New("adapter already registered")

	// ErrIncompatibleVersion is returned when the host version is outside
	// the adapter's declared range.
	ErrIncompatibleVersion = errors.New("adapter incompatible with host version")

	// ErrDependencyNotAvailable is matched by DependencyError.
	ErrDependencyNotAvailable = errors.New("dependency not available")

	// ErrCyclicDependency is returned when dependencies form a cycle.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrAdapterNotFound is returned for unknown adapter ids.
	ErrAdapterNotFound = errors.New("adapter not found")

	// ErrClosed is returned after Cleanup.
	ErrClosed = errors.New("orchestrator closed")
)

// DependencyError reports a dependency that is not registered or not active.
type DependencyError struct {
	AdapterID  string
	Dependency string

	// Registered is false when the dependency is not registered at all.
	Registered bool
	State      string
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	if !e.Registered {
		return fmt.Sprintf("adapter %s: dependency not available: %s is not registered", e.AdapterID, e.Dependency)
	}
	return fmt.Sprintf("adapter %s: dependency not available: %s is %s", e.AdapterID, e.Dependency, e.State)
}

// Unwrap returns ErrDependencyNotAvailable.
func (e *DependencyError) Unwrap() error {
	return ErrDependencyNotAvailable
}
