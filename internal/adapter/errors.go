package adapter

import (
	"errors"
	"fmt"
)

// Adapter errors.
var (
	// ErrNilAdapter is returned when a nil adapter is provided.
	ErrNilAdapter = errors.New("adapter is nil")

	// ErrInvalidTransition is returned when a lifecycle operation is not
	// allowed from the current state.
	ErrInvalidTransition = errors.New("invalid adapter state transition")

	// ErrCleanedUp is returned for any operation on a cleaned-up adapter.
	ErrCleanedUp = errors.New("adapter has been cleaned up")

	// ErrNotActive is returned when an event or hook reaches an adapter that
	// is not active.
	ErrNotActive = errors.New("adapter is not active")

	// ErrInvalidMetadata is returned when adapter metadata fails validation.
	ErrInvalidMetadata = errors.New("invalid adapter metadata")

	// ErrUnknownAdapter is returned when a table lookup fails.
	ErrUnknownAdapter = errors.New("unknown adapter")

	// ErrDuplicateConstructor is returned when an id is registered twice in a Table.
	ErrDuplicateConstructor = errors.New("adapter constructor already registered")

	// ErrAdapterPanic is matched by PanicError.
	ErrAdapterPanic = errors.New("adapter panicked")
)

// TransitionError reports a rejected lifecycle operation.
type TransitionError struct {
	AdapterID string
	Op        string
	From      State
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("adapter %s: cannot %s from state %s", e.AdapterID, e.Op, e.From)
}

// Is matches ErrInvalidTransition, and ErrCleanedUp when the adapter is in
// its terminal state.
func (e *TransitionError) Is(target error) bool {
	if target == ErrInvalidTransition {
		return true
	}
	return target == ErrCleanedUp && e.From == StateCleanedUp
}

// PanicError wraps a panic raised by an adapter method.
type PanicError struct {
	AdapterID string
	Op        string
	Value     any
	Stack     string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("adapter %s panicked in %s: %v", e.AdapterID, e.Op, e.Value)
}

// Is allows errors.Is to match PanicError with ErrAdapterPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrAdapterPanic
}

// OpError wraps an error returned by an adapter method.
type OpError struct {
	AdapterID string
	Op        string
	Err       error
}

// Error implements the error interface.
func (e *OpError) Error() string {
	return fmt.Sprintf("adapter %s: %s: %v", e.AdapterID, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *OpError) Unwrap() error {
	return e.Err
}
