package lua

import "errors"

// Errors for scripted adapters.
var (
	// ErrStateClosed is returned when operating on a closed state.
	ErrStateClosed = errors.New("lua state is closed")

	// ErrNoFunction is returned when a called global is missing or not a function.
	ErrNoFunction = errors.New("lua function not defined")

	// ErrScriptPanic is returned when the interpreter panics.
	ErrScriptPanic = errors.New("lua panic")

	// ErrScriptFailed is returned when a script hook reports failure.
	ErrScriptFailed = errors.New("lua script reported failure")

	// Manifest validation errors.
	ErrMissingID      = errors.New("manifest: id is required")
	ErrMissingVersion = errors.New("manifest: version is required")
	ErrInvalidMain    = errors.New("manifest: main must be a .lua file")
)
