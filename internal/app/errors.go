package app

import "errors"

// Application errors.
var (
	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("application already started")

	// ErrNotStarted indicates an operation that needs a started application.
	ErrNotStarted = errors.New("application not started")

	// ErrShutdown indicates the application has been shut down.
	ErrShutdown = errors.New("application shut down")

	// ErrUnknownAdapter indicates an enabled adapter id has no constructor.
	ErrUnknownAdapter = errors.New("unknown adapter")
)

// InitError reports a component that could not be constructed.
type InitError struct {
	Component string
	Err       error
}

func (e *InitError) Error() string {
	return "init " + e.Component + ": " + e.Err.Error()
}

func (e *InitError) Unwrap() error {
	return e.Err
}
