package event

import (
	"errors"
	"fmt"

	"github.com/dshills/switchboard/internal/event/events"
)

// Sentinel errors for the event bus.
var (
	// ErrUnknownEventType is returned when a type outside the catalog is
	// subscribed to or published.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrNilHandler is returned when a nil handler is provided.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrInvalidOwner is returned when a zero Owner is used with a Tracker.
	ErrInvalidOwner = errors.New("invalid owner")

	// ErrInvalidRequest is returned for a request or response without a
	// data type or request id.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRequestTimeout is returned when no response arrives in time.
	ErrRequestTimeout = errors.New("request timed out")

	// ErrHandlerPanic is matched by PanicError.
	ErrHandlerPanic = errors.New("handler panicked")
)

// HandlerError wraps an error from a handler with additional context.
type HandlerError struct {
	// SubscriptionID is the ID of the subscription whose handler failed.
	SubscriptionID string

	// EventType is the type the handler was subscribed to.
	EventType events.Type

	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *HandlerError) Error() string {
	return "handler error for subscription " + e.SubscriptionID + " on " + string(e.EventType) + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// PanicError wraps a panic value as an error.
type PanicError struct {
	// SubscriptionID is the ID of the subscription whose handler panicked.
	SubscriptionID string

	// EventType is the type the handler was subscribed to.
	EventType events.Type

	// Value is the value passed to panic().
	Value any

	// Stack is the stack trace at the time of the panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic for subscription %s on %s: %v", e.SubscriptionID, e.EventType, e.Value)
}

// Is allows errors.Is to match PanicError with ErrHandlerPanic.
func (e *PanicError) Is(target error) bool {
	return target == ErrHandlerPanic
}

// ResponseError is returned by Request when the responder answered with
// a data:error event.
type ResponseError struct {
	RequestID string
	DataType  string
	Message   string
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	if e.DataType == "" {
		return "request " + e.RequestID + " failed: " + e.Message
	}
	return e.DataType + " request " + e.RequestID + " failed: " + e.Message
}
