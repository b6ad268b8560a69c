package event

import "context"

// Priority orders subscribers of the same event type.
// Higher values run first.
type Priority int

// Common priorities. Any integer is allowed.
const (
	PriorityLow      Priority = -100
	PriorityNormal   Priority = 0
	PriorityHigh     Priority = 100
	PriorityCritical Priority = 1000
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch {
	case p >= PriorityCritical:
		return "critical"
	case p >= PriorityHigh:
		return "high"
	case p >= PriorityNormal:
		return "normal"
	default:
		return "low"
	}
}

// Handler is the interface for event handlers.
type Handler interface {
	// Handle processes an event. A returned error counts as a failure of
	// the subscription.
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc is a function adapter for Handler.
type HandlerFunc func(ctx context.Context, e Event) error

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(ctx context.Context, e Event) error {
	return f(ctx, e)
}

// PayloadHandler adapts a function taking a typed payload to a Handler.
// Events whose payload is not a T are skipped without error.
func PayloadHandler[T any](fn func(ctx context.Context, e Event, payload T) error) Handler {
	return HandlerFunc(func(ctx context.Context, e Event) error {
		p, ok := e.Payload.(T)
		if !ok {
			return nil
		}
		return fn(ctx, e, p)
	})
}

// FilterFunc is a predicate for filtering events.
// Return true to allow the event, false to filter it out.
type FilterFunc func(e Event) bool

// Stats contains event bus totals.
type Stats struct {
	// EventsPublished is the total number of events published.
	EventsPublished uint64

	// HandlersExecuted is the total number of handler executions.
	HandlersExecuted uint64

	// HandlerErrors is the number of handlers that returned errors.
	HandlerErrors uint64

	// HandlerPanics is the number of handlers that panicked.
	HandlerPanics uint64

	// CircuitsOpened is the number of times a subscription was deactivated
	// after repeated failures.
	CircuitsOpened uint64

	// Subscriptions is the current number of subscriptions.
	Subscriptions int

	// ActiveSubscriptions is the number of subscriptions receiving events.
	ActiveSubscriptions int

	// PendingRequests is the number of requests awaiting a response.
	PendingRequests int
}
