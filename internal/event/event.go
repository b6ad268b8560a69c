package event

import (
	"time"

	"github.com/google/uuid"

	"github.com/dshills/switchboard/internal/event/events"
)

// timeNow is a variable to allow testing with fixed timestamps.
var timeNow = time.Now

// Event is a single published event. Events are immutable once published.
type Event struct {
	// ID uniquely identifies this event instance.
	ID string

	// Type is the catalog type of the event.
	Type events.Type

	// Timestamp is when the event was published.
	Timestamp time.Time

	// SourceID identifies the component that published the event.
	SourceID string

	// CorrelationID links request and response events.
	CorrelationID string

	// Payload carries the type-specific data, usually a struct from package events.
	Payload any
}

// NewEvent creates an event stamped with a fresh id and the current time.
func NewEvent(t events.Type, payload any, source string) Event {
	return Event{
		ID:        generateID(),
		Type:      t,
		Timestamp: timeNow(),
		SourceID:  source,
		Payload:   payload,
	}
}

// WithCorrelation returns a copy of the event with a correlation id set.
func (e Event) WithCorrelation(correlationID string) Event {
	e.CorrelationID = correlationID
	return e
}

// PayloadAs extracts the payload of e as a T.
func PayloadAs[T any](e Event) (T, bool) {
	p, ok := e.Payload.(T)
	return p, ok
}

func generateID() string {
	return uuid.NewString()
}
