package event

import "github.com/dshills/switchboard/internal/event/events"

// Common filter predicates for event subscription.

// FilterBySource creates a filter that only allows events from the specified source.
func FilterBySource(source string) FilterFunc {
	return func(e Event) bool {
		return e.SourceID == source
	}
}

// ExcludeSource creates a filter that drops events from the specified source.
// Adapters use it to ignore their own publications.
func ExcludeSource(source string) FilterFunc {
	return func(e Event) bool {
		return e.SourceID != source
	}
}

// FilterByCorrelation creates a filter that only allows events with the specified correlation ID.
func FilterByCorrelation(correlationID string) FilterFunc {
	return func(e Event) bool {
		return e.CorrelationID == correlationID
	}
}

// FilterPayload creates a filter that applies predicate to payloads of type T.
// Events with other payload types are filtered out.
func FilterPayload[T any](predicate func(payload T) bool) FilterFunc {
	return func(e Event) bool {
		p, ok := e.Payload.(T)
		if !ok {
			return false
		}
		return predicate(p)
	}
}

// RequestsFor allows data:request events of dataType that are untargeted
// or targeted at responderID.
func RequestsFor(responderID, dataType string) FilterFunc {
	return FilterPayload(func(p events.RequestPayload) bool {
		if p.DataType != dataType {
			return false
		}
		return p.TargetID == "" || p.TargetID == responderID
	})
}

// FilterAnd combines filters; all must pass.
func FilterAnd(filters ...FilterFunc) FilterFunc {
	return func(e Event) bool {
		for _, f := range filters {
			if f != nil && !f(e) {
				return false
			}
		}
		return true
	}
}

// FilterOr combines filters; at least one must pass.
func FilterOr(filters ...FilterFunc) FilterFunc {
	return func(e Event) bool {
		for _, f := range filters {
			if f != nil && f(e) {
				return true
			}
		}
		return false
	}
}

// FilterNot inverts a filter.
func FilterNot(filter FilterFunc) FilterFunc {
	return func(e Event) bool {
		return !filter(e)
	}
}
