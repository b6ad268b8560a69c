// Package event provides the in-process event bus for switchboard.
//
// The bus is the communication backbone between the host and its adapters.
// Publishers and subscribers only share an event type from the closed
// catalog in package events; neither knows about the other.
//
// # Architecture
//
//	                    ┌──────────────────────────────────────────┐
//	                    │               Event Bus                  │
//	                    │  - Subscriber registry (priority order)  │
//	                    │  - Sync/Async dispatch                   │
//	                    │  - Circuit breaking, metrics             │
//	                    │  - Request/reply correlation             │
//	                    └──────────────────────────────────────────┘
//	                                      │
//	          ┌───────────────────────────┼───────────────────────────┐
//	          ▼                           ▼                           ▼
//	┌─────────────────┐         ┌─────────────────┐         ┌─────────────────┐
//	│    Tracker      │         │     Filter      │         │   Publisher     │
//	│  - Owner-scoped │         │  - Source-based │         │  - Narrow       │
//	│    release      │         │  - Payload      │         │    interface    │
//	└─────────────────┘         └─────────────────┘         └─────────────────┘
//
// # Ordering
//
// Subscribers run in descending priority order. Subscribers with equal
// priority run in registration order. Synchronous subscribers run inline in
// that order; asynchronous subscribers are scheduled on a bounded pool as
// they are reached. Publish returns only after every scheduled handler has
// settled.
//
// # Failure isolation
//
// A handler error or panic never reaches the publisher. It is logged and
// counted against the subscription. A subscription that fails more than the
// configured threshold (3 by default) in a row is deactivated and stays
// registered until Reactivate is called.
//
// # Request/reply
//
// Request publishes a data:request event with a fresh correlation id and
// waits for the first data:response or data:error carrying that id:
//
//	data, err := bus.Request(ctx, "ticket", "OPS-1", event.WithTimeout(time.Second))
//	switch {
//	case errors.Is(err, event.ErrRequestTimeout):
//	    // nobody answered
//	case err != nil:
//	    var rerr *event.ResponseError
//	    _ = errors.As(err, &rerr)
//	}
//
// Responders subscribe to data:request and call Respond.
//
// # Thread Safety
//
// All exported types are safe for concurrent use.
package event
