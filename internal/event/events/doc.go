// Package events defines the closed catalog of event types published on the
// switchboard event bus, together with their payload structs.
//
// Events are grouped by the concern that publishes them:
//
//   - Sync events: start, progress, completion and failure of a ticket sync
//   - Ticket events: individual ticket changes
//   - Conflict events: detection and resolution of sync conflicts
//   - Capability events: adapters announcing or revoking capabilities
//   - Adapter events: orchestrator-driven lifecycle transitions
//   - Health events: health status changes from the capability registry
//   - Data events: request/reply traffic
//
// The bus rejects any type not listed here.
//
// # Usage
//
//	bus.Publish(ctx, events.SyncStart, events.SyncStartPayload{
//	    Source: "jira",
//	    Total:  42,
//	})
package events
