package events

// Type names an event in the catalog.
type Type string

// String returns the type name.
func (t Type) String() string {
	return string(t)
}

// Sync events.
const (
	// SyncStart is published when a ticket sync begins.
	SyncStart Type = "sync:start"

	// SyncProgress is published periodically while a sync runs.
	SyncProgress Type = "sync:progress"

	// SyncComplete is published when a sync finishes successfully.
	SyncComplete Type = "sync:complete"

	// SyncError is published when a sync fails.
	SyncError Type = "sync:error"
)

// Ticket events.
const (
	TicketCreated Type = "ticket:created"
	TicketUpdated Type = "ticket:updated"
	TicketDeleted Type = "ticket:deleted"
)

// Conflict events.
const (
	ConflictDetected Type = "conflict:detected"
	ConflictResolved Type = "conflict:resolved"
)

// Capability events.
const (
	// CapabilityAnnounced is published by an adapter that gained a capability
	// at runtime.
	CapabilityAnnounced Type = "capability:announced"

	// CapabilityRevoked is published by an adapter that lost a capability.
	CapabilityRevoked Type = "capability:revoked"
)

// Adapter lifecycle events.
const (
	AdapterRegistered  Type = "adapter:registered"
	AdapterActivated   Type = "adapter:activated"
	AdapterDeactivated Type = "adapter:deactivated"
	AdapterError       Type = "adapter:error"
	AdapterCleanedUp   Type = "adapter:cleaned-up"
)

// HealthChanged is published when an adapter's health status changes.
const HealthChanged Type = "health:changed"

// Data events carry request/reply traffic.
const (
	DataRequest  Type = "data:request"
	DataResponse Type = "data:response"
	DataError    Type = "data:error"
)

// SettingsChanged is published when adapter settings are reloaded.
const SettingsChanged Type = "settings:changed"

var catalog = []Type{
	SyncStart, SyncProgress, SyncComplete, SyncError,
	TicketCreated, TicketUpdated, TicketDeleted,
	ConflictDetected, ConflictResolved,
	CapabilityAnnounced, CapabilityRevoked,
	AdapterRegistered, AdapterActivated, AdapterDeactivated, AdapterError, AdapterCleanedUp,
	HealthChanged,
	DataRequest, DataResponse, DataError,
	SettingsChanged,
}

var known = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(catalog))
	for _, t := range catalog {
		m[t] = struct{}{}
	}
	return m
}()

// IsKnown reports whether t is a member of the catalog.
func (t Type) IsKnown() bool {
	_, ok := known[t]
	return ok
}

// All returns every catalog type in declaration order.
func All() []Type {
	out := make([]Type, len(catalog))
	copy(out, catalog)
	return out
}
