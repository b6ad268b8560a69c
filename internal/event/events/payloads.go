package events

import (
	"time"

	"github.com/dshills/switchboard/internal/ticket"
)

// SyncStartPayload is published with SyncStart.
type SyncStartPayload struct {
	// Source names the ticket source being synced.
	Source string
	// Total is the number of tickets expected, or 0 if unknown.
	Total int
}

// SyncProgressPayload is published with SyncProgress.
type SyncProgressPayload struct {
	Source    string
	Processed int
	Total     int
}

// SyncCompletePayload is published with SyncComplete.
type SyncCompletePayload struct {
	Source   string
	Synced   int
	Duration time.Duration
}

// SyncErrorPayload is published with SyncError.
type SyncErrorPayload struct {
	Source string
	Err    string
}

// TicketPayload is published with TicketCreated and TicketUpdated.
type TicketPayload struct {
	Ticket ticket.Ticket
}

// TicketDeletedPayload is published with TicketDeleted.
type TicketDeletedPayload struct {
	Key string
}

// ConflictPayload is published with ConflictDetected and ConflictResolved.
type ConflictPayload struct {
	Key    string
	Field  string
	Local  string
	Remote string

	// Resolution is set on ConflictResolved ("local", "remote", "merged").
	Resolution string
}

// CapabilityPayload is published with CapabilityAnnounced and CapabilityRevoked.
type CapabilityPayload struct {
	AdapterID   string
	Capability  string
	Version     string
	Description string
}

// AdapterPayload is published with the adapter lifecycle events.
type AdapterPayload struct {
	AdapterID string
	Name      string
	State     string

	// Err is set on AdapterError.
	Err string
}

// HealthChangedPayload is published with HealthChanged.
type HealthChangedPayload struct {
	AdapterID string
	Previous  string
	Current   string
	Issues    []string
}

// RequestPayload is published with DataRequest.
type RequestPayload struct {
	// RequestID equals the event's correlation id.
	RequestID string

	// DataType names what is being asked for ("ticket", "search", ...).
	DataType string

	// Query is the request argument; its shape depends on DataType.
	Query any

	// TargetID optionally restricts the request to one responder.
	TargetID string
}

// ResponsePayload is published with DataResponse.
type ResponsePayload struct {
	RequestID string
	Data      any
}

// ErrorPayload is published with DataError.
type ErrorPayload struct {
	RequestID string
	Message   string
}

// SettingsChangedPayload is published with SettingsChanged.
type SettingsChangedPayload struct {
	AdapterID string
	Settings  map[string]any
}
