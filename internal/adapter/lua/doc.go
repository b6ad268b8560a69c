// Package lua runs adapters written in Lua.
//
// A scripted adapter lives in its own directory holding an adapter.yaml
// manifest and a main script (init.lua by default):
//
//	id: triage
//	version: 1.0.0
//	dependencies: [cache]
//	subscriptions: [ticket:updated]
//	capabilities:
//	  - name: triage
//	    version: "1.0"
//	settings:
//	  label: urgent
//
// The script defines any of these globals, all optional:
//
//	initialize(settings)   activate()   deactivate()   cleanup()
//	health()               handle(event)
//	on_tickets_synced(tickets)   on_ticket_updated(ticket)
//	on_ticket_deleted(key)
//
// A hook reports failure by raising an error or by returning false or
// nil plus a message. Scripts talk to the host through the switchboard
// table: log, publish, announce, respond and setting.
// Events a hook publishes, announces or responds with are sent once the
// hook has returned.
//
// Each adapter gets its own interpreter with only the base, table,
// string and math libraries. File loading is removed and every call is
// bounded by an execution timeout.
package lua
