// Package builtin provides the adapters compiled into switchboard:
//
//   - cache keeps the latest copy of every ticket and answers "ticket"
//     and "tickets" requests.
//   - search depends on cache, maintains a token index and answers
//     "search" requests.
//   - journal records sync, conflict and ticket activity in a bounded
//     journal and reports a failed last sync through its health check.
package builtin

import (
	"context"
	"errors"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
)

// Adapter ids.
const (
	CacheID   = "cache"
	SearchID  = "search"
	JournalID = "journal"
)

// Register adds the built-in adapter constructors to table.
func Register(table *adapter.Table) error {
	return errors.Join(
		table.Register(CacheID, func() (adapter.Adapter, error) { return NewCache(), nil }),
		table.Register(SearchID, func() (adapter.Adapter, error) { return NewSearch(), nil }),
		table.Register(JournalID, func() (adapter.Adapter, error) { return NewJournal(), nil }),
	)
}

// ErrNotFound is returned in error responses for unknown keys.
var ErrNotFound = errors.New("not found")

// requestFor returns the request payload if e is a data:request this
// adapter should answer.
func requestFor(e event.Event, id string) (events.RequestPayload, bool) {
	if e.Type != events.DataRequest {
		return events.RequestPayload{}, false
	}
	p, ok := event.PayloadAs[events.RequestPayload](e)
	if !ok {
		return events.RequestPayload{}, false
	}
	if p.TargetID != "" && p.TargetID != id {
		return events.RequestPayload{}, false
	}
	return p, true
}

// respond answers a request through the adapter's bus.
func respond(ctx context.Context, actx adapter.Context, id string, req events.RequestPayload, data any, err error) error {
	if actx.Bus == nil {
		return nil
	}
	return actx.Bus.Respond(ctx, req.RequestID, data, err, event.WithSource(id))
}
