package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/ticket"
)

// Notification is the kind of domain notification pushed to adapters.
type Notification int

// Domain notifications.
const (
	TicketsSynced Notification = iota
	TicketUpdated
	TicketDeleted
)

// String returns the notification name.
func (n Notification) String() string {
	switch n {
	case TicketsSynced:
		return "tickets-synced"
	case TicketUpdated:
		return "ticket-updated"
	case TicketDeleted:
		return "ticket-deleted"
	default:
		return "unknown"
	}
}

// CollaboratorEvent is a domain notification. Tickets is set for
// TicketsSynced, Ticket for TicketUpdated and Key for TicketDeleted.
type CollaboratorEvent struct {
	Kind    Notification
	Tickets []ticket.Ticket
	Ticket  ticket.Ticket
	Key     string
}

// OnCollaboratorEvent calls the matching optional hook of every active
// adapter, in activation order. A failing or panicking adapter does not
// stop delivery to the others; all failures are returned joined.
func (o *Orchestrator) OnCollaboratorEvent(ctx context.Context, ev CollaboratorEvent) error {
	ids, err := o.ActivationOrder()
	if err != nil {
		o.mu.RLock()
		ids = append([]string(nil), o.order...)
		o.mu.RUnlock()
	}

	var errs []error
	delivered := 0
	for _, id := range ids {
		m, ok := o.get(id)
		if !ok || m.host.State() != adapter.StateActive {
			continue
		}
		hook := hookFor(ev, m.host.Adapter())
		if hook == nil {
			continue
		}

		if err := m.host.Hook(ctx, ev.Kind.String(), hook); err != nil {
			o.logger.Warn("notification hook failed", "adapter_id", id, "kind", ev.Kind.String(), "error", err)
			errs = append(errs, err)
			continue
		}
		delivered++
	}

	o.logger.Debug("notification delivered", "kind", ev.Kind.String(), "adapters", delivered, "failed", len(errs))
	if len(errs) > 0 {
		return fmt.Errorf("%s: %d adapters failed: %w", ev.Kind, len(errs), errors.Join(errs...))
	}
	return nil
}

// hookFor returns the call for the adapter's hook, or nil if the adapter
// does not implement it. Each adapter gets its own copy of the tickets.
func hookFor(ev CollaboratorEvent, a adapter.Adapter) func(context.Context, adapter.Adapter) error {
	switch ev.Kind {
	case TicketsSynced:
		if _, ok := a.(adapter.TicketsSyncedHook); !ok {
			return nil
		}
		return func(ctx context.Context, a adapter.Adapter) error {
			tickets := make([]ticket.Ticket, len(ev.Tickets))
			for i, t := range ev.Tickets {
				tickets[i] = t.Clone()
			}
			return a.(adapter.TicketsSyncedHook).OnTicketsSynced(ctx, tickets)
		}
	case TicketUpdated:
		if _, ok := a.(adapter.TicketUpdatedHook); !ok {
			return nil
		}
		return func(ctx context.Context, a adapter.Adapter) error {
			return a.(adapter.TicketUpdatedHook).OnTicketUpdated(ctx, ev.Ticket.Clone())
		}
	case TicketDeleted:
		if _, ok := a.(adapter.TicketDeletedHook); !ok {
			return nil
		}
		return func(ctx context.Context, a adapter.Adapter) error {
			return a.(adapter.TicketDeletedHook).OnTicketDeleted(ctx, ev.Key)
		}
	}
	return nil
}
