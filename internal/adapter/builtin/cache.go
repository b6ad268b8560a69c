package builtin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/ticket"
)

// Cache holds the latest copy of every synced ticket.
type Cache struct {
	adapter.Base

	mu      sync.RWMutex
	tickets map[string]ticket.Ticket
}

var (
	_ adapter.TicketsSyncedHook = (*Cache)(nil)
	_ adapter.TicketUpdatedHook = (*Cache)(nil)
	_ adapter.TicketDeletedHook = (*Cache)(nil)
)

// NewCache creates the cache adapter.
func NewCache() *Cache {
	return &Cache{
		Base: adapter.Base{Meta: adapter.Metadata{
			ID:          CacheID,
			Name:        "Ticket Cache",
			Version:     "1.0.0",
			Description: "Keeps the latest copy of every ticket",
			Capabilities: []adapter.Capability{
				{Name: "ticket-store", Version: "1.0", Description: "lookup of synced tickets"},
			},
			Subscriptions: []events.Type{events.DataRequest},
			Priority:      100,
		}},
		tickets: make(map[string]ticket.Ticket),
	}
}

// Get returns the cached ticket for key.
func (c *Cache) Get(key string) (ticket.Ticket, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.tickets[key]
	return t.Clone(), ok
}

// All returns every cached ticket sorted by key.
func (c *Cache) All() []ticket.Ticket {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]ticket.Ticket, 0, len(c.tickets))
	for _, t := range c.tickets {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Len returns the number of cached tickets.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tickets)
}

// OnTicketsSynced replaces the cache contents.
func (c *Cache) OnTicketsSynced(ctx context.Context, tickets []ticket.Ticket) error {
	next := make(map[string]ticket.Ticket, len(tickets))
	for _, t := range tickets {
		if err := t.Validate(); err != nil {
			return err
		}
		next[t.Key] = t.Clone()
	}

	c.mu.Lock()
	c.tickets = next
	c.mu.Unlock()

	c.Logger().Debug("cache replaced", "tickets", len(next))
	return nil
}

// OnTicketUpdated stores t.
func (c *Cache) OnTicketUpdated(ctx context.Context, t ticket.Ticket) error {
	if err := t.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	c.tickets[t.Key] = t.Clone()
	c.mu.Unlock()
	return nil
}

// OnTicketDeleted removes key.
func (c *Cache) OnTicketDeleted(ctx context.Context, key string) error {
	c.mu.Lock()
	delete(c.tickets, key)
	c.mu.Unlock()
	return nil
}

// Cleanup drops every cached ticket.
func (c *Cache) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	c.tickets = make(map[string]ticket.Ticket)
	c.mu.Unlock()
	return nil
}

// HandleEvent answers "ticket" requests with a single ticket looked up by
// the string query, and "tickets" requests with every ticket.
func (c *Cache) HandleEvent(ctx context.Context, e event.Event) error {
	req, ok := requestFor(e, CacheID)
	if !ok {
		return nil
	}

	switch req.DataType {
	case "ticket":
		key, _ := req.Query.(string)
		t, found := c.Get(key)
		if !found {
			return respond(ctx, c.Ctx, CacheID, req, nil, fmt.Errorf("ticket %q: %w", key, ErrNotFound))
		}
		return respond(ctx, c.Ctx, CacheID, req, t, nil)
	case "tickets":
		return respond(ctx, c.Ctx, CacheID, req, c.All(), nil)
	default:
		return nil
	}
}
