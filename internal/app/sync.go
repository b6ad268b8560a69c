package app

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/orchestrator"
	"github.com/dshills/switchboard/internal/ticket"
)

// SourceID is the source id of events the application publishes.
const SourceID = "switchboard"

// Sync fetches every ticket from src and hands them to the active adapters.
// It publishes sync:start, then sync:complete or sync:error. Adapter hook
// failures do not abort the sync; they are returned after sync:complete.
func (app *App) Sync(ctx context.Context, src ticket.Source) (int, error) {
	if err := app.ready(); err != nil {
		return 0, err
	}
	pub := event.NewSourcePublisher(app.bus, SourceID)
	started := time.Now()
	name := src.Name()

	_ = pub.Publish(ctx, events.SyncStart, events.SyncStartPayload{Source: name})

	tickets, err := src.Fetch(ctx)
	if err != nil {
		_ = pub.Publish(ctx, events.SyncError, events.SyncErrorPayload{Source: name, Err: err.Error()})
		app.logger.Error("sync failed", "source", name, "error", err)
		return 0, fmt.Errorf("sync %s: %w", name, err)
	}

	_ = pub.Publish(ctx, events.SyncProgress, events.SyncProgressPayload{
		Source: name,
		Total:  len(tickets),
	})

	hookErr := app.orch.OnCollaboratorEvent(ctx, orchestrator.CollaboratorEvent{
		Kind:    orchestrator.TicketsSynced,
		Tickets: tickets,
	})

	_ = pub.Publish(ctx, events.SyncProgress, events.SyncProgressPayload{
		Source:    name,
		Processed: len(tickets),
		Total:     len(tickets),
	})
	_ = pub.Publish(ctx, events.SyncComplete, events.SyncCompletePayload{
		Source:   name,
		Synced:   len(tickets),
		Duration: time.Since(started),
	})
	app.logger.Info("sync complete", "source", name, "tickets", len(tickets), "duration", time.Since(started))

	if hookErr != nil {
		return len(tickets), fmt.Errorf("sync %s: %w", name, hookErr)
	}
	return len(tickets), nil
}

// UpdateTicket publishes ticket:updated and notifies the active adapters.
func (app *App) UpdateTicket(ctx context.Context, t ticket.Ticket) error {
	if err := app.ready(); err != nil {
		return err
	}
	if err := t.Validate(); err != nil {
		return err
	}
	pub := event.NewSourcePublisher(app.bus, SourceID)
	_ = pub.Publish(ctx, events.TicketUpdated, events.TicketPayload{Ticket: t.Clone()})

	return app.orch.OnCollaboratorEvent(ctx, orchestrator.CollaboratorEvent{
		Kind:   orchestrator.TicketUpdated,
		Ticket: t,
	})
}

// DeleteTicket publishes ticket:deleted and notifies the active adapters.
func (app *App) DeleteTicket(ctx context.Context, key string) error {
	if err := app.ready(); err != nil {
		return err
	}
	if key == "" {
		return ticket.ErrInvalidTicket
	}
	pub := event.NewSourcePublisher(app.bus, SourceID)
	_ = pub.Publish(ctx, events.TicketDeleted, events.TicketDeletedPayload{Key: key})

	return app.orch.OnCollaboratorEvent(ctx, orchestrator.CollaboratorEvent{
		Kind: orchestrator.TicketDeleted,
		Key:  key,
	})
}

// Request asks the adapters for data over the bus and waits for the first
// answer.
func (app *App) Request(ctx context.Context, dataType string, query any, opts ...event.RequestOption) (any, error) {
	if err := app.ready(); err != nil {
		return nil, err
	}
	opts = append([]event.RequestOption{event.WithRequestSource(SourceID)}, opts...)
	return app.bus.Request(ctx, dataType, query, opts...)
}

// Search runs a full-text query against the search adapter.
func (app *App) Search(ctx context.Context, q string) ([]string, error) {
	data, err := app.Request(ctx, "search", q)
	if err != nil {
		return nil, err
	}
	keys, ok := data.([]string)
	if !ok {
		return nil, fmt.Errorf("search: unexpected response %T", data)
	}
	return keys, nil
}

func (app *App) ready() error {
	if app.shutdown.Load() {
		return ErrShutdown
	}
	if !app.started.Load() {
		return ErrNotStarted
	}
	return nil
}
