// Package adapter defines the contract every optional integration
// implements, the lifecycle state machine that drives it, and the static
// table that maps adapter ids to constructors.
package adapter

import (
	"context"

	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/logging"
	"github.com/dshills/switchboard/internal/ticket"
)

// Adapter is implemented by every integration. Adapters never change their
// own lifecycle state; a Host drives them.
type Adapter interface {
	// Metadata returns the adapter's immutable description.
	Metadata() Metadata

	// Initialize prepares the adapter. It is called once.
	Initialize(ctx context.Context, actx Context) error

	// Activate starts the adapter.
	Activate(ctx context.Context) error

	// Deactivate pauses the adapter. It may be activated again.
	Deactivate(ctx context.Context) error

	// Cleanup releases every resource. No method is called afterwards.
	Cleanup(ctx context.Context) error

	// HealthCheck returns nil if the adapter is working.
	HealthCheck(ctx context.Context) error

	// HandleEvent receives events of the types listed in
	// Metadata().Subscriptions while the adapter is active.
	HandleEvent(ctx context.Context, e event.Event) error
}

// Recoverer is implemented by adapters that can recover from the error
// state themselves. Adapters without it are recovered by re-activation.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// TicketsSyncedHook receives the full ticket list after a sync.
type TicketsSyncedHook interface {
	OnTicketsSynced(ctx context.Context, tickets []ticket.Ticket) error
}

// TicketUpdatedHook receives individual ticket updates.
type TicketUpdatedHook interface {
	OnTicketUpdated(ctx context.Context, t ticket.Ticket) error
}

// TicketDeletedHook receives ticket deletions.
type TicketDeletedHook interface {
	OnTicketDeleted(ctx context.Context, key string) error
}

// CapabilityProber is implemented by adapters that discover capabilities at
// runtime in addition to the declared ones.
type CapabilityProber interface {
	ProbeCapabilities(ctx context.Context) ([]Capability, error)
}

// Context is handed to an adapter at initialization. It carries everything
// the adapter may use to talk to the host.
type Context struct {
	// Bus is the host event bus, for Request and Respond.
	Bus *event.Bus

	// Publisher publishes events stamped with the adapter id as source.
	Publisher event.Publisher

	// Tracker and Owner scope the adapter's own subscriptions. The host
	// releases everything registered under Owner at cleanup.
	Tracker *event.Tracker
	Owner   event.Owner

	// Logger is tagged with the adapter id.
	Logger *logging.Logger

	// Settings are the adapter's free-form settings from configuration.
	Settings map[string]any

	// HostVersion is the running host version.
	HostVersion string
}

// Subscribe registers handler under the adapter's owner handle.
func (c Context) Subscribe(t events.Type, handler event.Handler, opts ...event.SubscriptionOption) (string, error) {
	if c.Tracker == nil {
		return "", event.ErrInvalidOwner
	}
	return c.Tracker.RegisterFor(c.Owner, t, handler, opts...)
}

// Publish publishes an event stamped with the adapter id.
func (c Context) Publish(ctx context.Context, t events.Type, payload any, opts ...event.PublishOption) error {
	if c.Publisher == nil {
		return nil
	}
	return c.Publisher.Publish(ctx, t, payload, opts...)
}

// Setting returns a string setting or def.
func (c Context) Setting(key, def string) string {
	if v, ok := c.Settings[key].(string); ok && v != "" {
		return v
	}
	return def
}

// IntSetting returns an integer setting or def. TOML and YAML integers
// decode as int64, so both int and int64 are accepted.
func (c Context) IntSetting(key string, def int) int {
	switch v := c.Settings[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return def
	}
}

// Base provides no-op implementations of the lifecycle methods. Adapters
// embed it and override what they need.
type Base struct {
	Meta Metadata
	Ctx  Context
}

// Metadata implements Adapter.
func (b *Base) Metadata() Metadata { return b.Meta }

// Initialize stores the context.
func (b *Base) Initialize(ctx context.Context, actx Context) error {
	b.Ctx = actx
	return nil
}

// Activate implements Adapter.
func (b *Base) Activate(ctx context.Context) error { return nil }

// Deactivate implements Adapter.
func (b *Base) Deactivate(ctx context.Context) error { return nil }

// Cleanup implements Adapter.
func (b *Base) Cleanup(ctx context.Context) error { return nil }

// HealthCheck implements Adapter.
func (b *Base) HealthCheck(ctx context.Context) error { return nil }

// HandleEvent implements Adapter.
func (b *Base) HandleEvent(ctx context.Context, e event.Event) error { return nil }

// Logger returns the adapter logger, never nil.
func (b *Base) Logger() *logging.Logger {
	return logging.OrNop(b.Ctx.Logger)
}
