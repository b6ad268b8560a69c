package event

import (
	"context"
	"sync/atomic"

	"github.com/dshills/switchboard/internal/event/dispatch"
	"github.com/dshills/switchboard/internal/event/events"
)

// SubscriptionConfig contains configuration for a subscription.
type SubscriptionConfig struct {
	// Priority determines execution order (higher values execute first).
	Priority Priority

	// Once removes the subscription after its first invocation.
	Once bool

	// Async schedules the handler concurrently instead of inline.
	Async bool

	// Filter is an optional predicate. Events it rejects are not delivered
	// and do not count as invocations.
	Filter FilterFunc
}

// DefaultSubscriptionConfig returns a default subscription configuration:
// priority 0, repeating, asynchronous.
func DefaultSubscriptionConfig() SubscriptionConfig {
	return SubscriptionConfig{
		Priority: PriorityNormal,
		Async:    true,
	}
}

// SubscriptionOption is a function that configures a subscription.
type SubscriptionOption func(*SubscriptionConfig)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Priority = p
	}
}

// WithOnce makes the subscription fire at most once.
func WithOnce() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Once = true
	}
}

// WithSync runs the handler inline, in priority order, before Publish returns.
func WithSync() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Async = false
	}
}

// WithAsync runs the handler concurrently with other async handlers.
func WithAsync() SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Async = true
	}
}

// WithFilter sets a filter predicate.
func WithFilter(f FilterFunc) SubscriptionOption {
	return func(c *SubscriptionConfig) {
		c.Filter = f
	}
}

// SubscriptionInfo is a point-in-time view of a subscription.
type SubscriptionInfo struct {
	ID           string
	EventType    events.Type
	Priority     Priority
	Once         bool
	Async        bool
	Active       bool
	FailureCount int
	Owner        Owner
}

// subscription is the bus-internal subscription record.
type subscription struct {
	id        string
	eventType events.Type
	handler   Handler
	config    SubscriptionConfig
	owner     Owner
	seq       uint64

	dispatchHandler dispatch.Handler

	active   atomic.Bool
	failures atomic.Int32
	fired    atomic.Bool
}

func newSubscription(id string, t events.Type, h Handler, owner Owner, opts ...SubscriptionOption) *subscription {
	config := DefaultSubscriptionConfig()
	for _, opt := range opts {
		opt(&config)
	}

	s := &subscription{
		id:        id,
		eventType: t,
		handler:   h,
		config:    config,
		owner:     owner,
	}
	s.dispatchHandler = dispatch.HandlerFunc(func(ctx context.Context, e any) error {
		return h.Handle(ctx, e.(Event))
	})
	s.active.Store(true)
	return s
}

// shouldDeliver reports whether e should be delivered to this subscription.
func (s *subscription) shouldDeliver(e Event) bool {
	if !s.active.Load() {
		return false
	}
	if s.config.Filter != nil && !s.config.Filter(e) {
		return false
	}
	return true
}

// claim marks a once subscription as fired. It returns false if another
// publish already claimed it.
func (s *subscription) claim() bool {
	if !s.config.Once {
		return true
	}
	return s.fired.CompareAndSwap(false, true)
}

func (s *subscription) info() SubscriptionInfo {
	return SubscriptionInfo{
		ID:           s.id,
		EventType:    s.eventType,
		Priority:     s.config.Priority,
		Once:         s.config.Once,
		Async:        s.config.Async,
		Active:       s.active.Load(),
		FailureCount: int(s.failures.Load()),
		Owner:        s.owner,
	}
}
