package event

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/switchboard/internal/event/dispatch"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/logging"
)

// Bus is the in-process event bus.
type Bus struct {
	registry *Registry
	metrics  *metricsTable
	inst     *instruments
	logger   *logging.Logger
	config   busConfig

	syncDispatcher  *dispatch.SyncDispatcher
	asyncDispatcher *dispatch.AsyncDispatcher

	pendingMu sync.Mutex
	pending   map[string]chan reply

	listenersMu sync.RWMutex
	listeners   []func(*subscription)

	eventsPublished  atomic.Uint64
	handlersExecuted atomic.Uint64
	handlerErrors    atomic.Uint64
	handlerPanics    atomic.Uint64
	circuitsOpened   atomic.Uint64
}

// NewBus creates a new event bus with the given options.
func NewBus(opts ...BusOption) *Bus {
	config := defaultBusConfig()
	for _, opt := range opts {
		opt(&config)
	}

	logger := logging.OrNop(config.logger).WithComponent("bus")

	inst, err := newInstruments(config.resolveMeter())
	if err != nil {
		logger.Warn("metric instruments unavailable", "error", err)
		inst = noopInstruments()
	}

	return &Bus{
		registry: NewRegistry(),
		metrics:  newMetricsTable(),
		inst:     inst,
		logger:   logger,
		config:   config,
		pending:  make(map[string]chan reply),
		syncDispatcher: dispatch.NewSyncDispatcher(
			dispatch.WithTimeout(config.handlerTimeout),
		),
		asyncDispatcher: dispatch.NewAsyncDispatcher(
			dispatch.WithTimeout(config.handlerTimeout),
			dispatch.WithWorkers(config.asyncWorkers),
		),
	}
}

// Subscribe registers handler for events of type t and returns the
// subscription id. Subscriptions are asynchronous with priority 0 unless
// configured otherwise.
func (b *Bus) Subscribe(t events.Type, handler Handler, opts ...SubscriptionOption) (string, error) {
	sub, err := b.subscribe(t, handler, Owner{}, opts...)
	if err != nil {
		return "", err
	}
	return sub.id, nil
}

// SubscribeFunc is a convenience method for subscribing with a function handler.
func (b *Bus) SubscribeFunc(t events.Type, fn HandlerFunc, opts ...SubscriptionOption) (string, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return b.Subscribe(t, fn, opts...)
}

func (b *Bus) subscribe(t events.Type, handler Handler, owner Owner, opts ...SubscriptionOption) (*subscription, error) {
	if handler == nil {
		return nil, ErrNilHandler
	}
	if !t.IsKnown() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, t)
	}

	sub := newSubscription(generateID(), t, handler, owner, opts...)
	b.registry.Add(sub)

	b.logger.Debug("subscribed",
		"subscription_id", sub.id,
		"event_type", string(t),
		"priority", int(sub.config.Priority),
		"once", sub.config.Once,
		"async", sub.config.Async,
	)
	return sub, nil
}

// Unsubscribe removes a subscription. It returns false if the id is unknown,
// which makes repeated calls harmless.
func (b *Bus) Unsubscribe(id string) bool {
	sub, ok := b.registry.Remove(id)
	if !ok {
		return false
	}
	b.notifyRemoved(sub)
	return true
}

// Reactivate re-enables a subscription deactivated after repeated failures
// and resets its failure count.
func (b *Bus) Reactivate(id string) bool {
	sub, ok := b.registry.Get(id)
	if !ok {
		return false
	}
	sub.failures.Store(0)
	sub.active.Store(true)
	b.logger.Info("subscription reactivated", "subscription_id", id, "event_type", string(sub.eventType))
	return true
}

// Subscription returns a snapshot of a subscription.
func (b *Bus) Subscription(id string) (SubscriptionInfo, bool) {
	sub, ok := b.registry.Get(id)
	if !ok {
		return SubscriptionInfo{}, false
	}
	return sub.info(), true
}

// Subscriptions returns snapshots of the subscriptions for t in dispatch order.
func (b *Bus) Subscriptions(t events.Type) []SubscriptionInfo {
	subs := b.registry.ByType(t)
	out := make([]SubscriptionInfo, 0, len(subs))
	for _, sub := range subs {
		out = append(out, sub.info())
	}
	return out
}

// PublishOption customizes a published event.
type PublishOption func(*Event)

// WithSource sets the event's source id.
func WithSource(id string) PublishOption {
	return func(e *Event) {
		e.SourceID = id
	}
}

// WithCorrelationID sets the event's correlation id.
func WithCorrelationID(id string) PublishOption {
	return func(e *Event) {
		e.CorrelationID = id
	}
}

// Publish creates an event of type t and delivers it to every subscriber.
// It returns an error only for invalid arguments; handler failures are
// contained. Publish returns after every handler has been attempted.
func (b *Bus) Publish(ctx context.Context, t events.Type, payload any, opts ...PublishOption) error {
	e := NewEvent(t, payload, "")
	for _, opt := range opts {
		opt(&e)
	}
	return b.PublishEvent(ctx, e)
}

// PublishEvent delivers a prepared event. Missing ID and Timestamp are filled in.
func (b *Bus) PublishEvent(ctx context.Context, e Event) error {
	if !e.Type.IsKnown() {
		return fmt.Errorf("%w: %q", ErrUnknownEventType, e.Type)
	}
	if e.ID == "" {
		e.ID = generateID()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = timeNow()
	}

	// In-flight publishes are not cancellable; handlers still see ctx values.
	ctx = context.WithoutCancel(ctx)

	b.eventsPublished.Add(1)
	b.settleRequest(e)

	start := time.Now()
	var (
		handlers atomic.Int64
		errs     atomic.Int64
		batch    *dispatch.Batch
	)

	for _, sub := range b.registry.ByType(e.Type) {
		if !sub.shouldDeliver(e) || !sub.claim() {
			continue
		}
		handlers.Add(1)

		done := func(result dispatch.Result) {
			if !b.settle(e, sub, result) {
				errs.Add(1)
			}
		}

		if sub.config.Async {
			if batch == nil {
				batch = b.asyncDispatcher.NewBatch()
			}
			batch.Dispatch(ctx, e, sub.dispatchHandler, done)
			continue
		}
		done(b.syncDispatcher.Dispatch(ctx, e, sub.dispatchHandler))
	}

	if batch != nil {
		batch.Wait()
	}

	elapsed := time.Since(start)
	b.metrics.record(e.Type, int(handlers.Load()), int(errs.Load()), elapsed, e.Timestamp)
	b.inst.recordPublish(ctx, e.Type, int(errs.Load()), elapsed)
	return nil
}

// settle applies the outcome of one handler invocation to its subscription.
// It reports whether the invocation succeeded.
func (b *Bus) settle(e Event, sub *subscription, result dispatch.Result) bool {
	b.handlersExecuted.Add(1)

	if result.OK() {
		sub.failures.Store(0)
		if sub.config.Once {
			b.Unsubscribe(sub.id)
		}
		return true
	}

	var err error
	switch result.Outcome {
	case dispatch.Panicked:
		b.handlerPanics.Add(1)
		err = &PanicError{
			SubscriptionID: sub.id,
			EventType:      e.Type,
			Value:          result.Recovered,
			Stack:          string(result.Stack),
		}
	default:
		b.handlerErrors.Add(1)
		err = &HandlerError{SubscriptionID: sub.id, EventType: e.Type, Err: result.Err}
	}

	failures := int(sub.failures.Add(1))
	b.logger.Warn("handler failed",
		"subscription_id", sub.id,
		"event_type", string(e.Type),
		"event_id", e.ID,
		"failures", failures,
		"outcome", result.Outcome.String(),
		"error", err,
	)

	if sub.config.Once {
		b.Unsubscribe(sub.id)
		return false
	}

	if failures > b.config.failureThreshold && sub.active.CompareAndSwap(true, false) {
		b.circuitsOpened.Add(1)
		b.inst.circuits.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("event.type", string(e.Type))))
		b.logger.Error("subscription deactivated after repeated failures",
			"subscription_id", sub.id,
			"event_type", string(e.Type),
			"failures", failures,
		)
	}
	return false
}

// Metrics returns the dispatch metrics for t. It reports false if t was
// never published.
func (b *Bus) Metrics(t events.Type) (Metrics, bool) {
	return b.metrics.get(t)
}

// AllMetrics returns the metrics of every published type, sorted by type.
func (b *Bus) AllMetrics() []Metrics {
	return b.metrics.all()
}

// Stats returns current bus totals.
func (b *Bus) Stats() Stats {
	b.pendingMu.Lock()
	pending := len(b.pending)
	b.pendingMu.Unlock()

	return Stats{
		EventsPublished:     b.eventsPublished.Load(),
		HandlersExecuted:    b.handlersExecuted.Load(),
		HandlerErrors:       b.handlerErrors.Load(),
		HandlerPanics:       b.handlerPanics.Load(),
		CircuitsOpened:      b.circuitsOpened.Load(),
		Subscriptions:       b.registry.Count(),
		ActiveSubscriptions: b.registry.CountActive(),
		PendingRequests:     pending,
	}
}

// onRemoved registers fn to be called after any subscription is removed.
func (b *Bus) onRemoved(fn func(*subscription)) {
	b.listenersMu.Lock()
	b.listeners = append(b.listeners, fn)
	b.listenersMu.Unlock()
}

func (b *Bus) notifyRemoved(sub *subscription) {
	b.listenersMu.RLock()
	listeners := b.listeners
	b.listenersMu.RUnlock()

	for _, fn := range listeners {
		fn(sub)
	}
}
