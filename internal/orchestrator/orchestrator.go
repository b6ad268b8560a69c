// Package orchestrator registers adapters, activates them in dependency
// order, fans domain notifications out to them and tears them down again.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/capability"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/logging"
	"github.com/dshills/switchboard/internal/notify"
)

// SourceID is the source of every lifecycle event the orchestrator
// publishes.
const SourceID = "orchestrator"

// managed is one registered adapter.
type managed struct {
	host  *adapter.Host
	owner event.Owner
	seq   int

	// subs are the bus subscriptions for Metadata.Subscriptions, held
	// while the adapter is active. Guarded by Orchestrator.mu.
	subs []string
}

// Orchestrator owns the adapter table. It is safe for concurrent use.
type Orchestrator struct {
	mu       sync.RWMutex
	adapters map[string]*managed
	order    []string
	seq      int
	closed   bool

	bus         *event.Bus
	tracker     *event.Tracker
	publisher   event.Publisher
	registry    *capability.Registry
	sink        notify.Sink
	hostVersion string
	retry       RetryConfig

	base        *logging.Logger
	logger      *logging.Logger
	meter       metric.Meter
	transitions metric.Int64Counter
}

var _ capability.Supervisor = (*Orchestrator)(nil)

// New creates an orchestrator publishing lifecycle events on bus.
func New(bus *event.Bus, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		adapters: make(map[string]*managed),
		bus:      bus,
		retry:    DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(o)
	}

	o.base = logging.OrNop(o.logger)
	o.logger = o.base.WithComponent("orchestrator")
	if o.tracker == nil {
		o.tracker = event.NewTracker(bus)
	}
	if o.sink == nil {
		o.sink = notify.Nop{}
	}
	o.publisher = event.NewSourcePublisher(bus, SourceID)

	transitions, err := o.resolveMeter().Int64Counter("switchboard.adapter.transitions",
		metric.WithDescription("Adapter lifecycle transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		o.logger.Warn("orchestrator instruments unavailable", "error", err)
		transitions = noop.Int64Counter{}
	}
	o.transitions = transitions
	return o
}

// Tracker returns the tracker adapter subscriptions are registered with.
func (o *Orchestrator) Tracker() *event.Tracker {
	return o.tracker
}

// RegisterAdapter registers and initializes a. It returns false if a is
// rejected or fails to initialize; Register reports why.
func (o *Orchestrator) RegisterAdapter(ctx context.Context, a adapter.Adapter, settings map[string]any) bool {
	if err := o.Register(ctx, a, settings); err != nil {
		o.logger.Warn("adapter registration failed", "error", err)
		return false
	}
	return true
}

// Register validates a, records it and drives Initialize. Duplicate ids
// and incompatible host versions are rejected before anything is
// recorded. An adapter that fails to initialize stays registered in the
// error state so it can be recovered or cleaned up.
func (o *Orchestrator) Register(ctx context.Context, a adapter.Adapter, settings map[string]any) error {
	if a == nil {
		return adapter.ErrNilAdapter
	}

	host, err := adapter.NewHost(a,
		adapter.WithHostLogger(o.base),
		adapter.WithTransitionHook(o.recordTransition),
	)
	if err != nil {
		return err
	}
	meta := host.Metadata()
	id := meta.ID

	if o.hostVersion != "" && !capability.CheckVersionCompatibility(o.hostVersion, meta.MinHostVersion, meta.MaxHostVersion) {
		return fmt.Errorf("%w: %s supports host [%s, %s], running %s",
			ErrIncompatibleVersion, id, meta.MinHostVersion, meta.MaxHostVersion, o.hostVersion)
	}

	m := &managed{host: host, owner: event.NewOwner(id)}

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return ErrClosed
	}
	if _, exists := o.adapters[id]; exists {
		o.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateAdapter, id)
	}
	o.seq++
	m.seq = o.seq
	o.adapters[id] = m
	o.order = append(o.order, id)
	o.mu.Unlock()

	if o.registry != nil {
		if err := o.registry.Declare(meta); err != nil && !errors.Is(err, capability.ErrAlreadyDeclared) {
			o.logger.Warn("failed to declare adapter", "adapter_id", id, "error", err)
		}
	}
	o.logger.Info("adapter registered", "adapter_id", id, "version", meta.Version)
	o.emit(ctx, events.AdapterRegistered, host, nil)

	actx := adapter.Context{
		Bus:         o.bus,
		Publisher:   event.NewSourcePublisher(o.bus, id),
		Tracker:     o.tracker,
		Owner:       m.owner,
		Logger:      o.base.WithAdapter(id),
		Settings:    settings,
		HostVersion: o.hostVersion,
	}
	if err := host.Initialize(ctx, actx); err != nil {
		o.emit(ctx, events.AdapterError, host, err)
		return fmt.Errorf("initialize %s: %w", id, err)
	}
	return nil
}

// ActivateAdapter activates one adapter. Every dependency must already be
// registered and active.
func (o *Orchestrator) ActivateAdapter(ctx context.Context, id string) error {
	m, ok := o.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
	}
	if _, err := topoOrder(closure(o.nodes(), id)); err != nil {
		return err
	}
	return o.activate(ctx, m)
}

// ActivateAll activates every registered adapter in dependency order. A
// dependency cycle fails before anything is activated. Other failures are
// collected; dependents of a failed adapter fail with a DependencyError.
func (o *Orchestrator) ActivateAll(ctx context.Context) error {
	ids, err := o.ActivationOrder()
	if err != nil {
		return err
	}

	var errs []error
	for _, id := range ids {
		m, ok := o.get(id)
		if !ok {
			continue
		}
		if err := o.activate(ctx, m); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to activate %d adapters: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (o *Orchestrator) activate(ctx context.Context, m *managed) error {
	host := m.host
	if host.State() == adapter.StateActive {
		return nil
	}

	meta := host.Metadata()
	for _, dep := range meta.Dependencies {
		if err := o.dependencyReady(meta.ID, dep); err != nil {
			o.logger.Warn("activation blocked", "adapter_id", meta.ID, "error", err)
			return err
		}
	}

	if err := host.Activate(ctx); err != nil {
		o.emit(ctx, events.AdapterError, host, err)
		return err
	}
	if err := o.subscribe(m); err != nil {
		o.logger.Warn("adapter subscriptions incomplete", "adapter_id", meta.ID, "error", err)
	}
	o.emit(ctx, events.AdapterActivated, host, nil)
	return nil
}

// DeactivateAdapter pauses an active adapter and stops its event delivery.
// Adapters that are not active are left alone.
func (o *Orchestrator) DeactivateAdapter(ctx context.Context, id string) error {
	m, ok := o.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
	}
	return o.deactivate(ctx, m)
}

func (o *Orchestrator) deactivate(ctx context.Context, m *managed) error {
	host := m.host
	if host.State() != adapter.StateActive {
		return host.Deactivate(ctx)
	}

	o.unsubscribe(m)
	if err := host.Deactivate(ctx); err != nil {
		o.emit(ctx, events.AdapterError, host, err)
		return err
	}
	o.emit(ctx, events.AdapterDeactivated, host, nil)
	return nil
}

// DeactivateAll deactivates every adapter in reverse dependency order.
func (o *Orchestrator) DeactivateAll(ctx context.Context) error {
	var errs []error
	for _, id := range o.teardownOrder() {
		m, ok := o.get(id)
		if !ok {
			continue
		}
		if err := o.deactivate(ctx, m); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to deactivate %d adapters: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// UnregisterAdapter cleans up an adapter, releases every subscription it
// owns and removes it from the table and the registry.
func (o *Orchestrator) UnregisterAdapter(ctx context.Context, id string) error {
	o.mu.Lock()
	m, ok := o.adapters[id]
	if ok {
		delete(o.adapters, id)
		for i, v := range o.order {
			if v == id {
				o.order = append(o.order[:i:i], o.order[i+1:]...)
				break
			}
		}
	}
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
	}
	return o.teardown(ctx, m)
}

func (o *Orchestrator) teardown(ctx context.Context, m *managed) error {
	host := m.host
	wasActive := host.State() == adapter.StateActive

	o.unsubscribe(m)
	var err error
	if !host.State().IsTerminal() {
		err = host.Cleanup(ctx)
	}
	released := o.tracker.ReleaseAll(m.owner)
	if o.registry != nil {
		o.registry.Forget(host.ID())
	}

	if wasActive {
		o.emit(ctx, events.AdapterDeactivated, host, nil)
	}
	if err != nil {
		o.emit(ctx, events.AdapterError, host, err)
	}
	o.emit(ctx, events.AdapterCleanedUp, host, nil)
	o.logger.Info("adapter cleaned up", "adapter_id", host.ID(), "released", released)
	return err
}

// CleanupAll unregisters every adapter in reverse dependency order.
func (o *Orchestrator) CleanupAll(ctx context.Context) error {
	var errs []error
	for _, id := range o.teardownOrder() {
		if err := o.UnregisterAdapter(ctx, id); err != nil && !errors.Is(err, ErrAdapterNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to clean up %d adapters: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// Cleanup tears the orchestrator down. Every adapter is cleaned up and no
// further registrations are accepted.
func (o *Orchestrator) Cleanup(ctx context.Context) error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return o.CleanupAll(ctx)
}

// ActivationOrder returns the ids of all registered adapters in the order
// ActivateAll uses.
func (o *Orchestrator) ActivationOrder() ([]string, error) {
	return topoOrder(o.nodes())
}

// teardownOrder is the reverse activation order. With a cycle it falls
// back to reverse registration order so teardown always completes.
func (o *Orchestrator) teardownOrder() []string {
	ids, err := o.ActivationOrder()
	if err != nil {
		o.mu.RLock()
		ids = append([]string(nil), o.order...)
		o.mu.RUnlock()
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[len(ids)-1-i] = id
	}
	return out
}

func (o *Orchestrator) nodes() []node {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]node, 0, len(o.order))
	for _, id := range o.order {
		m := o.adapters[id]
		meta := m.host.Metadata()
		out = append(out, node{id: id, deps: meta.Dependencies, priority: meta.Priority, seq: m.seq})
	}
	return out
}

func (o *Orchestrator) dependencyReady(id, dep string) error {
	m, ok := o.get(dep)
	if !ok {
		return &DependencyError{AdapterID: id, Dependency: dep}
	}
	if state := m.host.State(); state != adapter.StateActive {
		return &DependencyError{AdapterID: id, Dependency: dep, Registered: true, State: state.String()}
	}
	return nil
}

func (o *Orchestrator) get(id string) (*managed, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	m, ok := o.adapters[id]
	return m, ok
}

// subscribe delivers the adapter's declared event types to its host. An
// adapter never receives events it published itself.
func (o *Orchestrator) subscribe(m *managed) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if len(m.subs) > 0 {
		return nil
	}

	meta := m.host.Metadata()
	var errs []error
	for _, t := range meta.Subscriptions {
		id, err := o.tracker.RegisterFor(m.owner, t, event.HandlerFunc(m.host.HandleEvent),
			event.WithPriority(event.Priority(meta.Priority)),
			event.WithFilter(event.ExcludeSource(meta.ID)),
		)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t, err))
			continue
		}
		m.subs = append(m.subs, id)
	}
	return errors.Join(errs...)
}

func (o *Orchestrator) unsubscribe(m *managed) {
	o.mu.Lock()
	subs := m.subs
	m.subs = nil
	o.mu.Unlock()

	for _, id := range subs {
		o.tracker.ReleaseOne(m.owner, id)
	}
}

func (o *Orchestrator) recordTransition(id string, from, to adapter.State) {
	o.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

// emit publishes a lifecycle event and delivers the matching notice.
func (o *Orchestrator) emit(ctx context.Context, t events.Type, host *adapter.Host, err error) {
	meta := host.Metadata()
	payload := events.AdapterPayload{
		AdapterID: meta.ID,
		Name:      meta.DisplayName(),
		State:     host.State().String(),
	}
	if err != nil {
		payload.Err = err.Error()
	}
	if perr := o.publisher.Publish(ctx, t, payload); perr != nil {
		o.logger.Warn("failed to publish lifecycle event", "type", t.String(), "error", perr)
	}

	var n notify.Notice
	switch t {
	case events.AdapterActivated:
		n = notify.Notice{Level: notify.LevelInfo, Message: fmt.Sprintf("%s activated", meta.DisplayName())}
	case events.AdapterDeactivated:
		n = notify.Notice{Level: notify.LevelInfo, Message: fmt.Sprintf("%s deactivated", meta.DisplayName())}
	case events.AdapterError:
		n = notify.Notice{Level: notify.LevelError, Message: fmt.Sprintf("%s failed: %v", meta.DisplayName(), err)}
	default:
		return
	}
	n.AdapterID = meta.ID
	notify.Deliver(ctx, o.sink, n, o.logger)
}
