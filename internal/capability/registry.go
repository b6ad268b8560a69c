// Package capability tracks which collaborators are present in the host
// environment, whether their versions are compatible, what they can do
// and how healthy they are.
package capability

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/logging"
)

// An adapter is degraded once more than highErrorRate of at least
// minErrorRateSample invocations failed.
const (
	highErrorRate      = 0.5
	minErrorRateSample = 10
)

// IntegrationStatus is the registry's view of one collaborator.
type IntegrationStatus struct {
	ID      string
	Name    string
	Version string

	Installed  bool
	Enabled    bool
	Compatible bool
	API        bool

	// Available is true when the collaborator is installed, enabled and
	// compatible.
	Available bool

	// Capabilities merges declared, advertised, probed and announced
	// capabilities, declared first.
	Capabilities []adapter.Capability

	Health HealthStatus
}

// HasCapability reports whether name is among the merged capabilities.
func (s IntegrationStatus) HasCapability(name string) bool {
	for _, c := range s.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

type entry struct {
	meta       adapter.Metadata
	collab     Collaborator
	installed  bool
	compatible bool
	probed     []adapter.Capability
	announced  map[string]adapter.Capability
	health     HealthStatus
}

// Registry records declared collaborators and supervises their health.
// It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	inspector   Inspector
	supervisor  Supervisor
	publisher   event.Publisher
	hostVersion string
	interval    time.Duration
	autoRecover bool
	logger      *logging.Logger
	meter       metric.Meter
	checks      metric.Int64Counter

	monitorMu sync.Mutex
	cancel    context.CancelFunc
	wg        *conc.WaitGroup

	tracker *event.Tracker
	owner   event.Owner
}

// NewRegistry creates a registry.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		interval: DefaultHealthInterval,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = logging.OrNop(r.logger).WithComponent("registry")
	if r.publisher == nil {
		r.publisher = event.NopPublisher{}
	}

	checks, err := r.resolveMeter().Int64Counter("switchboard.health.checks",
		metric.WithDescription("Collaborator health checks by resulting status"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		r.logger.Warn("health instruments unavailable", "error", err)
		checks = noop.Int64Counter{}
	}
	r.checks = checks
	return r
}

// SetSupervisor sets the supervisor after construction, for when the
// supervisor itself needs the registry.
func (r *Registry) SetSupervisor(s Supervisor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.supervisor = s
}

func (r *Registry) currentSupervisor() Supervisor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.supervisor
}

// Declare adds a collaborator described by meta. Its health is unknown
// until discovered or checked.
func (r *Registry) Declare(meta adapter.Metadata) error {
	if err := meta.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[meta.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyDeclared, meta.ID)
	}
	r.entries[meta.ID] = &entry{
		meta:      meta.Clone(),
		announced: make(map[string]adapter.Capability),
	}
	r.order = append(r.order, meta.ID)
	return nil
}

// Forget removes a collaborator.
func (r *Registry) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	delete(r.entries, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Discover inspects every declared collaborator and assigns its initial
// health. Inspector errors are returned joined; the affected collaborators
// are marked unhealthy.
func (r *Registry) Discover(ctx context.Context) ([]IntegrationStatus, error) {
	ids := r.ids()
	out := make([]IntegrationStatus, 0, len(ids))
	var errs []error
	for _, id := range ids {
		status, err := r.check(ctx, id, false)
		if err != nil {
			errs = append(errs, err)
		}
		if status.ID != "" {
			out = append(out, status)
		}
	}
	r.logger.Info("discovery complete", "collaborators", len(out))
	return out, errors.Join(errs...)
}

// Refresh re-inspects the given collaborators, or all of them when none
// are named.
func (r *Registry) Refresh(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		ids = r.ids()
	}

	var errs []error
	for _, id := range ids {
		if _, err := r.check(ctx, id, false); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// CheckHealth re-derives the health of one collaborator from the
// environment and, when a supervisor is set, the running adapter.
func (r *Registry) CheckHealth(ctx context.Context, id string) (HealthStatus, error) {
	status, err := r.check(ctx, id, true)
	if errors.Is(err, ErrUnknownCollaborator) {
		return HealthStatus{}, err
	}
	return status.Health, nil
}

// PerformHealthChecks checks every collaborator. A failing check affects
// only its own collaborator.
func (r *Registry) PerformHealthChecks(ctx context.Context) {
	for _, id := range r.ids() {
		if ctx.Err() != nil {
			return
		}
		r.sweepOne(ctx, id)
	}
}

func (r *Registry) sweepOne(ctx context.Context, id string) {
	defer func() {
		if v := recover(); v != nil {
			r.logger.Error("health check panicked", "adapter_id", id, "panic", fmt.Sprint(v))
		}
	}()

	status, err := r.check(ctx, id, true)
	if err != nil {
		r.logger.Warn("health check failed", "adapter_id", id, "error", err)
	}

	sup := r.currentSupervisor()
	if !r.autoRecover || sup == nil || status.Health.Status != StatusUnhealthy {
		return
	}
	probe, ok := sup.ProbeAdapter(ctx, id)
	if !ok || probe.State != adapter.StateError {
		return
	}
	if err := sup.RecoverAdapter(ctx, id); err != nil {
		r.logger.Warn("recovery failed", "adapter_id", id, "error", err)
		return
	}
	r.logger.Info("adapter recovered by health sweep", "adapter_id", id)
	_, _ = r.check(ctx, id, true)
}

// StartHealthMonitoring runs PerformHealthChecks immediately and then on
// every interval until StopHealthMonitoring or ctx ends. Calling it while
// monitoring is already running does nothing.
func (r *Registry) StartHealthMonitoring(ctx context.Context) {
	r.monitorMu.Lock()
	defer r.monitorMu.Unlock()

	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg = conc.NewWaitGroup()
	interval := r.interval

	r.wg.Go(func() {
		r.PerformHealthChecks(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.PerformHealthChecks(ctx)
			}
		}
	})
	r.logger.Debug("health monitoring started", "interval", interval.String())
}

// StopHealthMonitoring stops the background sweep and waits for a sweep
// in progress to finish. No check runs after it returns.
func (r *Registry) StopHealthMonitoring() {
	r.monitorMu.Lock()
	defer r.monitorMu.Unlock()

	if r.cancel == nil {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.cancel = nil
	r.wg = nil
	r.logger.Debug("health monitoring stopped")
}

// IsMonitoring reports whether the background sweep is running.
func (r *Registry) IsMonitoring() bool {
	r.monitorMu.Lock()
	defer r.monitorMu.Unlock()
	return r.cancel != nil
}

// NegotiateCapabilities reports whether every required capability is
// declared or discovered for id. Unknown ids never negotiate.
func (r *Registry) NegotiateCapabilities(id string, required []string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}

	have := make(map[string]bool)
	for _, c := range e.capabilities() {
		have[c.Name] = true
	}
	for _, name := range required {
		if !have[name] {
			return false
		}
	}
	return true
}

// AddDiscoveredCapability records a capability announced at runtime. It
// returns false for undeclared ids.
func (r *Registry) AddDiscoveredCapability(id string, c adapter.Capability) bool {
	if c.Name == "" {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	e.announced[c.Name] = c
	return true
}

// RemoveDiscoveredCapability forgets a runtime capability. Declared
// capabilities cannot be removed.
func (r *Registry) RemoveDiscoveredCapability(id, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return false
	}
	if _, ok := e.announced[name]; !ok {
		return false
	}
	delete(e.announced, name)
	return true
}

// Capabilities returns the merged capabilities of id.
func (r *Registry) Capabilities(id string) []adapter.Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.entries[id]; ok {
		return e.capabilities()
	}
	return nil
}

// GetIntegrationStatus returns the status of id.
func (r *Registry) GetIntegrationStatus(id string) (IntegrationStatus, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return IntegrationStatus{}, false
	}
	return e.status(r.hostVersion), true
}

// GetAvailable returns the available collaborators in declaration order.
func (r *Registry) GetAvailable() []IntegrationStatus {
	var out []IntegrationStatus
	for _, s := range r.All() {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}

// All returns every collaborator in declaration order.
func (r *Registry) All() []IntegrationStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]IntegrationStatus, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].status(r.hostVersion))
	}
	return out
}

// Listen subscribes to capability announcements on the tracker's bus so
// they are merged into the registry. Close releases the subscriptions.
func (r *Registry) Listen(tracker *event.Tracker) error {
	r.mu.Lock()
	r.tracker = tracker
	r.owner = event.NewOwner("capability-registry")
	owner := r.owner
	r.mu.Unlock()

	onAnnounce := func(ctx context.Context, e event.Event, p events.CapabilityPayload) error {
		r.AddDiscoveredCapability(p.AdapterID, adapter.Capability{
			Name:        p.Capability,
			Version:     p.Version,
			Description: p.Description,
		})
		return nil
	}
	onRevoke := func(ctx context.Context, e event.Event, p events.CapabilityPayload) error {
		r.RemoveDiscoveredCapability(p.AdapterID, p.Capability)
		return nil
	}

	if _, err := tracker.RegisterFor(owner, events.CapabilityAnnounced, event.PayloadHandler(onAnnounce), event.WithSync()); err != nil {
		return err
	}
	if _, err := tracker.RegisterFor(owner, events.CapabilityRevoked, event.PayloadHandler(onRevoke), event.WithSync()); err != nil {
		tracker.ReleaseAll(owner)
		return err
	}
	return nil
}

// Close stops monitoring and releases bus subscriptions.
func (r *Registry) Close() {
	r.StopHealthMonitoring()

	r.mu.Lock()
	tracker, owner := r.tracker, r.owner
	r.tracker = nil
	r.mu.Unlock()

	if tracker != nil {
		tracker.ReleaseAll(owner)
	}
}

func (r *Registry) ids() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// check inspects id, derives its health and stores the result. With probe
// set, the running adapter is consulted as well.
func (r *Registry) check(ctx context.Context, id string, probe bool) (IntegrationStatus, error) {
	r.mu.RLock()
	e, ok := r.entries[id]
	var meta adapter.Metadata
	if ok {
		meta = e.meta
	}
	r.mu.RUnlock()
	if !ok {
		return IntegrationStatus{}, fmt.Errorf("%w: %s", ErrUnknownCollaborator, id)
	}

	collab := Collaborator{ID: id, Enabled: true, API: true}
	installed := true
	var inspectErr error
	if r.inspector != nil {
		collab, installed, inspectErr = r.inspector.Inspect(ctx, id)
	}

	version := collab.Version
	if version == "" {
		version = r.hostVersion
	}
	compatible := CheckVersionCompatibility(version, meta.MinHostVersion, meta.MaxHostVersion)

	health := HealthStatus{Status: StatusHealthy, LastCheck: time.Now()}
	switch {
	case inspectErr != nil:
		health.worsen(StatusUnhealthy, fmt.Sprintf("inspection failed: %v", inspectErr))
	case !installed:
		health.worsen(StatusUnhealthy, "not installed")
	default:
		if !collab.Enabled {
			health.worsen(StatusDegraded, "disabled")
		}
		if !compatible {
			health.worsen(StatusUnhealthy, fmt.Sprintf("version %s outside supported range %s", version, versionRange(meta)))
		}
		if !collab.API {
			health.worsen(StatusDegraded, "no API surface")
		}
	}

	var probed []adapter.Capability
	probedOK := false
	if sup := r.currentSupervisor(); probe && sup != nil {
		if p, ok := sup.ProbeAdapter(ctx, id); ok {
			probedOK = true
			probed = p.Capabilities
			applyProbe(&health, p)
		}
	}

	r.mu.Lock()
	e, ok = r.entries[id]
	if !ok {
		r.mu.Unlock()
		return IntegrationStatus{}, fmt.Errorf("%w: %s", ErrUnknownCollaborator, id)
	}
	prev := e.health
	e.collab = collab
	e.installed = installed && inspectErr == nil
	e.compatible = compatible
	if probedOK {
		e.probed = probed
	}
	e.health = health
	status := e.status(r.hostVersion)
	r.mu.Unlock()

	r.checks.Add(ctx, 1, metric.WithAttributes(attribute.String("status", health.Status.String())))
	if !prev.equivalent(health) {
		r.healthChanged(ctx, id, prev, health)
	}
	if inspectErr != nil {
		return status, fmt.Errorf("inspect %s: %w", id, inspectErr)
	}
	return status, nil
}

func applyProbe(h *HealthStatus, p AdapterProbe) {
	if p.State == adapter.StateError {
		h.worsen(StatusUnhealthy, "adapter in error state")
	}
	if p.HealthErr != nil {
		h.worsen(StatusDegraded, fmt.Sprintf("health check: %v", p.HealthErr))
	}

	a := p.Activity
	if a.Handled >= minErrorRateSample && a.ErrorRate() > highErrorRate {
		h.worsen(StatusDegraded, fmt.Sprintf("error rate %.0f%%", a.ErrorRate()*100))
	}
	h.Performance = &Performance{
		ResponseTime: a.LastResponseTime,
		ErrorRate:    a.ErrorRate(),
		LastActivity: a.LastActivity,
	}
}

func (r *Registry) healthChanged(ctx context.Context, id string, prev, next HealthStatus) {
	log := r.logger.Info
	if next.Status > prev.Status && next.Status >= StatusDegraded {
		log = r.logger.Warn
	}
	log("health changed",
		"adapter_id", id,
		"from", prev.Status.String(),
		"to", next.Status.String(),
		"issues", next.Issues,
	)

	payload := events.HealthChangedPayload{
		AdapterID: id,
		Previous:  prev.Status.String(),
		Current:   next.Status.String(),
		Issues:    append([]string(nil), next.Issues...),
	}
	if err := r.publisher.Publish(ctx, events.HealthChanged, payload, event.WithSource("capability-registry")); err != nil {
		r.logger.Warn("failed to publish health change", "error", err)
	}
}

func versionRange(meta adapter.Metadata) string {
	lo, hi := meta.MinHostVersion, meta.MaxHostVersion
	if lo == "" {
		lo = "*"
	}
	if hi == "" {
		hi = "*"
	}
	return "[" + lo + ", " + hi + "]"
}

// capabilities must be called with the registry lock held.
func (e *entry) capabilities() []adapter.Capability {
	out := make([]adapter.Capability, 0, len(e.meta.Capabilities)+len(e.announced))
	seen := make(map[string]bool)
	add := func(c adapter.Capability) {
		if c.Name == "" || seen[c.Name] {
			return
		}
		seen[c.Name] = true
		out = append(out, c)
	}

	for _, c := range e.meta.Capabilities {
		add(c)
	}
	for _, c := range e.collab.Capabilities {
		add(c)
	}
	for _, c := range e.probed {
		add(c)
	}

	names := make([]string, 0, len(e.announced))
	for name := range e.announced {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		add(e.announced[name])
	}
	return out
}

// status must be called with the registry lock held.
func (e *entry) status(hostVersion string) IntegrationStatus {
	version := e.collab.Version
	if version == "" {
		version = hostVersion
	}
	return IntegrationStatus{
		ID:           e.meta.ID,
		Name:         e.meta.DisplayName(),
		Version:      version,
		Installed:    e.installed,
		Enabled:      e.installed && e.collab.Enabled,
		Compatible:   e.compatible,
		API:          e.installed && e.collab.API,
		Available:    e.installed && e.collab.Enabled && e.compatible,
		Capabilities: e.capabilities(),
		Health:       e.health.Clone(),
	}
}
