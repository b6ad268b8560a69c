package capability

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
)

type fakeInspector struct {
	mu     sync.Mutex
	collab map[string]Collaborator
	err    error
}

func (f *fakeInspector) Inspect(ctx context.Context, id string) (Collaborator, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Collaborator{}, false, f.err
	}
	c, ok := f.collab[id]
	return c, ok, nil
}

func (f *fakeInspector) set(c Collaborator) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.collab[c.ID] = c
}

type fakeSupervisor struct {
	mu        sync.Mutex
	probes    map[string]AdapterProbe
	recovered []string
	calls     atomic.Int32
}

func (f *fakeSupervisor) ProbeAdapter(ctx context.Context, id string) (AdapterProbe, bool) {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.probes[id]
	return p, ok
}

func (f *fakeSupervisor) RecoverAdapter(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recovered = append(f.recovered, id)
	p := f.probes[id]
	p.State = adapter.StateActive
	f.probes[id] = p
	return nil
}

func meta(id, lower, upper string, caps ...string) adapter.Metadata {
	m := adapter.Metadata{ID: id, Version: "1.0.0", MinHostVersion: lower, MaxHostVersion: upper}
	for _, c := range caps {
		m.Capabilities = append(m.Capabilities, adapter.Capability{Name: c})
	}
	return m
}

func TestRegistry_Declare(t *testing.T) {
	r := NewRegistry()
	if err := r.Declare(meta("cache", "", "")); err != nil {
		t.Fatalf("Declare: %v", err)
	}
	if err := r.Declare(meta("cache", "", "")); !errors.Is(err, ErrAlreadyDeclared) {
		t.Errorf("duplicate Declare error = %v", err)
	}
	if err := r.Declare(adapter.Metadata{ID: "Bad"}); !errors.Is(err, adapter.ErrInvalidMetadata) {
		t.Errorf("invalid Declare error = %v", err)
	}

	s, ok := r.GetIntegrationStatus("cache")
	if !ok || s.Health.Status != StatusUnknown {
		t.Errorf("initial status = %+v", s)
	}
	if !r.Forget("cache") || r.Forget("cache") {
		t.Error("Forget should succeed once")
	}
}

func TestRegistry_Discover(t *testing.T) {
	insp := &fakeInspector{collab: map[string]Collaborator{
		"cache":    {ID: "cache", Enabled: true, Version: "2.0.0", API: true},
		"search":   {ID: "search", Enabled: false, Version: "2.0.0", API: true},
		"old":      {ID: "old", Enabled: true, Version: "1.4.0", API: true},
		"headless": {ID: "headless", Enabled: true, Version: "2.0.0", API: false},
	}}
	r := NewRegistry(WithInspector(insp))
	for _, m := range []adapter.Metadata{
		meta("cache", "1.5.0", "3.0.0"),
		meta("search", "", ""),
		meta("old", "1.5.0", ""),
		meta("headless", "", ""),
		meta("missing", "", ""),
	} {
		if err := r.Declare(m); err != nil {
			t.Fatal(err)
		}
	}

	statuses, err := r.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if len(statuses) != 5 {
		t.Fatalf("Discover returned %d statuses", len(statuses))
	}

	want := map[string]Status{
		"cache":    StatusHealthy,
		"search":   StatusDegraded,
		"old":      StatusUnhealthy,
		"headless": StatusDegraded,
		"missing":  StatusUnhealthy,
	}
	for _, s := range statuses {
		if s.Health.Status != want[s.ID] {
			t.Errorf("%s health = %s, want %s (issues %v)", s.ID, s.Health.Status, want[s.ID], s.Health.Issues)
		}
	}

	old, _ := r.GetIntegrationStatus("old")
	if old.Compatible || old.Available {
		t.Errorf("old should be incompatible: %+v", old)
	}

	available := r.GetAvailable()
	ids := make([]string, 0, len(available))
	for _, s := range available {
		ids = append(ids, s.ID)
	}
	if len(ids) != 2 || ids[0] != "cache" || ids[1] != "headless" {
		t.Errorf("GetAvailable() = %v, want [cache headless]", ids)
	}
}

func TestRegistry_DiscoverInspectorError(t *testing.T) {
	insp := &fakeInspector{collab: map[string]Collaborator{}, err: errors.New("host unreachable")}
	r := NewRegistry(WithInspector(insp))
	_ = r.Declare(meta("cache", "", ""))

	_, err := r.Discover(context.Background())
	if err == nil {
		t.Fatal("expected inspector error")
	}
	s, _ := r.GetIntegrationStatus("cache")
	if s.Health.Status != StatusUnhealthy || s.Available {
		t.Errorf("status = %+v", s)
	}
}

func TestRegistry_NoInspectorUsesHostVersion(t *testing.T) {
	r := NewRegistry(WithHostVersion("1.4.0"))
	_ = r.Declare(meta("cache", "1.5.0", ""))
	_ = r.Declare(meta("search", "1.0", "2.0"))

	_, _ = r.Discover(context.Background())

	cache, _ := r.GetIntegrationStatus("cache")
	if cache.Compatible {
		t.Error("1.4.0 should be incompatible with min 1.5.0")
	}
	search, _ := r.GetIntegrationStatus("search")
	if !search.Available || search.Health.Status != StatusHealthy {
		t.Errorf("search status = %+v", search)
	}
}

func TestRegistry_NegotiateCapabilities(t *testing.T) {
	bus := event.NewBus()
	tracker := event.NewTracker(bus)
	r := NewRegistry()
	defer r.Close()

	_ = r.Declare(meta("search", "", "", "ticket-search"))
	if err := r.Listen(tracker); err != nil {
		t.Fatalf("Listen: %v", err)
	}

	if r.NegotiateCapabilities("search", []string{"query-api"}) {
		t.Fatal("query-api negotiated before it was discovered")
	}
	if !r.NegotiateCapabilities("search", []string{"ticket-search"}) {
		t.Error("declared capability should negotiate")
	}
	if r.NegotiateCapabilities("unknown", nil) {
		t.Error("unknown id should never negotiate")
	}

	ctx := context.Background()
	announce := events.CapabilityPayload{AdapterID: "search", Capability: "query-api", Version: "2.1"}
	if err := bus.Publish(ctx, events.CapabilityAnnounced, announce); err != nil {
		t.Fatal(err)
	}
	if !r.NegotiateCapabilities("search", []string{"query-api", "ticket-search"}) {
		t.Error("query-api should negotiate after announcement")
	}

	caps := r.Capabilities("search")
	if len(caps) != 2 || caps[0].Name != "ticket-search" || caps[1].Version != "2.1" {
		t.Errorf("Capabilities() = %+v", caps)
	}

	if err := bus.Publish(ctx, events.CapabilityRevoked, announce); err != nil {
		t.Fatal(err)
	}
	if r.NegotiateCapabilities("search", []string{"query-api"}) {
		t.Error("query-api should not negotiate after revocation")
	}
	if r.RemoveDiscoveredCapability("search", "ticket-search") {
		t.Error("declared capabilities cannot be removed")
	}

	r.Close()
	if tracker.Owners() != 0 || bus.Stats().Subscriptions != 0 {
		t.Errorf("subscriptions left after Close: %d", bus.Stats().Subscriptions)
	}
}

func TestRegistry_CheckHealthWithSupervisor(t *testing.T) {
	bus := event.NewBus()
	var mu sync.Mutex
	var changes []events.HealthChangedPayload
	_, _ = event.SubscribePayload(bus, events.HealthChanged, func(ctx context.Context, e event.Event, p events.HealthChangedPayload) error {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, p)
		return nil
	}, event.WithSync())

	sup := &fakeSupervisor{probes: map[string]AdapterProbe{
		"cache": {
			State:     adapter.StateActive,
			HealthErr: errors.New("slow disk"),
			Activity:  adapter.Activity{Handled: 20, Failed: 15, LastResponseTime: time.Millisecond},
			Capabilities: []adapter.Capability{
				{Name: "warm-cache"},
			},
		},
		"search": {State: adapter.StateError},
	}}
	r := NewRegistry(WithSupervisor(sup), WithPublisher(bus))
	_ = r.Declare(meta("cache", "", ""))
	_ = r.Declare(meta("search", "", ""))
	ctx := context.Background()

	h, err := r.CheckHealth(ctx, "cache")
	if err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if h.Status != StatusDegraded || len(h.Issues) != 2 {
		t.Errorf("cache health = %+v", h)
	}
	if h.Performance == nil || h.Performance.ErrorRate != 0.75 {
		t.Errorf("performance = %+v", h.Performance)
	}
	if !r.NegotiateCapabilities("cache", []string{"warm-cache"}) {
		t.Error("probed capability should negotiate")
	}

	h, _ = r.CheckHealth(ctx, "search")
	if h.Status != StatusUnhealthy {
		t.Errorf("search health = %s, want unhealthy", h.Status)
	}

	if _, err := r.CheckHealth(ctx, "nope"); !errors.Is(err, ErrUnknownCollaborator) {
		t.Errorf("CheckHealth(nope) error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(changes) != 2 {
		t.Fatalf("health:changed events = %d, want 2", len(changes))
	}
	if changes[0].AdapterID != "cache" || changes[0].Previous != "unknown" || changes[0].Current != "degraded" {
		t.Errorf("first change = %+v", changes[0])
	}
}

func TestRegistry_UnchangedHealthNotRepublished(t *testing.T) {
	bus := event.NewBus()
	var count atomic.Int32
	_, _ = bus.SubscribeFunc(events.HealthChanged, func(ctx context.Context, e event.Event) error {
		count.Add(1)
		return nil
	}, event.WithSync())

	r := NewRegistry(WithPublisher(bus))
	_ = r.Declare(meta("cache", "", ""))
	for i := 0; i < 3; i++ {
		_ = r.Refresh(context.Background())
	}
	if count.Load() != 1 {
		t.Errorf("health:changed published %d times, want 1", count.Load())
	}
}

func TestRegistry_AutoRecover(t *testing.T) {
	sup := &fakeSupervisor{probes: map[string]AdapterProbe{
		"search": {State: adapter.StateError},
	}}
	r := NewRegistry(WithSupervisor(sup), WithAutoRecover(true))
	_ = r.Declare(meta("search", "", ""))

	r.PerformHealthChecks(context.Background())

	sup.mu.Lock()
	recovered := append([]string(nil), sup.recovered...)
	sup.mu.Unlock()
	if len(recovered) != 1 || recovered[0] != "search" {
		t.Fatalf("recovered = %v", recovered)
	}
	s, _ := r.GetIntegrationStatus("search")
	if s.Health.Status != StatusHealthy {
		t.Errorf("status after recovery = %s", s.Health.Status)
	}
}

func TestRegistry_HealthMonitoring(t *testing.T) {
	sup := &fakeSupervisor{probes: map[string]AdapterProbe{"cache": {State: adapter.StateActive}}}
	r := NewRegistry(WithSupervisor(sup), WithHealthInterval(10*time.Millisecond))
	_ = r.Declare(meta("cache", "", ""))

	r.StartHealthMonitoring(context.Background())
	r.StartHealthMonitoring(context.Background())
	if !r.IsMonitoring() {
		t.Fatal("IsMonitoring() = false")
	}

	deadline := time.Now().Add(2 * time.Second)
	for sup.calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if sup.calls.Load() < 3 {
		t.Fatalf("only %d checks ran", sup.calls.Load())
	}

	r.StopHealthMonitoring()
	after := sup.calls.Load()
	time.Sleep(50 * time.Millisecond)
	if sup.calls.Load() != after {
		t.Errorf("checks ran after StopHealthMonitoring: %d -> %d", after, sup.calls.Load())
	}
	if r.IsMonitoring() {
		t.Error("IsMonitoring() = true after stop")
	}
	r.StopHealthMonitoring()
}
