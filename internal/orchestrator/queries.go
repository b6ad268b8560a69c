package orchestrator

import (
	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/capability"
)

// PluginInfo is a read-only snapshot of one registered adapter.
type PluginInfo struct {
	Metadata     adapter.Metadata
	State        adapter.State
	Err          error
	Capabilities []adapter.Capability
	Activity     adapter.Activity

	// Health is known only when the orchestrator has a registry.
	Health capability.HealthStatus

	// Subscriptions is the number of live bus subscriptions the adapter
	// owns, including its own.
	Subscriptions int
}

// GetAdapter returns the adapter registered under id.
func (o *Orchestrator) GetAdapter(id string) (adapter.Adapter, bool) {
	m, ok := o.get(id)
	if !ok {
		return nil, false
	}
	return m.host.Adapter(), true
}

// Host returns the lifecycle host of id.
func (o *Orchestrator) Host(id string) (*adapter.Host, bool) {
	m, ok := o.get(id)
	if !ok {
		return nil, false
	}
	return m.host, true
}

// GetAllAdapters returns every adapter in registration order.
func (o *Orchestrator) GetAllAdapters() []adapter.Adapter {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]adapter.Adapter, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.adapters[id].host.Adapter())
	}
	return out
}

// GetAdaptersByCapability returns the adapters that declare name or, with
// a registry, have discovered it.
func (o *Orchestrator) GetAdaptersByCapability(name string) []adapter.Adapter {
	var out []adapter.Adapter
	for _, m := range o.snapshot() {
		if hasCapability(o.capabilities(m), name) {
			out = append(out, m.host.Adapter())
		}
	}
	return out
}

// Info returns a snapshot of id.
func (o *Orchestrator) Info(id string) (PluginInfo, bool) {
	m, ok := o.get(id)
	if !ok {
		return PluginInfo{}, false
	}
	return o.info(m), true
}

// Infos returns snapshots of every adapter in registration order.
func (o *Orchestrator) Infos() []PluginInfo {
	ms := o.snapshot()
	out := make([]PluginInfo, 0, len(ms))
	for _, m := range ms {
		out = append(out, o.info(m))
	}
	return out
}

// Count returns the number of registered adapters.
func (o *Orchestrator) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.adapters)
}

func (o *Orchestrator) info(m *managed) PluginInfo {
	h := m.host
	info := PluginInfo{
		Metadata:      h.Metadata(),
		State:         h.State(),
		Err:           h.Err(),
		Capabilities:  o.capabilities(m),
		Activity:      h.Activity(),
		Subscriptions: o.tracker.Count(m.owner),
	}
	if o.registry != nil {
		if s, ok := o.registry.GetIntegrationStatus(h.ID()); ok {
			info.Health = s.Health
		}
	}
	return info
}

func (o *Orchestrator) capabilities(m *managed) []adapter.Capability {
	if o.registry != nil {
		if caps := o.registry.Capabilities(m.host.ID()); caps != nil {
			return caps
		}
	}
	return m.host.Metadata().Capabilities
}

func (o *Orchestrator) snapshot() []*managed {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make([]*managed, 0, len(o.order))
	for _, id := range o.order {
		out = append(out, o.adapters[id])
	}
	return out
}

func hasCapability(caps []adapter.Capability, name string) bool {
	for _, c := range caps {
		if c.Name == name {
			return true
		}
	}
	return false
}
