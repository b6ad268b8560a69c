package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/capability"
	"github.com/dshills/switchboard/internal/event/events"
)

// ProbeAdapter implements capability.Supervisor. It runs the adapter's
// health check and, for active adapters implementing
// adapter.CapabilityProber, asks for runtime capabilities.
func (o *Orchestrator) ProbeAdapter(ctx context.Context, id string) (capability.AdapterProbe, bool) {
	m, ok := o.get(id)
	if !ok {
		return capability.AdapterProbe{}, false
	}
	host := m.host

	probe := capability.AdapterProbe{
		State:    host.State(),
		Activity: host.Activity(),
	}
	switch probe.State {
	case adapter.StateReady, adapter.StateActive, adapter.StatePaused, adapter.StateError:
		probe.HealthErr = host.HealthCheck(ctx)
	}

	if _, ok := host.Adapter().(adapter.CapabilityProber); ok && probe.State == adapter.StateActive {
		err := host.Hook(ctx, "probe-capabilities", func(ctx context.Context, a adapter.Adapter) error {
			caps, err := a.(adapter.CapabilityProber).ProbeCapabilities(ctx)
			probe.Capabilities = caps
			return err
		})
		if err != nil {
			o.logger.Debug("capability probe failed", "adapter_id", id, "error", err)
		}
	}
	return probe, true
}

// RecoverAdapter implements capability.Supervisor. It retries recovery of
// an adapter in the error state with backoff. Recovery is not attempted
// while a dependency is unavailable.
func (o *Orchestrator) RecoverAdapter(ctx context.Context, id string) error {
	m, ok := o.get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAdapterNotFound, id)
	}
	host := m.host
	if host.State() == adapter.StateActive {
		return nil
	}

	cfg := o.retry
	cfg.Retryable = func(err error) bool {
		return !errors.Is(err, adapter.ErrInvalidTransition) && !errors.Is(err, ErrDependencyNotAvailable)
	}

	cfg.OnAttempt = func(a Attempt) {
		switch {
		case a.Err == nil:
			o.logger.Info("recovery succeeded", "adapter_id", id, "attempt", a.Number)
		case a.Wait > 0:
			o.logger.Warn("recovery attempt failed", "adapter_id", id, "attempt", a.Number, "retry_in", a.Wait, "error", a.Err)
		default:
			o.logger.Warn("recovery abandoned", "adapter_id", id, "attempt", a.Number, "error", a.Err)
		}
	}

	meta := host.Metadata()
	err := retry(ctx, cfg, func(int) error {
		for _, dep := range meta.Dependencies {
			if err := o.dependencyReady(id, dep); err != nil {
				return err
			}
		}
		return host.Recover(ctx)
	})
	if err != nil {
		o.emit(ctx, events.AdapterError, host, err)
		return err
	}

	if err := o.subscribe(m); err != nil {
		o.logger.Warn("adapter subscriptions incomplete", "adapter_id", id, "error", err)
	}
	o.emit(ctx, events.AdapterActivated, host, nil)
	return nil
}
