package app

import (
	"context"

	"github.com/dshills/switchboard/internal/capability"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/orchestrator"
)

// Status is a point-in-time report of the running switchboard.
type Status struct {
	HostVersion  string
	Adapters     []orchestrator.PluginInfo
	Integrations []capability.IntegrationStatus
	Bus          event.Stats

	// Owners is the number of components holding bus subscriptions.
	Owners int
}

// Status runs a health sweep and reports every adapter, integration and
// the bus totals.
func (app *App) Status(ctx context.Context) (Status, error) {
	if err := app.ready(); err != nil {
		return Status{}, err
	}
	app.registry.PerformHealthChecks(ctx)

	return Status{
		HostVersion:  app.cfg.HostVersion,
		Adapters:     app.orch.Infos(),
		Integrations: app.registry.All(),
		Bus:          app.bus.Stats(),
		Owners:       app.tracker.Owners(),
	}, nil
}

// Available returns the integrations that are installed, enabled and
// compatible.
func (s Status) Available() []capability.IntegrationStatus {
	var out []capability.IntegrationStatus
	for _, in := range s.Integrations {
		if in.Available {
			out = append(out, in)
		}
	}
	return out
}
