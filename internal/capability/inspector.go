package capability

import (
	"context"

	"github.com/dshills/switchboard/internal/adapter"
)

// Collaborator is what the host environment reports about one
// collaborating component.
type Collaborator struct {
	ID      string
	Enabled bool

	// Version is the installed version. Empty means the host version is
	// used for compatibility checks.
	Version string

	// API reports whether the collaborator exposes an addressable API.
	API bool

	// Capabilities are advertised by the environment in addition to the
	// adapter's declared ones.
	Capabilities []adapter.Capability
}

// Inspector reports on collaborators present in the host environment.
type Inspector interface {
	// Inspect returns the collaborator with id, or false if it is not
	// installed.
	Inspect(ctx context.Context, id string) (Collaborator, bool, error)
}

// AdapterProbe is the runtime condition of a registered adapter.
type AdapterProbe struct {
	State adapter.State

	// HealthErr is the result of the adapter's own health check.
	HealthErr error

	Activity adapter.Activity

	// Capabilities are reported by adapters that probe their own.
	Capabilities []adapter.Capability
}

// Supervisor gives the registry access to running adapters. The
// orchestrator implements it.
type Supervisor interface {
	// ProbeAdapter runs the adapter's health check and reports its state.
	// It returns false if no adapter with id is registered.
	ProbeAdapter(ctx context.Context, id string) (AdapterProbe, bool)

	// RecoverAdapter attempts to bring an adapter in the error state back.
	RecoverAdapter(ctx context.Context, id string) error
}
