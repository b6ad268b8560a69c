package capability

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/logging"
)

// DefaultHealthInterval is the period of the background health sweep.
const DefaultHealthInterval = 60 * time.Second

// Option configures a Registry.
type Option func(*Registry)

// WithInspector sets the host environment inspector. Without one, every
// declared collaborator is treated as installed, enabled and reachable.
func WithInspector(i Inspector) Option {
	return func(r *Registry) {
		r.inspector = i
	}
}

// WithSupervisor gives the registry access to running adapters for health
// probes and recovery.
func WithSupervisor(s Supervisor) Option {
	return func(r *Registry) {
		r.supervisor = s
	}
}

// WithPublisher sets where health:changed events are published.
func WithPublisher(p event.Publisher) Option {
	return func(r *Registry) {
		r.publisher = p
	}
}

// WithHostVersion sets the version used when a collaborator reports none.
func WithHostVersion(v string) Option {
	return func(r *Registry) {
		r.hostVersion = v
	}
}

// WithHealthInterval sets the background sweep period.
func WithHealthInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithAutoRecover makes the health sweep ask the supervisor to recover
// adapters found in the error state.
func WithAutoRecover(enabled bool) Option {
	return func(r *Registry) {
		r.autoRecover = enabled
	}
}

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// WithMeter sets the OpenTelemetry meter for registry instruments.
func WithMeter(m metric.Meter) Option {
	return func(r *Registry) {
		r.meter = m
	}
}

func (r *Registry) resolveMeter() metric.Meter {
	if r.meter != nil {
		return r.meter
	}
	return otel.Meter("github.com/dshills/switchboard/internal/capability")
}
