package orchestrator

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/switchboard/internal/capability"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/logging"
	"github.com/dshills/switchboard/internal/notify"
)

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithTracker sets the subscription tracker. By default the orchestrator
// creates its own for the bus.
func WithTracker(t *event.Tracker) Option {
	return func(o *Orchestrator) {
		o.tracker = t
	}
}

// WithRegistry declares registered adapters in the capability registry and
// lets capability queries see discovered capabilities.
func WithRegistry(r *capability.Registry) Option {
	return func(o *Orchestrator) {
		o.registry = r
	}
}

// WithSink sets where lifecycle notices are delivered.
func WithSink(s notify.Sink) Option {
	return func(o *Orchestrator) {
		o.sink = s
	}
}

// WithHostVersion sets the host version adapters are checked against.
func WithHostVersion(v string) Option {
	return func(o *Orchestrator) {
		o.hostVersion = v
	}
}

// WithRetry sets the retry policy used by RecoverAdapter.
func WithRetry(cfg RetryConfig) Option {
	return func(o *Orchestrator) {
		o.retry = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(o *Orchestrator) {
		o.logger = l
	}
}

// WithMeter sets the meter for the transition counter.
func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) {
		o.meter = m
	}
}

func (o *Orchestrator) resolveMeter() metric.Meter {
	if o.meter != nil {
		return o.meter
	}
	return otel.Meter("github.com/dshills/switchboard/internal/orchestrator")
}
