package event

import (
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/switchboard/internal/logging"
)

// DefaultFailureThreshold is the number of consecutive failures a
// subscription tolerates. The next failure deactivates it.
const DefaultFailureThreshold = 3

// BusOption configures an event Bus.
type BusOption func(*busConfig)

// busConfig contains configuration for the event bus.
type busConfig struct {
	failureThreshold int
	asyncWorkers     int
	handlerTimeout   time.Duration
	requestTimeout   time.Duration
	logger           *logging.Logger
	meter            metric.Meter
}

// defaultBusConfig returns sensible default configuration.
func defaultBusConfig() busConfig {
	return busConfig{
		failureThreshold: DefaultFailureThreshold,
		asyncWorkers:     16,
		requestTimeout:   5 * time.Second,
	}
}

// WithFailureThreshold sets how many consecutive failures are tolerated
// before a subscription is deactivated.
func WithFailureThreshold(n int) BusOption {
	return func(c *busConfig) {
		if n > 0 {
			c.failureThreshold = n
		}
	}
}

// WithAsyncWorkers bounds the number of async handlers one Publish runs at once.
func WithAsyncWorkers(count int) BusOption {
	return func(c *busConfig) {
		if count > 0 {
			c.asyncWorkers = count
		}
	}
}

// WithHandlerTimeout sets a per-invocation handler timeout. Zero disables it.
func WithHandlerTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		if timeout >= 0 {
			c.handlerTimeout = timeout
		}
	}
}

// WithRequestTimeout sets the default Request timeout.
func WithRequestTimeout(timeout time.Duration) BusOption {
	return func(c *busConfig) {
		if timeout > 0 {
			c.requestTimeout = timeout
		}
	}
}

// WithLogger sets the bus logger.
func WithLogger(l *logging.Logger) BusOption {
	return func(c *busConfig) {
		c.logger = l
	}
}

// WithMeter sets the OpenTelemetry meter used for bus instruments.
// By default the global meter provider is used.
func WithMeter(m metric.Meter) BusOption {
	return func(c *busConfig) {
		c.meter = m
	}
}

func (c *busConfig) resolveMeter() metric.Meter {
	if c.meter != nil {
		return c.meter
	}
	return otel.Meter("github.com/dshills/switchboard/internal/event")
}
