package event

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/dshills/switchboard/internal/event/events"
)

// Metrics are the dispatch statistics for one event type.
type Metrics struct {
	EventType events.Type

	// PublishCount is the number of Publish calls for the type.
	PublishCount uint64

	// HandlerCount is the number of handler invocations.
	HandlerCount uint64

	// ErrorCount is the number of failed handler invocations (errors and panics).
	ErrorCount uint64

	// TotalDuration, AvgDuration and MaxDuration measure whole Publish calls,
	// from the first handler start until every handler settled.
	TotalDuration time.Duration
	AvgDuration   time.Duration
	MaxDuration   time.Duration

	// LastPublished is when the type was last published.
	LastPublished time.Time
}

// metricsTable accumulates per-type Metrics.
type metricsTable struct {
	mu     sync.RWMutex
	byType map[events.Type]*Metrics
}

func newMetricsTable() *metricsTable {
	return &metricsTable{byType: make(map[events.Type]*Metrics)}
}

func (m *metricsTable) record(t events.Type, handlers, errs int, d time.Duration, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.byType[t]
	if !ok {
		entry = &Metrics{EventType: t}
		m.byType[t] = entry
	}

	entry.PublishCount++
	entry.HandlerCount += uint64(handlers)
	entry.ErrorCount += uint64(errs)
	entry.TotalDuration += d
	entry.AvgDuration = entry.TotalDuration / time.Duration(entry.PublishCount)
	if d > entry.MaxDuration {
		entry.MaxDuration = d
	}
	entry.LastPublished = at
}

func (m *metricsTable) get(t events.Type) (Metrics, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.byType[t]
	if !ok {
		return Metrics{}, false
	}
	return *entry, true
}

func (m *metricsTable) all() []Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Metrics, 0, len(m.byType))
	for _, entry := range m.byType {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EventType < out[j].EventType })
	return out
}

// instruments are the OpenTelemetry instruments exported by the bus.
type instruments struct {
	published     metric.Int64Counter
	handlerErrors metric.Int64Counter
	circuits      metric.Int64Counter
	timeouts      metric.Int64Counter
	duration      metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var (
		inst = &instruments{}
		err  error
	)

	inst.published, err = meter.Int64Counter("switchboard.events.published",
		metric.WithDescription("Events published on the bus"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, err
	}

	inst.handlerErrors, err = meter.Int64Counter("switchboard.handler.errors",
		metric.WithDescription("Failed handler invocations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	inst.circuits, err = meter.Int64Counter("switchboard.subscriptions.circuit_opened",
		metric.WithDescription("Subscriptions deactivated after repeated failures"),
		metric.WithUnit("{subscription}"),
	)
	if err != nil {
		return nil, err
	}

	inst.timeouts, err = meter.Int64Counter("switchboard.requests.timeouts",
		metric.WithDescription("Requests that received no response in time"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	inst.duration, err = meter.Float64Histogram("switchboard.publish.duration",
		metric.WithDescription("Publish duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	return inst, nil
}

func noopInstruments() *instruments {
	return &instruments{
		published:     noop.Int64Counter{},
		handlerErrors: noop.Int64Counter{},
		circuits:      noop.Int64Counter{},
		timeouts:      noop.Int64Counter{},
		duration:      noop.Float64Histogram{},
	}
}

func (i *instruments) recordPublish(ctx context.Context, t events.Type, errs int, d time.Duration) {
	attrs := metric.WithAttributes(attribute.String("event.type", string(t)))
	i.published.Add(ctx, 1, attrs)
	if errs > 0 {
		i.handlerErrors.Add(ctx, int64(errs), attrs)
	}
	i.duration.Record(ctx, d.Seconds(), attrs)
}
