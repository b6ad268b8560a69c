// Package app wires switchboard together. It builds the event bus,
// subscription tracker, capability registry, orchestrator and notification
// sink from configuration and manages their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/metric"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/adapter/builtin"
	"github.com/dshills/switchboard/internal/adapter/lua"
	"github.com/dshills/switchboard/internal/capability"
	"github.com/dshills/switchboard/internal/config"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/hostenv"
	"github.com/dshills/switchboard/internal/logging"
	"github.com/dshills/switchboard/internal/notify"
	"github.com/dshills/switchboard/internal/orchestrator"
)

// ShutdownTimeout bounds Shutdown when the caller's context has no deadline.
const ShutdownTimeout = 10 * time.Second

// App is the running switchboard.
type App struct {
	cfg    *config.Config
	logger *logging.Logger
	// ownLogger is closed on shutdown.
	ownLogger bool

	bus      *event.Bus
	tracker  *event.Tracker
	table    *adapter.Table
	registry *capability.Registry
	orch     *orchestrator.Orchestrator
	sink     notify.Sink

	static  *hostenv.Static
	watcher *hostenv.Watcher

	// ctx lives until Shutdown and scopes background work.
	ctx    context.Context
	cancel context.CancelFunc

	started  atomic.Bool
	shutdown atomic.Bool
	stopOnce sync.Once
	stopErr  error
}

// Option configures an App.
type Option func(*options)

type options struct {
	logger *logging.Logger
	table  *adapter.Table
	sink   notify.Sink
	meter  metric.Meter
}

// WithLogger uses l instead of building a logger from configuration.
func WithLogger(l *logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTable supplies the adapter table. Built-in and scripted adapters are
// added to it.
func WithTable(t *adapter.Table) Option {
	return func(o *options) {
		o.table = t
	}
}

// WithSink adds a notification sink alongside the log sink.
func WithSink(s notify.Sink) Option {
	return func(o *options) {
		o.sink = s
	}
}

// WithMeter sets the meter for bus, registry and orchestrator instruments.
func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

// New builds every component from cfg. Nothing is registered or activated
// until Start.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	app := &App{cfg: cfg, logger: o.logger}
	if app.logger == nil {
		l, err := logging.New(logging.Options{
			Level:  cfg.Logging.Level,
			Format: cfg.Logging.Format,
			File:   cfg.Logging.File,
		})
		if err != nil {
			return nil, &InitError{Component: "logger", Err: err}
		}
		app.logger = l
		app.ownLogger = true
	}

	busOpts := []event.BusOption{
		event.WithFailureThreshold(cfg.Bus.FailureThreshold),
		event.WithAsyncWorkers(cfg.Bus.AsyncWorkers),
		event.WithRequestTimeout(cfg.Bus.RequestTimeout.Std()),
		event.WithLogger(app.logger),
	}
	if cfg.Bus.HandlerTimeout > 0 {
		busOpts = append(busOpts, event.WithHandlerTimeout(cfg.Bus.HandlerTimeout.Std()))
	}
	if o.meter != nil {
		busOpts = append(busOpts, event.WithMeter(o.meter))
	}
	app.bus = event.NewBus(busOpts...)
	app.tracker = event.NewTracker(app.bus)

	app.table = o.table
	if app.table == nil {
		app.table = adapter.NewTable()
	}
	if err := app.populateTable(); err != nil {
		app.closeLogger()
		return nil, err
	}

	app.sink = notify.NewLogSink(app.logger)
	if cfg.Notify.Rate > 0 {
		app.sink = notify.NewThrottled(app.sink, cfg.Notify.Rate, cfg.Notify.Burst)
	}
	if o.sink != nil {
		app.sink = notify.Multi{app.sink, o.sink}
	}

	regOpts := []capability.Option{
		capability.WithPublisher(event.NewSourcePublisher(app.bus, "registry")),
		capability.WithHostVersion(cfg.HostVersion),
		capability.WithHealthInterval(cfg.Health.Interval.Std()),
		capability.WithAutoRecover(cfg.Health.AutoRecover),
		capability.WithLogger(app.logger),
	}
	if cfg.Adapters.Inventory != "" {
		inv, err := hostenv.LoadInventory(cfg.Adapters.Inventory)
		if err != nil {
			app.closeLogger()
			return nil, &InitError{Component: "inventory", Err: err}
		}
		app.static = hostenv.NewStatic(inv)
		regOpts = append(regOpts, capability.WithInspector(app.static))
	}
	if o.meter != nil {
		regOpts = append(regOpts, capability.WithMeter(o.meter))
	}
	app.registry = capability.NewRegistry(regOpts...)

	orchOpts := []orchestrator.Option{
		orchestrator.WithTracker(app.tracker),
		orchestrator.WithRegistry(app.registry),
		orchestrator.WithSink(app.sink),
		orchestrator.WithHostVersion(cfg.HostVersion),
		orchestrator.WithRetry(orchestrator.RetryConfig{
			MaxAttempts:       cfg.Health.RecoveryAttempts,
			InitialDelay:      cfg.Health.RecoveryBackoff.Std(),
			MaxDelay:          30 * time.Second,
			BackoffMultiplier: 2,
		}),
		orchestrator.WithLogger(app.logger),
	}
	if o.meter != nil {
		orchOpts = append(orchOpts, orchestrator.WithMeter(o.meter))
	}
	app.orch = orchestrator.New(app.bus, orchOpts...)
	app.registry.SetSupervisor(app.orch)

	app.ctx, app.cancel = context.WithCancel(context.Background())
	return app, nil
}

// populateTable adds built-in and scripted adapters and checks that every
// enabled id can be built.
func (app *App) populateTable() error {
	if err := builtin.Register(app.table); err != nil {
		return &InitError{Component: "builtin adapters", Err: err}
	}

	if len(app.cfg.Adapters.ScriptDirs) > 0 {
		manifests, err := lua.Discover(app.cfg.Adapters.ScriptDirs...)
		if err != nil {
			app.logger.Warn("skipping invalid script adapters", "error", err)
		}
		var stateOpts []lua.StateOption
		if d := app.cfg.Bus.HandlerTimeout.Std(); d > 0 {
			stateOpts = append(stateOpts, lua.WithExecutionTimeout(d))
		}
		if err := lua.Register(app.table, manifests, stateOpts...); err != nil {
			return &InitError{Component: "script adapters", Err: err}
		}
		app.logger.Debug("script adapters discovered", "count", len(manifests))
	}

	var missing []error
	for _, id := range app.cfg.Adapters.Enabled {
		if _, ok := app.table.Lookup(id); !ok {
			missing = append(missing, fmt.Errorf("%w: %s", ErrUnknownAdapter, id))
		}
	}
	if len(missing) > 0 {
		return &InitError{Component: "adapters", Err: errors.Join(missing...)}
	}
	return nil
}

// Start registers the enabled adapters, discovers collaborators, activates
// adapters in dependency order and starts health monitoring. Adapters that
// fail stay registered in the error state; their failures are returned
// joined and the application keeps running.
func (app *App) Start(ctx context.Context) error {
	if app.shutdown.Load() {
		return ErrShutdown
	}
	if !app.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	if err := app.registry.Listen(app.tracker); err != nil {
		return &InitError{Component: "registry", Err: err}
	}

	if app.static != nil {
		w, err := hostenv.Watch(app.ctx, app.cfg.Adapters.Inventory, app.static, app.onInventoryReload,
			hostenv.WithWatchLogger(app.logger))
		if err != nil {
			app.logger.Warn("inventory watch unavailable", "path", app.cfg.Adapters.Inventory, "error", err)
		} else {
			app.watcher = w
		}
	}

	var errs []error
	for _, id := range app.table.IDs() {
		if !app.cfg.IsEnabled(id) {
			continue
		}
		a, err := app.table.Build(id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := app.orch.Register(ctx, a, app.cfg.SettingsFor(id)); err != nil {
			errs = append(errs, err)
		}
	}

	if _, err := app.registry.Discover(ctx); err != nil {
		errs = append(errs, fmt.Errorf("discover: %w", err))
	}

	if err := app.orch.ActivateAll(ctx); err != nil {
		errs = append(errs, err)
	}

	app.registry.StartHealthMonitoring(app.ctx)

	app.logger.Info("switchboard started",
		"adapters", app.orch.Count(),
		"host_version", app.cfg.HostVersion)
	return errors.Join(errs...)
}

// onInventoryReload re-checks every integration against the new inventory.
func (app *App) onInventoryReload(ctx context.Context, inv *hostenv.Inventory) {
	if err := app.registry.Refresh(ctx); err != nil {
		app.logger.Warn("refresh after inventory reload failed", "error", err)
		return
	}
	app.logger.Info("inventory reloaded", "collaborators", len(inv.Collaborators))
}

// Shutdown stops health monitoring, cleans up every adapter in reverse
// dependency order and releases all subscriptions. It is safe to call more
// than once.
func (app *App) Shutdown(ctx context.Context) error {
	app.stopOnce.Do(func() {
		app.shutdown.Store(true)

		if _, ok := ctx.Deadline(); !ok {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, ShutdownTimeout)
			defer cancel()
		}

		var errs []error
		app.registry.StopHealthMonitoring()
		if app.watcher != nil {
			if err := app.watcher.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close inventory watcher: %w", err))
			}
		}
		app.cancel()

		if err := app.orch.Cleanup(ctx); err != nil {
			errs = append(errs, err)
		}
		app.registry.Close()

		if n := app.tracker.Owners(); n > 0 {
			app.logger.Warn("subscriptions still owned after shutdown", "owners", n)
		}
		app.logger.Info("switchboard stopped")
		app.closeLogger()

		app.stopErr = errors.Join(errs...)
	})
	return app.stopErr
}

func (app *App) closeLogger() {
	if app.ownLogger {
		_ = app.logger.Close()
	}
}

// Config returns the configuration the application was built from.
func (app *App) Config() *config.Config { return app.cfg }

// Logger returns the application logger.
func (app *App) Logger() *logging.Logger { return app.logger }

// Bus returns the event bus.
func (app *App) Bus() *event.Bus { return app.bus }

// Tracker returns the subscription tracker.
func (app *App) Tracker() *event.Tracker { return app.tracker }

// Table returns the adapter constructor table.
func (app *App) Table() *adapter.Table { return app.table }

// Registry returns the capability registry.
func (app *App) Registry() *capability.Registry { return app.registry }

// Orchestrator returns the adapter orchestrator.
func (app *App) Orchestrator() *orchestrator.Orchestrator { return app.orch }

// Inventory returns the host inventory inspector, or nil when no inventory
// is configured.
func (app *App) Inventory() *hostenv.Static { return app.static }
