package adapter

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/logging"
)

// maxHistory bounds the transition history kept per host.
const maxHistory = 64

// Transition is one recorded state change.
type Transition struct {
	From State
	To   State
	At   time.Time
}

// Activity summarizes event and hook traffic through a host.
type Activity struct {
	Handled          uint64
	Failed           uint64
	LastActivity     time.Time
	LastResponseTime time.Duration
}

// ErrorRate returns the fraction of failed invocations.
func (a Activity) ErrorRate() float64 {
	if a.Handled == 0 {
		return 0
	}
	return float64(a.Failed) / float64(a.Handled)
}

// Host drives a single adapter through its lifecycle. All transitions are
// serialized; repeating a transition that already happened is a no-op.
type Host struct {
	mu sync.Mutex

	// checkMu is held shared for a health check and exclusively by Cleanup,
	// so the adapter is never checked while or after it is cleaned up.
	checkMu sync.RWMutex

	adapter Adapter
	meta    Metadata
	logger  *logging.Logger

	state       State
	err         error
	initialized bool
	actx        Context
	history     []Transition

	onTransition func(id string, from, to State)

	activityMu sync.Mutex
	activity   Activity
}

// HostOption configures a Host.
type HostOption func(*Host)

// WithTransitionHook sets a callback invoked after every state change.
// The callback runs with the host locked and must not call back into it.
func WithTransitionHook(fn func(id string, from, to State)) HostOption {
	return func(h *Host) {
		h.onTransition = fn
	}
}

// WithHostLogger sets the host logger.
func WithHostLogger(l *logging.Logger) HostOption {
	return func(h *Host) {
		h.logger = l
	}
}

// NewHost creates a host for a. The adapter's metadata must be valid.
func NewHost(a Adapter, opts ...HostOption) (*Host, error) {
	if a == nil {
		return nil, ErrNilAdapter
	}

	meta := a.Metadata().Clone()
	if err := meta.Validate(); err != nil {
		return nil, err
	}

	h := &Host{
		adapter: a,
		meta:    meta,
		state:   StateUninitialized,
	}
	for _, opt := range opts {
		opt(h)
	}
	h.logger = logging.OrNop(h.logger).WithAdapter(meta.ID)
	return h, nil
}

// ID returns the adapter id.
func (h *Host) ID() string {
	return h.meta.ID
}

// Metadata returns the adapter metadata.
func (h *Host) Metadata() Metadata {
	return h.meta.Clone()
}

// Adapter returns the wrapped adapter.
func (h *Host) Adapter() Adapter {
	return h.adapter
}

// State returns the current state.
func (h *Host) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Err returns the error that moved the adapter into its current state, if any.
func (h *Host) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Context returns the context the adapter was initialized with.
func (h *Host) Context() Context {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.actx
}

// Transitions returns the recorded state changes, oldest first.
func (h *Host) Transitions() []Transition {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]Transition, len(h.history))
	copy(out, h.history)
	return out
}

// Activity returns event and hook traffic statistics.
func (h *Host) Activity() Activity {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()
	return h.activity
}

// Initialize moves Uninitialized to Ready, or to Error if the adapter fails.
func (h *Host) Initialize(ctx context.Context, actx Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch h.state {
	case StateUninitialized:
	case StateReady, StateActive, StatePaused:
		return nil
	default:
		return h.reject("initialize")
	}

	h.actx = actx
	h.setState(StateInitializing)
	if err := h.invoke(ctx, "initialize", func(ctx context.Context) error {
		return h.adapter.Initialize(ctx, actx)
	}); err != nil {
		h.fail(err)
		return err
	}

	h.initialized = true
	h.err = nil
	h.setState(StateReady)
	return nil
}

// Activate moves Ready or Paused to Active. Activating an active adapter is a no-op.
func (h *Host) Activate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateActive {
		return nil
	}
	if !h.state.CanActivate() {
		return h.reject("activate")
	}

	if err := h.invoke(ctx, "activate", h.adapter.Activate); err != nil {
		h.fail(err)
		return err
	}

	h.err = nil
	h.setState(StateActive)
	return nil
}

// Deactivate moves Active to Paused. It is a no-op in any other live state.
func (h *Host) Deactivate(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateCleanedUp {
		return h.reject("deactivate")
	}
	if h.state != StateActive {
		return nil
	}

	if err := h.invoke(ctx, "deactivate", h.adapter.Deactivate); err != nil {
		h.fail(err)
		return err
	}

	h.setState(StatePaused)
	return nil
}

// Cleanup moves the adapter through CleaningUp to CleanedUp. Errors from
// the adapter are returned but do not stop the transition.
func (h *Host) Cleanup(ctx context.Context) error {
	h.checkMu.Lock()
	defer h.checkMu.Unlock()
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.state.CanCleanup() {
		return h.reject("cleanup")
	}

	prev := h.state
	h.setState(StateCleaningUp)

	var errs []error
	if prev == StateActive {
		if err := h.invoke(ctx, "deactivate", h.adapter.Deactivate); err != nil {
			errs = append(errs, err)
		}
	}
	if prev != StateUninitialized {
		if err := h.invoke(ctx, "cleanup", h.adapter.Cleanup); err != nil {
			errs = append(errs, err)
		}
	}

	h.err = errors.Join(errs...)
	h.setState(StateCleanedUp)
	if h.err != nil {
		h.logger.Warn("cleanup finished with errors", "error", h.err)
	}
	return h.err
}

// HealthCheck runs the adapter's health check. It is allowed from every
// initialized state, including Error.
func (h *Host) HealthCheck(ctx context.Context) error {
	h.checkMu.RLock()
	defer h.checkMu.RUnlock()

	state := h.State()
	switch state {
	case StateUninitialized, StateInitializing, StateCleaningUp, StateCleanedUp:
		return &TransitionError{AdapterID: h.meta.ID, Op: "health-check", From: state}
	}
	return h.invoke(ctx, "health-check", h.adapter.HealthCheck)
}

// Recover moves Error back to Active. A failed recovery leaves the adapter
// in Error. Recovering an active adapter is a no-op.
func (h *Host) Recover(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state == StateActive {
		return nil
	}
	if h.state != StateError {
		return h.reject("recover")
	}

	err := h.invoke(ctx, "recover", func(ctx context.Context) error {
		if r, ok := h.adapter.(Recoverer); ok {
			return r.Recover(ctx)
		}
		if !h.initialized {
			if err := h.adapter.Initialize(ctx, h.actx); err != nil {
				return err
			}
			h.initialized = true
		}
		return h.adapter.Activate(ctx)
	})
	if err != nil {
		h.err = err
		h.logger.Warn("recovery failed", "error", err)
		return err
	}

	h.err = nil
	h.setState(StateActive)
	h.logger.Info("adapter recovered")
	return nil
}

// HandleEvent delivers e to the adapter if it is active.
func (h *Host) HandleEvent(ctx context.Context, e event.Event) error {
	if state := h.State(); state != StateActive {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, h.meta.ID, state)
	}

	start := time.Now()
	err := h.invoke(ctx, "handle-event", func(ctx context.Context) error {
		return h.adapter.HandleEvent(ctx, e)
	})
	h.recordActivity(time.Since(start), err)
	return err
}

// Hook runs fn against the adapter if it is active, with panic isolation.
// The orchestrator uses it for optional notification hooks.
func (h *Host) Hook(ctx context.Context, op string, fn func(ctx context.Context, a Adapter) error) error {
	if state := h.State(); state != StateActive {
		return fmt.Errorf("%w: %s is %s", ErrNotActive, h.meta.ID, state)
	}

	start := time.Now()
	err := h.invoke(ctx, op, func(ctx context.Context) error {
		return fn(ctx, h.adapter)
	})
	h.recordActivity(time.Since(start), err)
	return err
}

// invoke calls fn, converting panics to *PanicError and errors to *OpError.
func (h *Host) invoke(ctx context.Context, op string, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				AdapterID: h.meta.ID,
				Op:        op,
				Value:     r,
				Stack:     string(debug.Stack()),
			}
			h.logger.Error("adapter panicked", "op", op, "panic", fmt.Sprint(r))
		}
	}()

	if err := fn(ctx); err != nil {
		return &OpError{AdapterID: h.meta.ID, Op: op, Err: err}
	}
	return nil
}

func (h *Host) recordActivity(d time.Duration, err error) {
	h.activityMu.Lock()
	defer h.activityMu.Unlock()

	h.activity.Handled++
	if err != nil {
		h.activity.Failed++
	}
	h.activity.LastActivity = time.Now()
	h.activity.LastResponseTime = d
}

// setState must be called with h.mu held.
func (h *Host) setState(to State) {
	from := h.state
	if from == to {
		return
	}
	h.state = to

	h.history = append(h.history, Transition{From: from, To: to, At: time.Now()})
	if len(h.history) > maxHistory {
		h.history = h.history[len(h.history)-maxHistory:]
	}

	h.logger.Debug("state changed", "from", from.String(), "to", to.String())
	if h.onTransition != nil {
		h.onTransition(h.meta.ID, from, to)
	}
}

// fail must be called with h.mu held.
func (h *Host) fail(err error) {
	h.err = err
	h.setState(StateError)
	h.logger.Error("lifecycle step failed", "error", err)
}

func (h *Host) reject(op string) error {
	return &TransitionError{AdapterID: h.meta.ID, Op: op, From: h.state}
}
