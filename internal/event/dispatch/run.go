package dispatch

import (
	"context"
	"errors"
	"runtime/debug"
	"sync/atomic"
	"time"
)

// Handler receives one event. It mirrors event.Handler so this package does
// not import its parent.
type Handler interface {
	Handle(ctx context.Context, event any) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event any) error

// Handle implements Handler.
func (f HandlerFunc) Handle(ctx context.Context, event any) error {
	return f(ctx, event)
}

// Outcome classifies how a handler invocation ended.
type Outcome uint8

// Invocation outcomes.
const (
	Succeeded Outcome = iota
	Failed
	Panicked
	TimedOut
	Skipped

	numOutcomes
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Panicked:
		return "panicked"
	case TimedOut:
		return "timed-out"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Result describes one handler invocation.
type Result struct {
	Outcome Outcome

	// Err is the handler's error for Failed and TimedOut, or the context
	// error for Skipped.
	Err error

	// Recovered and Stack are set for Panicked.
	Recovered any
	Stack     []byte

	Elapsed time.Duration
}

// OK reports whether the handler ran and returned nil.
func (r Result) OK() bool { return r.Outcome == Succeeded }

// PanicHook observes recovered handler panics. It runs on the goroutine
// that invoked the handler.
type PanicHook func(event any, recovered any, stack []byte)

// Option configures a dispatcher.
type Option func(*settings)

type settings struct {
	timeout time.Duration
	onPanic PanicHook
	workers int
}

// WithTimeout bounds every handler invocation. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithPanicHook installs a hook for recovered panics.
func WithPanicHook(h PanicHook) Option {
	return func(s *settings) { s.onPanic = h }
}

// WithWorkers caps concurrently running handlers per batch. Only the async
// dispatcher uses it.
func WithWorkers(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.workers = n
		}
	}
}

func newSettings(opts []Option) settings {
	s := settings{workers: 16}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// invoke runs h once and classifies the result. A context that is already
// done skips the handler. begin, if set, is called once just before the
// handler is entered, or when it is skipped.
func (s *settings) invoke(ctx context.Context, event any, h Handler, begin func()) (res Result) {
	if err := ctx.Err(); err != nil {
		if begin != nil {
			begin()
		}
		return Result{Outcome: Skipped, Err: err}
	}

	hctx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		res.Elapsed = time.Since(start)
		v := recover()
		if v == nil {
			return
		}
		res = Result{Outcome: Panicked, Recovered: v, Stack: debug.Stack(), Elapsed: res.Elapsed}
		if s.onPanic != nil {
			func() {
				defer func() { _ = recover() }()
				s.onPanic(event, v, res.Stack)
			}()
		}
	}()

	if begin != nil {
		begin()
	}
	err := h.Handle(hctx, event)
	switch {
	case err == nil:
		return Result{Outcome: Succeeded}
	case ctx.Err() == nil && errors.Is(hctx.Err(), context.DeadlineExceeded):
		return Result{Outcome: TimedOut, Err: err}
	default:
		return Result{Outcome: Failed, Err: err}
	}
}

// Stats are cumulative dispatcher counters.
type Stats struct {
	Dispatched uint64
	Succeeded  uint64
	Failed     uint64
	Panicked   uint64
	TimedOut   uint64
	Skipped    uint64

	TotalDuration time.Duration
	AvgDuration   time.Duration
}

type tally struct {
	dispatched atomic.Uint64
	outcomes   [numOutcomes]atomic.Uint64
	elapsedNs  atomic.Int64
}

func (t *tally) add(r Result) {
	t.outcomes[r.Outcome].Add(1)
	t.elapsedNs.Add(int64(r.Elapsed))
}

func (t *tally) stats() Stats {
	s := Stats{
		Dispatched:    t.dispatched.Load(),
		Succeeded:     t.outcomes[Succeeded].Load(),
		Failed:        t.outcomes[Failed].Load(),
		Panicked:      t.outcomes[Panicked].Load(),
		TimedOut:      t.outcomes[TimedOut].Load(),
		Skipped:       t.outcomes[Skipped].Load(),
		TotalDuration: time.Duration(t.elapsedNs.Load()),
	}
	if s.Dispatched > 0 {
		s.AvgDuration = s.TotalDuration / time.Duration(s.Dispatched)
	}
	return s
}
