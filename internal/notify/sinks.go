package notify

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/dshills/switchboard/internal/logging"
)

// LogSink writes notices to a logger at a level matching the notice.
type LogSink struct {
	logger *logging.Logger
}

// NewLogSink creates a LogSink.
func NewLogSink(logger *logging.Logger) *LogSink {
	return &LogSink{logger: logging.OrNop(logger).WithComponent("notify")}
}

// Notify implements Sink.
func (s *LogSink) Notify(ctx context.Context, n Notice) error {
	args := []any{"adapter_id", n.AdapterID, "at", n.At}
	switch n.Level {
	case LevelError:
		s.logger.Error(n.Message, args...)
	case LevelWarning:
		s.logger.Warn(n.Message, args...)
	default:
		s.logger.Info(n.Message, args...)
	}
	return nil
}

// Throttled forwards at most a fixed rate of notices and drops the rest.
// Errors always pass.
type Throttled struct {
	next    Sink
	limiter *rate.Limiter
}

// NewThrottled wraps next with a limiter allowing perSecond notices with
// the given burst.
func NewThrottled(next Sink, perSecond float64, burst int) *Throttled {
	if burst < 1 {
		burst = 1
	}
	return &Throttled{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Notify implements Sink. It returns ErrDropped when the notice is over
// the limit.
func (t *Throttled) Notify(ctx context.Context, n Notice) error {
	if n.Level < LevelError && !t.limiter.Allow() {
		return ErrDropped
	}
	return t.next.Notify(ctx, n)
}

// Multi fans a notice out to several sinks. Every sink is tried; the
// failures are joined.
type Multi []Sink

// Notify implements Sink.
func (m Multi) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Notify(ctx, n); err != nil && !errors.Is(err, ErrDropped) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
