// Package notify delivers user-facing notices about adapter lifecycle
// events. Delivery is best effort: a failing sink never fails the
// operation that produced the notice.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/switchboard/internal/logging"
)

// Level is the severity of a notice.
type Level int

// Notice levels.
const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// String returns the level name.
func (l Level) String() string {
	switch l {
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Notice is a single user-facing message.
type Notice struct {
	Level     Level
	AdapterID string
	Message   string
	At        time.Time
}

// Sink receives notices.
type Sink interface {
	Notify(ctx context.Context, n Notice) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, n Notice) error

// Notify implements Sink.
func (f SinkFunc) Notify(ctx context.Context, n Notice) error {
	return f(ctx, n)
}

// ErrDropped is returned by Throttled when a notice exceeds the rate.
var ErrDropped = errors.New("notice dropped")

// Deliver sends n to sink and swallows any failure, including a panic,
// logging it instead. A nil sink is allowed.
func Deliver(ctx context.Context, sink Sink, n Notice, logger *logging.Logger) {
	if sink == nil {
		return
	}
	if n.At.IsZero() {
		n.At = time.Now()
	}

	defer func() {
		if v := recover(); v != nil {
			logging.OrNop(logger).Warn("notification sink panicked", "panic", fmt.Sprint(v))
		}
	}()
	if err := sink.Notify(ctx, n); err != nil && !errors.Is(err, ErrDropped) {
		logging.OrNop(logger).Warn("notification failed", "adapter_id", n.AdapterID, "error", err)
	}
}

// Nop discards every notice.
type Nop struct{}

// Notify implements Sink.
func (Nop) Notify(context.Context, Notice) error { return nil }
