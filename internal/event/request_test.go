package event

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dshills/switchboard/internal/event/events"
)

func respondWith(t *testing.T, bus *Bus, dataType string, fn func(p events.RequestPayload) (any, error)) {
	t.Helper()
	_, err := SubscribePayload(bus, events.DataRequest, func(ctx context.Context, e Event, p events.RequestPayload) error {
		data, err := fn(p)
		return bus.Respond(ctx, p.RequestID, data, err)
	}, WithFilter(RequestsFor("responder", dataType)))
	if err != nil {
		t.Fatalf("subscribe responder: %v", err)
	}
}

func TestBus_RequestResponse(t *testing.T) {
	bus := NewBus()
	respondWith(t, bus, "ticket", func(p events.RequestPayload) (any, error) {
		return "ticket " + p.Query.(string), nil
	})

	got, err := bus.Request(context.Background(), "ticket", "OPS-1", WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	if got != "ticket OPS-1" {
		t.Errorf("Request() = %v, want %q", got, "ticket OPS-1")
	}
	if bus.Stats().PendingRequests != 0 {
		t.Error("pending request not cleaned up")
	}
}

func TestBus_RequestErrorResponse(t *testing.T) {
	bus := NewBus()
	respondWith(t, bus, "ticket", func(p events.RequestPayload) (any, error) {
		return nil, errors.New("not found")
	})

	_, err := bus.Request(context.Background(), "ticket", "OPS-404", WithTimeout(time.Second))

	var rerr *ResponseError
	if !errors.As(err, &rerr) {
		t.Fatalf("Request() error = %v, want *ResponseError", err)
	}
	if rerr.Message != "not found" || rerr.DataType != "ticket" {
		t.Errorf("unexpected ResponseError %+v", rerr)
	}
	if errors.Is(err, ErrRequestTimeout) {
		t.Error("error response must be distinguishable from a timeout")
	}
}

func TestBus_RequestTimeout(t *testing.T) {
	bus := NewBus()
	const timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := bus.Request(context.Background(), "nobody-home", nil, WithTimeout(timeout))
	elapsed := time.Since(start)

	if !errors.Is(err, ErrRequestTimeout) {
		t.Fatalf("Request() error = %v, want ErrRequestTimeout", err)
	}
	if elapsed < timeout {
		t.Errorf("timed out after %v, before %v", elapsed, timeout)
	}
	if elapsed > timeout+500*time.Millisecond {
		t.Errorf("timed out after %v, far beyond %v", elapsed, timeout)
	}
	if bus.Stats().PendingRequests != 0 {
		t.Error("pending request not cleaned up after timeout")
	}
}

func TestBus_RequestIgnoresDuplicateResponses(t *testing.T) {
	bus := NewBus()

	// Two responders answer the same request; only the first reply counts.
	for _, answer := range []string{"first", "second"} {
		bus.SubscribeFunc(events.DataRequest, func(ctx context.Context, e Event) error {
			return bus.Respond(ctx, e.CorrelationID, answer, nil)
		}, WithSync(), WithPriority(Priority(len(answer))))
	}

	got, err := bus.Request(context.Background(), "anything", nil, WithTimeout(time.Second))
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	// "second" has the higher priority (longer name) and runs first.
	if got != "second" {
		t.Errorf("Request() = %v, want second", got)
	}

	// A late response for a settled request is a no-op.
	if err := bus.Respond(context.Background(), "settled-long-ago", "late", nil); err != nil {
		t.Errorf("Respond() error = %v", err)
	}
}

func TestBus_RequestTarget(t *testing.T) {
	bus := NewBus()
	respondWith(t, bus, "search", func(p events.RequestPayload) (any, error) {
		return "from responder", nil
	})

	if _, err := bus.Request(context.Background(), "search", nil, WithTarget("someone-else"), WithTimeout(30*time.Millisecond)); !errors.Is(err, ErrRequestTimeout) {
		t.Errorf("targeted elsewhere: error = %v, want timeout", err)
	}

	got, err := bus.Request(context.Background(), "search", nil, WithTarget("responder"), WithTimeout(time.Second))
	if err != nil || got != "from responder" {
		t.Errorf("targeted Request() = %v, %v", got, err)
	}
}

func TestBus_RequestContextCancel(t *testing.T) {
	bus := NewBus()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := bus.Request(ctx, "slow", nil, WithTimeout(5*time.Second))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Request() error = %v, want context.Canceled", err)
	}
}

func TestBus_RequestValidation(t *testing.T) {
	bus := NewBus()
	if _, err := bus.Request(context.Background(), "", nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Request(empty) error = %v, want ErrInvalidRequest", err)
	}
	if err := bus.Respond(context.Background(), "", nil, nil); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("Respond(empty) error = %v, want ErrInvalidRequest", err)
	}
}
