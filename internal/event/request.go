package event

import (
	"context"
	"fmt"
	"time"

	"github.com/dshills/switchboard/internal/event/events"
)

type reply struct {
	data any
	err  error
}

type requestConfig struct {
	timeout  time.Duration
	targetID string
	sourceID string
}

// RequestOption configures a single Request.
type RequestOption func(*requestConfig)

// WithTimeout overrides the bus default request timeout.
func WithTimeout(d time.Duration) RequestOption {
	return func(c *requestConfig) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithTarget restricts the request to the responder with the given id.
func WithTarget(id string) RequestOption {
	return func(c *requestConfig) {
		c.targetID = id
	}
}

// WithRequestSource sets the source id of the data:request event.
func WithRequestSource(id string) RequestOption {
	return func(c *requestConfig) {
		c.sourceID = id
	}
}

// Request publishes a data:request event for dataType and waits for the first
// data:response or data:error with the same correlation id. It returns an
// error wrapping ErrRequestTimeout if nothing arrives in time, a
// *ResponseError for an error response, or ctx.Err() if ctx ends first.
func (b *Bus) Request(ctx context.Context, dataType string, query any, opts ...RequestOption) (any, error) {
	if dataType == "" {
		return nil, fmt.Errorf("%w: empty data type", ErrInvalidRequest)
	}

	cfg := requestConfig{timeout: b.config.requestTimeout}
	for _, opt := range opts {
		opt(&cfg)
	}

	id := generateID()
	ch := make(chan reply, 1)

	b.pendingMu.Lock()
	b.pending[id] = ch
	b.pendingMu.Unlock()
	defer b.forgetRequest(id)

	timer := time.NewTimer(cfg.timeout)
	defer timer.Stop()

	req := Event{
		ID:            generateID(),
		Type:          events.DataRequest,
		Timestamp:     timeNow(),
		SourceID:      cfg.sourceID,
		CorrelationID: id,
		Payload: events.RequestPayload{
			RequestID: id,
			DataType:  dataType,
			Query:     query,
			TargetID:  cfg.targetID,
		},
	}

	// Responders may be slow; the caller's deadline is enforced here, not
	// by the publish.
	go func() {
		_ = b.PublishEvent(ctx, req)
	}()

	select {
	case r := <-ch:
		if re, ok := r.err.(*ResponseError); ok && re.DataType == "" {
			re.DataType = dataType
		}
		return r.data, r.err
	case <-timer.C:
		b.inst.timeouts.Add(context.Background(), 1)
		b.logger.Warn("request timed out",
			"request_id", id,
			"data_type", dataType,
			"timeout", cfg.timeout.String(),
		)
		return nil, fmt.Errorf("%w: %s request %s after %s", ErrRequestTimeout, dataType, id, cfg.timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Respond answers a request. A non-nil err publishes data:error, otherwise
// data:response carrying data.
func (b *Bus) Respond(ctx context.Context, requestID string, data any, err error, opts ...PublishOption) error {
	if requestID == "" {
		return fmt.Errorf("%w: empty request id", ErrInvalidRequest)
	}

	var e Event
	if err != nil {
		e = NewEvent(events.DataError, events.ErrorPayload{RequestID: requestID, Message: err.Error()}, "")
	} else {
		e = NewEvent(events.DataResponse, events.ResponsePayload{RequestID: requestID, Data: data}, "")
	}
	e.CorrelationID = requestID
	for _, opt := range opts {
		opt(&e)
	}
	return b.PublishEvent(ctx, e)
}

// settleRequest completes the pending request matching a response event.
// Only the first response for a correlation id is delivered.
func (b *Bus) settleRequest(e Event) {
	if e.Type != events.DataResponse && e.Type != events.DataError {
		return
	}
	if e.CorrelationID == "" {
		return
	}

	b.pendingMu.Lock()
	ch, ok := b.pending[e.CorrelationID]
	if ok {
		delete(b.pending, e.CorrelationID)
	}
	b.pendingMu.Unlock()

	if !ok {
		return
	}
	ch <- replyFrom(e)
}

func replyFrom(e Event) reply {
	if e.Type == events.DataError {
		msg := fmt.Sprint(e.Payload)
		if p, ok := e.Payload.(events.ErrorPayload); ok {
			msg = p.Message
		}
		return reply{err: &ResponseError{RequestID: e.CorrelationID, Message: msg}}
	}
	if p, ok := e.Payload.(events.ResponsePayload); ok {
		return reply{data: p.Data}
	}
	return reply{data: e.Payload}
}

func (b *Bus) forgetRequest(id string) {
	b.pendingMu.Lock()
	delete(b.pending, id)
	b.pendingMu.Unlock()
}
