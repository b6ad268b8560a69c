package event

import (
	"context"

	"github.com/dshills/switchboard/internal/event/events"
)

// Publisher is the narrow publishing interface components depend on
// instead of the full Bus.
type Publisher interface {
	Publish(ctx context.Context, t events.Type, payload any, opts ...PublishOption) error
}

var _ Publisher = (*Bus)(nil)

// SourcePublisher stamps every event it publishes with a fixed source id.
type SourcePublisher struct {
	pub    Publisher
	source string
}

// NewSourcePublisher wraps pub so events carry source as their source id.
func NewSourcePublisher(pub Publisher, source string) *SourcePublisher {
	return &SourcePublisher{pub: pub, source: source}
}

// Publish implements Publisher. Options given by the caller win over the
// fixed source.
func (p *SourcePublisher) Publish(ctx context.Context, t events.Type, payload any, opts ...PublishOption) error {
	all := make([]PublishOption, 0, len(opts)+1)
	all = append(all, WithSource(p.source))
	all = append(all, opts...)
	return p.pub.Publish(ctx, t, payload, all...)
}

// Source returns the publisher's source identifier.
func (p *SourcePublisher) Source() string {
	return p.source
}

// SubscribePayload subscribes a typed payload handler on the bus.
func SubscribePayload[T any](b *Bus, t events.Type, fn func(ctx context.Context, e Event, payload T) error, opts ...SubscriptionOption) (string, error) {
	if fn == nil {
		return "", ErrNilHandler
	}
	return b.Subscribe(t, PayloadHandler(fn), opts...)
}

// NopPublisher discards every event.
type NopPublisher struct{}

// Publish implements Publisher.
func (NopPublisher) Publish(context.Context, events.Type, any, ...PublishOption) error {
	return nil
}
