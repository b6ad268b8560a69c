package dispatch

import "context"

// SyncDispatcher runs handlers on the caller's goroutine.
type SyncDispatcher struct {
	settings settings
	tally    tally
}

// NewSyncDispatcher returns a dispatcher configured by opts.
func NewSyncDispatcher(opts ...Option) *SyncDispatcher {
	return &SyncDispatcher{settings: newSettings(opts)}
}

// Dispatch runs handler and blocks until it returns, times out or panics.
func (d *SyncDispatcher) Dispatch(ctx context.Context, event any, handler Handler) Result {
	d.tally.dispatched.Add(1)
	r := d.settings.invoke(ctx, event, handler, nil)
	d.tally.add(r)
	return r
}

// Stats returns cumulative counters.
func (d *SyncDispatcher) Stats() Stats {
	return d.tally.stats()
}
