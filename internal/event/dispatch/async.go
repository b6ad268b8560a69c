package dispatch

import (
	"context"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// AsyncDispatcher fans handlers out onto a bounded goroutine pool. Work is
// grouped into batches so a publisher can wait for what it scheduled.
type AsyncDispatcher struct {
	settings settings
	tally    tally
}

// NewAsyncDispatcher returns a dispatcher configured by opts.
func NewAsyncDispatcher(opts ...Option) *AsyncDispatcher {
	return &AsyncDispatcher{settings: newSettings(opts)}
}

// Batch is one publish worth of concurrent invocations. It must not be
// reused after Wait.
type Batch struct {
	d    *AsyncDispatcher
	pool *pool.Pool
}

// NewBatch opens a batch limited to the configured worker count.
func (d *AsyncDispatcher) NewBatch() *Batch {
	return &Batch{d: d, pool: pool.New().WithMaxGoroutines(d.settings.workers)}
}

// Dispatch schedules handler and returns once it has been entered, so
// handlers start in the order they were dispatched and then run
// concurrently. onDone, if set, receives the result on the worker
// goroutine.
func (b *Batch) Dispatch(ctx context.Context, event any, handler Handler, onDone func(Result)) {
	b.d.tally.dispatched.Add(1)

	entered := make(chan struct{})
	var once sync.Once
	signal := func() { once.Do(func() { close(entered) }) }

	b.pool.Go(func() {
		defer signal()
		r := b.d.settings.invoke(ctx, event, handler, signal)
		b.d.tally.add(r)
		if onDone != nil {
			onDone(r)
		}
	})
	<-entered
}

// Wait blocks until every scheduled handler has settled.
func (b *Batch) Wait() {
	b.pool.Wait()
}

// Stats returns cumulative counters.
func (d *AsyncDispatcher) Stats() Stats {
	return d.tally.stats()
}
