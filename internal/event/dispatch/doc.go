// Package dispatch runs event handlers for the bus.
//
// SyncDispatcher invokes a handler on the publishing goroutine.
// AsyncDispatcher spreads handlers over a bounded pool; each publish opens a
// Batch. Batch.Dispatch returns once the handler has been entered, so
// handlers start in dispatch order, and Batch.Wait returns once every
// scheduled handler has settled.
//
// Every invocation ends in one Outcome. Panics are recovered and reported
// as Panicked, optionally through a PanicHook. A handler that overruns the
// WithTimeout bound and returns an error is TimedOut; the bound is applied
// through its context, so handlers must watch ctx.Done().
//
//	async := dispatch.NewAsyncDispatcher(dispatch.WithWorkers(8))
//	batch := async.NewBatch()
//	batch.Dispatch(ctx, evt, handler, func(r dispatch.Result) {
//	    if !r.OK() {
//	        log.Printf("%s: %v", r.Outcome, r.Err)
//	    }
//	})
//	batch.Wait()
package dispatch
