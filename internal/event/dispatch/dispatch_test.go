package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func runSync(ctx context.Context, h HandlerFunc, opts ...Option) Result {
	return NewSyncDispatcher(opts...).Dispatch(ctx, "evt", h)
}

func TestOutcome_String(t *testing.T) {
	tests := map[Outcome]string{
		Succeeded:   "succeeded",
		Failed:      "failed",
		Panicked:    "panicked",
		TimedOut:    "timed-out",
		Skipped:     "skipped",
		Outcome(42): "unknown",
	}
	for o, want := range tests {
		if got := o.String(); got != want {
			t.Errorf("Outcome(%d).String() = %q, want %q", o, got, want)
		}
	}
}

func TestDispatch_Outcomes(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name    string
		handler HandlerFunc
		want    Outcome
		wantErr error
	}{
		{"nil error", func(context.Context, any) error { return nil }, Succeeded, nil},
		{"error", func(context.Context, any) error { return boom }, Failed, boom},
		{"panic", func(context.Context, any) error { panic("p") }, Panicked, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := runSync(context.Background(), tt.handler)
			if r.Outcome != tt.want {
				t.Fatalf("Outcome = %s, want %s", r.Outcome, tt.want)
			}
			if r.OK() != (tt.want == Succeeded) {
				t.Errorf("OK() = %v", r.OK())
			}
			if !errors.Is(r.Err, tt.wantErr) {
				t.Errorf("Err = %v, want %v", r.Err, tt.wantErr)
			}
		})
	}
}

func TestDispatch_RecoversPanic(t *testing.T) {
	var hooked atomic.Value
	r := runSync(context.Background(), func(context.Context, any) error {
		panic("boom")
	}, WithPanicHook(func(event, v any, stack []byte) {
		hooked.Store(v)
	}))

	if r.Recovered != "boom" {
		t.Errorf("Recovered = %v, want boom", r.Recovered)
	}
	if len(r.Stack) == 0 {
		t.Error("expected a stack trace")
	}
	if hooked.Load() != "boom" {
		t.Errorf("hook saw %v, want boom", hooked.Load())
	}
}

func TestDispatch_PanickingHookIsContained(t *testing.T) {
	r := runSync(context.Background(), func(context.Context, any) error {
		panic("boom")
	}, WithPanicHook(func(any, any, []byte) {
		panic("hook")
	}))
	if r.Outcome != Panicked {
		t.Errorf("Outcome = %s, want panicked", r.Outcome)
	}
}

func TestDispatch_SkipsDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	r := runSync(ctx, func(context.Context, any) error {
		called = true
		return nil
	})
	if called {
		t.Error("handler ran with a cancelled context")
	}
	if r.Outcome != Skipped || !errors.Is(r.Err, context.Canceled) {
		t.Errorf("got %s / %v, want skipped / canceled", r.Outcome, r.Err)
	}
}

func TestDispatch_Timeout(t *testing.T) {
	r := runSync(context.Background(), func(ctx context.Context, _ any) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithTimeout(20*time.Millisecond))

	if r.Outcome != TimedOut {
		t.Fatalf("Outcome = %s, want timed-out", r.Outcome)
	}
	if !errors.Is(r.Err, context.DeadlineExceeded) {
		t.Errorf("Err = %v, want DeadlineExceeded", r.Err)
	}
}

func TestDispatch_FastHandlerUnderTimeout(t *testing.T) {
	r := runSync(context.Background(), func(context.Context, any) error {
		return nil
	}, WithTimeout(time.Second))
	if !r.OK() {
		t.Errorf("Outcome = %s, want succeeded", r.Outcome)
	}
}

func TestSyncDispatcher_Stats(t *testing.T) {
	d := NewSyncDispatcher()
	ctx := context.Background()

	d.Dispatch(ctx, nil, HandlerFunc(func(context.Context, any) error { return nil }))
	d.Dispatch(ctx, nil, HandlerFunc(func(context.Context, any) error { return errors.New("x") }))
	d.Dispatch(ctx, nil, HandlerFunc(func(context.Context, any) error { panic("p") }))

	s := d.Stats()
	if s.Dispatched != 3 {
		t.Errorf("Dispatched = %d, want 3", s.Dispatched)
	}
	if s.Succeeded != 1 || s.Failed != 1 || s.Panicked != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestBatch_WaitsForAllHandlers(t *testing.T) {
	d := NewAsyncDispatcher(WithWorkers(4))
	batch := d.NewBatch()

	var done atomic.Int32
	var results sync.Map
	for i := 0; i < 10; i++ {
		batch.Dispatch(context.Background(), i, HandlerFunc(func(_ context.Context, event any) error {
			time.Sleep(5 * time.Millisecond)
			done.Add(1)
			if event.(int)%2 == 0 {
				return errors.New("even")
			}
			return nil
		}), func(r Result) {
			results.Store(i, r)
		})
	}
	batch.Wait()

	if done.Load() != 10 {
		t.Fatalf("handlers completed = %d, want 10", done.Load())
	}
	for i := 0; i < 10; i++ {
		v, ok := results.Load(i)
		if !ok {
			t.Fatalf("missing result for %d", i)
		}
		want := Succeeded
		if i%2 == 0 {
			want = Failed
		}
		if got := v.(Result).Outcome; got != want {
			t.Errorf("result %d = %s, want %s", i, got, want)
		}
	}

	if s := d.Stats(); s.Succeeded != 5 || s.Failed != 5 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestBatch_RunsConcurrently(t *testing.T) {
	batch := NewAsyncDispatcher(WithWorkers(2)).NewBatch()

	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	for i := 0; i < 2; i++ {
		batch.Dispatch(context.Background(), nil, HandlerFunc(func(context.Context, any) error {
			started.Done()
			<-release
			return nil
		}), nil)
	}

	ready := make(chan struct{})
	go func() {
		started.Wait()
		close(ready)
	}()

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("handlers did not run concurrently")
	}
	close(release)
	batch.Wait()
}

func TestBatch_PanicDoesNotEscape(t *testing.T) {
	batch := NewAsyncDispatcher().NewBatch()

	var got Result
	batch.Dispatch(context.Background(), nil, HandlerFunc(func(context.Context, any) error {
		panic("async boom")
	}), func(r Result) { got = r })
	batch.Wait()

	if got.Outcome != Panicked {
		t.Errorf("Outcome = %s, want panicked", got.Outcome)
	}
}

func TestBatch_StartsInDispatchOrder(t *testing.T) {
	for run := 0; run < 50; run++ {
		batch := NewAsyncDispatcher(WithWorkers(4)).NewBatch()

		var mu sync.Mutex
		var order []int
		for i := 0; i < 8; i++ {
			batch.Dispatch(context.Background(), i, HandlerFunc(func(_ context.Context, event any) error {
				mu.Lock()
				order = append(order, event.(int))
				mu.Unlock()
				return nil
			}), nil)
		}
		batch.Wait()

		for i, v := range order {
			if v != i {
				t.Fatalf("run %d: order = %v, want dispatch order", run, order)
			}
		}
	}
}

func TestBatch_SkippedHandlerDoesNotBlockDispatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := NewAsyncDispatcher().NewBatch()
	var got Result
	batch.Dispatch(ctx, nil, HandlerFunc(func(context.Context, any) error {
		return nil
	}), func(r Result) { got = r })
	batch.Wait()

	if got.Outcome != Skipped {
		t.Errorf("Outcome = %s, want skipped", got.Outcome)
	}
}
