package notify

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/dshills/switchboard/internal/logging"
)

type recordingSink struct {
	notices []Notice
	err     error
}

func (r *recordingSink) Notify(ctx context.Context, n Notice) error {
	r.notices = append(r.notices, n)
	return r.err
}

func TestDeliver_SwallowsFailures(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Options{Writer: &buf})
	ctx := context.Background()

	Deliver(ctx, &recordingSink{err: errors.New("toast unavailable")}, Notice{Message: "hi"}, logger)
	if !strings.Contains(buf.String(), "toast unavailable") {
		t.Errorf("failure not logged: %q", buf.String())
	}

	Deliver(ctx, SinkFunc(func(ctx context.Context, n Notice) error { panic("sink bug") }), Notice{}, logger)
	if !strings.Contains(buf.String(), "sink bug") {
		t.Errorf("panic not logged: %q", buf.String())
	}

	Deliver(ctx, nil, Notice{}, logger)
}

func TestDeliver_StampsTime(t *testing.T) {
	sink := &recordingSink{}
	Deliver(context.Background(), sink, Notice{Message: "x"}, nil)
	if len(sink.notices) != 1 || sink.notices[0].At.IsZero() {
		t.Errorf("notices = %+v", sink.notices)
	}
}

func TestLogSink(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := logging.New(logging.Options{Writer: &buf})
	s := NewLogSink(logger)

	_ = s.Notify(context.Background(), Notice{Level: LevelError, AdapterID: "cache", Message: "adapter failed"})
	out := buf.String()
	for _, want := range []string{`"level":"ERROR"`, `"adapter_id":"cache"`, `"component":"notify"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestThrottled(t *testing.T) {
	inner := &recordingSink{}
	th := NewThrottled(inner, 0.001, 2)
	ctx := context.Background()

	var dropped int
	for i := 0; i < 5; i++ {
		if err := th.Notify(ctx, Notice{Message: "activated"}); errors.Is(err, ErrDropped) {
			dropped++
		}
	}
	if len(inner.notices) != 2 || dropped != 3 {
		t.Errorf("delivered %d, dropped %d; want 2 and 3", len(inner.notices), dropped)
	}

	if err := th.Notify(ctx, Notice{Level: LevelError, Message: "failed"}); err != nil {
		t.Errorf("error notice throttled: %v", err)
	}
}

func TestMulti(t *testing.T) {
	a := &recordingSink{err: errors.New("a failed")}
	b := &recordingSink{}
	m := Multi{a, nil, b, NewThrottled(Nop{}, 0.001, 1)}

	err := m.Notify(context.Background(), Notice{Message: "x"})
	if err == nil || !strings.Contains(err.Error(), "a failed") {
		t.Errorf("err = %v", err)
	}
	if len(b.notices) != 1 {
		t.Error("later sinks must still be called")
	}
}

func TestLevel_String(t *testing.T) {
	if LevelInfo.String() != "info" || LevelWarning.String() != "warning" || LevelError.String() != "error" {
		t.Error("unexpected level names")
	}
}
