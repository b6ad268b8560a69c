package lua

import (
	"context"
	"errors"
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"
)

func TestStateDoString(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(context.Background(), `x = 1 + 1`); err != nil {
		t.Fatalf("DoString() error = %v", err)
	}

	num, ok := state.GetGlobal("x").(glua.LNumber)
	if !ok || float64(num) != 2 {
		t.Errorf("x = %v, want 2", state.GetGlobal("x"))
	}
}

func TestStateSyntaxError(t *testing.T) {
	state := NewState()
	defer state.Close()

	if err := state.DoString(context.Background(), `invalid lua code !!!`); err == nil {
		t.Error("expected syntax error")
	}
}

func TestStateSandbox(t *testing.T) {
	state := NewState()
	defer state.Close()

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "io", "os", "debug"} {
		if v := state.GetGlobal(name); v != glua.LNil {
			t.Errorf("global %q should be nil, got %s", name, v.Type())
		}
	}
	for _, name := range []string{"string", "table", "math", "pairs"} {
		if v := state.GetGlobal(name); v == glua.LNil {
			t.Errorf("global %q should be available", name)
		}
	}
}

func TestStateTimeout(t *testing.T) {
	state := NewState(WithExecutionTimeout(50 * time.Millisecond))
	defer state.Close()

	start := time.Now()
	err := state.DoString(context.Background(), `while true do end`)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took %v", elapsed)
	}

	// The state stays usable after a timeout.
	if err := state.DoString(context.Background(), `y = 3`); err != nil {
		t.Errorf("DoString after timeout: %v", err)
	}
}

func TestStateCall(t *testing.T) {
	state := NewState()
	defer state.Close()
	ctx := context.Background()

	if err := state.DoString(ctx, `
		function add(a, b) return a + b, "sum" end
		function nothing() end
		function fail() error("nope") end
	`); err != nil {
		t.Fatalf("DoString: %v", err)
	}

	results, err := state.Call(ctx, "add", func(L *glua.LState) []glua.LValue {
		return []glua.LValue{glua.LNumber(2), glua.LNumber(3)}
	})
	if err != nil {
		t.Fatalf("Call(add): %v", err)
	}
	if len(results) != 2 || results[0] != glua.LNumber(5) || results[1] != glua.LString("sum") {
		t.Errorf("Call(add) = %v", results)
	}

	results, err = state.Call(ctx, "nothing", nil)
	if err != nil || results == nil || len(results) != 0 {
		t.Errorf("Call(nothing) = %v, %v; want empty slice", results, err)
	}

	if _, err := state.Call(ctx, "fail", nil); err == nil {
		t.Error("Call(fail) should return the raised error")
	}

	if _, err := state.Call(ctx, "missing", nil); !errors.Is(err, ErrNoFunction) {
		t.Errorf("Call(missing) error = %v, want ErrNoFunction", err)
	}
	if !state.HasFunction("add") || state.HasFunction("missing") {
		t.Error("HasFunction mismatch")
	}
}

func TestStateClosed(t *testing.T) {
	state := NewState()
	state.Close()
	state.Close()

	if !state.IsClosed() {
		t.Error("IsClosed() = false after Close")
	}
	if err := state.DoString(context.Background(), `x = 1`); !errors.Is(err, ErrStateClosed) {
		t.Errorf("DoString after Close = %v, want ErrStateClosed", err)
	}
	if _, err := state.Call(context.Background(), "x", nil); !errors.Is(err, ErrStateClosed) {
		t.Errorf("Call after Close = %v, want ErrStateClosed", err)
	}
}
