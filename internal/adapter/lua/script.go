package lua

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/logging"
	"github.com/dshills/switchboard/internal/ticket"
)

// Script hook names.
const (
	fnInitialize    = "initialize"
	fnActivate      = "activate"
	fnDeactivate    = "deactivate"
	fnCleanup       = "cleanup"
	fnHealth        = "health"
	fnHandle        = "handle"
	fnTicketsSynced = "on_tickets_synced"
	fnTicketUpdated = "on_ticket_updated"
	fnTicketDeleted = "on_ticket_deleted"
)

// apiTable is the global through which scripts reach the host.
const apiTable = "switchboard"

// Adapter runs a Lua script as an adapter.
type Adapter struct {
	manifest *Manifest
	opts     []StateOption

	mu       sync.Mutex
	state    *State
	actx     adapter.Context
	settings map[string]any
	logger   *logging.Logger
}

var (
	_ adapter.Adapter           = (*Adapter)(nil)
	_ adapter.TicketsSyncedHook = (*Adapter)(nil)
	_ adapter.TicketUpdatedHook = (*Adapter)(nil)
	_ adapter.TicketDeletedHook = (*Adapter)(nil)
)

// New creates a scripted adapter from m. The script is not loaded until
// Initialize.
func New(m *Manifest, opts ...StateOption) *Adapter {
	return &Adapter{
		manifest: m,
		opts:     opts,
		logger:   logging.NopLogger(),
	}
}

// Metadata implements adapter.Adapter.
func (a *Adapter) Metadata() adapter.Metadata {
	return a.manifest.Metadata()
}

// Initialize creates the interpreter, installs the host API, runs the main
// script and calls initialize(settings).
func (a *Adapter) Initialize(ctx context.Context, actx adapter.Context) error {
	settings := make(map[string]any, len(a.manifest.Settings)+len(actx.Settings))
	maps.Copy(settings, a.manifest.Settings)
	maps.Copy(settings, actx.Settings)

	state := NewState(a.opts...)

	a.mu.Lock()
	a.actx = actx
	a.settings = settings
	a.logger = logging.OrNop(actx.Logger)
	a.state = state
	a.mu.Unlock()

	a.installAPI(state)

	err := a.collect(ctx, func(ctx context.Context) error {
		return state.DoFile(ctx, a.manifest.MainPath())
	})
	if err != nil {
		state.Close()
		return fmt.Errorf("load %s: %w", a.manifest.MainPath(), err)
	}

	return a.call(ctx, fnInitialize, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{NewBridge(L).ToLua(settings)}
	})
}

// Activate implements adapter.Adapter.
func (a *Adapter) Activate(ctx context.Context) error {
	return a.call(ctx, fnActivate, nil)
}

// Deactivate implements adapter.Adapter.
func (a *Adapter) Deactivate(ctx context.Context) error {
	return a.call(ctx, fnDeactivate, nil)
}

// Cleanup calls cleanup() and closes the interpreter.
func (a *Adapter) Cleanup(ctx context.Context) error {
	err := a.call(ctx, fnCleanup, nil)

	a.mu.Lock()
	state := a.state
	a.mu.Unlock()
	if state != nil {
		state.Close()
	}
	return err
}

// HealthCheck calls health().
func (a *Adapter) HealthCheck(ctx context.Context) error {
	return a.call(ctx, fnHealth, nil)
}

// HandleEvent calls handle(event) with the event converted to a table.
func (a *Adapter) HandleEvent(ctx context.Context, e event.Event) error {
	return a.call(ctx, fnHandle, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{eventTable(NewBridge(L), e)}
	})
}

// OnTicketsSynced implements adapter.TicketsSyncedHook.
func (a *Adapter) OnTicketsSynced(ctx context.Context, tickets []ticket.Ticket) error {
	return a.call(ctx, fnTicketsSynced, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{NewBridge(L).ToLua(tickets)}
	})
}

// OnTicketUpdated implements adapter.TicketUpdatedHook.
func (a *Adapter) OnTicketUpdated(ctx context.Context, t ticket.Ticket) error {
	return a.call(ctx, fnTicketUpdated, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{NewBridge(L).ToLua(t)}
	})
}

// OnTicketDeleted implements adapter.TicketDeletedHook.
func (a *Adapter) OnTicketDeleted(ctx context.Context, key string) error {
	return a.call(ctx, fnTicketDeleted, func(L *lua.LState) []lua.LValue {
		return []lua.LValue{lua.LString(key)}
	})
}

// call runs the named hook if the script defines it.
func (a *Adapter) call(ctx context.Context, name string, args func(L *lua.LState) []lua.LValue) error {
	a.mu.Lock()
	state := a.state
	a.mu.Unlock()

	if state == nil {
		return nil
	}

	return a.collect(ctx, func(ctx context.Context) error {
		results, err := state.Call(ctx, name, args)
		if errors.Is(err, ErrNoFunction) {
			return nil
		}
		if err != nil {
			return err
		}
		return resultError(name, results)
	})
}

// outbox holds bus sends a script made during one interpreter call. They
// go out once the state lock is released, so handlers that call back into
// this adapter do not wait on the call that triggered them.
type outbox struct {
	sends []func(context.Context) error
}

type outboxKey struct{}

// collect runs fn with an outbox on its context, then performs the queued
// sends in order. Send failures are logged and returned with fn's error.
func (a *Adapter) collect(ctx context.Context, fn func(context.Context) error) error {
	ob := &outbox{}
	err := fn(context.WithValue(ctx, outboxKey{}, ob))

	var sendErrs []error
	for _, send := range ob.sends {
		if serr := send(ctx); serr != nil {
			a.logger.Warn("script send failed", "error", serr)
			sendErrs = append(sendErrs, serr)
		}
	}
	if len(sendErrs) == 0 {
		return err
	}
	return errors.Join(append([]error{err}, sendErrs...)...)
}

// enqueue queues fn on the running call's outbox. Outside a call it runs fn
// directly.
func (a *Adapter) enqueue(L *lua.LState, fn func(context.Context) error) {
	ctx := L.Context()
	if ctx != nil {
		if ob, ok := ctx.Value(outboxKey{}).(*outbox); ok {
			ob.sends = append(ob.sends, fn)
			return
		}
	} else {
		ctx = context.Background()
	}
	if err := fn(ctx); err != nil {
		a.logger.Warn("script send failed", "error", err)
	}
}

// resultError interprets hook return values: false, or nil followed by a
// message, is a failure.
func resultError(name string, results []lua.LValue) error {
	if len(results) == 0 {
		return nil
	}

	first := results[0]
	if first != lua.LNil && first != lua.LFalse {
		return nil
	}
	if first == lua.LNil && len(results) == 1 {
		return nil
	}

	msg := "failed"
	if len(results) > 1 {
		if s, ok := results[1].(lua.LString); ok {
			msg = string(s)
		}
	}
	return fmt.Errorf("%w: %s: %s", ErrScriptFailed, name, msg)
}

// eventTable converts an event to the table passed to handle().
func eventTable(b *Bridge, e event.Event) *lua.LTable {
	t := b.L.CreateTable(0, 6)
	t.RawSetString("id", lua.LString(e.ID))
	t.RawSetString("type", lua.LString(e.Type))
	t.RawSetString("source", lua.LString(e.SourceID))
	t.RawSetString("correlation_id", lua.LString(e.CorrelationID))
	t.RawSetString("timestamp", b.ToLua(e.Timestamp))
	t.RawSetString("payload", b.ToLua(e.Payload))
	return t
}

// installAPI registers the switchboard table and routes print to the
// adapter logger.
func (a *Adapter) installAPI(state *State) {
	state.Register(apiTable, map[string]lua.LGFunction{
		"log":      a.luaLog,
		"publish":  a.luaPublish,
		"announce": a.luaAnnounce,
		"respond":  a.luaRespond,
		"setting":  a.luaSetting,
	})
	state.SetGlobalFunc("print", func(L *lua.LState) int {
		parts := make([]any, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		a.logger.Info(fmt.Sprint(parts...), "source", "print")
		return 0
	})
}

func (a *Adapter) context() adapter.Context {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.actx
}

// switchboard.log(level, message)
func (a *Adapter) luaLog(L *lua.LState) int {
	level := L.CheckString(1)
	msg := L.CheckString(2)

	switch level {
	case "debug":
		a.logger.Debug(msg)
	case "warn":
		a.logger.Warn(msg)
	case "error":
		a.logger.Error(msg)
	default:
		a.logger.Info(msg)
	}
	return 0
}

// switchboard.publish(type, payload) -> ok, err
//
// The event is sent after the current hook returns. Only the type is
// checked here.
func (a *Adapter) luaPublish(L *lua.LState) int {
	t := events.Type(L.CheckString(1))
	payload := NewBridge(L).ToGo(L.Get(2))

	if !t.IsKnown() {
		L.Push(lua.LFalse)
		L.Push(lua.LString(fmt.Sprintf("%v: %q", event.ErrUnknownEventType, t)))
		return 2
	}
	actx := a.context()
	a.enqueue(L, func(ctx context.Context) error {
		return actx.Publish(ctx, t, payload)
	})
	L.Push(lua.LTrue)
	return 1
}

// switchboard.announce(name, version, description)
func (a *Adapter) luaAnnounce(L *lua.LState) int {
	payload := events.CapabilityPayload{
		AdapterID:   a.manifest.ID,
		Capability:  L.CheckString(1),
		Version:     L.OptString(2, ""),
		Description: L.OptString(3, ""),
	}

	actx := a.context()
	a.enqueue(L, func(ctx context.Context) error {
		return actx.Publish(ctx, events.CapabilityAnnounced, payload)
	})
	return 0
}

// switchboard.respond(request_id, data [, error_message])
func (a *Adapter) luaRespond(L *lua.LState) int {
	requestID := L.CheckString(1)
	data := NewBridge(L).ToGo(L.Get(2))

	var respErr error
	if msg := L.OptString(3, ""); msg != "" {
		respErr = errors.New(msg)
	}

	actx := a.context()
	if actx.Bus == nil {
		L.RaiseError("respond: no bus")
		return 0
	}
	a.enqueue(L, func(ctx context.Context) error {
		return actx.Bus.Respond(ctx, requestID, data, respErr, event.WithSource(a.manifest.ID))
	})
	return 0
}

// switchboard.setting(key) -> value
func (a *Adapter) luaSetting(L *lua.LState) int {
	key := L.CheckString(1)

	a.mu.Lock()
	v := a.settings[key]
	a.mu.Unlock()

	L.Push(NewBridge(L).ToLua(v))
	return 1
}
