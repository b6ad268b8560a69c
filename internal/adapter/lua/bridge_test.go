package lua

import (
	"testing"
	"time"

	glua "github.com/yuin/gopher-lua"

	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/ticket"
)

func TestBridgeToGo(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	b := NewBridge(L)

	if err := L.DoString(`
		arr = {"a", "b", "c"}
		obj = {name = "x", count = 3, ratio = 0.5, nested = {ok = true}}
		cyc = {}
		cyc.self = cyc
	`); err != nil {
		t.Fatal(err)
	}

	arr, ok := b.ToGo(L.GetGlobal("arr")).([]any)
	if !ok || len(arr) != 3 || arr[0] != "a" {
		t.Errorf("arr = %#v", b.ToGo(L.GetGlobal("arr")))
	}

	obj, ok := b.ToGo(L.GetGlobal("obj")).(map[string]any)
	if !ok {
		t.Fatalf("obj = %#v", b.ToGo(L.GetGlobal("obj")))
	}
	if obj["name"] != "x" || obj["count"] != int64(3) || obj["ratio"] != 0.5 {
		t.Errorf("obj = %#v", obj)
	}
	if nested, _ := obj["nested"].(map[string]any); nested["ok"] != true {
		t.Errorf("nested = %#v", obj["nested"])
	}

	cyc, ok := b.ToGo(L.GetGlobal("cyc")).(map[string]any)
	if !ok || cyc["self"] != nil {
		t.Errorf("cyclic table = %#v", cyc)
	}
}

func TestBridgeToLuaStruct(t *testing.T) {
	L := glua.NewState()
	defer L.Close()
	b := NewBridge(L)

	tk := ticket.Ticket{
		Key:     "OPS-1",
		Title:   "Disk full",
		Labels:  []string{"urgent"},
		Updated: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	L.SetGlobal("t", b.ToLua(tk))
	if err := L.DoString(`
		key = t.key
		label = t.labels[1]
		updated = t.updated
	`); err != nil {
		t.Fatal(err)
	}

	if got := L.GetGlobal("key").String(); got != "OPS-1" {
		t.Errorf("key = %q", got)
	}
	if got := L.GetGlobal("label").String(); got != "urgent" {
		t.Errorf("label = %q", got)
	}
	if got := L.GetGlobal("updated").String(); got != "2024-01-02T03:04:05Z" {
		t.Errorf("updated = %q", got)
	}

	L.SetGlobal("p", b.ToLua(events.CapabilityPayload{AdapterID: "search", Capability: "query-api"}))
	if err := L.DoString(`id = p.adapter_id`); err != nil {
		t.Fatal(err)
	}
	if got := L.GetGlobal("id").String(); got != "search" {
		t.Errorf("adapter_id = %q", got)
	}
}

func TestSnakeCase(t *testing.T) {
	tests := map[string]string{
		"AdapterID":     "adapter_id",
		"RequestID":     "request_id",
		"Key":           "key",
		"HTTPServer":    "http_server",
		"CorrelationID": "correlation_id",
	}
	for in, want := range tests {
		if got := snakeCase(in); got != want {
			t.Errorf("snakeCase(%q) = %q, want %q", in, got, want)
		}
	}
}
