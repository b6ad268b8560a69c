package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tidwall/gjson"
)

// executeCommand runs the root command with args and returns captured output.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand(BuildInfo{Version: "1.2.3", Commit: "abc123"})
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func quietConfig(t *testing.T, extra string) string {
	t.Helper()
	return writeFile(t, t.TempDir(), "config.toml", "[logging]\nlevel = \"error\"\nfile = \""+
		filepath.ToSlash(filepath.Join(t.TempDir(), "switchboard.log"))+"\"\n"+extra)
}

const ticketsYAML = `
tickets:
  - key: OPS-1
    title: Rotate credentials
    status: open
  - key: OPS-2
    title: Renew certificates
    status: open
`

func TestRootCommand_Subcommands(t *testing.T) {
	root := NewRootCommand(BuildInfo{})
	want := map[string]bool{"run": false, "sync": false, "status": false, "adapters": false, "version": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("missing subcommand %q", name)
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "switchboard 1.2.3 (commit abc123, built unknown") {
		t.Errorf("output = %q", out)
	}
}

func TestAdaptersCommand(t *testing.T) {
	cfg := quietConfig(t, "[adapters]\nenabled = [\"cache\", \"journal\"]\n")

	out, err := executeCommand(t, "-c", cfg, "adapters")
	if err != nil {
		t.Fatalf("adapters failed: %v", err)
	}
	for _, want := range []string{"+ cache", "- search", "+ journal", "requires cache", "capabilities: ticket-search"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSyncCommand(t *testing.T) {
	cfg := quietConfig(t, "")
	tickets := writeFile(t, t.TempDir(), "tickets.yaml", ticketsYAML)

	out, err := executeCommand(t, "-c", cfg, "sync", tickets, "--query", "certificates")
	if err != nil {
		t.Fatalf("sync failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "synced 2 tickets") {
		t.Errorf("output = %q, want sync count", out)
	}
	if !strings.Contains(out, "OPS-2") || strings.Contains(out, "OPS-1\n") {
		t.Errorf("output = %q, want only OPS-2 matched", out)
	}
}

func TestSyncCommand_MissingFile(t *testing.T) {
	cfg := quietConfig(t, "")
	_, err := executeCommand(t, "-c", cfg, "sync", filepath.Join(t.TempDir(), "none.yaml"))
	if err == nil {
		t.Fatal("expected error for missing ticket file")
	}
}

func TestStatusCommand(t *testing.T) {
	cfg := quietConfig(t, "")

	out, err := executeCommand(t, "-c", cfg, "status")
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}
	for _, want := range []string{"ADAPTER", "cache", "search", "journal", "active", "healthy"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStatusCommand_JSON(t *testing.T) {
	cfg := quietConfig(t, "")

	out, err := executeCommand(t, "-c", cfg, "status", "--json")
	if err != nil {
		t.Fatalf("status failed: %v\n%s", err, out)
	}
	if !gjson.Valid(out) {
		t.Fatalf("invalid JSON:\n%s", out)
	}

	doc := gjson.Parse(out)
	if v := doc.Get("host_version").String(); v != "1.0.0" {
		t.Errorf("host_version = %q, want 1.0.0", v)
	}
	if n := doc.Get("adapters.#").Int(); n != 3 {
		t.Errorf("adapters = %d, want 3", n)
	}
	doc.Get("adapters").ForEach(func(_, a gjson.Result) bool {
		if a.Get("state").String() != "active" || !a.Get("available").Bool() {
			t.Errorf("adapter %s = %s, want active and available", a.Get("id"), a.Raw)
		}
		return true
	})
	if caps := doc.Get(`adapters.#(id=="search").capabilities`).String(); !strings.Contains(caps, "query-api") {
		t.Errorf("search capabilities = %s, want query-api", caps)
	}
	if doc.Get("events_published").Int() == 0 {
		t.Error("events_published should count lifecycle events")
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := writeFile(t, t.TempDir(), "config.toml", "[bus]\nasync_workers = 0\n")
	if _, err := executeCommand(t, "-c", cfg, "status"); err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestLogLevelFlagIsValidated(t *testing.T) {
	cfg := quietConfig(t, "")
	if _, err := executeCommand(t, "-c", cfg, "--log-level", "loud", "adapters"); err == nil {
		t.Fatal("expected error for invalid log level")
	}
}
