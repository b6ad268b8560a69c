package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("creates log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "switchboard.log")

		logger, err := New(Options{Level: LevelDebug, File: path})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer logger.Close()

		if _, err := os.Stat(path); os.IsNotExist(err) {
			t.Errorf("log file was not created at %s", path)
		}
	})

	t.Run("writes to stderr by default", func(t *testing.T) {
		logger, err := New(Options{})
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if logger.file != nil {
			t.Error("expected file to be nil")
		}
	})
}

func TestLevelsFiltered(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: LevelWarn, Writer: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %q", len(lines), buf.String())
	}
}

func TestWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Level: LevelDebug, Writer: &buf})

	child := logger.WithComponent("bus").WithAdapter("search").With("attempt", 2)
	child.Info("hello", "key", "value")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log line: %v", err)
	}

	want := map[string]any{
		"component":  "bus",
		"adapter_id": "search",
		"key":        "value",
		"msg":        "hello",
	}
	for k, v := range want {
		if entry[k] != v {
			t.Errorf("entry[%q] = %v, want %v", k, entry[k], v)
		}
	}
	if entry["attempt"] != float64(2) {
		t.Errorf("entry[attempt] = %v, want 2", entry["attempt"])
	}
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(Options{Format: FormatText, Writer: &buf})
	logger.Info("plain")

	if !strings.Contains(buf.String(), "msg=plain") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}

func TestIsValidLevel(t *testing.T) {
	tests := map[string]bool{
		"debug": true,
		"INFO":  true,
		"Warn":  true,
		"error": true,
		"trace": false,
		"":      false,
	}
	for level, want := range tests {
		if got := IsValidLevel(level); got != want {
			t.Errorf("IsValidLevel(%q) = %v, want %v", level, got, want)
		}
	}
}

func TestNopLoggerAndOrNop(t *testing.T) {
	NopLogger().Error("discarded")
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	l := NopLogger()
	if OrNop(l) != l {
		t.Error("OrNop should return the given logger")
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
