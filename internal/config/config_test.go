package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
	if cfg.Bus.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %d, want 3", cfg.Bus.FailureThreshold)
	}
	if cfg.Health.Interval.Std() != time.Minute {
		t.Errorf("Interval = %v, want 1m", cfg.Health.Interval.Std())
	}
}

func TestLoadWith_File(t *testing.T) {
	path := writeConfig(t, `
host_version = "2.1.0"

[logging]
level = "debug"
format = "text"

[bus]
async_workers = 4
request_timeout = "250ms"

[health]
interval = "30s"
auto_recover = true

[adapters]
enabled = ["cache", "search"]
inventory = "/etc/switchboard/inventory.yaml"

[adapters.settings.search]
max_results = 20

[notify]
rate = 0.5
burst = 2
`)

	cfg, err := LoadWith(path, nil)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}

	if cfg.HostVersion != "2.1.0" {
		t.Errorf("HostVersion = %q", cfg.HostVersion)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "text" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Bus.AsyncWorkers != 4 {
		t.Errorf("AsyncWorkers = %d, want 4", cfg.Bus.AsyncWorkers)
	}
	if cfg.Bus.RequestTimeout.Std() != 250*time.Millisecond {
		t.Errorf("RequestTimeout = %v", cfg.Bus.RequestTimeout.Std())
	}
	if cfg.Bus.FailureThreshold != 3 {
		t.Errorf("unset FailureThreshold = %d, want default 3", cfg.Bus.FailureThreshold)
	}
	if !cfg.Health.AutoRecover || cfg.Health.Interval.Std() != 30*time.Second {
		t.Errorf("Health = %+v", cfg.Health)
	}
	if !reflect.DeepEqual(cfg.Adapters.Enabled, []string{"cache", "search"}) {
		t.Errorf("Enabled = %v", cfg.Adapters.Enabled)
	}
	if got := cfg.SettingsFor("search")["max_results"]; got != int64(20) {
		t.Errorf("max_results = %#v, want 20", got)
	}
	if len(cfg.SettingsFor("journal")) != 0 {
		t.Error("missing settings should be empty")
	}
	if cfg.Notify.Rate != 0.5 || cfg.Notify.Burst != 2 {
		t.Errorf("Notify = %+v", cfg.Notify)
	}
	if !cfg.IsEnabled("cache") || cfg.IsEnabled("journal") {
		t.Error("IsEnabled does not follow adapters.enabled")
	}
}

func TestLoadWith_EnvOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "debug"

[bus]
async_workers = 4
`)

	env := []string{
		"SWITCHBOARD_LOG_LEVEL=warn",
		"SWITCHBOARD_BUS_ASYNC_WORKERS=8",
		"SWITCHBOARD_HEALTH_AUTO_RECOVER=true",
		"SWITCHBOARD_HEALTH_INTERVAL=5s",
		"SWITCHBOARD_HOST_VERSION=3.0",
		"SWITCHBOARD_ENABLED=cache, journal",
		"SWITCHBOARD_CONFIG=/ignored.toml",
		"HOME=/root",
	}

	cfg, err := LoadWith(path, env)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Bus.AsyncWorkers != 8 {
		t.Errorf("AsyncWorkers = %d, want 8", cfg.Bus.AsyncWorkers)
	}
	if !cfg.Health.AutoRecover {
		t.Error("AutoRecover should be set from the environment")
	}
	if cfg.Health.Interval.Std() != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", cfg.Health.Interval.Std())
	}
	if cfg.HostVersion != "3.0" {
		t.Errorf("HostVersion = %q, want 3.0", cfg.HostVersion)
	}
	if !reflect.DeepEqual(cfg.Adapters.Enabled, []string{"cache", "journal"}) {
		t.Errorf("Enabled = %v", cfg.Adapters.Enabled)
	}
}

func TestEnvOverrides_IgnoresUnknown(t *testing.T) {
	m, ignored := EnvOverrides([]string{
		"SWITCHBOARD_BUS_FAILURE_THRESHOLD=5",
		"SWITCHBOARD_BUS_NOPE=1",
		"SWITCHBOARD_WIDGETS_COUNT=2",
		"SWITCHBOARD_CONFIG=x",
		"PATH=/bin",
	})

	bus, _ := m["bus"].(map[string]any)
	if bus["failure_threshold"] != int64(5) {
		t.Errorf("failure_threshold = %#v, want 5", bus["failure_threshold"])
	}
	want := []string{"SWITCHBOARD_BUS_NOPE", "SWITCHBOARD_WIDGETS_COUNT"}
	if !reflect.DeepEqual(ignored, want) {
		t.Errorf("ignored = %v, want %v", ignored, want)
	}
}

func TestLoadWith_EmptyPath(t *testing.T) {
	cfg, err := LoadWith("", nil)
	if err != nil {
		t.Fatalf("LoadWith failed: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("empty load = %+v, want defaults", cfg)
	}
}

func TestLoadWith_MissingFile(t *testing.T) {
	_, err := LoadWith(filepath.Join(t.TempDir(), "nope.toml"), nil)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("error = %v, want ErrNotExist", err)
	}
}

func TestParse_Errors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		_, err := Parse([]byte("[bus\nasync_workers = 2"))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, want ParseError", err)
		}
		if pe.Line == 0 {
			t.Error("expected a line number")
		}
	})

	t.Run("unknown key", func(t *testing.T) {
		_, err := Parse([]byte("[bus]\nworkers = 2\n"))
		var pe *ParseError
		if !errors.As(err, &pe) {
			t.Fatalf("error = %v, want ParseError", err)
		}
		if !strings.Contains(pe.Message, "bus.workers") {
			t.Errorf("Message = %q, want it to name bus.workers", pe.Message)
		}
	})

	t.Run("bad duration", func(t *testing.T) {
		if _, err := Parse([]byte("[health]\ninterval = \"soon\"\n")); err == nil {
			t.Error("expected error for bad duration")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{"host version", func(c *Config) { c.HostVersion = "v2" }, "host_version"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"threshold", func(c *Config) { c.Bus.FailureThreshold = 0 }, "bus.failure_threshold"},
		{"workers", func(c *Config) { c.Bus.AsyncWorkers = 0 }, "bus.async_workers"},
		{"request timeout", func(c *Config) { c.Bus.RequestTimeout = 0 }, "bus.request_timeout"},
		{"interval", func(c *Config) { c.Health.Interval = 0 }, "health.interval"},
		{"attempts", func(c *Config) { c.Health.RecoveryAttempts = 0 }, "health.recovery_attempts"},
		{"enabled", func(c *Config) { c.Adapters.Enabled = []string{" "} }, "adapters.enabled[0]"},
		{"burst", func(c *Config) { c.Notify.Burst = 0 }, "notify.burst"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("Validate() = %v, want ErrInvalidConfig", err)
			}
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Path != tt.path {
				t.Errorf("field error = %v, want path %s", err, tt.path)
			}
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Default()
	cfg.Bus.AsyncWorkers = 0
	cfg.Health.Interval = 0

	err := cfg.Validate()
	msg := err.Error()
	if !strings.Contains(msg, "bus.async_workers") || !strings.Contains(msg, "health.interval") {
		t.Errorf("Validate() = %q, want both fields reported", msg)
	}
}

func TestExpandPaths(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	t.Setenv("SB_TEST_DIR", "/opt/adapters")

	cfg := Default()
	cfg.Adapters.ScriptDirs = []string{"~/scripts", "$SB_TEST_DIR/lua"}
	cfg.Adapters.Inventory = "~"
	cfg.ExpandPaths()

	if cfg.Adapters.ScriptDirs[0] != filepath.Join(home, "scripts") {
		t.Errorf("ScriptDirs[0] = %q", cfg.Adapters.ScriptDirs[0])
	}
	if cfg.Adapters.ScriptDirs[1] != "/opt/adapters/lua" {
		t.Errorf("ScriptDirs[1] = %q", cfg.Adapters.ScriptDirs[1])
	}
	if cfg.Adapters.Inventory != home {
		t.Errorf("Inventory = %q, want %q", cfg.Adapters.Inventory, home)
	}
}
