package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dshills/switchboard/internal/logging"
)

// Duration is a time.Duration written as a string ("30s", "5m") in TOML.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete switchboard configuration.
type Config struct {
	// HostVersion is the version adapters are checked against.
	HostVersion string `toml:"host_version"`

	Logging  LoggingConfig  `toml:"logging"`
	Bus      BusConfig      `toml:"bus"`
	Health   HealthConfig   `toml:"health"`
	Adapters AdaptersConfig `toml:"adapters"`
	Notify   NotifyConfig   `toml:"notify"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// BusConfig configures the event bus.
type BusConfig struct {
	FailureThreshold int      `toml:"failure_threshold"`
	AsyncWorkers     int      `toml:"async_workers"`
	RequestTimeout   Duration `toml:"request_timeout"`

	// HandlerTimeout bounds each handler invocation. Zero means none.
	HandlerTimeout Duration `toml:"handler_timeout"`
}

// HealthConfig configures health supervision.
type HealthConfig struct {
	Interval         Duration `toml:"interval"`
	AutoRecover      bool     `toml:"auto_recover"`
	RecoveryAttempts int      `toml:"recovery_attempts"`
	RecoveryBackoff  Duration `toml:"recovery_backoff"`
}

// AdaptersConfig selects and configures adapters.
type AdaptersConfig struct {
	// Enabled lists the adapter ids to register. Empty means every adapter
	// in the table.
	Enabled []string `toml:"enabled"`

	// ScriptDirs are searched for Lua adapters.
	ScriptDirs []string `toml:"script_dirs"`

	// Inventory is the host inventory file. Empty means every declared
	// collaborator is assumed present.
	Inventory string `toml:"inventory"`

	// Settings are free-form per-adapter settings keyed by adapter id.
	Settings map[string]map[string]any `toml:"settings"`
}

// NotifyConfig throttles user-facing notices.
type NotifyConfig struct {
	// Rate is notices per second. Zero disables throttling.
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		HostVersion: "1.0.0",
		Logging: LoggingConfig{
			Level:  logging.LevelInfo,
			Format: logging.FormatJSON,
		},
		Bus: BusConfig{
			FailureThreshold: 3,
			AsyncWorkers:     16,
			RequestTimeout:   Duration(5 * time.Second),
		},
		Health: HealthConfig{
			Interval:         Duration(60 * time.Second),
			RecoveryAttempts: 3,
			RecoveryBackoff:  Duration(time.Second),
		},
		Notify: NotifyConfig{
			Rate:  2,
			Burst: 5,
		},
	}
}

// SettingsFor returns the settings of adapter id, never nil.
func (c *Config) SettingsFor(id string) map[string]any {
	if s, ok := c.Adapters.Settings[id]; ok && s != nil {
		return s
	}
	return map[string]any{}
}

// IsEnabled reports whether adapter id should be registered.
func (c *Config) IsEnabled(id string) bool {
	if len(c.Adapters.Enabled) == 0 {
		return true
	}
	for _, e := range c.Adapters.Enabled {
		if e == id {
			return true
		}
	}
	return false
}

// ExpandPaths expands a leading ~ and environment variables in every path
// setting.
func (c *Config) ExpandPaths() {
	c.Logging.File = expandPath(c.Logging.File)
	c.Adapters.Inventory = expandPath(c.Adapters.Inventory)
	for i, d := range c.Adapters.ScriptDirs {
		c.Adapters.ScriptDirs[i] = expandPath(d)
	}
}

func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if p == "~" || strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, strings.TrimPrefix(p, "~"))
		}
	}
	return p
}

var versionPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Validate checks every setting and returns all problems joined.
func (c *Config) Validate() error {
	var errs []error
	bad := func(path, format string, args ...any) {
		errs = append(errs, &FieldError{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if !versionPattern.MatchString(c.HostVersion) {
		bad("host_version", "%q is not a dotted numeric version", c.HostVersion)
	}

	if !logging.IsValidLevel(c.Logging.Level) {
		bad("logging.level", "must be one of %s", strings.Join(logging.ValidLevels(), ", "))
	}
	switch strings.ToLower(c.Logging.Format) {
	case logging.FormatJSON, logging.FormatText:
	default:
		bad("logging.format", "must be json or text")
	}

	if c.Bus.FailureThreshold < 1 {
		bad("bus.failure_threshold", "must be at least 1")
	}
	if c.Bus.AsyncWorkers < 1 {
		bad("bus.async_workers", "must be at least 1")
	}
	if c.Bus.RequestTimeout <= 0 {
		bad("bus.request_timeout", "must be positive")
	}
	if c.Bus.HandlerTimeout < 0 {
		bad("bus.handler_timeout", "must not be negative")
	}

	if c.Health.Interval <= 0 {
		bad("health.interval", "must be positive")
	}
	if c.Health.RecoveryAttempts < 1 {
		bad("health.recovery_attempts", "must be at least 1")
	}
	if c.Health.RecoveryBackoff < 0 {
		bad("health.recovery_backoff", "must not be negative")
	}

	for i, id := range c.Adapters.Enabled {
		if strings.TrimSpace(id) == "" {
			bad(fmt.Sprintf("adapters.enabled[%d]", i), "must not be empty")
		}
	}

	if c.Notify.Rate < 0 {
		bad("notify.rate", "must not be negative")
	}
	if c.Notify.Rate > 0 && c.Notify.Burst < 1 {
		bad("notify.burst", "must be at least 1 when rate is set")
	}

	return errors.Join(errs...)
}
