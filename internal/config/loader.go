package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix prefixes every environment variable the loader reads.
const EnvPrefix = "SWITCHBOARD_"

// EnvConfigPath names the configuration file. It is read by the CLI, not
// mapped into Config.
const EnvConfigPath = EnvPrefix + "CONFIG"

type valueKind int

const (
	kindAuto valueKind = iota
	kindString
	kindList
)

type envVar struct {
	path string
	kind valueKind
}

// envMapping lists variables whose path cannot be derived from the name or
// whose value must not be type-guessed.
var envMapping = map[string]envVar{
	EnvPrefix + "HOST_VERSION": {"host_version", kindString},
	EnvPrefix + "LOG_LEVEL":    {"logging.level", kindString},
	EnvPrefix + "LOG_FORMAT":   {"logging.format", kindString},
	EnvPrefix + "LOG_FILE":     {"logging.file", kindString},
	EnvPrefix + "INVENTORY":    {"adapters.inventory", kindString},
	EnvPrefix + "SCRIPT_DIRS":  {"adapters.script_dirs", kindList},
	EnvPrefix + "ENABLED":      {"adapters.enabled", kindList},
}

// scannedSections may be set generically as SWITCHBOARD_<SECTION>_<KEY>.
var scannedSections = []string{"logging", "bus", "health", "notify"}

// DefaultPath returns the per-user configuration file path.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "switchboard", "config.toml")
}

// Load reads the configuration file at path, applies the process
// environment and validates the result. An empty path loads defaults and
// environment only.
func Load(path string) (*Config, error) {
	return LoadWith(path, os.Environ())
}

// LoadWith is Load with an explicit environment in os.Environ form.
func LoadWith(path string, environ []string) (*Config, error) {
	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		data = b
	}
	return load(path, data, environ)
}

// Parse parses TOML data with no environment applied.
func Parse(data []byte) (*Config, error) {
	return load("<data>", data, nil)
}

func load(source string, data []byte, environ []string) (*Config, error) {
	merged, err := parse(source, data)
	if err != nil {
		return nil, err
	}
	env, _ := EnvOverrides(environ)
	merged = DeepMerge(merged, env)

	cfg, err := decode(source, merged)
	if err != nil {
		return nil, err
	}
	cfg.ExpandPaths()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parse parses TOML data into a map.
func parse(source string, data []byte) (map[string]any, error) {
	config := make(map[string]any)
	if len(bytes.TrimSpace(data)) == 0 {
		return config, nil
	}
	if err := toml.Unmarshal(data, &config); err != nil {
		pe := &ParseError{Path: source, Message: err.Error(), Err: err}
		var de *toml.DecodeError
		if errors.As(err, &de) {
			pe.Line, pe.Column = de.Position()
		}
		return nil, pe
	}
	return config, nil
}

// decode applies the merged layers over the defaults. Unknown keys are
// rejected.
func decode(source string, merged map[string]any) (*Config, error) {
	cfg := Default()
	if len(merged) == 0 {
		return cfg, nil
	}
	data, err := toml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encoding merged config: %w", err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		msg := err.Error()
		var sme *toml.StrictMissingError
		if errors.As(err, &sme) {
			keys := make([]string, 0, len(sme.Errors))
			for _, e := range sme.Errors {
				keys = append(keys, strings.Join(e.Key(), "."))
			}
			msg = "unknown keys: " + strings.Join(keys, ", ")
		}
		return nil, &ParseError{Path: source, Message: msg, Err: err}
	}
	return cfg, nil
}

// EnvOverrides converts SWITCHBOARD_* variables into a configuration map.
// Variables that map to no known setting are returned as ignored.
func EnvOverrides(environ []string) (map[string]any, []string) {
	config := make(map[string]any)
	var ignored []string
	known := knownKeys()

	for _, kv := range environ {
		name, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(name, EnvPrefix) || name == EnvConfigPath {
			continue
		}

		if v, ok := envMapping[name]; ok {
			setByPath(config, v.path, parseValue(value, v.kind))
			continue
		}

		path, ok := envToPath(name, known)
		if !ok {
			ignored = append(ignored, name)
			continue
		}
		setByPath(config, path, parseValue(value, kindAuto))
	}

	sort.Strings(ignored)
	return config, ignored
}

// envToPath converts SWITCHBOARD_BUS_ASYNC_WORKERS to bus.async_workers.
func envToPath(name string, known map[string]map[string]bool) (string, bool) {
	rest := strings.ToLower(strings.TrimPrefix(name, EnvPrefix))
	section, key, ok := strings.Cut(rest, "_")
	if !ok {
		return "", false
	}
	if !known[section][key] {
		return "", false
	}
	return section + "." + key, true
}

// knownKeys lists the settings of each scanned section.
func knownKeys() map[string]map[string]bool {
	data, err := toml.Marshal(Default())
	if err != nil {
		return nil
	}
	var defaults map[string]any
	if err := toml.Unmarshal(data, &defaults); err != nil {
		return nil
	}
	known := make(map[string]map[string]bool, len(scannedSections))
	for _, s := range scannedSections {
		keys := make(map[string]bool)
		if m, ok := defaults[s].(map[string]any); ok {
			for k := range m {
				keys[k] = true
			}
		}
		known[s] = keys
	}
	return known
}

// parseValue converts an environment string to the type its setting needs.
// Durations stay strings and are parsed by Duration.
func parseValue(s string, kind valueKind) any {
	switch kind {
	case kindString:
		return s
	case kindList:
		var out []any
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		if out == nil {
			return []any{}
		}
		return out
	}

	if s == "" {
		return s
	}
	switch strings.ToLower(s) {
	case "true", "yes", "on":
		return true
	case "false", "no", "off":
		return false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if strings.Contains(s, ".") {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	}
	if strings.HasPrefix(s, "[") || strings.HasPrefix(s, "{") {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err == nil {
			return v
		}
	}
	return s
}

// setByPath sets a value in a nested map using a dot-separated path.
func setByPath(data map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	current := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			next = make(map[string]any)
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

// DeepMerge recursively merges src into dst.
// Values in src override values in dst.
// Maps are merged recursively; other types are replaced.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any)
	}
	for key, srcVal := range src {
		srcMap, srcIsMap := srcVal.(map[string]any)
		dstMap, dstIsMap := dst[key].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[key] = DeepMerge(dstMap, srcMap)
		} else {
			dst[key] = srcVal
		}
	}
	return dst
}
