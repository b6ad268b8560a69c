package adapter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/switchboard/internal/event/events"
)

// Capability describes something an adapter can do. Capabilities are used
// for negotiation only, never for dispatch.
type Capability struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
	Description string `yaml:"description,omitempty"`
}

// Metadata is the immutable self-description of an adapter.
type Metadata struct {
	// ID is the unique adapter identifier (e.g. "search").
	ID string

	// Name is the human-readable name.
	Name string

	// Version is the adapter's own semantic version.
	Version string

	// Description is a short summary.
	Description string

	// MinHostVersion and MaxHostVersion bound the compatible host versions
	// (inclusive). An empty bound imposes no constraint.
	MinHostVersion string
	MaxHostVersion string

	// Capabilities are the declared capabilities.
	Capabilities []Capability

	// Dependencies are ids of adapters that must be active first.
	Dependencies []string

	// Subscriptions are the event types delivered to HandleEvent while the
	// adapter is active.
	Subscriptions []events.Type

	// Priority orders activation among independent adapters and is used as
	// the subscription priority (higher first).
	Priority int
}

// idPattern validates adapter ids.
var idPattern = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)

// boundPattern validates host version bounds: dot-separated numeric components.
var boundPattern = regexp.MustCompile(`^\d+(\.\d+)*$`)

// Validate checks that the metadata is well formed.
func (m Metadata) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMetadata)
	}
	if !idPattern.MatchString(m.ID) {
		return fmt.Errorf("%w: id %q must be lowercase alphanumeric with hyphens", ErrInvalidMetadata, m.ID)
	}
	if m.Version == "" {
		return fmt.Errorf("%w: %s: version is required", ErrInvalidMetadata, m.ID)
	}
	if _, err := semver.StrictNewVersion(m.Version); err != nil {
		return fmt.Errorf("%w: %s: version %q: %v", ErrInvalidMetadata, m.ID, m.Version, err)
	}
	for _, b := range []string{m.MinHostVersion, m.MaxHostVersion} {
		if b != "" && !boundPattern.MatchString(b) {
			return fmt.Errorf("%w: %s: host version bound %q", ErrInvalidMetadata, m.ID, b)
		}
	}

	seen := make(map[string]bool, len(m.Dependencies))
	for _, dep := range m.Dependencies {
		if dep == m.ID {
			return fmt.Errorf("%w: %s depends on itself", ErrInvalidMetadata, m.ID)
		}
		if seen[dep] {
			return fmt.Errorf("%w: %s: duplicate dependency %q", ErrInvalidMetadata, m.ID, dep)
		}
		seen[dep] = true
	}

	for _, c := range m.Capabilities {
		if strings.TrimSpace(c.Name) == "" {
			return fmt.Errorf("%w: %s: capability without a name", ErrInvalidMetadata, m.ID)
		}
	}

	for _, t := range m.Subscriptions {
		if !t.IsKnown() {
			return fmt.Errorf("%w: %s: unknown event type %q", ErrInvalidMetadata, m.ID, t)
		}
	}
	return nil
}

// DisplayName returns Name, or ID when Name is empty.
func (m Metadata) DisplayName() string {
	if m.Name == "" {
		return m.ID
	}
	return m.Name
}

// HasCapability reports whether name is declared.
func (m Metadata) HasCapability(name string) bool {
	for _, c := range m.Capabilities {
		if c.Name == name {
			return true
		}
	}
	return false
}

// CapabilityNames returns the declared capability names.
func (m Metadata) CapabilityNames() []string {
	names := make([]string, 0, len(m.Capabilities))
	for _, c := range m.Capabilities {
		names = append(names, c.Name)
	}
	return names
}

// String returns a string representation of the metadata.
func (m Metadata) String() string {
	return fmt.Sprintf("%s v%s", m.DisplayName(), m.Version)
}

// Clone returns a deep copy of the metadata.
func (m Metadata) Clone() Metadata {
	clone := m
	if m.Capabilities != nil {
		clone.Capabilities = append([]Capability(nil), m.Capabilities...)
	}
	if m.Dependencies != nil {
		clone.Dependencies = append([]string(nil), m.Dependencies...)
	}
	if m.Subscriptions != nil {
		clone.Subscriptions = append([]events.Type(nil), m.Subscriptions...)
	}
	return clone
}
