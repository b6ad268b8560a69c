package lua

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event/events"
)

// ManifestFile is the manifest file name inside an adapter directory.
const ManifestFile = "adapter.yaml"

// DefaultMain is the script run when the manifest names none.
const DefaultMain = "init.lua"

// Manifest describes a scripted adapter.
type Manifest struct {
	ID             string               `yaml:"id"`
	Name           string               `yaml:"name,omitempty"`
	Version        string               `yaml:"version"`
	Description    string               `yaml:"description,omitempty"`
	MinHostVersion string               `yaml:"min_host_version,omitempty"`
	MaxHostVersion string               `yaml:"max_host_version,omitempty"`
	Capabilities   []adapter.Capability `yaml:"capabilities,omitempty"`
	Dependencies   []string             `yaml:"dependencies,omitempty"`
	Subscriptions  []events.Type        `yaml:"subscriptions,omitempty"`
	Priority       int                  `yaml:"priority,omitempty"`
	Main           string               `yaml:"main,omitempty"`

	// Settings are defaults merged under the configured settings.
	Settings map[string]any `yaml:"settings,omitempty"`

	dir string
}

// LoadManifest reads and validates the manifest in dir.
func LoadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", dir, err)
	}
	m.dir = dir
	if m.Main == "" {
		m.Main = DefaultMain
	}

	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", dir, err)
	}
	return &m, nil
}

// Validate checks the manifest fields and the adapter metadata they produce.
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return ErrMissingID
	}
	if m.Version == "" {
		return ErrMissingVersion
	}
	if filepath.Ext(m.Main) != ".lua" || filepath.IsAbs(m.Main) || !filepath.IsLocal(m.Main) {
		return fmt.Errorf("%w: %s", ErrInvalidMain, m.Main)
	}
	return m.Metadata().Validate()
}

// Metadata converts the manifest to adapter metadata.
func (m *Manifest) Metadata() adapter.Metadata {
	return adapter.Metadata{
		ID:             m.ID,
		Name:           m.Name,
		Version:        m.Version,
		Description:    m.Description,
		MinHostVersion: m.MinHostVersion,
		MaxHostVersion: m.MaxHostVersion,
		Capabilities:   m.Capabilities,
		Dependencies:   m.Dependencies,
		Subscriptions:  m.Subscriptions,
		Priority:       m.Priority,
	}.Clone()
}

// Dir returns the adapter directory.
func (m *Manifest) Dir() string {
	return m.dir
}

// MainPath returns the path of the main script.
func (m *Manifest) MainPath() string {
	return filepath.Join(m.dir, m.Main)
}
