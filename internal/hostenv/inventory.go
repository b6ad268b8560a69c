// Package hostenv describes the host environment collaborators run in.
// An inventory file lists the installed collaborators; Static serves it
// to the capability registry and Watcher keeps it current.
package hostenv

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/capability"
)

// ErrInvalidInventory is returned for inventory files that do not parse or
// contain duplicate or empty ids.
var ErrInvalidInventory = errors.New("invalid inventory")

// Inventory is the parsed host inventory file.
//
//	host:
//	  version: 2.0.0
//	collaborators:
//	  - id: cache
//	    enabled: true
//	    version: 2.0.0
//	    api: true
//	    capabilities:
//	      - name: warm-cache
type Inventory struct {
	Host          Host           `yaml:"host"`
	Collaborators []Collaborator `yaml:"collaborators"`
}

// Host describes the host application.
type Host struct {
	Version string `yaml:"version"`
}

// Collaborator is one inventory entry.
type Collaborator struct {
	ID      string `yaml:"id"`
	Enabled *bool  `yaml:"enabled"`
	Version string `yaml:"version"`
	API     *bool  `yaml:"api"`

	Capabilities []adapter.Capability `yaml:"capabilities"`
}

// LoadInventory reads and validates an inventory file.
func LoadInventory(path string) (*Inventory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read inventory: %w", err)
	}
	return ParseInventory(data)
}

// ParseInventory parses inventory YAML.
func ParseInventory(data []byte) (*Inventory, error) {
	var inv Inventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInventory, err)
	}
	if err := inv.Validate(); err != nil {
		return nil, err
	}
	return &inv, nil
}

// Validate checks ids are present and unique.
func (inv *Inventory) Validate() error {
	seen := make(map[string]bool, len(inv.Collaborators))
	for i, c := range inv.Collaborators {
		if c.ID == "" {
			return fmt.Errorf("%w: collaborator %d has no id", ErrInvalidInventory, i)
		}
		if seen[c.ID] {
			return fmt.Errorf("%w: duplicate collaborator %q", ErrInvalidInventory, c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}

// Capability converts the entry for the registry. Enabled and API default
// to true when omitted.
func (c Collaborator) Capability() capability.Collaborator {
	return capability.Collaborator{
		ID:           c.ID,
		Enabled:      c.Enabled == nil || *c.Enabled,
		Version:      c.Version,
		API:          c.API == nil || *c.API,
		Capabilities: append([]adapter.Capability(nil), c.Capabilities...),
	}
}
