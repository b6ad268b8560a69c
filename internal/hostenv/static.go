package hostenv

import (
	"context"
	"sync"

	"github.com/dshills/switchboard/internal/capability"
)

// Static is an in-memory capability.Inspector. It is safe for concurrent
// use and can be replaced wholesale when the inventory changes.
type Static struct {
	mu          sync.RWMutex
	collab      map[string]capability.Collaborator
	hostVersion string
}

var _ capability.Inspector = (*Static)(nil)

// NewStatic creates an inspector serving inv. A nil inventory reports
// nothing installed.
func NewStatic(inv *Inventory) *Static {
	s := &Static{}
	s.Replace(inv)
	return s
}

// Replace swaps in a new inventory.
func (s *Static) Replace(inv *Inventory) {
	collab := make(map[string]capability.Collaborator)
	var version string
	if inv != nil {
		version = inv.Host.Version
		for _, c := range inv.Collaborators {
			collab[c.ID] = c.Capability()
		}
	}

	s.mu.Lock()
	s.collab = collab
	s.hostVersion = version
	s.mu.Unlock()
}

// Set adds or replaces one collaborator.
func (s *Static) Set(c capability.Collaborator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collab[c.ID] = c
}

// Remove drops a collaborator so it reports as not installed.
func (s *Static) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.collab, id)
}

// HostVersion returns the host version from the inventory, if any.
func (s *Static) HostVersion() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hostVersion
}

// Len returns the number of installed collaborators.
func (s *Static) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.collab)
}

// Inspect implements capability.Inspector. Collaborators without a version
// inherit the inventory's host version.
func (s *Static) Inspect(ctx context.Context, id string) (capability.Collaborator, bool, error) {
	if err := ctx.Err(); err != nil {
		return capability.Collaborator{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.collab[id]
	if !ok {
		return capability.Collaborator{}, false, nil
	}
	if c.Version == "" {
		c.Version = s.hostVersion
	}
	c.Capabilities = append(c.Capabilities[:0:0], c.Capabilities...)
	return c, true, nil
}
