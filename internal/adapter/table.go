package adapter

import (
	"fmt"
	"sync"
)

// Constructor builds a fresh adapter instance.
type Constructor func() (Adapter, error)

// Table is the static registry of adapter constructors, keyed by adapter
// id. It is populated at startup and consulted by id at orchestration time.
type Table struct {
	mu      sync.RWMutex
	entries map[string]Constructor
	order   []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]Constructor)}
}

// Register adds a constructor under id.
func (t *Table) Register(id string, ctor Constructor) error {
	if ctor == nil {
		return fmt.Errorf("%w: nil constructor for %q", ErrNilAdapter, id)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateConstructor, id)
	}
	t.entries[id] = ctor
	t.order = append(t.order, id)
	return nil
}

// Lookup returns the constructor registered under id.
func (t *Table) Lookup(id string) (Constructor, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ctor, ok := t.entries[id]
	return ctor, ok
}

// Build constructs the adapter registered under id and checks that the
// instance reports the same id.
func (t *Table) Build(id string) (Adapter, error) {
	ctor, ok := t.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAdapter, id)
	}

	a, err := ctor()
	if err != nil {
		return nil, fmt.Errorf("build adapter %s: %w", id, err)
	}
	if a == nil {
		return nil, fmt.Errorf("build adapter %s: %w", id, ErrNilAdapter)
	}
	if got := a.Metadata().ID; got != id {
		return nil, fmt.Errorf("%w: constructor for %q built adapter %q", ErrInvalidMetadata, id, got)
	}
	return a, nil
}

// IDs returns the registered ids in registration order.
func (t *Table) IDs() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// Len returns the number of registered constructors.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
