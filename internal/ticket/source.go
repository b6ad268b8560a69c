package ticket

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// Source supplies the tickets handed to adapters during a sync.
type Source interface {
	// Name identifies the source in logs and sync events.
	Name() string

	// Fetch returns the current set of tickets.
	Fetch(ctx context.Context) ([]Ticket, error)
}

// MemorySource is an in-memory Source. It is safe for concurrent use.
type MemorySource struct {
	name string

	mu      sync.RWMutex
	tickets map[string]Ticket
}

// NewMemorySource creates a MemorySource seeded with tickets.
func NewMemorySource(name string, tickets ...Ticket) *MemorySource {
	s := &MemorySource{
		name:    name,
		tickets: make(map[string]Ticket, len(tickets)),
	}
	for _, t := range tickets {
		s.tickets[t.Key] = t.Clone()
	}
	return s
}

// Name implements Source.
func (s *MemorySource) Name() string {
	return s.name
}

// Fetch implements Source. Tickets are returned sorted by key.
func (s *MemorySource) Fetch(ctx context.Context) ([]Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Ticket, 0, len(s.tickets))
	for _, t := range s.tickets {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Put adds or replaces a ticket.
func (s *MemorySource) Put(t Ticket) error {
	if err := t.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.tickets[t.Key] = t.Clone()
	s.mu.Unlock()
	return nil
}

// Delete removes a ticket by key and reports whether it existed.
func (s *MemorySource) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tickets[key]; !ok {
		return false
	}
	delete(s.tickets, key)
	return true
}

// FileSource reads tickets from a YAML document of the form:
//
//	tickets:
//	  - key: OPS-1
//	    title: Rotate credentials
//	    status: open
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource reading path on every Fetch.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string {
	return s.path
}

type ticketFile struct {
	Tickets []Ticket `yaml:"tickets"`
}

// Fetch implements Source.
func (s *FileSource) Fetch(ctx context.Context) ([]Ticket, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read tickets: %w", err)
	}

	var f ticketFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse tickets %s: %w", s.path, err)
	}

	for i, t := range f.Tickets {
		if err := t.Validate(); err != nil {
			return nil, fmt.Errorf("ticket %d in %s: %w", i, s.path, err)
		}
	}
	return f.Tickets, nil
}
