// Package ticket defines the domain items that flow through switchboard:
// tickets pulled from an issue tracker and handed to adapters after a sync.
package ticket

import (
	"errors"
	"strings"
	"time"
)

// ErrInvalidTicket is returned when a ticket is missing its key.
var ErrInvalidTicket = errors.New("invalid ticket")

// Ticket is a single tracked work item.
type Ticket struct {
	Key         string    `yaml:"key"`
	Title       string    `yaml:"title"`
	Status      string    `yaml:"status"`
	Assignee    string    `yaml:"assignee,omitempty"`
	Labels      []string  `yaml:"labels,omitempty"`
	Description string    `yaml:"description,omitempty"`
	Updated     time.Time `yaml:"updated,omitempty"`
}

// Validate checks that the ticket can be indexed.
func (t Ticket) Validate() error {
	if strings.TrimSpace(t.Key) == "" {
		return ErrInvalidTicket
	}
	return nil
}

// HasLabel reports whether the ticket carries label (case-insensitive).
func (t Ticket) HasLabel(label string) bool {
	for _, l := range t.Labels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// Text returns the searchable text of the ticket.
func (t Ticket) Text() string {
	parts := []string{t.Key, t.Title, t.Status, t.Assignee, t.Description}
	parts = append(parts, t.Labels...)
	return strings.Join(parts, " ")
}

// Clone returns a deep copy of the ticket.
func (t Ticket) Clone() Ticket {
	if t.Labels != nil {
		t.Labels = append([]string(nil), t.Labels...)
	}
	return t
}
