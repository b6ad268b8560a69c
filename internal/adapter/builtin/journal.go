package builtin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
)

// defaultJournalSize is the number of entries kept when max_entries is unset.
const defaultJournalSize = 256

// ErrLastSyncFailed is reported by the journal health check while the most
// recent sync ended in an error.
var ErrLastSyncFailed = errors.New("last sync failed")

// Entry is one journal record.
type Entry struct {
	At      time.Time
	Type    events.Type
	Source  string
	Summary string
}

// Journal records sync, conflict and ticket activity.
type Journal struct {
	adapter.Base

	mu       sync.Mutex
	entries  []Entry
	next     int
	full     bool
	syncErr  string
	lastSync time.Time
}

// NewJournal creates the journal adapter.
func NewJournal() *Journal {
	return &Journal{
		Base: adapter.Base{Meta: adapter.Metadata{
			ID:          JournalID,
			Name:        "Activity Journal",
			Version:     "1.0.0",
			Description: "Bounded record of sync and ticket activity",
			Capabilities: []adapter.Capability{
				{Name: "activity-journal", Version: "1.0"},
			},
			Subscriptions: []events.Type{
				events.SyncStart,
				events.SyncComplete,
				events.SyncError,
				events.ConflictDetected,
				events.ConflictResolved,
				events.TicketCreated,
				events.TicketUpdated,
				events.TicketDeleted,
				events.DataRequest,
			},
		}},
	}
}

// Initialize sizes the journal from the max_entries setting.
func (j *Journal) Initialize(ctx context.Context, actx adapter.Context) error {
	j.Ctx = actx
	size := actx.IntSetting("max_entries", defaultJournalSize)
	if size <= 0 {
		return fmt.Errorf("journal: max_entries must be positive, got %d", size)
	}

	j.mu.Lock()
	j.entries = make([]Entry, size)
	j.next = 0
	j.full = false
	j.mu.Unlock()
	return nil
}

// HealthCheck fails while the last sync ended in an error.
func (j *Journal) HealthCheck(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.syncErr != "" {
		return fmt.Errorf("%w: %s", ErrLastSyncFailed, j.syncErr)
	}
	return nil
}

// HandleEvent records activity events and answers "journal" requests with
// the current entries.
func (j *Journal) HandleEvent(ctx context.Context, e event.Event) error {
	if e.Type == events.DataRequest {
		req, ok := requestFor(e, JournalID)
		if !ok || req.DataType != "journal" {
			return nil
		}
		return respond(ctx, j.Ctx, JournalID, req, j.Entries(), nil)
	}

	summary := summarize(e)

	j.mu.Lock()
	defer j.mu.Unlock()

	switch e.Type {
	case events.SyncComplete:
		j.syncErr = ""
		j.lastSync = e.Timestamp
	case events.SyncError:
		if p, ok := e.Payload.(events.SyncErrorPayload); ok {
			j.syncErr = p.Err
		} else {
			j.syncErr = "unknown error"
		}
	}
	j.appendLocked(Entry{At: e.Timestamp, Type: e.Type, Source: e.SourceID, Summary: summary})
	return nil
}

// Entries returns the journal, oldest first.
func (j *Journal) Entries() []Entry {
	j.mu.Lock()
	defer j.mu.Unlock()

	if !j.full {
		return append([]Entry(nil), j.entries[:j.next]...)
	}
	out := make([]Entry, 0, len(j.entries))
	out = append(out, j.entries[j.next:]...)
	out = append(out, j.entries[:j.next]...)
	return out
}

// LastSync returns the time of the last completed sync.
func (j *Journal) LastSync() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastSync
}

func (j *Journal) appendLocked(e Entry) {
	if len(j.entries) == 0 {
		return
	}
	j.entries[j.next] = e
	j.next++
	if j.next == len(j.entries) {
		j.next = 0
		j.full = true
	}
}

func summarize(e event.Event) string {
	switch p := e.Payload.(type) {
	case events.SyncStartPayload:
		return fmt.Sprintf("sync of %s started (%d tickets)", p.Source, p.Total)
	case events.SyncCompletePayload:
		return fmt.Sprintf("sync of %s finished: %d tickets in %s", p.Source, p.Synced, p.Duration.Round(time.Millisecond))
	case events.SyncErrorPayload:
		return fmt.Sprintf("sync of %s failed: %s", p.Source, p.Err)
	case events.ConflictPayload:
		if p.Resolution != "" {
			return fmt.Sprintf("conflict on %s.%s resolved (%s)", p.Key, p.Field, p.Resolution)
		}
		return fmt.Sprintf("conflict on %s.%s", p.Key, p.Field)
	case events.TicketPayload:
		return fmt.Sprintf("%s %s", p.Ticket.Key, p.Ticket.Title)
	case events.TicketDeletedPayload:
		return p.Key
	default:
		return string(e.Type)
	}
}
