package builtin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/dshills/switchboard/internal/adapter"
	"github.com/dshills/switchboard/internal/event"
	"github.com/dshills/switchboard/internal/event/events"
	"github.com/dshills/switchboard/internal/ticket"
)

// queryAPICapability is announced while search is active.
const queryAPICapability = "query-api"

// defaultWarmupTimeout bounds the initial load from the cache.
const defaultWarmupTimeout = 2 * time.Second

// Search keeps a token index over ticket text.
type Search struct {
	adapter.Base

	mu      sync.RWMutex
	index   map[string]map[string]struct{} // token -> keys
	byKey   map[string][]string            // key -> tokens
	maxHits int
}

var (
	_ adapter.TicketsSyncedHook = (*Search)(nil)
	_ adapter.TicketUpdatedHook = (*Search)(nil)
	_ adapter.TicketDeletedHook = (*Search)(nil)
)

// NewSearch creates the search adapter.
func NewSearch() *Search {
	return &Search{
		Base: adapter.Base{Meta: adapter.Metadata{
			ID:           SearchID,
			Name:         "Ticket Search",
			Version:      "1.1.0",
			Description:  "Full-text search over synced tickets",
			Dependencies: []string{CacheID},
			Capabilities: []adapter.Capability{
				{Name: "ticket-search", Version: "1.0", Description: "token search over tickets"},
			},
			Subscriptions: []events.Type{events.DataRequest},
			Priority:      50,
		}},
		index: make(map[string]map[string]struct{}),
		byKey: make(map[string][]string),
	}
}

// Initialize reads the max_results setting.
func (s *Search) Initialize(ctx context.Context, actx adapter.Context) error {
	s.Ctx = actx
	s.maxHits = actx.IntSetting("max_results", 50)
	if s.maxHits <= 0 {
		return fmt.Errorf("search: max_results must be positive, got %d", s.maxHits)
	}
	return nil
}

// Activate loads the current tickets from the cache and announces the
// query API. A cache that does not answer leaves the index empty.
func (s *Search) Activate(ctx context.Context) error {
	if s.Ctx.Bus != nil {
		timeout := time.Duration(s.Ctx.IntSetting("warmup_timeout_ms", int(defaultWarmupTimeout/time.Millisecond))) * time.Millisecond
		data, err := s.Ctx.Bus.Request(ctx, "tickets", nil,
			event.WithTarget(CacheID),
			event.WithRequestSource(SearchID),
			event.WithTimeout(timeout),
		)
		if err != nil {
			s.Logger().Warn("index warmup skipped", "error", err)
		} else if tickets, ok := data.([]ticket.Ticket); ok {
			s.rebuild(tickets)
		}
	}

	return s.Ctx.Publish(ctx, events.CapabilityAnnounced, events.CapabilityPayload{
		AdapterID:   SearchID,
		Capability:  queryAPICapability,
		Version:     "2.1",
		Description: "search requests over the live index",
	})
}

// Deactivate revokes the query API.
func (s *Search) Deactivate(ctx context.Context) error {
	return s.Ctx.Publish(ctx, events.CapabilityRevoked, events.CapabilityPayload{
		AdapterID:  SearchID,
		Capability: queryAPICapability,
	})
}

// OnTicketsSynced rebuilds the index.
func (s *Search) OnTicketsSynced(ctx context.Context, tickets []ticket.Ticket) error {
	s.rebuild(tickets)
	return nil
}

// OnTicketUpdated reindexes t.
func (s *Search) OnTicketUpdated(ctx context.Context, t ticket.Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(t.Key)
	s.addLocked(t)
	return nil
}

// OnTicketDeleted drops key from the index.
func (s *Search) OnTicketDeleted(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(key)
	return nil
}

// Query returns the keys of tickets matching the query tokens, best
// matches first, ties by key.
func (s *Search) Query(q string) []string {
	tokens := tokenize(q)
	if len(tokens) == 0 {
		return nil
	}

	s.mu.RLock()
	scores := make(map[string]int)
	for _, tok := range tokens {
		for key := range s.index[tok] {
			scores[key]++
		}
	}
	limit := s.maxHits
	s.mu.RUnlock()

	keys := make([]string, 0, len(scores))
	for k := range scores {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if scores[keys[i]] != scores[keys[j]] {
			return scores[keys[i]] > scores[keys[j]]
		}
		return keys[i] < keys[j]
	})

	if limit > 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// Indexed returns the number of indexed tickets.
func (s *Search) Indexed() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byKey)
}

// HandleEvent answers "search" requests with Query results.
func (s *Search) HandleEvent(ctx context.Context, e event.Event) error {
	req, ok := requestFor(e, SearchID)
	if !ok || req.DataType != "search" {
		return nil
	}

	q, ok := req.Query.(string)
	if !ok {
		return respond(ctx, s.Ctx, SearchID, req, nil, fmt.Errorf("search query must be a string, got %T", req.Query))
	}
	return respond(ctx, s.Ctx, SearchID, req, s.Query(q), nil)
}

func (s *Search) rebuild(tickets []ticket.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.index = make(map[string]map[string]struct{})
	s.byKey = make(map[string][]string)
	for _, t := range tickets {
		s.addLocked(t)
	}
}

func (s *Search) addLocked(t ticket.Ticket) {
	if t.Validate() != nil {
		return
	}

	tokens := tokenize(t.Text())
	s.byKey[t.Key] = tokens
	for _, tok := range tokens {
		keys, ok := s.index[tok]
		if !ok {
			keys = make(map[string]struct{})
			s.index[tok] = keys
		}
		keys[t.Key] = struct{}{}
	}
}

func (s *Search) removeLocked(key string) {
	for _, tok := range s.byKey[key] {
		delete(s.index[tok], key)
		if len(s.index[tok]) == 0 {
			delete(s.index, tok)
		}
	}
	delete(s.byKey, key)
}

// tokenize lowercases text and splits it on anything that is not a letter
// or digit, dropping duplicates.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]bool, len(fields))
	out := fields[:0]
	for _, f := range fields {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}
