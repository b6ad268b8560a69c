package event

import (
	"sort"
	"sync"

	"github.com/dshills/switchboard/internal/event/events"
)

// Registry holds subscriptions organized by event type.
// It is thread-safe for concurrent access.
type Registry struct {
	mu      sync.RWMutex
	subs    map[events.Type][]*subscription
	byID    map[string]*subscription
	nextSeq uint64
}

// NewRegistry creates a new subscription registry.
func NewRegistry() *Registry {
	return &Registry{
		subs: make(map[events.Type][]*subscription),
		byID: make(map[string]*subscription),
	}
}

// Add adds a subscription. The per-type list is kept sorted by priority
// (higher first), then by registration order.
func (r *Registry) Add(sub *subscription) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextSeq++
	sub.seq = r.nextSeq

	subs := append(r.subs[sub.eventType], sub)
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].config.Priority != subs[j].config.Priority {
			return subs[i].config.Priority > subs[j].config.Priority
		}
		return subs[i].seq < subs[j].seq
	})
	r.subs[sub.eventType] = subs

	r.byID[sub.id] = sub
}

// Remove removes a subscription by ID and returns it.
func (r *Registry) Remove(subID string) (*subscription, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, exists := r.byID[subID]
	if !exists {
		return nil, false
	}

	subs := r.subs[sub.eventType]
	for i, s := range subs {
		if s.id == subID {
			// Copy so snapshots handed out by ByType stay intact.
			next := make([]*subscription, 0, len(subs)-1)
			next = append(next, subs[:i]...)
			next = append(next, subs[i+1:]...)
			subs = next
			break
		}
	}

	if len(subs) == 0 {
		delete(r.subs, sub.eventType)
	} else {
		r.subs[sub.eventType] = subs
	}

	delete(r.byID, subID)
	return sub, true
}

// Get returns a subscription by ID.
func (r *Registry) Get(subID string) (*subscription, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, exists := r.byID[subID]
	return sub, exists
}

// ByType returns the subscriptions for an event type in dispatch order.
// The returned slice is a snapshot.
func (r *Registry) ByType(t events.Type) []*subscription {
	r.mu.RLock()
	defer r.mu.RUnlock()

	subs := r.subs[t]
	if len(subs) == 0 {
		return nil
	}

	result := make([]*subscription, len(subs))
	copy(result, subs)
	return result
}

// Count returns the total number of subscriptions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byID)
}

// CountByType returns the number of subscriptions for an event type.
func (r *Registry) CountByType(t events.Type) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.subs[t])
}

// CountActive returns the number of subscriptions that are not circuit-broken.
func (r *Registry) CountActive() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, sub := range r.byID {
		if sub.active.Load() {
			count++
		}
	}
	return count
}

// Types returns the event types that currently have subscribers.
func (r *Registry) Types() []events.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]events.Type, 0, len(r.subs))
	for t := range r.subs {
		types = append(types, t)
	}
	return types
}
