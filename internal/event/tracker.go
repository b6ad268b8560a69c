package event

import (
	"sync"

	"github.com/dshills/switchboard/internal/event/events"
)

// Owner is an opaque handle identifying a component that owns
// subscriptions. The zero Owner is invalid.
type Owner struct {
	id   string
	name string
}

// NewOwner creates a new owner handle. name is used only for logging.
func NewOwner(name string) Owner {
	return Owner{id: generateID(), name: name}
}

// Name returns the owner's display name.
func (o Owner) Name() string {
	return o.name
}

// IsZero reports whether o is the zero Owner.
func (o Owner) IsZero() bool {
	return o.id == ""
}

// String returns a short printable form of the owner.
func (o Owner) String() string {
	if o.IsZero() {
		return "<none>"
	}
	short := o.id
	if len(short) > 8 {
		short = short[:8]
	}
	return o.name + "#" + short
}

// Tracker associates subscriptions with owners so an owner can release all
// of its subscriptions with one call. Every owner must call ReleaseAll
// during its own teardown.
type Tracker struct {
	bus *Bus

	mu    sync.Mutex
	owned map[Owner]map[string]struct{}
}

// NewTracker creates a Tracker for bus.
func NewTracker(bus *Bus) *Tracker {
	t := &Tracker{
		bus:   bus,
		owned: make(map[Owner]map[string]struct{}),
	}
	bus.onRemoved(t.forget)
	return t
}

// Bus returns the tracked bus.
func (t *Tracker) Bus() *Bus {
	return t.bus
}

// RegisterFor subscribes handler on behalf of owner.
func (t *Tracker) RegisterFor(owner Owner, eventType events.Type, handler Handler, opts ...SubscriptionOption) (string, error) {
	if owner.IsZero() {
		return "", ErrInvalidOwner
	}

	// Held across subscribe so a once subscription that fires and is removed
	// immediately cannot be forgotten before it is recorded.
	t.mu.Lock()
	defer t.mu.Unlock()

	sub, err := t.bus.subscribe(eventType, handler, owner, opts...)
	if err != nil {
		return "", err
	}

	ids, ok := t.owned[owner]
	if !ok {
		ids = make(map[string]struct{})
		t.owned[owner] = ids
	}
	ids[sub.id] = struct{}{}
	return sub.id, nil
}

// ReleaseOne unsubscribes one of owner's subscriptions. It returns false if
// the subscription does not belong to owner or is already gone.
func (t *Tracker) ReleaseOne(owner Owner, id string) bool {
	t.mu.Lock()
	ids, ok := t.owned[owner]
	if ok {
		_, ok = ids[id]
	}
	if ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(t.owned, owner)
		}
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	return t.bus.Unsubscribe(id)
}

// ReleaseAll unsubscribes every subscription of owner and returns how many
// were removed.
func (t *Tracker) ReleaseAll(owner Owner) int {
	t.mu.Lock()
	ids := t.owned[owner]
	delete(t.owned, owner)
	t.mu.Unlock()

	released := 0
	for id := range ids {
		if t.bus.Unsubscribe(id) {
			released++
		}
	}
	return released
}

// Count returns the number of live subscriptions held by owner.
func (t *Tracker) Count(owner Owner) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.owned[owner])
}

// Owners returns the number of owners with live subscriptions.
func (t *Tracker) Owners() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.owned)
}

// forget drops a removed subscription from its owner's set.
func (t *Tracker) forget(sub *subscription) {
	if sub.owner.IsZero() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.owned[sub.owner]
	if !ok {
		return
	}
	delete(ids, sub.id)
	if len(ids) == 0 {
		delete(t.owned, sub.owner)
	}
}
