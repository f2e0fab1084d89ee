// Package notify carries change events out of the repositories so
// UI-level collaborators and read-through caches can refresh after
// mutations without the storage layer depending on any UI framework.
package notify

import (
	"log/slog"
	"sync"

	"github.com/poiesic/stash/core"
)

// Collection identifies which record collection an event refers to.
type Collection string

const (
	CollectionLocations   Collection = "locations"
	CollectionItems       Collection = "items"
	CollectionCorrections Collection = "corrections"
)

// Op identifies the kind of mutation an event reports.
type Op string

const (
	OpAdd    Op = "add"
	OpUpdate Op = "update"
	OpRemove Op = "remove"
	// OpOrphan reports items whose location reference was cleared by a
	// cascading location removal. The items still exist.
	OpOrphan Op = "orphan"
)

// Event describes one committed mutation.
type Event struct {
	Collection Collection
	Op         Op
	Ids        []core.ID
}

// Bus is an in-process publish/subscribe channel for change events.
// Publishing never blocks: events for a subscriber with a full buffer
// are dropped. Subscribers observe events only after the mutation has
// committed, so a refresh triggered by an event always reads the new
// state.
type Bus struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextId int
	logger *slog.Logger
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		subs:   make(map[int]chan Event),
		logger: slog.Default(),
	}
}

// Subscribe registers a new subscriber with the given channel buffer.
// The returned cancel function removes the subscription and closes the
// channel; it is safe to call more than once.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}

	b.mu.Lock()
	id := b.nextId
	b.nextId++
	ch := make(chan Event, buffer)
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers an event to every subscriber. Safe on a nil bus so
// repositories can publish unconditionally.
func (b *Bus) Publish(event Event) {
	if b == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- event:
		default:
			b.logger.Warn("dropping change event for slow subscriber",
				"collection", event.Collection, "op", event.Op)
		}
	}
}
