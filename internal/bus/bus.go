// Package bus is the in-process event bus that lets the repository, the
// sync engine and the HTTP layer react to each other without direct calls.
package bus

import (
	"strings"
	"sync"
	"time"
)

// Event kinds published inside the process.
const (
	KindQueueAppended = "queue.appended"
	KindSyncStatus    = "sync.status_changed"
	KindSyncConflict  = "sync.conflict_resolved"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Publisher is the publishing half of Bus.
type Publisher interface {
	Publish(evt Event)
}

// Bus is a publish/subscribe bus with prefix filtering on Kind.
// Delivery never blocks the publisher: a full subscriber misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscription)}
}

// Publish delivers evt to every subscriber whose prefix matches evt.Kind.
func (b *Bus) Publish(evt Event) {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Kind, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
		}
	}
}

// Subscribe returns a channel of events whose Kind starts with prefix and
// a cancel function. Cancel closes the channel.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{prefix: prefix, ch: ch}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Emit publishes on p when p is non-nil.
func Emit(p Publisher, kind string, payload any) {
	if p == nil {
		return
	}
	p.Publish(Event{Kind: kind, Timestamp: time.Now(), Payload: payload})
}
