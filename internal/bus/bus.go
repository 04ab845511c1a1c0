package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus is an in-process publish/subscribe bus with topic-prefix
// filtering. Publish never blocks; a subscriber with a full buffer
// misses the event.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Emit publishes data under the given topic, stamped with the current time.
func (b *Bus) Emit(topic string, data any) {
	b.Publish(Event{Topic: topic, At: time.Now(), Data: data})
}

// Publish delivers the event to every subscriber whose prefix matches
// the event topic.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if !strings.HasPrefix(evt.Topic, sub.prefix) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Subscriber is backed up; drop rather than stall publishers.
		}
	}
}

// Subscribe registers interest in all topics starting with prefix.
// An empty prefix matches everything. The returned func unsubscribes.
func (b *Bus) Subscribe(prefix string, buf int) (<-chan Event, func()) {
	ch := make(chan Event, buf)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
