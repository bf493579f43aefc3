// Package eventbus fan-outs named events to an opaque UI sink, per spec.md's
// "event bus" component (§2). Subscribers get their own buffered channel;
// a full subscriber buffer drops the event rather than blocking the
// publisher, matching the "fire-and-forget" contract.
//
// Grounded on the teacher's per-key map-of-channels pattern
// (internal/httpclient/hostsem.go) and internal/materializer/cache.go's
// inFlight map idiom, generalized from "one chan per key" to "N
// subscriber chans per topic".
package eventbus

import (
	"sync"

	"github.com/google/uuid"

	"github.com/otakuhaven/otakuback/internal/logging"
)

var log = logging.For("eventbus")

// Event is a single named payload delivered to subscribers.
type Event struct {
	ID      string // unique per event, never reordered once emitted (spec.md §5)
	Name    string
	Payload any
}

// Bus is a fire-and-forget fan-out of named events. The zero value is not
// usable; use New.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
	dropped     atomicCounter
}

// New returns a Bus whose subscriber channels are buffered to bufferSize
// (64 when bufferSize is below 1).
func New(bufferSize int) *Bus {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &Bus{
		subscribers: make(map[int]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe returns a channel of events and an unsubscribe func. The
// returned channel is closed by Unsubscribe.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
		b.mu.Unlock()
	}
	return ch, unsub
}

// Publish emits name/payload to every current subscriber. Never blocks: a
// subscriber whose buffer is full has the event dropped for it.
func (b *Bus) Publish(name string, payload any) {
	ev := Event{ID: uuid.NewString(), Name: name, Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
			b.dropped.add(1)
			log.Warn("dropped event %s (subscriber buffer full)", name)
		}
	}
}

// DroppedCount returns the number of events dropped due to full subscriber
// buffers since startup.
func (b *Bus) DroppedCount() int64 { return b.dropped.get() }

type atomicCounter struct {
	mu sync.Mutex
	n  int64
}

func (c *atomicCounter) add(n int64) {
	c.mu.Lock()
	c.n += n
	c.mu.Unlock()
}

func (c *atomicCounter) get() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}
