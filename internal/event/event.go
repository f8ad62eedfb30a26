// Package event provides fan-out delivery of bridge traffic to observers.
//
// The response router publishes every decoded response on a Bus. Observers
// subscribe to a Kind and receive events on their own goroutine, in publish
// order, so a slow observer never stalls the router.
package event

import (
	"io"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/wagiedev/bridge-sdk-go/internal/message"
)

// Kind identifies a class of events.
type Kind string

const (
	// KindResponse is raised for every decoded response, transactional or not,
	// before correlation.
	KindResponse Kind = "Response"
	// KindNotification is raised for responses carrying the reserved
	// notification transaction ID.
	KindNotification Kind = "Notification"
)

// DefaultBufferSize is the per-subscriber queue length used when none is set.
const DefaultBufferSize = 256

// Handler receives one event.
type Handler func(resp *message.Response)

// subscriber owns a queue and the goroutine draining it.
type subscriber struct {
	id      uint64
	kind    Kind
	handler Handler
	queue   chan *message.Response
	done    chan struct{}
}

// Bus delivers published responses to subscribers.
type Bus struct {
	log        *slog.Logger
	bufferSize int

	mu     sync.RWMutex
	subs   map[uint64]*subscriber
	nextID uint64
	closed bool

	dropped atomic.Uint64
}

// NewBus creates a Bus. A bufferSize of zero or less uses DefaultBufferSize.
func NewBus(log *slog.Logger, bufferSize int) *Bus {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}

	return &Bus{
		log:        log.With("component", "event_bus"),
		bufferSize: bufferSize,
		subs:       make(map[uint64]*subscriber, 4),
	}
}

// Subscribe registers handler for kind and returns a function that removes
// it. Unsubscribing waits for the handler's in-flight event, so it must not
// be called from inside the handler itself.
//
// Subscribing to a closed bus returns a no-op unsubscribe function.
func (b *Bus) Subscribe(kind Kind, handler Handler) func() {
	b.mu.Lock()

	if b.closed || handler == nil {
		b.mu.Unlock()

		return func() {}
	}

	b.nextID++
	sub := &subscriber{
		id:      b.nextID,
		kind:    kind,
		handler: handler,
		queue:   make(chan *message.Response, b.bufferSize),
		done:    make(chan struct{}),
	}
	b.subs[sub.id] = sub

	b.mu.Unlock()

	go sub.run()

	b.log.Debug("Subscriber added", "kind", kind, "subscriber_id", sub.id)

	var once sync.Once

	return func() {
		once.Do(func() {
			b.remove(sub.id)
		})
	}
}

// Publish queues resp for every subscriber of kind. It never blocks: when a
// subscriber's queue is full the event is dropped for that subscriber.
func (b *Bus) Publish(kind Kind, resp *message.Response) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subs {
		if sub.kind != kind {
			continue
		}

		select {
		case sub.queue <- resp:
		default:
			b.log.Warn("Dropping event for slow subscriber",
				"kind", kind,
				"subscriber_id", sub.id,
				"transaction_id", resp.TransactionID,
				"dropped", b.dropped.Add(1),
			)
		}
	}
}

// Dropped returns how many deliveries were skipped because a subscriber's
// queue was full, summed over all subscribers since the bus was created.
func (b *Bus) Dropped() uint64 {
	return b.dropped.Load()
}

// Len returns the number of subscribers of kind.
func (b *Bus) Len(kind Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0

	for _, sub := range b.subs {
		if sub.kind == kind {
			n++
		}
	}

	return n
}

// Close removes all subscribers after their queued events are delivered.
// It's safe to call Close multiple times.
func (b *Bus) Close() {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return
	}

	b.closed = true
	subs := b.subs
	b.subs = make(map[uint64]*subscriber)

	for _, sub := range subs {
		close(sub.queue)
	}

	b.mu.Unlock()

	for _, sub := range subs {
		<-sub.done
	}

	b.log.Debug("Event bus closed", "subscribers", len(subs))
}

// remove detaches one subscriber and waits for its goroutine to drain.
func (b *Bus) remove(id uint64) {
	b.mu.Lock()

	sub, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
		close(sub.queue)
	}

	b.mu.Unlock()

	if ok {
		<-sub.done
		b.log.Debug("Subscriber removed", "kind", sub.kind, "subscriber_id", id)
	}
}

func (s *subscriber) run() {
	defer close(s.done)

	for resp := range s.queue {
		s.handler(resp)
	}
}
