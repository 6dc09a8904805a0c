package awakener

import (
	"log/slog"
	"sync"
	"time"
)

// Event kinds carried by the bus.
const (
	EventLog          = "log"
	EventStatus       = "status"
	EventRound        = "round"
	EventThought      = "thought"
	EventThoughtChunk = "thought_chunk"
	EventThoughtDone  = "thought_done"
	EventLoading      = "loading"
	EventToolCall     = "tool_call"
	EventToolResult   = "tool_result"
)

// Event is the broadcast envelope delivered to every subscriber.
type Event struct {
	Type      string         `json:"type"`
	Data      map[string]any `json:"data"`
	Timestamp string         `json:"timestamp"`
}

// Subscriber is one live consumer of bus events, usually a connected
// operator browser. It owns a bounded queue; a subscriber that stops
// draining is removed from the bus rather than blocking the producer.
type Subscriber struct {
	id   string
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// ID returns the subscriber's unique identity.
func (s *Subscriber) ID() string { return s.id }

// C returns the subscriber's event channel. The channel is never closed;
// consumers select on Done to learn about removal.
func (s *Subscriber) C() <-chan Event { return s.ch }

// Done is closed when the subscriber is removed from the bus.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) markDone() { s.once.Do(func() { close(s.done) }) }

// Bus fans events out to subscribers in production order. Ordered events
// block the producer per subscriber, bounded by sendTimeout; high-frequency
// events (thought_chunk, loading) are fire-and-forget and may be dropped by
// a slow consumer. A slow consumer loses fast events but never sees slow
// ones reordered.
type Bus struct {
	mu          sync.Mutex
	subscribers map[string]*Subscriber
	sendTimeout time.Duration
	log         *slog.Logger
}

// NewBus creates an empty bus.
func NewBus(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{
		subscribers: make(map[string]*Subscriber),
		sendTimeout: 5 * time.Second,
		log:         log,
	}
}

// Subscribe adds a consumer with the given queue capacity. New subscribers
// receive only events published after they join; there is no replay.
func (b *Bus) Subscribe(buffer int) *Subscriber {
	if buffer <= 0 {
		buffer = 64
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sub := &Subscriber{id: NewID(), ch: make(chan Event, buffer), done: make(chan struct{})}
	b.subscribers[sub.id] = sub
	return sub
}

// Unsubscribe removes a consumer. Safe to call for an already-removed
// subscriber.
func (b *Bus) Unsubscribe(sub *Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.id)
}

func (b *Bus) removeLocked(id string) {
	if sub, ok := b.subscribers[id]; ok {
		delete(b.subscribers, id)
		sub.markDone()
	}
}

// Publish delivers an ordered event: the call returns only after every
// subscriber has accepted it or timed out. A subscriber that times out is
// removed. Ordering across Publish calls from a single producer is
// therefore preserved for every surviving subscriber.
func (b *Bus) Publish(kind string, data map[string]any) {
	event := Event{Type: kind, Data: data, Timestamp: NowUTC()}
	for _, sub := range b.snapshot() {
		select {
		case sub.ch <- event:
		case <-sub.done:
		case <-time.After(b.sendTimeout):
			b.log.Warn("dropping stalled subscriber", "id", sub.id)
			b.mu.Lock()
			b.removeLocked(sub.id)
			b.mu.Unlock()
		}
	}
}

// PublishAsync delivers a fire-and-forget event: full queues drop it. Used
// for thought_chunk and loading updates, where losing a delta is preferable
// to pausing the stream.
func (b *Bus) PublishAsync(kind string, data map[string]any) {
	event := Event{Type: kind, Data: data, Timestamp: NowUTC()}
	for _, sub := range b.snapshot() {
		select {
		case sub.ch <- event:
		default:
		}
	}
}

func (b *Bus) snapshot() []*Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := make([]*Subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		subs = append(subs, sub)
	}
	return subs
}

// SubscriberCount reports the current number of live subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
