package events

import (
	"sync"
	"time"
)

// Persister is implemented by the Persistence component to record each
// published event as a durable audit row. The bus calls it
// synchronously from Publish so persistence and in-memory fan-out
// share the same sequence of events; callers needing non-blocking
// publish should pass nil and persist asynchronously from a Subscribe
// loop instead.
type Persister interface {
	AppendEvent(projectID, kind, correlationID, payloadJSON string) (int64, error)
}

// Forwarder fans events out across the transport boundary (e.g. a
// websocket hub). Forward must not block the bus; slow forwarders are
// the caller's problem exactly like slow in-process subscribers.
type Forwarder interface {
	Forward(Event)
}

// subscription is one live, queued subscriber.
type subscription struct {
	ch        chan Event
	predicate func(Event) bool
	dropped   int
}

const defaultRingSize = 1000
const defaultQueueSize = 256

// Bus is the in-process publish/subscribe event bus of spec.md §4.2:
// non-blocking publish, a bounded ring for replay, idempotency
// deduplication, and bounded per-subscriber queues with loss recording
// on overflow.
type Bus struct {
	mu   sync.Mutex
	subs map[int]*subscription
	next int

	ring     []Event
	ringSize int
	seq      int64

	seen     map[string]struct{}
	seenKeys []string // FIFO eviction order so `seen` cannot grow unbounded

	persister  Persister
	forwarders []Forwarder
}

// Option configures a Bus.
type Option func(*Bus)

// WithRingSize overrides the default retained-history size (1000).
func WithRingSize(n int) Option {
	return func(b *Bus) { b.ringSize = n }
}

// WithPersister attaches the Persistence component so every published
// event is also recorded as a durable audit row.
func WithPersister(p Persister) Option {
	return func(b *Bus) { b.persister = p }
}

// WithForwarder registers an external fan-out target.
func WithForwarder(f Forwarder) Option {
	return func(b *Bus) { b.forwarders = append(b.forwarders, f) }
}

// New creates a Bus ready to publish and subscribe.
func New(opts ...Option) *Bus {
	b := &Bus{
		subs:     make(map[int]*subscription),
		ringSize: defaultRingSize,
		seen:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish appends an event to the ring, persists it if a Persister is
// attached, and delivers it to every subscriber whose predicate
// matches. Publish never blocks: a subscriber whose queue is full has
// the event dropped and a KindLoss event recorded in its place, per
// spec.md §4.2's backpressure policy. Duplicate (kind, entity, version)
// publications are suppressed so at-least-once delivery stays harmless.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if key := e.dedupKey(); key != "" {
		if _, dup := b.seen[key]; dup {
			return
		}
		b.seen[key] = struct{}{}
		b.seenKeys = append(b.seenKeys, key)
		if len(b.seenKeys) > b.ringSize*4 {
			oldest := b.seenKeys[0]
			b.seenKeys = b.seenKeys[1:]
			delete(b.seen, oldest)
		}
	}

	b.seq++
	e.Seq = b.seq
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	b.ring = append(b.ring, e)
	if len(b.ring) > b.ringSize {
		b.ring = b.ring[len(b.ring)-b.ringSize:]
	}

	if b.persister != nil {
		payload, _ := marshalPayload(e.Payload)
		_, _ = b.persister.AppendEvent(e.ProjectID, string(e.Kind), e.CorrelationID, payload)
	}

	for id, sub := range b.subs {
		if sub.predicate != nil && !sub.predicate(e) {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			sub.dropped++
			lossEvent := Event{
				Kind:      KindLoss,
				Timestamp: time.Now().UTC(),
				ProjectID: e.ProjectID,
				Payload:   map[string]any{"subscriber": id, "dropped_total": sub.dropped},
			}
			// Discard the oldest queued event so the loss marker has room.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- lossEvent:
			default:
			}
		}
	}

	for _, fwd := range b.forwarders {
		fwd.Forward(e)
	}
}

// Predicate narrows a subscription to events a caller cares about.
type Predicate func(Event) bool

// ForProject matches events belonging to a single project.
func ForProject(projectID string) Predicate {
	return func(e Event) bool { return e.ProjectID == projectID }
}

// Subscription is a consumable stream of matched events.
type Subscription struct {
	id     int
	ch     <-chan Event
	bus    *Bus
}

// C returns the channel of matched events.
func (s *Subscription) C() <-chan Event { return s.ch }

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	if sub, ok := s.bus.subs[s.id]; ok {
		delete(s.bus.subs, s.id)
		close(sub.ch)
	}
}

// Subscribe returns a stream of events matching predicate (nil matches
// everything), buffered up to a bounded queue size.
func (b *Bus) Subscribe(predicate Predicate) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, defaultQueueSize)
	b.subs[id] = &subscription{ch: ch, predicate: predicate}
	return &Subscription{id: id, ch: ch, bus: b}
}

// Since returns every retained event with Seq > since, in publication
// order, for a late joiner replaying from the in-memory ring
// (spec.md §8's replay law). Callers needing history beyond the ring's
// retention window should consult Persistence's ListEventsSince.
func (b *Bus) Since(since int64) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]Event, 0, len(b.ring))
	for _, e := range b.ring {
		if e.Seq > since {
			out = append(out, e)
		}
	}
	return out
}
