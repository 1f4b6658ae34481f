package events

import (
	"sync"

	"github.com/google/uuid"
)

// Kind identifies an event.
type Kind int

const (
	KindFileScanned Kind = iota
	KindDuplicateFound
	KindScanFinished
	KindMarkApplied
)

// String returns the string representation of the kind.
func (k Kind) String() string {
	switch k {
	case KindFileScanned:
		return "file_scanned"
	case KindDuplicateFound:
		return "duplicate_found"
	case KindScanFinished:
		return "scan_finished"
	case KindMarkApplied:
		return "mark_applied"
	default:
		return "unknown"
	}
}

// Event is a notification delivered over a subscriber channel.
type Event struct {
	Kind Kind

	// Scanned is set for KindFileScanned.
	Scanned int64

	// File is set for KindMarkApplied.
	File string

	// Members is set for KindDuplicateFound and KindMarkApplied.
	Members []string
}

// DefaultBuffer is the channel capacity used when Subscribe gets a
// non-positive buffer size.
const DefaultBuffer = 100

// Subscriber is a channel subscription.
type Subscriber struct {
	ID     string
	Events chan *Event

	kinds map[Kind]struct{}
}

func (s *Subscriber) wants(k Kind) bool {
	if len(s.kinds) == 0 {
		return true
	}
	_, ok := s.kinds[k]
	return ok
}

// Broadcaster is a Listener that forwards every notification to its
// subscribers. Delivery never blocks: an event is dropped for a subscriber
// whose channel is full.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscriber
	closed      bool
}

var _ Listener = (*Broadcaster)(nil)

// NewBroadcaster creates a Broadcaster with no subscribers.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[string]*Subscriber),
	}
}

// Subscribe registers a subscriber for the given kinds, or for every kind
// when none are given. It returns nil once the broadcaster is closed.
func (b *Broadcaster) Subscribe(buffer int, kinds ...Kind) *Subscriber {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	sub := &Subscriber{
		ID:     uuid.New().String(),
		Events: make(chan *Event, buffer),
	}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]struct{}, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = struct{}{}
		}
	}

	b.subscribers[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription and closes its channel.
func (b *Broadcaster) Unsubscribe(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[id]; ok {
		close(sub.Events)
		delete(b.subscribers, id)
	}
}

func (b *Broadcaster) publish(event *Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, sub := range b.subscribers {
		if !sub.wants(event.Kind) {
			continue
		}
		select {
		case sub.Events <- event:
		default:
			// Channel full, event dropped.
		}
	}
}

// OnFileScanned implements Listener.
func (b *Broadcaster) OnFileScanned(scanned int64) {
	b.publish(&Event{Kind: KindFileScanned, Scanned: scanned})
}

// OnDuplicateFound implements Listener.
func (b *Broadcaster) OnDuplicateFound(members []string) {
	b.publish(&Event{Kind: KindDuplicateFound, Members: members})
}

// OnScanFinished implements Listener.
func (b *Broadcaster) OnScanFinished() {
	b.publish(&Event{Kind: KindScanFinished})
}

// OnMarkApplied implements Listener.
func (b *Broadcaster) OnMarkApplied(file string, members []string) {
	b.publish(&Event{Kind: KindMarkApplied, File: file, Members: members})
}

// Close closes the broadcaster and every subscription.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	b.closed = true
	for _, sub := range b.subscribers {
		close(sub.Events)
	}
	b.subscribers = make(map[string]*Subscriber)
}

// SubscriberCount returns the number of active subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
