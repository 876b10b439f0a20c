// Package eventbus fans out identifier events to in-process subscribers.
//
// Publish never blocks the streaming thread: channel subscribers that are
// full lose the event (counted as dropped), latest-value subscribers keep
// only the newest event.
package eventbus

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrSubscriberExists   = errors.New("eventbus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("eventbus: subscriber not found")
	ErrNilChannel         = errors.New("eventbus: nil channel provided")
	ErrBusClosed          = errors.New("eventbus: bus is closed")
)

// Event describes one frame whose identifier was read.
type Event struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Session   string        `json:"session"`
	Role      string        `json:"role"`
	Frame     uint64        `json:"frame"`
	PTS       time.Duration `json:"pts"`
	Payload   string        `json:"payload"`
	Verdict   string        `json:"verdict,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}

// Receiver gives access to the most recent event.
type Receiver interface {
	// Receive blocks until an event newer than the last one returned is
	// available. ok is false once the receiver is closed.
	Receive() (ev Event, ok bool)
	TryReceive() (Event, bool)
	Close()
}

// Stats is a snapshot of bus activity.
type Stats struct {
	TotalPublished uint64
	TotalSent      uint64
	TotalDropped   uint64
	Subscribers    map[string]SubscriberStats
}

// SubscriberStats counts deliveries to one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type dropPolicy int

const (
	dropNew dropPolicy = iota
	dropOld
)

type subscriber struct {
	policy  dropPolicy
	ch      chan<- Event
	latest  *latestHolder
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Bus distributes events to subscribers.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	closed      bool

	totalPublished atomic.Uint64
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch. Events are dropped for ch when it is full.
func (b *Bus) Subscribe(id string, ch chan<- Event) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}

	b.subscribers[id] = &subscriber{policy: dropNew, ch: ch}
	return nil
}

// SubscribeLatest registers a receiver that always holds the newest event.
func (b *Bus) SubscribeLatest(id string) (Receiver, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return nil, ErrSubscriberExists
	}

	h := newLatestHolder()
	b.subscribers[id] = &subscriber{policy: dropOld, latest: h}
	return h, nil
}

// Unsubscribe removes a subscriber. Its channel is not closed.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return ErrSubscriberNotFound
	}
	if sub.latest != nil {
		sub.latest.Close()
	}
	delete(b.subscribers, id)
	return nil
}

// Publish delivers ev to every subscriber without blocking. Publishing on a
// closed bus is a no-op.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.totalPublished.Add(1)

	for _, sub := range b.subscribers {
		switch sub.policy {
		case dropNew:
			select {
			case sub.ch <- ev:
				sub.sent.Add(1)
			default:
				sub.dropped.Add(1)
			}
		case dropOld:
			sub.latest.Set(ev)
			sub.sent.Add(1)
		}
	}
}

// Stats returns a snapshot of the counters.
func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		TotalPublished: b.totalPublished.Load(),
		Subscribers:    make(map[string]SubscriberStats, len(b.subscribers)),
	}
	for id, sub := range b.subscribers {
		ss := SubscriberStats{Sent: sub.sent.Load(), Dropped: sub.dropped.Load()}
		s.Subscribers[id] = ss
		s.TotalSent += ss.Sent
		s.TotalDropped += ss.Dropped
	}
	return s
}

// Close detaches all subscribers. It is safe to call more than once.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, sub := range b.subscribers {
		if sub.latest != nil {
			sub.latest.Close()
		}
	}
	b.subscribers = nil
}

type latestHolder struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ev     *Event
	seq    uint64
	read   uint64
	closed bool
}

func newLatestHolder() *latestHolder {
	h := &latestHolder{}
	h.cond = sync.NewCond(&h.mu)
	return h
}

func (h *latestHolder) Set(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.ev = &ev
	h.seq++
	h.cond.Broadcast()
}

func (h *latestHolder) Receive() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for h.seq == h.read && !h.closed {
		h.cond.Wait()
	}
	if h.seq == h.read {
		return Event{}, false
	}
	h.read = h.seq
	return *h.ev, true
}

func (h *latestHolder) TryReceive() (Event, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.ev == nil {
		return Event{}, false
	}
	h.read = h.seq
	return *h.ev, true
}

func (h *latestHolder) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	h.cond.Broadcast()
}
