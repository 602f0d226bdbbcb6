package stream

import (
	"sync"
	"sync/atomic"
)

// Subscriber receives events on a buffered channel. Delivery never blocks
// the publisher: when the buffer is full the event is dropped and counted.
type Subscriber struct {
	id string
	ch chan *Event

	mu     sync.Mutex
	closed bool

	dropped atomic.Int64
}

func newSubscriber(id string, buffer int) *Subscriber {
	return &Subscriber{id: id, ch: make(chan *Event, buffer)}
}

// ID returns the subscriber identifier.
func (s *Subscriber) ID() string { return s.id }

// C returns the event channel. It is closed when the subscriber is
// removed or the hub shuts down.
func (s *Subscriber) C() <-chan *Event { return s.ch }

// Dropped returns how many events were discarded for a full buffer.
func (s *Subscriber) Dropped() int64 { return s.dropped.Load() }

func (s *Subscriber) send(evt *Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- evt:
		return true
	default:
		s.dropped.Add(1)
		return false
	}
}

func (s *Subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
