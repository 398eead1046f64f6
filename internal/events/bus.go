// Package events provides the in-process fan-out of activity events to
// live listeners such as the WebSocket activity stream. The bus is
// nil-safe: publishing on a nil *Bus is a no-op, so components do not
// need guard checks.
package events

import (
	"sync"
	"time"
)

// Event is one activity record of a session.
type Event struct {
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"session_id"`
	Type      string         `json:"type"`
	Data      map[string]any `json:"data,omitempty"`
}

// Subscription receives events on C until Close is called. Slow
// subscribers miss events rather than blocking publishers.
type Subscription struct {
	C <-chan Event

	ch        chan Event
	sessionID string
	bus       *Bus
	once      sync.Once
}

// Close detaches the subscription and closes C. Calling it twice is
// safe.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		delete(s.bus.dropped, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}

// Dropped is the number of events this subscriber missed because its
// buffer was full.
func (s *Subscription) Dropped() int64 {
	s.bus.mu.RLock()
	defer s.bus.mu.RUnlock()
	return s.bus.dropped[s]
}

// Bus is a non-blocking broadcast bus.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*Subscription]struct{}
	dropped map[*Subscription]int64
}

// New creates a bus ready for use.
func New() *Bus {
	return &Bus{
		subs:    make(map[*Subscription]struct{}),
		dropped: make(map[*Subscription]int64),
	}
}

// Publish delivers e to every subscriber watching its session or all
// sessions.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	b.mu.RLock()
	var full []*Subscription
	for sub := range b.subs {
		if sub.sessionID != "" && sub.sessionID != e.SessionID {
			continue
		}
		select {
		case sub.ch <- e:
		default:
			full = append(full, sub)
		}
	}
	b.mu.RUnlock()

	if len(full) > 0 {
		b.mu.Lock()
		for _, sub := range full {
			if _, ok := b.subs[sub]; ok {
				b.dropped[sub]++
			}
		}
		b.mu.Unlock()
	}
}

// Subscribe registers a listener. An empty sessionID receives events of
// every session. bufSize of 64 suits WebSocket consumers.
func (b *Bus) Subscribe(sessionID string, bufSize int) *Subscription {
	ch := make(chan Event, bufSize)
	sub := &Subscription{C: ch, ch: ch, sessionID: sessionID, bus: b}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// SubscriberCount returns the number of attached subscribers.
func (b *Bus) SubscriberCount() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
