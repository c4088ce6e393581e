// Package feed broadcasts trust events (reputation changes) to
// websocket subscribers.
package feed

import (
	"sync"

	"github.com/hikmah-systems/isnad/internal/trust"
)

// subscriberBuffer is the per-subscriber event queue size. A subscriber
// that falls this far behind starts losing events rather than blocking
// publishers.
const subscriberBuffer = 64

// Hub fans trust events out to subscribers.
type Hub struct {
	mu   sync.Mutex
	subs map[*Subscription]bool
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*Subscription]bool)}
}

// Subscription is one subscriber's event stream. Receive from C;
// call Close when done.
type Subscription struct {
	C   chan trust.Event
	hub *Hub
}

// Subscribe registers a new subscriber.
func (h *Hub) Subscribe() *Subscription {
	s := &Subscription{C: make(chan trust.Event, subscriberBuffer), hub: h}
	h.mu.Lock()
	h.subs[s] = true
	h.mu.Unlock()
	return s
}

// Close removes the subscription from the hub.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	delete(s.hub.subs, s)
	s.hub.mu.Unlock()
}

// Publish delivers an event to every subscriber without blocking.
// Slow subscribers drop events.
func (h *Hub) Publish(e trust.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		select {
		case s.C <- e:
		default:
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
