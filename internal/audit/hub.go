package audit

import (
	"sync"

	"panel-dash/internal/model"
)

const subscriberBuffer = 32

// Hub broadcasts events to subscribers. Slow subscribers miss events rather
// than blocking the request that produced them.
type Hub struct {
	mu   sync.Mutex
	subs map[chan model.AuditEvent]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan model.AuditEvent]struct{})}
}

// Subscribe returns a channel of events and a function that releases it.
func (h *Hub) Subscribe() (<-chan model.AuditEvent, func()) {
	ch := make(chan model.AuditEvent, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *Hub) Publish(ev model.AuditEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
