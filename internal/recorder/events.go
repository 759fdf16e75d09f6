package recorder

import (
	"sync"
	"time"
)

// Event is one session transition as published to subscribers.
type Event struct {
	Time      time.Time `json:"time"`
	SessionID string    `json:"session_id"`
	Account   string    `json:"account"`
	Phase     Phase     `json:"phase"`
	Path      string    `json:"path,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Hub fans session events out to subscribers. Slow subscribers miss events
// instead of stalling recordings. A nil *Hub discards everything.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Event]struct{}
}

// NewHub returns a hub without subscribers.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Event]struct{})}
}

// Subscribe registers a buffered subscriber. The returned cancel func
// unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	ch := make(chan Event, buffer)
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

// Publish delivers e to every subscriber with room in its buffer.
func (h *Hub) Publish(e Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers is the number of registered subscribers.
func (h *Hub) Subscribers() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
