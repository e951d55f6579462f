// Package realtime fans collection changes out to live subscribers.
package realtime

import (
	"log/slog"
	"sync"
)

// UnsubscribeFunc detaches a subscription. Calling it more than once is safe.
type UnsubscribeFunc func()

// Hub tracks subscribers per owner and signals them when the owner's
// collection changes. Signals carry no payload: a subscriber reloads the
// snapshot itself, so bursts of changes coalesce into one pending signal.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan struct{}]struct{})}
}

// Subscribe registers interest in ownerID's changes.
// The returned channel is closed after unsubscribe.
func (h *Hub) Subscribe(ownerID string) (<-chan struct{}, UnsubscribeFunc) {
	ch := make(chan struct{}, 1)

	h.mu.Lock()
	owned, ok := h.subs[ownerID]
	if !ok {
		owned = make(map[chan struct{}]struct{})
		h.subs[ownerID] = owned
	}
	owned[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			delete(h.subs[ownerID], ch)
			if len(h.subs[ownerID]) == 0 {
				delete(h.subs, ownerID)
			}
			close(ch)
		})
	}
}

// Publish signals every subscriber of ownerID without blocking.
func (h *Hub) Publish(ownerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs[ownerID] {
		select {
		case ch <- struct{}{}:
		default:
			// A signal is already pending.
		}
	}
	slog.Debug("collection change published", "owner_id", ownerID, "subscribers", len(h.subs[ownerID]))
}

// Subscribers returns the number of live subscriptions for ownerID.
func (h *Hub) Subscribers(ownerID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[ownerID])
}
