package realtime

import (
	"context"
	"log/slog"
	"sync"
)

const sendQueueSize = 64

// Hub tracks live push connections keyed by user id.
type Hub struct {
	mu      sync.RWMutex
	clients map[uint64]map[*Client]struct{}
	logger  *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[uint64]map[*Client]struct{}),
		logger:  logger,
	}
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[c.userID] == nil {
		h.clients[c.userID] = make(map[*Client]struct{})
	}
	h.clients[c.userID][c] = struct{}{}
}

// unregister removes c and closes its queue. Safe to call more than once.
func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	set, ok := h.clients[c.userID]
	if !ok {
		return
	}
	if _, ok := set[c]; !ok {
		return
	}
	delete(set, c)
	close(c.send)
	if len(set) == 0 {
		delete(h.clients, c.userID)
	}
}

// ConnectionCount reports how many live connections a user has.
func (h *Hub) ConnectionCount(userID uint64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

// Deliver queues an encoded frame on every connection of the given users.
// A connection whose queue is full is dropped.
func (h *Hub) Deliver(userIDs []uint64, frame []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	seen := make(map[uint64]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}
		for c := range h.clients[uid] {
			select {
			case c.send <- frame:
			default:
				h.logger.Warn("dropping slow push client", "user_id", uid)
				h.removeLocked(c)
			}
		}
	}
}

// Publish delivers ev to local connections only.
func (h *Hub) Publish(_ context.Context, userIDs []uint64, ev Event) error {
	frame, err := encode(ev)
	if err != nil {
		return err
	}
	h.Deliver(userIDs, frame)
	return nil
}

var _ Publisher = (*Hub)(nil)

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, set := range h.clients {
		for c := range set {
			h.removeLocked(c)
		}
	}
}
