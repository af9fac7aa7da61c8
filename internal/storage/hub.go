// ABOUTME: In-memory fan-out of storage change events between views of one storage
// ABOUTME: Publishers exclude themselves, so a writer never sees its own change

package storage

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// Event describes a change to one key, as seen by views other than the writer.
type Event struct {
	Key      string
	OldValue string
	NewValue string
	Removed  bool
}

// Hub provides in-memory pub/sub for storage Events.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]chan Event // subID -> ch
	closed      bool
	logger      *slog.Logger
}

// NewHub creates a hub. Pass nil logger for default.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subscribers: make(map[string]chan Event),
		logger:      logger.With("component", "storage_hub"),
	}
}

// Subscribe registers a subscriber under subID (a fresh id if empty) and
// returns its channel and id. Re-subscribing an existing id replaces and closes
// the previous channel. The subscription is removed when ctx is cancelled.
func (h *Hub) Subscribe(ctx context.Context, subID string) (<-chan Event, string) {
	if subID == "" {
		subID = uuid.New().String()
	}
	ch := make(chan Event, subscriberBufferSize)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, subID
	}
	if prev, ok := h.subscribers[subID]; ok {
		close(prev)
	}
	h.subscribers[subID] = ch
	h.mu.Unlock()

	h.logger.Debug("subscriber added", "sub_id", subID)

	context.AfterFunc(ctx, func() {
		h.unsubscribeChannel(subID, ch)
	})

	return ch, subID
}

// Publish sends event to every subscriber except excludeSubID.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (h *Hub) Publish(event Event, excludeSubID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subscribers {
		if excludeSubID != "" && id == excludeSubID {
			continue
		}
		select {
		case ch <- event:
		default:
			h.logger.Debug("dropped event for slow subscriber",
				"sub_id", id,
				"key", event.Key)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (h *Hub) Unsubscribe(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch, ok := h.subscribers[subID]
	if !ok {
		return
	}
	delete(h.subscribers, subID)
	close(ch)

	h.logger.Debug("subscriber removed", "sub_id", subID)
}

// unsubscribeChannel removes subID only if it still maps to ch, so a stale
// context cancellation cannot tear down a newer subscription.
func (h *Hub) unsubscribeChannel(subID string, ch chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.subscribers[subID]; ok && cur == ch {
		delete(h.subscribers, subID)
		close(ch)
		h.logger.Debug("subscriber removed", "sub_id", subID)
	}
}

// Close closes all subscriber channels. Later subscriptions get a closed channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
	h.closed = true

	h.logger.Debug("hub closed")
}
