// Package events fans project changes out to in-process subscribers.
package events

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/seia/seia-translator/internal/project"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 32

// Hub implements project.Notifier. Publishing never blocks: a subscriber
// whose buffer is full misses the event.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	subs   map[*Subscription]struct{}
	closed bool

	dropped atomic.Uint64
}

// Subscription is one consumer of the hub.
type Subscription struct {
	C <-chan project.Change

	ch   chan project.Change
	hub  *Hub
	once sync.Once
}

func NewHub(buffer int, logger *slog.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Hub{logger: logger, buffer: buffer, subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a new consumer. After Close the returned
// subscription's channel is already closed.
func (h *Hub) Subscribe() *Subscription {
	ch := make(chan project.Change, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		sub.once.Do(func() {})
		return sub
	}
	h.subs[sub] = struct{}{}
	return sub
}

// Close unsubscribes and closes the channel. Safe to call twice.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		delete(s.hub.subs, s)
		s.hub.mu.Unlock()
		close(s.ch)
	})
}

// Notify delivers c to every subscriber with room in its buffer.
func (h *Hub) Notify(c project.Change) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return
	}
	for sub := range h.subs {
		select {
		case sub.ch <- c:
		default:
			h.dropped.Add(1)
			h.logger.Debug("dropped change for slow subscriber", "project_id", c.ProjectID, "type", c.Type)
		}
	}
}

// Subscribers returns the live subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped returns how many deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	subs := h.subs
	h.subs = make(map[*Subscription]struct{})
	h.mu.Unlock()

	for sub := range subs {
		sub.once.Do(func() { close(sub.ch) })
	}
}

var _ project.Notifier = (*Hub)(nil)
