// Package notify implements the live-update fan-out: one writer publishing
// entity change events, many subscribed connections receiving them.
// Delivery is best-effort; a client that disconnects or falls behind misses
// events and reconciles by refetching state on reconnect.
package notify

import (
	"sync"

	"huduma-svc/models"

	"go.uber.org/zap"
)

const subscriberBuffer = 16

type Subscriber struct {
	userID int
	admin  bool
	ch     chan models.Event
}

// Events is the subscriber's receive channel. It is closed on Unsubscribe.
func (s *Subscriber) Events() <-chan models.Event { return s.ch }

type Hub struct {
	mu     sync.RWMutex
	subs   map[*Subscriber]struct{}
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   make(map[*Subscriber]struct{}),
		logger: logger,
	}
}

// Subscribe registers a connection for events scoped to userID. Admin
// subscribers receive every event regardless of ownership.
func (h *Hub) Subscribe(userID int, admin bool) *Subscriber {
	sub := &Subscriber{
		userID: userID,
		admin:  admin,
		ch:     make(chan models.Event, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("Client subscribed", zap.Int("user_id", userID), zap.Bool("admin", admin))
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subs[sub]; ok {
		delete(h.subs, sub)
		close(sub.ch)
	}
	h.mu.Unlock()

	h.logger.Info("Client unsubscribed", zap.Int("user_id", sub.userID))
}

// Publish delivers evt to the owning user's subscribers and to all admin
// subscribers. Sends are non-blocking: a subscriber whose buffer is full
// drops the event rather than stalling the publisher, which keeps per-entity
// ordering intact for everyone else.
func (h *Hub) Publish(evt models.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for sub := range h.subs {
		if !sub.admin && sub.userID != evt.UserID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			h.logger.Warn("Dropping event for slow subscriber",
				zap.Int("user_id", sub.userID),
				zap.String("kind", string(evt.Kind)),
			)
		}
	}
}

// SubscriberCount is used by tests and the health endpoint.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}
