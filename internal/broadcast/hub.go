package broadcast

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"parking-service/internal/service"
)

// Subscriber is one dashboard's outbound queue.
type Subscriber struct {
	id   uuid.UUID
	send chan []byte
}

func (s *Subscriber) ID() uuid.UUID {
	return s.id
}

// Messages is closed when the subscriber is removed from the hub.
func (s *Subscriber) Messages() <-chan []byte {
	return s.send
}

// Hub fans every bus message out to the local subscribers. Delivery never
// blocks: a full queue loses that message for that subscriber only.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[uuid.UUID]*Subscriber
	buffer      int
	log         zerolog.Logger
}

func NewHub(buffer int, log zerolog.Logger) *Hub {
	if buffer <= 0 {
		buffer = 64
	}
	return &Hub{
		subscribers: make(map[uuid.UUID]*Subscriber),
		buffer:      buffer,
		log:         log,
	}
}

func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		id:   uuid.New(),
		send: make(chan []byte, h.buffer),
	}

	h.mu.Lock()
	h.subscribers[sub.id] = sub
	total := len(h.subscribers)
	h.mu.Unlock()

	h.log.Debug().Str("subscriber_id", sub.id.String()).Int("subscribers", total).Msg("dashboard subscribed")
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	if _, ok := h.subscribers[sub.id]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.subscribers, sub.id)
	close(sub.send)
	total := len(h.subscribers)
	h.mu.Unlock()

	h.log.Debug().Str("subscriber_id", sub.id.String()).Int("subscribers", total).Msg("dashboard unsubscribed")
}

// Deliver hands msg to every subscriber.
func (h *Hub) Deliver(msg []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subscribers {
		h.enqueue(sub, msg)
	}
}

// Send queues msg for a single subscriber. It reports false when the
// subscriber is gone or its queue is full.
func (h *Hub) Send(sub *Subscriber, msg []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if _, ok := h.subscribers[sub.id]; !ok {
		return false
	}
	return h.enqueue(sub, msg)
}

func (h *Hub) enqueue(sub *Subscriber, msg []byte) bool {
	select {
	case sub.send <- msg:
		return true
	default:
		h.log.Warn().Str("subscriber_id", sub.id.String()).Msg("dropping dashboard message, queue full")
		return false
	}
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Run pumps bus messages into the hub until ctx is done. A bus that closes
// while ctx is live is an error. Remaining subscribers are released on return.
func (h *Hub) Run(ctx context.Context, bus Bus) error {
	messages, err := bus.Subscribe(ctx)
	if err != nil {
		return err
	}
	defer h.closeAll()

	h.log.Info().Msg("dashboard hub started")
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("dashboard hub stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("%w: bus subscription closed", service.ErrTransient)
			}
			h.Deliver(msg)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, sub := range h.subscribers {
		delete(h.subscribers, id)
		close(sub.send)
	}
}
