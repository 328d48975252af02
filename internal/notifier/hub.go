package notifier

import (
	"context"
	"sync"

	"github.com/ibeloyar/payrelay/internal/model"
)

const subscriberBuffer = 16

type subscriber struct {
	uid    string
	events chan model.PaymentConfirmed
}

// Hub fans payment confirmations out to in-process subscribers, typically
// the realtime event stream handlers. A subscriber that does not keep up
// misses events, Publish never blocks.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber
}

func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]subscriber)}
}

// Subscribe registers interest in events for uid. The returned cancel
// function must be called to release the subscription.
func (h *Hub) Subscribe(uid string) (<-chan model.PaymentConfirmed, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++

	sub := subscriber{uid: uid, events: make(chan model.PaymentConfirmed, subscriberBuffer)}
	h.subs[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.events)
		})
	}

	return sub.events, cancel
}

func (h *Hub) Publish(_ context.Context, event model.PaymentConfirmed) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		if sub.uid != event.UID {
			continue
		}
		select {
		case sub.events <- event:
		default:
		}
	}

	return nil
}

func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.subs)
}
