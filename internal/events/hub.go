package events

import (
	"context"
	"sync"
)

const subscriberBuffer = 16

// Hub is an in-process Bus. Slow subscribers drop payloads rather than block
// publishers; listeners only need the latest cart state.
type Hub struct {
	mu   sync.Mutex
	subs map[string]map[*subscription]struct{}
}

type subscription struct {
	ch   chan []byte
	once sync.Once
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[*subscription]struct{})}
}

func (h *Hub) Publish(_ context.Context, topic string, payload []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs[topic] {
		select {
		case sub.ch <- payload:
		default:
		}
	}
	return nil
}

func (h *Hub) Subscribe(ctx context.Context, topic string) (<-chan []byte, func(), error) {
	sub := &subscription{ch: make(chan []byte, subscriberBuffer)}

	h.mu.Lock()
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[*subscription]struct{})
	}
	h.subs[topic][sub] = struct{}{}
	h.mu.Unlock()

	release := func() {
		sub.once.Do(func() {
			h.mu.Lock()
			delete(h.subs[topic], sub)
			if len(h.subs[topic]) == 0 {
				delete(h.subs, topic)
			}
			close(sub.ch)
			h.mu.Unlock()
		})
	}

	// No goroutine waits on ctx; an explicit cancel deregisters the callback.
	stop := context.AfterFunc(ctx, release)
	cancel := func() {
		stop()
		release()
	}

	return sub.ch, cancel, nil
}

// Subscribers reports the number of live subscriptions on topic.
func (h *Hub) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}
