// Package watch provides in-process live-query fan-out: a subscriber gets one
// immediate snapshot of its result set and a fresh snapshot after every change
// that touches its topic, until it unsubscribes.
package watch

import "sync"

// Hub fans snapshots out to subscribers by topic. T is the snapshot type,
// typically a slice of records matching the topic's query.
type Hub[T any] struct {
	mu     sync.Mutex
	subs   map[string]map[int]func(T)
	nextID int
}

// NewHub creates an empty hub.
func NewHub[T any]() *Hub[T] {
	return &Hub[T]{
		subs: make(map[string]map[int]func(T)),
	}
}

// Subscribe registers fn on topic and synchronously delivers the initial
// snapshot produced by load. Registration and initial delivery happen under
// the hub lock, so no published change can slip between them. The returned
// function cancels the subscription; after it returns, fn is never invoked
// again.
//
// Callbacks run with the hub lock held and must not re-enter the hub.
func (h *Hub[T]) Subscribe(topic string, load func() (T, error), fn func(T)) (func(), error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	initial, err := load()
	if err != nil {
		return nil, err
	}

	if h.subs[topic] == nil {
		h.subs[topic] = make(map[int]func(T))
	}
	id := h.nextID
	h.nextID++
	h.subs[topic][id] = fn

	fn(initial)

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		delete(h.subs[topic], id)
		if len(h.subs[topic]) == 0 {
			delete(h.subs, topic)
		}
	}
	return unsubscribe, nil
}

// Publish delivers a fresh snapshot to every subscriber of topic. The load
// function is only evaluated when the topic has subscribers, so write paths
// can publish unconditionally without paying for unwatched queries. A load
// failure drops this delivery; subscribers keep their previous snapshot.
func (h *Hub[T]) Publish(topic string, load func() (T, error)) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.subs[topic]) == 0 {
		return nil
	}
	snapshot, err := load()
	if err != nil {
		return err
	}
	for _, fn := range h.subs[topic] {
		fn(snapshot)
	}
	return nil
}

// Subscribers returns the number of active subscriptions on topic.
func (h *Hub[T]) Subscribers(topic string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[topic])
}
