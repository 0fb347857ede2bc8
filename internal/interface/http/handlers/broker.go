package handlers

import (
	"strings"
	"sync"
)

const listenerBufferSize = 100

type listener[T any] struct {
	id     string
	topics map[string]struct{}
	ch     chan T
}

func newListener[T any](id string, topics []string) *listener[T] {
	topicsMap := make(map[string]struct{})
	for _, topic := range topics {
		if topic = formatTopic(topic); len(topic) > 0 {
			topicsMap[topic] = struct{}{}
		}
	}
	return &listener[T]{
		id:     id,
		topics: topicsMap,
		ch:     make(chan T, listenerBufferSize),
	}
}

// includesAny returns true if the listener subscribed to no topic at all, or to
// at least one of the given ones.
func (l *listener[T]) includesAny(topics ...string) bool {
	if len(l.topics) == 0 {
		return true
	}

	for _, topic := range topics {
		if _, ok := l.topics[formatTopic(topic)]; ok {
			return true
		}
	}
	return false
}

// broker fans out events to the set of subscribed listeners, it is safe for
// concurrent use.
type broker[T any] struct {
	lock      *sync.RWMutex
	listeners map[string]*listener[T]
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{
		lock:      &sync.RWMutex{},
		listeners: make(map[string]*listener[T], 0),
	}
}

func (h *broker[T]) pushListener(l *listener[T]) {
	h.lock.Lock()
	defer h.lock.Unlock()

	h.listeners[l.id] = l
}

func (h *broker[T]) removeListener(id string) {
	h.lock.Lock()
	defer h.lock.Unlock()

	delete(h.listeners, id)
}

// publish delivers the event to every interested listener without blocking. It
// returns how many listeners got it and how many missed it with a full buffer.
func (h *broker[T]) publish(event T, topics ...string) (int, int) {
	h.lock.RLock()
	defer h.lock.RUnlock()

	delivered, dropped := 0, 0
	for _, l := range h.listeners {
		if !l.includesAny(topics...) {
			continue
		}
		select {
		case l.ch <- event:
			delivered++
		default:
			dropped++
		}
	}
	return delivered, dropped
}

func (h *broker[T]) hasListeners() bool {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.listeners) > 0
}

func formatTopic(topic string) string {
	return strings.Trim(strings.ToLower(topic), " ")
}
