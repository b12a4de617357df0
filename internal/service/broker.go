package service

import "sync"

// broker fans events out to per-user subscriber channels. Slow subscribers drop events.
type broker[T any] struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan T]struct{}
}

func newBroker[T any]() *broker[T] {
	return &broker[T]{subscribers: make(map[uint]map[chan T]struct{})}
}

func (b *broker[T]) subscribe(userID uint, ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan T]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *broker[T]) unsubscribe(userID uint, ch chan T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		if _, present := subscribers[ch]; !present {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *broker[T]) broadcast(userID uint, event T) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- event:
		default:
		}
	}
}
