// Package events fans out notifications to bounded subscriber channels.
package events

import "sync"

// Broker delivers published values to every subscriber. Publishing never
// blocks: a subscriber whose buffer is full misses the value.
type Broker[T any] struct {
	mu      sync.RWMutex
	nextID  int
	subs    map[int]chan T
	dropped func()
}

// NewBroker creates an empty broker. onDrop, if non-nil, is called once
// per value a subscriber could not accept.
func NewBroker[T any](onDrop func()) *Broker[T] {
	return &Broker[T]{subs: make(map[int]chan T), dropped: onDrop}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// function unsubscribes and closes the channel; it is safe to call twice.
func (b *Broker[T]) Subscribe(buffer int) (<-chan T, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan T, buffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
			close(ch)
		})
	}
}

// Publish sends v to all current subscribers.
func (b *Broker[T]) Publish(v T) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- v:
		default:
			if b.dropped != nil {
				b.dropped()
			}
		}
	}
}

// Len returns the number of subscribers.
func (b *Broker[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
