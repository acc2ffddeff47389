// Package bus is a typed publish/subscribe point between components.
// Handlers run in registration order, one publish at a time, each to completion.
package bus

import "sync"

type Handler[T any] func(T)

type subscriber[T any] struct {
	id int
	fn Handler[T]
}

type Bus[T any] struct {
	mu      sync.Mutex
	deliver sync.Mutex
	nextID  int
	subs    []subscriber[T]
}

func New[T any]() *Bus[T] {
	return &Bus[T]{}
}

// Subscribe registers fn and returns a func that removes it.
func (b *Bus[T]) Subscribe(fn Handler[T]) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscriber[T]{id: id, fn: fn})
	return func() { b.unsubscribe(id) }
}

func (b *Bus[T]) unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish delivers v to every handler registered at call time.
// A handler must not publish on the same bus.
func (b *Bus[T]) Publish(v T) {
	b.deliver.Lock()
	defer b.deliver.Unlock()

	b.mu.Lock()
	subs := make([]subscriber[T], len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		s.fn(v)
	}
}

// Clear detaches all handlers.
func (b *Bus[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = nil
}

func (b *Bus[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
