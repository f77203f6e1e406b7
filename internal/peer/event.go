package peer

import "sync"

// Event is a list of handlers notified synchronously, in subscription order.
// The zero value is ready to use and emitting with no handlers is a no-op.
type Event[T any] struct {
	mu       sync.RWMutex
	nextID   uint64
	handlers []subscription[T]
}

type subscription[T any] struct {
	id uint64
	fn func(T)
}

// Subscribe adds fn and returns a function removing it again. Unsubscribing
// from inside a handler is safe.
func (e *Event[T]) Subscribe(fn func(T)) (unsubscribe func()) {
	e.mu.Lock()
	e.nextID++
	id := e.nextID
	e.handlers = append(e.handlers, subscription[T]{id: id, fn: fn})
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *Event[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, sub := range e.handlers {
		if sub.id == id {
			e.handlers = append(e.handlers[:i:i], e.handlers[i+1:]...)
			return
		}
	}
}

// Active reports whether any handler is subscribed.
func (e *Event[T]) Active() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers) > 0
}

// Emit calls every handler with v on the calling goroutine.
func (e *Event[T]) Emit(v T) {
	e.mu.RLock()
	handlers := e.handlers
	e.mu.RUnlock()

	for _, sub := range handlers {
		sub.fn(v)
	}
}
