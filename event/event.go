// Package event is a small typed pub/sub bus. Handlers are registered per
// event type; On returns an unsubscribe func suitable for defer.
package event

import (
	"reflect"
	"sync"
)

type handlerEntry struct {
	id int
	fn func(any)
}

type bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[reflect.Type][]handlerEntry
}

var defaultBus = &bus{handlers: make(map[reflect.Type][]handlerEntry)}

// On registers fn for events of type T and returns an unsubscribe func.
func On[T any](fn func(T)) func() {
	t := reflect.TypeOf((*T)(nil)).Elem()

	defaultBus.mu.Lock()
	defaultBus.nextID++
	id := defaultBus.nextID
	defaultBus.handlers[t] = append(defaultBus.handlers[t], handlerEntry{
		id: id,
		fn: func(e any) { fn(e.(T)) },
	})
	defaultBus.mu.Unlock()

	return func() {
		defaultBus.mu.Lock()
		defer defaultBus.mu.Unlock()
		entries := defaultBus.handlers[t]
		for i, entry := range entries {
			if entry.id == id {
				defaultBus.handlers[t] = append(entries[:i], entries[i+1:]...)
				break
			}
		}
	}
}

// Emit delivers e synchronously to every handler registered for its type.
func Emit[T any](e T) {
	t := reflect.TypeOf((*T)(nil)).Elem()

	defaultBus.mu.Lock()
	entries := append([]handlerEntry(nil), defaultBus.handlers[t]...)
	defaultBus.mu.Unlock()

	for _, entry := range entries {
		entry.fn(e)
	}
}
