// Package eventbus is a synchronous, scope-local signal bus used to sequence
// multi-step flows.
package eventbus

import (
	"log/slog"
	"sync"
)

// Listener handles a signal.
type Listener func()

type entry struct {
	id uint64
	fn Listener
}

// Bus delivers named signals to the listeners registered at dispatch time.
// Signals with no listener are dropped. The zero value is not usable; use
// New.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	listeners map[string][]entry

	logger *slog.Logger
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{
		listeners: make(map[string][]entry),
		logger:    slog.Default(),
	}
}

// SetLogger sets the logger.
func (b *Bus) SetLogger(logger *slog.Logger) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.logger = logger
}

func (b *Bus) log() *slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logger
}

// Dispatch calls every listener of signal in registration order, on the
// caller's goroutine. Listeners may register, unregister or dispatch from
// within a listener; such changes apply from the next dispatch on.
func (b *Bus) Dispatch(signal string) {
	b.mu.Lock()
	entries := append([]entry(nil), b.listeners[signal]...)
	logger := b.logger
	b.mu.Unlock()

	logger.Debug("dispatch", "signal", signal, "listeners", len(entries))

	for _, e := range entries {
		e.fn()
	}
}

// On registers fn for signal and returns a function that unregisters it.
// The returned function is idempotent.
func (b *Bus) On(signal string, fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.listeners[signal] = append(b.listeners[signal], entry{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() { b.off(signal, id) })
	}
}

func (b *Bus) off(signal string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entries := b.listeners[signal]
	for i, e := range entries {
		if e.id == id {
			entries = append(entries[:i:i], entries[i+1:]...)
			break
		}
	}
	if len(entries) == 0 {
		delete(b.listeners, signal)
		return
	}
	b.listeners[signal] = entries
}

// Reset drops every listener, as when the owning scope ends.
func (b *Bus) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[string][]entry)
}

func (b *Bus) listenerCount(signal string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[signal])
}
