// Package stream provides hot, current-value observables.
//
// A Value always holds a current value. Subscribers receive the current value
// as soon as they subscribe and every later update afterwards. Each
// subscriber is served by its own goroutine, so callbacks never run while the
// publisher holds a lock and a slow subscriber never blocks Set. Delivery is
// latest-value: if several updates happen before a subscriber gets to run,
// it observes only the newest one.
package stream

import (
	"context"
	"sync"
)

// Observable is the read side of a Value.
type Observable[T any] interface {
	// Get returns the current value.
	Get() T

	// Subscribe registers fn for the current value and every update.
	Subscribe(fn func(T)) *Subscription

	// Watch streams the current value and updates until ctx is done.
	Watch(ctx context.Context) <-chan T
}

// Value is a multicast observable holding a current value.
type Value[T any] struct {
	mu     sync.Mutex
	value  T
	subs   map[uint64]*subscriber[T]
	nextID uint64
	closed bool
}

// NewValue creates a Value with an initial value.
func NewValue[T any](initial T) *Value[T] {
	return &Value[T]{
		value: initial,
		subs:  make(map[uint64]*subscriber[T]),
	}
}

// Get returns the current value.
func (v *Value[T]) Get() T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.value
}

// Set replaces the current value and notifies all subscribers.
func (v *Value[T]) Set(x T) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.value = x
	for _, s := range v.subs {
		s.offer(x)
	}
}

// Subscribe registers fn to receive the current value and all later updates.
// The returned Subscription must be cancelled to release its goroutine.
func (v *Value[T]) Subscribe(fn func(T)) *Subscription {
	v.mu.Lock()
	defer v.mu.Unlock()

	id := v.nextID
	v.nextID++

	s := newSubscriber(fn)
	sub := newSubscription(func() {
		v.mu.Lock()
		delete(v.subs, id)
		v.mu.Unlock()
		s.stop()
	}, s.done)

	if v.closed {
		// Never started; release waiters on Done right away.
		s.stop()
		close(s.done)
		return sub
	}

	v.subs[id] = s
	s.offer(v.value)
	go s.run()

	return sub
}

// Watch returns a channel that yields the current value and subsequent
// updates until ctx is done. Intermediate values may be skipped if the
// reader is slow. The channel is closed after ctx is done.
func (v *Value[T]) Watch(ctx context.Context) <-chan T {
	ch := make(chan T, 1)

	sub := v.Subscribe(func(x T) {
		// Keep only the newest value in the buffer.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- x:
		default:
		}
	})

	go func() {
		select {
		case <-ctx.Done():
		case <-sub.Done():
		}
		sub.Cancel()
		<-sub.Done()
		close(ch)
	}()

	return ch
}

var _ Observable[int] = (*Value[int])(nil)

// Close cancels every subscription. Later subscriptions are cancelled
// immediately. Set and Get keep working.
func (v *Value[T]) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.closed = true
	for id, s := range v.subs {
		delete(v.subs, id)
		s.stop()
	}
}

// subscriber delivers values to one callback from a dedicated goroutine.
type subscriber[T any] struct {
	fn func(T)

	mu      sync.Mutex
	pending T
	dirty   bool

	wake     chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func newSubscriber[T any](fn func(T)) *subscriber[T] {
	return &subscriber[T]{
		fn:   fn,
		wake: make(chan struct{}, 1),
		quit: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// offer stores x as the next value to deliver. It never blocks.
func (s *subscriber[T]) offer(x T) {
	s.mu.Lock()
	s.pending = x
	s.dirty = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber[T]) stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
	})
}

func (s *subscriber[T]) run() {
	defer close(s.done)

	for {
		select {
		case <-s.quit:
			return
		case <-s.wake:
		}

		s.mu.Lock()
		x, dirty := s.pending, s.dirty
		var zero T
		s.pending, s.dirty = zero, false
		s.mu.Unlock()

		if !dirty {
			continue
		}

		// A cancelled subscriber must not observe late values.
		select {
		case <-s.quit:
			return
		default:
		}

		s.fn(x)
	}
}
