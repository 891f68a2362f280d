package stream

import "sync"

// Subscription is a handle to an active subscription.
type Subscription struct {
	cancel func()
	once   sync.Once
	done   <-chan struct{}
}

func newSubscription(cancel func(), done <-chan struct{}) *Subscription {
	return &Subscription{cancel: cancel, done: done}
}

// Cancel stops delivery. It does not wait for an in-flight callback, so it
// is safe to call from inside the callback itself.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}

// Done is closed once the subscription's delivery goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// CancelAndWait cancels the subscription and blocks until no callback is
// running. Must not be called from inside the subscription's own callback.
func (s *Subscription) CancelAndWait() {
	s.Cancel()
	<-s.done
}

// Join merges several subscriptions into one handle. Cancelling the result
// cancels all of them; Done closes once all of them are done.
func Join(subs ...*Subscription) *Subscription {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, s := range subs {
			<-s.Done()
		}
	}()

	return newSubscription(func() {
		for _, s := range subs {
			s.Cancel()
		}
	}, done)
}

// CombineLatest3 calls fn with the current values of a, b and c whenever any
// of them changes. Calls to fn are serialized.
func CombineLatest3[A, B, C any](a Observable[A], b Observable[B], c Observable[C], fn func(A, B, C)) *Subscription {
	var mu sync.Mutex
	emit := func() {
		mu.Lock()
		defer mu.Unlock()
		fn(a.Get(), b.Get(), c.Get())
	}

	return Join(
		a.Subscribe(func(A) { emit() }),
		b.Subscribe(func(B) { emit() }),
		c.Subscribe(func(C) { emit() }),
	)
}
