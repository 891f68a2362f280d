package autofarm

import (
	"context"
	"errors"
	"fmt"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/lightningnetwork/lnd/clock"
)

// ErrNotReady is returned when a readiness check never passed within its
// attempt budget.
var ErrNotReady = errors.New("state did not refresh in time")

// ReadyFunc reports whether the state the next step depends on has caught up.
type ReadyFunc func(ctx context.Context) (bool, error)

// Poller bounds a readiness check.
type Poller struct {
	Attempts int
	Interval time.Duration
	Clock    clock.Clock
}

// Wait calls check until it reports ready, it fails, the attempts run out
// or ctx is done. Errors from check are returned as is.
func (p Poller) Wait(ctx context.Context, check ReadyFunc) error {
	if check == nil {
		return nil
	}

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		ok, err := check(ctx)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		if attempt == p.Attempts {
			break
		}

		select {
		case <-p.Clock.TickAfter(p.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts", ErrNotReady, p.Attempts)
}

// BalanceFunc reads a balance in micro units.
type BalanceFunc func(ctx context.Context) (sdkmath.Int, error)

// BalanceChanged returns a check that passes once balance differs from the
// value it had when BalanceChanged was called.
func BalanceChanged(ctx context.Context, balance BalanceFunc) (ReadyFunc, error) {
	before, err := balance(ctx)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context) (bool, error) {
		now, err := balance(ctx)
		if err != nil {
			return false, err
		}
		return !now.Equal(before), nil
	}, nil
}
