package autofarm

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/walletkit/internal/eventbus"
	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// signals records auto-* requests.
type signals struct {
	mu  sync.Mutex
	got []string
}

func (s *signals) add(v string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, v)
}

func (s *signals) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.got...)
}

// answer makes every auto-* request immediately report outcome[action],
// done when absent.
func answer(bus *eventbus.Bus, outcome map[string]string) *signals {
	rec := &signals{}
	for _, action := range []string{ActionClaimAll, ActionProvideLiquidity, ActionStakeLP} {
		bus.On(AutoSignal(action), func() {
			rec.add(action)
			if signal, ok := outcome[action]; ok {
				bus.Dispatch(signal)
				return
			}
			bus.Dispatch(eventbus.Done(action))
		})
	}
	return rec
}

func wait(t *testing.T, f *Farm) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := f.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded)
	return err
}

func newFarm(bus *eventbus.Bus, cfg Config) *Farm {
	cfg.Bus = bus
	if cfg.Clock == nil {
		cfg.Clock = clock.NewTestClock(time.Unix(0, 0))
	}
	return New(cfg)
}

func TestFarm_RunsAllSteps(t *testing.T) {
	bus := eventbus.New()
	rec := answer(bus, nil)
	f := newFarm(bus, Config{})
	defer f.Close()

	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, wait(t, f))

	assert.Equal(t, []string{ActionClaimAll, ActionProvideLiquidity, ActionStakeLP}, rec.list())
	assert.Equal(t, StepIdle, f.Step().Get())
	assert.False(t, f.Farming().Get())

	// the run's listeners are released: a repeated outcome starts nothing
	bus.Dispatch(eventbus.Done(ActionClaimAll))
	assert.Never(t, func() bool { return len(rec.list()) > 3 }, 30*time.Millisecond, time.Millisecond)
}

func TestFarm_StopsOnFailure(t *testing.T) {
	tests := []struct {
		name   string
		signal string
		ran    []string
	}{
		{
			name:   "claim fault",
			signal: eventbus.Fault(ActionClaimAll),
			ran:    []string{ActionClaimAll},
		},
		{
			name:   "provide error",
			signal: eventbus.Error(ActionProvideLiquidity),
			ran:    []string{ActionClaimAll, ActionProvideLiquidity},
		},
		{
			name:   "stake fault",
			signal: eventbus.Fault(ActionStakeLP),
			ran:    []string{ActionClaimAll, ActionProvideLiquidity, ActionStakeLP},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bus := eventbus.New()
			action := tt.ran[len(tt.ran)-1]
			rec := answer(bus, map[string]string{action: tt.signal})
			f := newFarm(bus, Config{})
			defer f.Close()

			require.NoError(t, f.Start(context.Background()))
			err := wait(t, f)

			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, action, stepErr.Action)
			assert.Equal(t, tt.signal, stepErr.Signal)
			assert.Equal(t, tt.ran, rec.list())
			assert.Equal(t, StepIdle, f.Step().Get())
		})
	}
}

func TestFarm_WaitsForReadiness(t *testing.T) {
	signal := make(chan time.Duration, 8)
	clk := clock.NewTestClockWithTickSignal(time.Unix(0, 0), signal)

	bus := eventbus.New()
	rec := answer(bus, nil)

	var checks atomic.Int32
	var prepared atomic.Int32
	f := newFarm(bus, Config{
		Clock:         clk,
		ReadyAttempts: 5,
		AfterClaim: func(ctx context.Context) (ReadyFunc, error) {
			prepared.Add(1)
			return func(ctx context.Context) (bool, error) {
				return checks.Add(1) >= 3, nil
			}, nil
		},
	})
	defer f.Close()

	require.NoError(t, f.Start(context.Background()))

	for i := 0; i < 2; i++ {
		select {
		case d := <-signal:
			assert.Equal(t, []string{ActionClaimAll}, rec.list(), "provide must wait for the refresh")
			clk.SetTime(clk.Now().Add(d))
		case <-time.After(5 * time.Second):
			t.Fatal("farm never waited")
		}
	}

	require.NoError(t, wait(t, f))
	assert.Equal(t, int32(3), checks.Load())
	assert.Equal(t, int32(1), prepared.Load())
	assert.Equal(t, []string{ActionClaimAll, ActionProvideLiquidity, ActionStakeLP}, rec.list())
}

func TestFarm_ReadinessExhausted(t *testing.T) {
	bus := eventbus.New()
	rec := answer(bus, nil)

	f := newFarm(bus, Config{
		ReadyAttempts: 1,
		AfterProvide: func(ctx context.Context) (ReadyFunc, error) {
			return func(ctx context.Context) (bool, error) { return false, nil }, nil
		},
	})
	defer f.Close()

	require.NoError(t, f.Start(context.Background()))
	assert.ErrorIs(t, wait(t, f), ErrNotReady)
	assert.Equal(t, []string{ActionClaimAll, ActionProvideLiquidity}, rec.list())
}

func TestFarm_PrepareError(t *testing.T) {
	bus := eventbus.New()
	rec := answer(bus, nil)

	f := newFarm(bus, Config{
		AfterClaim: func(ctx context.Context) (ReadyFunc, error) {
			return nil, errors.New("lcd down")
		},
	})
	defer f.Close()

	require.NoError(t, f.Start(context.Background()))
	assert.ErrorContains(t, wait(t, f), "lcd down")
	assert.Empty(t, rec.list())
}

func TestFarm_StartAndStop(t *testing.T) {
	bus := eventbus.New()
	// nobody answers: the run stays on the claim step
	f := newFarm(bus, Config{})
	defer f.Close()

	require.NoError(t, f.Start(context.Background()))
	assert.ErrorIs(t, f.Start(context.Background()), ErrRunning)
	assert.Equal(t, StepClaim, f.Step().Get())
	assert.True(t, f.Farming().Get())

	f.Stop()
	assert.ErrorIs(t, wait(t, f), ErrStopped)
	assert.False(t, f.Farming().Get())

	// a late outcome from the stopped run is ignored
	bus.Dispatch(eventbus.Done(ActionClaimAll))
	assert.Equal(t, StepIdle, f.Step().Get())

	require.NoError(t, f.Start(context.Background()))
	f.Stop()
}

type includedFetcher struct{}

func (includedFetcher) TxInfo(ctx context.Context, hash string) (*lcd.TxInfo, error) {
	return &lcd.TxInfo{TxHash: hash, Height: 1}, nil
}

func TestBind_RunsPipelines(t *testing.T) {
	bus := eventbus.New()

	var posts atomic.Int32
	start := func() (*txpipe.Stream, error) {
		return txpipe.Execute(txpipe.Params{
			Msgs: []wallet.Msg{{Type: wallet.MsgTypeExecuteContract}},
			Post: func(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error) {
				posts.Add(1)
				return &wallet.TxResult{Result: wallet.TxBroadcastResult{TxHash: "AB"}, Success: true}, nil
			},
			TxInfo: includedFetcher{},
			Clock:  clock.NewTestClock(time.Unix(0, 0)),
		}, nil), nil
	}

	var mu sync.Mutex
	succeeded := map[string]int{}
	unbind := Bind(context.Background(), bus, map[string]eventbus.StartFunc{
		ActionClaimAll:         start,
		ActionProvideLiquidity: start,
		ActionStakeLP:          start,
	}, func(action string, r txpipe.Rendering) {
		if r.Phase == txpipe.PhaseSucceed {
			mu.Lock()
			succeeded[action]++
			mu.Unlock()
		}
	})

	f := newFarm(bus, Config{})
	require.NoError(t, f.Start(context.Background()))
	require.NoError(t, wait(t, f))
	f.Close()
	unbind()

	assert.Equal(t, int32(3), posts.Load())
	assert.Equal(t, map[string]int{ActionClaimAll: 1, ActionProvideLiquidity: 1, ActionStakeLP: 1}, succeeded)
}

func TestPoller(t *testing.T) {
	p := Poller{Attempts: 3, Interval: time.Second, Clock: clock.NewTestClock(time.Unix(0, 0))}

	t.Run("nil check", func(t *testing.T) {
		assert.NoError(t, p.Wait(context.Background(), nil))
	})

	t.Run("error", func(t *testing.T) {
		err := p.Wait(context.Background(), func(ctx context.Context) (bool, error) {
			return false, errors.New("boom")
		})
		assert.EqualError(t, err, "boom")
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := p.Wait(ctx, func(ctx context.Context) (bool, error) { return false, nil })
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBalanceChanged(t *testing.T) {
	var balance atomic.Int64
	balance.Store(100)
	read := func(ctx context.Context) (sdkmath.Int, error) {
		return sdkmath.NewInt(balance.Load()), nil
	}

	ready, err := BalanceChanged(context.Background(), read)
	require.NoError(t, err)

	ok, err := ready(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	balance.Store(250)
	ok, err = ready(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
}
