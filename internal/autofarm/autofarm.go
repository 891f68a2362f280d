// Package autofarm chains claim, provide liquidity and stake LP into one
// run, driven through an event bus. Between steps it waits until the state
// the next step depends on has refreshed.
package autofarm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/altuslabsxyz/walletkit/internal/eventbus"
	"github.com/altuslabsxyz/walletkit/internal/stream"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
)

// Actions of a farm run, in order.
const (
	ActionClaimAll         = "claim-all"
	ActionProvideLiquidity = "provide-liquidity"
	ActionStakeLP          = "stake-lp"
)

// Steps reported by Farm.Step.
const (
	StepIdle             = -1
	StepClaim            = 0
	StepProvideLiquidity = 1
	StepStakeLP          = 2
)

// Defaults for the readiness poller.
const (
	DefaultReadyAttempts = 10
	DefaultReadyInterval = 1 * time.Second
)

var (
	// ErrRunning is returned by Start while a run is in progress.
	ErrRunning = errors.New("auto farm is already running")

	// ErrStopped is the result of a run ended by Stop.
	ErrStopped = errors.New("auto farm stopped")
)

// AutoSignal is the signal that asks action's owner to start it.
func AutoSignal(action string) string {
	return "auto-" + action
}

// StepError is the result of a run ended by a failing step.
type StepError struct {
	Action string
	Signal string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("auto farm stopped: %s reported %s", e.Action, e.Signal)
}

// Readiness is called right before a step starts and returns the check
// that tells when that step's effects are visible.
type Readiness func(ctx context.Context) (ReadyFunc, error)

// Config configures a Farm.
type Config struct {
	Bus *eventbus.Bus

	AfterClaim   Readiness
	AfterProvide Readiness

	ReadyAttempts int
	ReadyInterval time.Duration
	Clock         clock.Clock

	Logger *slog.Logger
}

// Farm runs the claim, provide liquidity, stake LP sequence.
type Farm struct {
	bus     *eventbus.Bus
	prepare [2]Readiness
	poller  Poller
	logger  *slog.Logger

	step    *stream.Value[int]
	farming *stream.Value[bool]

	mu      sync.Mutex
	run     uint64
	running bool
	cancel  context.CancelFunc
	offs    []func()
	readies [2]ReadyFunc
	done    chan struct{}
	result  error
	wg      sync.WaitGroup
}

// New creates an idle farm.
func New(cfg Config) *Farm {
	if cfg.ReadyAttempts <= 0 {
		cfg.ReadyAttempts = DefaultReadyAttempts
	}
	if cfg.ReadyInterval <= 0 {
		cfg.ReadyInterval = DefaultReadyInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	done := make(chan struct{})
	close(done)

	return &Farm{
		bus:     cfg.Bus,
		prepare: [2]Readiness{cfg.AfterClaim, cfg.AfterProvide},
		poller:  Poller{Attempts: cfg.ReadyAttempts, Interval: cfg.ReadyInterval, Clock: cfg.Clock},
		logger:  cfg.Logger,
		step:    stream.NewValue(StepIdle),
		farming: stream.NewValue(false),
		done:    done,
	}
}

// Step is the step in progress, StepIdle when not farming.
func (f *Farm) Step() stream.Observable[int] {
	return f.step
}

// Farming reports whether a run is in progress.
func (f *Farm) Farming() stream.Observable[bool] {
	return f.farming
}

// Start begins a run with the claim step. The run goes on in the
// background; use Wait for its result.
func (f *Farm) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.running {
		f.mu.Unlock()
		return ErrRunning
	}

	ctx, cancel := context.WithCancel(ctx)
	f.run++
	run := f.run
	f.running = true
	f.cancel = cancel
	f.done = make(chan struct{})
	f.result = nil

	on := func(signal string, fn func()) {
		f.offs = append(f.offs, f.bus.On(signal, fn))
	}
	advance := func(from int, next int, action string) func() {
		return func() {
			if !f.current(run) {
				return
			}
			f.wg.Add(1)
			go func() {
				defer f.wg.Done()
				f.advance(ctx, run, from, next, action)
			}()
		}
	}

	on(eventbus.Done(ActionClaimAll), advance(StepClaim, StepProvideLiquidity, ActionProvideLiquidity))
	on(eventbus.Done(ActionProvideLiquidity), advance(StepProvideLiquidity, StepStakeLP, ActionStakeLP))
	on(eventbus.Done(ActionStakeLP), func() { f.finish(run, nil) })
	for _, action := range []string{ActionClaimAll, ActionProvideLiquidity, ActionStakeLP} {
		for _, signal := range []string{eventbus.Fault(action), eventbus.Error(action)} {
			on(signal, func() { f.finish(run, &StepError{Action: action, Signal: signal}) })
		}
	}

	f.farming.Set(true)
	f.mu.Unlock()

	f.logger.Info("auto farm started")
	f.begin(ctx, run, StepClaim, ActionClaimAll)
	return nil
}

// Stop ends the current run, if any.
func (f *Farm) Stop() {
	f.mu.Lock()
	run := f.run
	f.mu.Unlock()
	f.finish(run, ErrStopped)
}

// Wait blocks until the current run ends and returns its result: nil when
// every step succeeded.
func (f *Farm) Wait(ctx context.Context) error {
	f.mu.Lock()
	done := f.done
	f.mu.Unlock()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.result
}

// Close stops the run and waits for its background work.
func (f *Farm) Close() {
	f.Stop()
	f.wg.Wait()
}

// begin moves to step and asks for action. Readiness for the step is
// prepared first so it snapshots the state before the step's effects.
func (f *Farm) begin(ctx context.Context, run uint64, step int, action string) {
	if step < len(f.prepare) && f.prepare[step] != nil {
		ready, err := f.prepare[step](ctx)
		if err != nil {
			f.finish(run, fmt.Errorf("prepare %s: %w", action, err))
			return
		}
		f.setReady(run, step, ready)
	}

	if !f.enter(run, step) {
		return
	}
	f.logger.Info("auto farm step", "step", step, "action", action)
	f.bus.Dispatch(AutoSignal(action))
}

func (f *Farm) advance(ctx context.Context, run uint64, from, next int, action string) {
	if err := f.poller.Wait(ctx, f.ready(run, from)); err != nil {
		if ctx.Err() == nil {
			f.logger.Warn("auto farm state did not refresh", "step", from, "error", err)
		}
		f.finish(run, err)
		return
	}
	f.begin(ctx, run, next, action)
}

func (f *Farm) setReady(run uint64, step int, ready ReadyFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running && f.run == run {
		f.readies[step] = ready
	}
}

func (f *Farm) ready(run uint64, step int) ReadyFunc {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.run != run || step >= len(f.readies) {
		return nil
	}
	return f.readies[step]
}

func (f *Farm) enter(run uint64, step int) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.running || f.run != run {
		return false
	}
	f.step.Set(step)
	return true
}

func (f *Farm) current(run uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running && f.run == run
}

// finish ends run with result. Later calls for the same run are ignored.
func (f *Farm) finish(run uint64, result error) {
	f.mu.Lock()
	if !f.running || f.run != run {
		f.mu.Unlock()
		return
	}
	f.running = false
	f.result = result
	f.cancel()
	offs := f.offs
	f.offs = nil
	f.readies = [2]ReadyFunc{}
	f.step.Set(StepIdle)
	f.farming.Set(false)
	done := f.done
	f.mu.Unlock()

	for _, off := range offs {
		off()
	}
	close(done)

	if result != nil {
		f.logger.Warn("auto farm ended", "error", result)
	} else {
		f.logger.Info("auto farm completed")
	}
}

// Bind makes bus start each action when the farm asks for it. Every
// request runs the action's transaction in the background and reports its
// outcome on bus. observe, when set, sees every rendering.
func Bind(ctx context.Context, bus *eventbus.Bus, actions map[string]eventbus.StartFunc, observe func(action string, r txpipe.Rendering)) (unbind func()) {
	var wg sync.WaitGroup
	var offs []func()

	for action, start := range actions {
		offs = append(offs, bus.On(AutoSignal(action), func() {
			wg.Add(1)
			go func() {
				defer wg.Done()
				var obs func(txpipe.Rendering)
				if observe != nil {
					obs = func(r txpipe.Rendering) { observe(action, r) }
				}
				_, _ = eventbus.Run(ctx, bus, action, start, obs)
			}()
		}))
	}

	return func() {
		for _, off := range offs {
			off()
		}
		wg.Wait()
	}
}
