package eventbus

import (
	"context"

	"github.com/altuslabsxyz/walletkit/internal/txpipe"
)

// Signal suffixes for an action's outcome.
const (
	SuffixDone  = "-done"
	SuffixFault = "-fault"
	SuffixError = "-error"
)

// Done is the signal dispatched when action succeeds.
func Done(action string) string { return action + SuffixDone }

// Fault is the signal dispatched when action's transaction fails.
func Fault(action string) string { return action + SuffixFault }

// Error is the signal dispatched when action could not be started.
func Error(action string) string { return action + SuffixError }

// BindRendering forwards renderings to observe until the stream ends, then
// dispatches the action's done or fault signal according to the terminal
// phase. A stream that ends without a terminal phase (cancelled) dispatches
// nothing. It returns the last rendering seen.
func BindRendering(bus *Bus, action string, renderings <-chan txpipe.Rendering, observe func(txpipe.Rendering)) txpipe.Rendering {
	var last txpipe.Rendering
	for r := range renderings {
		last = r
		if observe != nil {
			observe(r)
		}
	}

	switch last.Phase {
	case txpipe.PhaseSucceed:
		bus.Dispatch(Done(action))
	case txpipe.PhaseFail:
		bus.Dispatch(Fault(action))
	}
	return last
}

// StartFunc builds the stream for one action run.
type StartFunc func() (*txpipe.Stream, error)

// Run starts an action and binds it to bus. A start error dispatches the
// action's error signal and is returned.
func Run(ctx context.Context, bus *Bus, action string, start StartFunc, observe func(txpipe.Rendering)) (txpipe.Rendering, error) {
	s, err := start()
	if err != nil {
		bus.log().Warn("action could not start", "action", action, "error", err)
		bus.Dispatch(Error(action))
		return txpipe.Rendering{}, err
	}
	return BindRendering(bus, action, s.Start(ctx), observe), nil
}
