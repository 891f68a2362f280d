package txpipe

import (
	"context"
	"slices"
)

// Emit delivers a rendering to the consumer. It returns false when the
// rendering was dropped, either because the consumer went away or because
// it would break phase ordering.
type Emit func(Rendering) bool

// Stage is one step of the chain. It receives the previous stage's output
// and may emit renderings before returning its own.
type Stage[In, Out any] func(ctx context.Context, in In, emit Emit) (Out, error)

// Then chains next after first. next does not run if first failed or ctx is
// done.
func Then[A, B, C any](first Stage[A, B], next Stage[B, C]) Stage[A, C] {
	return func(ctx context.Context, in A, emit Emit) (C, error) {
		var zero C

		mid, err := first(ctx, in, emit)
		if err != nil {
			return zero, err
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return next(ctx, mid, emit)
	}
}

// guard enforces phase ordering on one invocation: phases never go
// backwards, nothing follows a terminal phase, and receipts only accumulate.
type guard struct {
	last     Phase
	done     bool
	receipts []Receipt
	metrics  *Metrics
	out      func(Rendering) bool
}

func (g *guard) emit(r Rendering) bool {
	if g.done || r.Phase.rank() == 0 || r.Phase.rank() < g.last.rank() {
		return false
	}

	g.receipts = mergeReceipts(g.receipts, r.Receipts)
	r.Receipts = slices.Clone(g.receipts)
	g.last = r.Phase
	if r.Phase.IsTerminal() {
		g.done = true
	}

	g.metrics.rendering(r)
	return g.out(r)
}

// mergeReceipts returns next in its own order, followed by receipts from
// prev whose names next does not mention.
func mergeReceipts(prev, next []Receipt) []Receipt {
	merged := make([]Receipt, 0, len(prev)+len(next))
	for _, r := range next {
		if r.Name == "" {
			continue
		}
		merged = append(merged, r)
	}
	for _, p := range prev {
		if !slices.ContainsFunc(merged, func(r Receipt) bool { return r.Name == p.Name }) {
			merged = append(merged, p)
		}
	}
	return merged
}
