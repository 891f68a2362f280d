package txpipe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/lightningnetwork/lnd/clock"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Pipeline defaults.
const (
	DefaultPollAttempts  = 20
	DefaultPollInterval  = 1 * time.Second
	DefaultFeeDenom      = "uusd"
	DefaultFeeSymbol     = "UST"
	DefaultGasAdjustment = "1.6"
)

// PostFunc signs and broadcasts a transaction.
type PostFunc func(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error)

// TxInfoFetcher looks a transaction up by hash. It returns an lcd
// NotFoundError while the transaction is not included.
type TxInfoFetcher interface {
	TxInfo(ctx context.Context, hash string) (*lcd.TxInfo, error)
}

// ParseFunc extracts the domain summary from a confirmed transaction. A
// missing log, event or attribute should be reported with the Helper's
// Failed* methods.
type ParseFunc func(ctx context.Context, info *lcd.TxInfo, h *Helper) (*Summary, error)

// Params is everything one transaction needs.
type Params struct {
	Msgs []wallet.Msg
	Memo string

	// GasWanted is the gas limit.
	GasWanted uint64

	// FixedGas is the fee amount in micro FeeDenom.
	FixedGas      sdkmath.Int
	GasAdjustment sdkmath.LegacyDec
	FeeDenom      string
	FeeSymbol     string

	Network wallet.NetworkInfo
	Post    PostFunc

	// TxInfo defaults to an LCD client for Network.LCD.
	TxInfo TxInfoFetcher

	PollAttempts int
	PollInterval time.Duration
	Clock        clock.Clock

	ErrorReporter ErrorReporter
	OnSucceed     func()

	Metrics *Metrics
	Logger  *slog.Logger
}

func (p *Params) setDefaults() {
	if p.FixedGas.IsNil() {
		p.FixedGas = sdkmath.ZeroInt()
	}
	if p.GasAdjustment.IsNil() {
		p.GasAdjustment = sdkmath.LegacyMustNewDecFromStr(DefaultGasAdjustment)
	}
	if p.FeeDenom == "" {
		p.FeeDenom = DefaultFeeDenom
	}
	if p.FeeSymbol == "" {
		p.FeeSymbol = DefaultFeeSymbol
	}
	if p.TxInfo == nil && p.Network.LCD != "" {
		p.TxInfo = lcd.NewClient(p.Network.LCD)
	}
	if p.PollAttempts <= 0 {
		p.PollAttempts = DefaultPollAttempts
	}
	if p.PollInterval <= 0 {
		p.PollInterval = DefaultPollInterval
	}
	if p.Clock == nil {
		p.Clock = clock.NewDefaultClock()
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
}

// Stream is a lazy transaction run. Nothing happens until Start.
type Stream struct {
	params Params
	parse  ParseFunc
}

// Execute prepares a pipeline for params with the domain parse step.
func Execute(params Params, parse ParseFunc) *Stream {
	params.setDefaults()
	return &Stream{params: params, parse: parse}
}

// Start runs the whole chain and streams its renderings. Every call is an
// independent run that broadcasts again. The channel is closed after the
// terminal rendering, or as soon as ctx is done; once ctx is done no
// further stage runs.
func (s *Stream) Start(ctx context.Context) <-chan Rendering {
	out := make(chan Rendering)

	go func() {
		defer close(out)
		s.run(ctx, out)
	}()

	return out
}

// invocation is the state of one run.
type invocation struct {
	p       Params
	parse   ParseFunc
	h       *Helper
	started time.Time
}

func (s *Stream) run(ctx context.Context, out chan<- Rendering) {
	inv := &invocation{
		p:     s.params,
		parse: s.parse,
		h:     newHelper(s.params.FixedGas, s.params.FeeSymbol),
	}
	logger := inv.p.Logger

	g := &guard{
		metrics: inv.p.Metrics,
		out: func(r Rendering) bool {
			select {
			case out <- r:
				return true
			case <-ctx.Done():
				return false
			}
		},
	}

	fail := func(err error) {
		if ctx.Err() != nil {
			logger.Debug("transaction abandoned", "txHash", inv.h.txHash)
			return
		}
		te := catchTxError(err, inv.h, inv.p.ErrorReporter)
		logger.Warn("transaction failed",
			"reason", te.Reason,
			"kind", te.Kind,
			"txHash", te.TxHash,
			"error", err)
		g.emit(Rendering{Phase: PhaseFail, Err: te})
	}

	defer func() {
		if v := recover(); v != nil {
			fail(recovered(v))
		}
	}()

	chain := Then(Then(Then(Then(
		inv.build,
		inv.broadcast),
		inv.poll),
		inv.parseResult),
		inv.render)

	if _, err := chain(ctx, struct{}{}, g.emit); err != nil {
		fail(err)
	}
}

// build turns the intent into transport-ready options.
func (inv *invocation) build(ctx context.Context, _ struct{}, emit Emit) (*wallet.TxOptions, error) {
	p := inv.p

	if len(p.Msgs) == 0 {
		return nil, invalidTx("no messages")
	}
	if p.Post == nil {
		return nil, invalidTx("no post function")
	}
	if err := sdk.ValidateDenom(p.FeeDenom); err != nil {
		return nil, invalidTx(fmt.Sprintf("fee denom: %v", err))
	}
	if p.FixedGas.IsNegative() {
		return nil, invalidTx("negative fee")
	}

	return &wallet.TxOptions{
		Msgs: p.Msgs,
		Fee: &wallet.Fee{
			Gas:    p.GasWanted,
			Amount: sdk.NewCoins(sdk.NewCoin(p.FeeDenom, p.FixedGas)),
		},
		GasAdjustment: p.GasAdjustment,
		Memo:          p.Memo,
	}, nil
}

// broadcast hands the transaction to the signer. BROADCAST is emitted
// before the signer answers.
func (inv *invocation) broadcast(ctx context.Context, tx *wallet.TxOptions, emit Emit) (*wallet.TxResult, error) {
	if !emit(Rendering{Phase: PhaseBroadcast}) {
		return nil, ctx.Err()
	}

	res, err := inv.p.Post(ctx, tx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, broadcastFailure(err)
	}
	if res == nil || !res.Success {
		return nil, broadcastFailure(errors.New("signer reported an unsuccessful broadcast"))
	}
	if res.Result.TxHash == "" {
		return nil, broadcastFailure(errors.New("signer returned no tx hash"))
	}

	inv.h.txHash = res.Result.TxHash
	inv.started = inv.p.Clock.Now()
	inv.p.Logger.Info("transaction broadcast", "txHash", inv.h.txHash)
	return res, nil
}

// poll waits for inclusion, bounded by PollAttempts.
func (inv *invocation) poll(ctx context.Context, res *wallet.TxResult, emit Emit) (*lcd.TxInfo, error) {
	p := inv.p

	if !emit(Rendering{Phase: PhasePending, Receipts: []Receipt{inv.h.TxHashReceipt()}}) {
		return nil, ctx.Err()
	}
	if p.TxInfo == nil {
		return nil, &TxError{
			Reason:  ReasonConfirmationTimeout,
			Kind:    KindTransport,
			Message: "No endpoint configured to confirm the transaction",
		}
	}

	hash := res.Result.TxHash
	for attempt := 1; attempt <= p.PollAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		p.Metrics.pollAttempt()
		info, err := p.TxInfo.TxInfo(ctx, hash)
		switch {
		case err == nil && info == nil:
			p.Logger.Debug("transaction lookup returned nothing", "txHash", hash, "attempt", attempt)

		case err == nil:
			p.Metrics.confirmed(p.Clock.Now().Sub(inv.started))
			if info.Failed() {
				return nil, &TxError{
					Reason:  ReasonTxFailed,
					Kind:    KindChain,
					Message: fmt.Sprintf("Transaction failed on chain (code %d): %s", info.Code, info.RawLog),
				}
			}
			p.Logger.Debug("transaction included", "txHash", hash, "height", info.Height, "attempt", attempt)
			return info, nil

		case ctx.Err() != nil:
			return nil, ctx.Err()

		case lcd.IsNotFound(err):
			p.Logger.Debug("transaction not included yet", "txHash", hash, "attempt", attempt)

		default:
			p.Logger.Warn("failed to query transaction", "txHash", hash, "attempt", attempt, "error", err)
		}

		if attempt == p.PollAttempts {
			break
		}
		select {
		case <-p.Clock.TickAfter(p.PollInterval):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, &TxError{
		Reason: ReasonConfirmationTimeout,
		Kind:   KindTimeout,
		Message: fmt.Sprintf("Transaction was broadcast but could not be confirmed after %d attempts; "+
			"it may still be included later", p.PollAttempts),
	}
}

// parseResult runs the domain parser. Anything it fails with, panics
// included, is a parse failure: the transaction itself succeeded.
func (inv *invocation) parseResult(ctx context.Context, info *lcd.TxInfo, emit Emit) (summary *Summary, err error) {
	if inv.parse == nil {
		return &Summary{}, nil
	}

	defer func() {
		if v := recover(); v != nil {
			summary, err = nil, inv.h.FailedToParseTxResult(recovered(v))
		}
	}()

	summary, err = inv.parse(ctx, info, inv.h)
	switch {
	case err == nil && summary == nil:
		return &Summary{}, nil
	case err == nil:
		return summary, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}

	if _, ok := AsTxError(err); ok {
		return nil, err
	}
	return nil, inv.h.FailedToParseTxResult(err)
}

// render emits the terminal SUCCEED with the full receipt list.
func (inv *invocation) render(ctx context.Context, summary *Summary, emit Emit) (Rendering, error) {
	receipts := make([]Receipt, 0, len(summary.Receipts)+2)
	receipts = append(receipts, summary.Receipts...)
	receipts = append(receipts, inv.h.TxHashReceipt(), inv.h.TxFeeReceipt(summary.TxFee))

	r := Rendering{Phase: PhaseSucceed, Receipts: receipts, Value: summary.Value}
	if !emit(r) {
		return r, ctx.Err()
	}

	inv.p.Logger.Info("transaction succeeded", "txHash", inv.h.txHash)
	if inv.p.OnSucceed != nil {
		inv.p.OnSucceed()
	}
	return r, nil
}

func invalidTx(detail string) *TxError {
	return &TxError{
		Reason:  ReasonUnknown,
		Kind:    KindUnknown,
		Message: "Invalid transaction: " + detail,
	}
}
