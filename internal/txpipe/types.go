// Package txpipe runs a transaction through a fixed chain of stages (build,
// broadcast, poll, parse, render) and reports progress as a stream of
// phase-tagged renderings.
package txpipe

import (
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
)

// Phase is the pipeline phase attached to each rendering.
type Phase string

// Pipeline phases. Succeed and Fail are terminal.
const (
	PhaseBroadcast Phase = "BROADCAST"
	PhasePending   Phase = "PENDING"
	PhaseSucceed   Phase = "SUCCEED"
	PhaseFail      Phase = "FAIL"
)

// IsTerminal reports whether no rendering may follow p.
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceed || p == PhaseFail
}

func (p Phase) rank() int {
	switch p {
	case PhaseBroadcast:
		return 1
	case PhasePending:
		return 2
	case PhaseSucceed, PhaseFail:
		return 3
	default:
		return 0
	}
}

// Receipt is one labeled line of a transaction summary.
type Receipt struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Rendering is the state emitted on every stage transition.
type Rendering struct {
	Phase    Phase     `json:"phase"`
	Receipts []Receipt `json:"receipts"`
	Value    any       `json:"value,omitempty"`
	Err      *TxError  `json:"error,omitempty"`
}

// FailReason tells which stage a transaction failed in.
type FailReason string

// Failure reasons.
const (
	ReasonBroadcastFailed     FailReason = "BroadcastFailed"
	ReasonConfirmationTimeout FailReason = "ConfirmationTimeout"
	ReasonResultParseFailed   FailReason = "ResultParseFailed"
	ReasonTxFailed            FailReason = "TxFailed"
	ReasonUnknown             FailReason = "Unknown"
)

// ErrorKind is the classification of the underlying error.
type ErrorKind string

// Error kinds.
const (
	KindTransport  ErrorKind = "transport"
	KindUserDenied ErrorKind = "user_denied"
	KindParse      ErrorKind = "parse"
	KindTimeout    ErrorKind = "timeout"
	KindChain      ErrorKind = "chain"
	KindUnknown    ErrorKind = "unknown"
)

// TxError describes a failed transaction. Message is always short and human
// readable.
type TxError struct {
	Reason  FailReason `json:"reason"`
	Kind    ErrorKind  `json:"kind"`
	Message string     `json:"message"`
	TxHash  string     `json:"txHash,omitempty"`
	ErrorID string     `json:"errorId,omitempty"`
	Err     error      `json:"-"`
}

func (e *TxError) Error() string {
	msg := e.Message
	if e.ErrorID != "" {
		msg = fmt.Sprintf("%s (error id: %s)", msg, e.ErrorID)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, msg)
}

func (e *TxError) Unwrap() error {
	return e.Err
}

// AsTxError returns the TxError in err's chain, if any.
func AsTxError(err error) (*TxError, bool) {
	var te *TxError
	ok := errors.As(err, &te)
	return te, ok
}

// Summary is what a parse function extracts from a confirmed transaction.
type Summary struct {
	// Receipts are the domain receipts, in display order.
	Receipts []Receipt

	// TxFee overrides the fee receipt, in micro units of the fee denom.
	// When nil the fixed gas fee is shown.
	TxFee sdkmath.Int

	// Value is passed through to the final rendering.
	Value any
}
