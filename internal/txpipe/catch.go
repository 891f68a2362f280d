package txpipe

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// ErrorReporter records err somewhere and returns an id the user can quote.
type ErrorReporter func(err error) string

// Classify maps an error to the kind shown to the user.
func Classify(err error) ErrorKind {
	var netErr net.Error

	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, wallet.ErrUserDenied):
		return KindUserDenied
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case lcd.IsLCDError(err), errors.Is(err, wallet.ErrBackendUnavailable), errors.As(err, &netErr):
		return KindTransport
	case lcd.IsNotFound(err):
		return KindTransport
	default:
		return KindUnknown
	}
}

// catchTxError turns any stage error into the TxError carried by the
// terminal rendering.
func catchTxError(err error, h *Helper, report ErrorReporter) *TxError {
	te, ok := AsTxError(err)
	if !ok {
		te = &TxError{
			Reason:  ReasonUnknown,
			Kind:    Classify(err),
			Message: "Unexpected error while processing the transaction",
			Err:     err,
		}
	}
	if te.Kind == "" {
		te.Kind = Classify(te.Err)
	}
	if te.TxHash == "" && h != nil {
		te.TxHash = h.txHash
	}
	if report != nil && te.ErrorID == "" {
		te.ErrorID = report(err)
	}
	return te
}

// broadcastFailure wraps a post error.
func broadcastFailure(err error) *TxError {
	kind := Classify(err)
	msg := "Failed to broadcast the transaction"
	if kind == KindUserDenied {
		msg = "User denied the transaction"
	}
	return &TxError{Reason: ReasonBroadcastFailed, Kind: kind, Message: msg, Err: err}
}

// recovered converts a panic value into an error.
func recovered(v any) error {
	if err, ok := v.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return fmt.Errorf("panic: %v", v)
}
