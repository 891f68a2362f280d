package txpipe

import (
	"fmt"
	"strings"

	sdkmath "cosmossdk.io/math"

	"github.com/altuslabsxyz/walletkit/internal/notation"
)

// Helper carries per-invocation state that parse functions need to build
// receipts and failures.
type Helper struct {
	fixedFee  sdkmath.Int
	feeSymbol string
	txHash    string
}

func newHelper(fixedFee sdkmath.Int, feeSymbol string) *Helper {
	return &Helper{fixedFee: fixedFee, feeSymbol: feeSymbol}
}

// TxHash returns the broadcast transaction's hash, or "" before broadcast.
func (h *Helper) TxHash() string {
	return h.txHash
}

// TxHashReceipt returns the "Tx Hash" receipt.
func (h *Helper) TxHashReceipt() Receipt {
	return Receipt{Name: "Tx Hash", Value: h.txHash}
}

// TxFeeReceipt returns the "Tx Fee" receipt for fee, or for the fixed gas
// fee when fee is nil.
func (h *Helper) TxFeeReceipt(fee sdkmath.Int) Receipt {
	if fee.IsNil() {
		fee = h.fixedFee
	}
	return Receipt{Name: "Tx Fee", Value: notation.FormatMicro(fee) + " " + h.feeSymbol}
}

// FailedToFindRawLog reports a missing message log.
func (h *Helper) FailedToFindRawLog() *TxError {
	return h.parseFailure("failed to find raw log", nil)
}

// FailedToFindEvents reports missing log events.
func (h *Helper) FailedToFindEvents(events ...string) *TxError {
	return h.parseFailure(fmt.Sprintf("failed to find events: %s", strings.Join(events, ", ")), nil)
}

// FailedToParseTxResult reports a log that was present but unreadable.
func (h *Helper) FailedToParseTxResult(err error) *TxError {
	return h.parseFailure("failed to parse tx result", err)
}

// FailedToCreateReceipt reports missing data needed for the receipts.
func (h *Helper) FailedToCreateReceipt(err error) *TxError {
	return h.parseFailure("failed to create receipt", err)
}

func (h *Helper) parseFailure(detail string, err error) *TxError {
	return &TxError{
		Reason:  ReasonResultParseFailed,
		Kind:    KindParse,
		Message: "Transaction succeeded, but its result could not be summarized (" + detail + ")",
		TxHash:  h.txHash,
		Err:     err,
	}
}
