package txs

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/internal/notation"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// LTVFunc returns the borrower's loan-to-value ratio after the transaction.
type LTVFunc func(ctx context.Context) (sdkmath.LegacyDec, error)

// ProvideCollateralOptions deposits and locks bLuna collateral.
type ProvideCollateralOptions struct {
	Address string

	// Amount of bLuna, in units.
	Amount string

	// LTV is queried once the transaction is included.
	LTV LTVFunc
}

// ProvideCollateralMsgs fabricates the custody deposit and the overseer lock.
func ProvideCollateralMsgs(contracts AddressProvider, opts ProvideCollateralOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", opts.Amount)
	if err != nil {
		return nil, err
	}

	deposit, err := cw20Send(opts.Address, contracts.BLunaToken(), contracts.Custody(), amount,
		map[string]any{"deposit_collateral": map[string]any{}})
	if err != nil {
		return nil, err
	}

	lock, err := wallet.NewExecuteContractMsg(opts.Address, contracts.Overseer(), map[string]any{
		"lock_collateral": map[string]any{
			"collaterals": [][]string{{contracts.BLunaToken(), amount.String()}},
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	return []wallet.Msg{deposit, lock}, nil
}

// BorrowProvideCollateral provides bLuna collateral.
func BorrowProvideCollateral(env Env, opts ProvideCollateralOptions) (*txpipe.Stream, error) {
	msgs, err := ProvideCollateralMsgs(env.Contracts, opts)
	if err != nil {
		return nil, err
	}
	if opts.LTV == nil {
		return nil, invalid("no ltv source")
	}

	return env.execute(msgs, func(ctx context.Context, info *lcd.TxInfo, h *txpipe.Helper) (*txpipe.Summary, error) {
		ltv, err := opts.LTV(ctx)
		if err != nil {
			return nil, h.FailedToCreateReceipt(fmt.Errorf("failed to load borrow data: %w", err))
		}

		rawLog, ok := txpipe.PickRawLog(info, 1)
		if !ok {
			return nil, h.FailedToFindRawLog()
		}
		fromContract, ok := txpipe.PickEvent(rawLog, eventFromContract)
		if !ok {
			return nil, h.FailedToFindEvents(eventFromContract)
		}

		var collateralized *txpipe.Receipt
		if v, ok := txpipe.PickAttributeValue(fromContract, 7); ok {
			amount, err := microInt(v)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			collateralized = &txpipe.Receipt{Name: "Collateralized Amount", Value: formatMicro(amount, "bLuna")}
		}

		newLTV := &txpipe.Receipt{Name: "New LTV", Value: notation.FormatRate(ltv) + " %"}

		return &txpipe.Summary{Receipts: receipts(collateralized, newLTV)}, nil
	}), nil
}

// SmartQuerier runs contract queries.
type SmartQuerier interface {
	SmartQuery(ctx context.Context, contract string, query, out any) error
}

// LCDLoanToValue computes borrower's LTV from the market loan, the custody
// balance and the oracle price of bLuna.
func LCDLoanToValue(q SmartQuerier, contracts AddressProvider, borrower string) LTVFunc {
	return func(ctx context.Context) (sdkmath.LegacyDec, error) {
		var loan struct {
			LoanAmount sdkmath.Int `json:"loan_amount"`
		}
		if err := q.SmartQuery(ctx, contracts.Market(),
			map[string]any{"borrower_info": map[string]any{"borrower": borrower}}, &loan); err != nil {
			return sdkmath.LegacyDec{}, fmt.Errorf("market borrower info: %w", err)
		}

		var custody struct {
			Balance sdkmath.Int `json:"balance"`
		}
		if err := q.SmartQuery(ctx, contracts.Custody(),
			map[string]any{"borrower": map[string]any{"address": borrower}}, &custody); err != nil {
			return sdkmath.LegacyDec{}, fmt.Errorf("custody borrower: %w", err)
		}

		var price struct {
			Rate sdkmath.LegacyDec `json:"rate"`
		}
		if err := q.SmartQuery(ctx, contracts.Oracle(),
			map[string]any{"price": map[string]any{"base": contracts.BLunaToken(), "quote": ustDenom}}, &price); err != nil {
			return sdkmath.LegacyDec{}, fmt.Errorf("oracle price: %w", err)
		}

		return loanToValue(loan.LoanAmount, custody.Balance, price.Rate)
	}
}

func loanToValue(loan, collateral sdkmath.Int, price sdkmath.LegacyDec) (sdkmath.LegacyDec, error) {
	if loan.IsNil() || loan.IsZero() {
		return sdkmath.LegacyZeroDec(), nil
	}
	if collateral.IsNil() || price.IsNil() {
		return sdkmath.LegacyDec{}, errors.New("incomplete borrow data")
	}
	value := price.MulInt(collateral)
	if !value.IsPositive() {
		return sdkmath.LegacyDec{}, errors.New("collateral has no value")
	}
	return sdkmath.LegacyNewDecFromInt(loan).Quo(value), nil
}
