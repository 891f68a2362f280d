package txs

import (
	"context"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Tax is the chain's stability tax on UST transfers.
type Tax struct {
	Rate sdkmath.LegacyDec
	Cap  sdkmath.Int
}

// LpProvideOptions deposits ANC and UST into the ANC-UST pair.
type LpProvideOptions struct {
	Address string

	// ANCAmount and USTAmount are in units.
	ANCAmount string
	USTAmount string

	SlippageTolerance string

	// ANCPrice is the UST price of one ANC. With Tax set it lets the
	// receipt show the tax paid on top of the fixed gas.
	ANCPrice sdkmath.LegacyDec
	Tax      *Tax

	// TxFee, when set, is the fee amount attached to the transaction
	// instead of the fixed gas.
	TxFee sdkmath.Int
}

// LpProvideMsgs fabricates the allowance and provide_liquidity messages.
func LpProvideMsgs(contracts AddressProvider, denom string, opts LpProvideOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	anc, err := parseAmount("anc amount", opts.ANCAmount)
	if err != nil {
		return nil, err
	}
	ust, err := parseAmount("ust amount", opts.USTAmount)
	if err != nil {
		return nil, err
	}

	pair := contracts.TerraswapAncUstPair()

	allowance, err := wallet.NewExecuteContractMsg(opts.Address, contracts.ANC(), map[string]any{
		"increase_allowance": map[string]any{
			"spender": pair,
			"amount":  anc.String(),
		},
	}, nil)
	if err != nil {
		return nil, err
	}

	provide := map[string]any{
		"assets": []map[string]any{
			{
				"info":   map[string]any{"token": map[string]string{"contract_addr": contracts.ANC()}},
				"amount": anc.String(),
			},
			{
				"info":   map[string]any{"native_token": map[string]string{"denom": denom}},
				"amount": ust.String(),
			},
		},
	}
	if opts.SlippageTolerance != "" {
		provide["slippage_tolerance"] = opts.SlippageTolerance
	}

	liquidity, err := wallet.NewExecuteContractMsg(opts.Address, pair,
		map[string]any{"provide_liquidity": provide},
		sdk.NewCoins(sdk.NewCoin(denom, ust)))
	if err != nil {
		return nil, err
	}

	return []wallet.Msg{allowance, liquidity}, nil
}

// AncUstLpProvide provides ANC-UST liquidity.
func AncUstLpProvide(env Env, opts LpProvideOptions) (*txpipe.Stream, error) {
	msgs, err := LpProvideMsgs(env.Contracts, env.feeDenom(), opts)
	if err != nil {
		return nil, err
	}

	if !opts.TxFee.IsNil() {
		env.Params.FixedGas = opts.TxFee
	}
	fixedGas := env.fixedGas()

	return env.execute(msgs, func(ctx context.Context, info *lcd.TxInfo, h *txpipe.Helper) (*txpipe.Summary, error) {
		rawLog, ok := txpipe.PickRawLog(info, 1)
		if !ok {
			return nil, h.FailedToFindRawLog()
		}

		fromContract, ok1 := txpipe.PickEvent(rawLog, eventFromContract)
		transfer, ok2 := txpipe.PickEvent(rawLog, eventTransfer)
		if !ok1 || !ok2 {
			return nil, h.FailedToFindEvents(eventFromContract, eventTransfer)
		}

		var received, deposited *txpipe.Receipt

		if v, ok := txpipe.PickAttributeValueByKey(fromContract, "share"); ok {
			share, err := microInt(v)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			received = &txpipe.Receipt{Name: "Received", Value: formatMicro(share, "ANC-UST LP")}
		}

		var summary txpipe.Summary

		ancV, hasAnc := txpipe.PickAttributeValueByKey(fromContract, "amount")
		ustV, hasUst := txpipe.PickAttributeValueByKey(transfer, "amount")
		if hasAnc && hasUst {
			anc, err := microInt(ancV)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			ust, err := stripDenom(ustV)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			deposited = &txpipe.Receipt{
				Name:  "Deposited",
				Value: formatMicro(anc, "ANC") + " + " + formatMicro(ust, "UST"),
			}

			if !opts.ANCPrice.IsNil() && opts.Tax != nil {
				simulated := opts.ANCPrice.MulInt(anc).TruncateInt().Add(ust)
				tax := opts.Tax.Rate.MulInt(simulated).TruncateInt()
				if !opts.Tax.Cap.IsNil() {
					tax = sdkmath.MinInt(tax, opts.Tax.Cap)
				}
				summary.TxFee = fixedGas.Add(tax)
			}
		}

		summary.Receipts = receipts(received, deposited)
		return &summary, nil
	}), nil
}

// LpWithdrawOptions burns ANC-UST LP tokens for the underlying assets.
type LpWithdrawOptions struct {
	Address string

	// Amount of LP tokens, in units.
	Amount string
}

// LpWithdrawMsgs fabricates the LP token send to the pair.
func LpWithdrawMsgs(contracts AddressProvider, opts LpWithdrawOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", opts.Amount)
	if err != nil {
		return nil, err
	}

	msg, err := cw20Send(opts.Address, contracts.TerraswapAncUstLPToken(), contracts.TerraswapAncUstPair(), amount,
		map[string]any{"withdraw_liquidity": map[string]any{}})
	if err != nil {
		return nil, err
	}
	return []wallet.Msg{msg}, nil
}

// AncUstLpWithdraw withdraws ANC-UST liquidity.
func AncUstLpWithdraw(env Env, opts LpWithdrawOptions) (*txpipe.Stream, error) {
	msgs, err := LpWithdrawMsgs(env.Contracts, opts)
	if err != nil {
		return nil, err
	}

	fixedGas := env.fixedGas()

	return env.execute(msgs, func(ctx context.Context, info *lcd.TxInfo, h *txpipe.Helper) (*txpipe.Summary, error) {
		rawLog, ok := txpipe.PickRawLog(info, 0)
		if !ok {
			return nil, h.FailedToFindRawLog()
		}

		fromContract, ok1 := txpipe.PickEvent(rawLog, eventFromContract)
		transfer, ok2 := txpipe.PickEvent(rawLog, eventTransfer)
		if !ok1 || !ok2 {
			return nil, h.FailedToFindEvents(eventFromContract, eventTransfer)
		}

		var burned, received *txpipe.Receipt
		var summary txpipe.Summary

		if v, ok := txpipe.PickAttributeValueByKey(fromContract, "withdrawn_share"); ok {
			share, err := microInt(v)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			burned = &txpipe.Receipt{Name: "Burned", Value: formatMicro(share, "ANC-UST LP")}
		}

		// The pair pays out ANC then UST, so both sit at the end of the
		// attribute lists.
		ancV, hasAnc := txpipe.PickAttributeValueByKey(fromContract, "amount", txpipe.FromEnd(1))
		ustV, hasUst := txpipe.PickAttributeValueByKey(transfer, "amount", txpipe.FromEnd(0))
		if hasAnc && hasUst {
			anc, err := microInt(ancV)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			ust, err := stripDenom(ustV)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			received = &txpipe.Receipt{
				Name:  "Received",
				Value: formatMicro(anc, "ANC") + " + " + formatMicro(ust, "UST"),
			}
		}

		if v, ok := txpipe.PickAttributeValueByKey(transfer, "amount"); ok {
			tax, err := stripDenom(v)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			summary.TxFee = fixedGas.Add(tax)
		}

		summary.Receipts = receipts(burned, received)
		return &summary, nil
	}), nil
}

// LpStakeOptions bonds ANC-UST LP tokens in the staking contract.
type LpStakeOptions struct {
	Address string

	// Amount of LP tokens, in units.
	Amount string
}

// LpStakeMsgs fabricates the LP token send to the staking contract.
func LpStakeMsgs(contracts AddressProvider, opts LpStakeOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", opts.Amount)
	if err != nil {
		return nil, err
	}

	msg, err := cw20Send(opts.Address, contracts.TerraswapAncUstLPToken(), contracts.Staking(), amount,
		map[string]any{"bond": map[string]any{}})
	if err != nil {
		return nil, err
	}
	return []wallet.Msg{msg}, nil
}

// AncUstLpStake stakes ANC-UST LP tokens.
func AncUstLpStake(env Env, opts LpStakeOptions) (*txpipe.Stream, error) {
	msgs, err := LpStakeMsgs(env.Contracts, opts)
	if err != nil {
		return nil, err
	}

	return env.execute(msgs, func(ctx context.Context, info *lcd.TxInfo, h *txpipe.Helper) (*txpipe.Summary, error) {
		rawLog, ok := txpipe.PickRawLog(info, 0)
		if !ok {
			return nil, h.FailedToFindRawLog()
		}
		fromContract, ok := txpipe.PickEvent(rawLog, eventFromContract)
		if !ok {
			return nil, h.FailedToFindEvents(eventFromContract)
		}

		var staked *txpipe.Receipt
		if v, ok := txpipe.PickAttributeValueByKey(fromContract, "amount"); ok {
			amount, err := microInt(v)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			staked = &txpipe.Receipt{Name: "Staked", Value: formatMicro(amount, "ANC-UST LP")}
		}

		return &txpipe.Summary{Receipts: receipts(staked)}, nil
	}), nil
}
