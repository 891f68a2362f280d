package txs

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/internal/notation"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// SellOptions sells ANC for UST on the terraswap pair.
type SellOptions struct {
	Address string

	// Amount of ANC, in units.
	Amount string

	To          string
	BeliefPrice string
	MaxSpread   string
}

// SellMsgs fabricates the cw20 send to the ANC-UST pair.
func SellMsgs(contracts AddressProvider, opts SellOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", opts.Amount)
	if err != nil {
		return nil, err
	}

	swap := map[string]any{}
	if opts.BeliefPrice != "" {
		swap["belief_price"] = opts.BeliefPrice
	}
	if opts.MaxSpread != "" {
		swap["max_spread"] = opts.MaxSpread
	}
	if opts.To != "" {
		swap["to"] = opts.To
	}

	msg, err := cw20Send(opts.Address, contracts.ANC(), contracts.TerraswapAncUstPair(), amount,
		map[string]any{"swap": swap})
	if err != nil {
		return nil, err
	}
	return []wallet.Msg{msg}, nil
}

// Sell runs an ANC sell.
func Sell(env Env, opts SellOptions) (*txpipe.Stream, error) {
	msgs, err := SellMsgs(env.Contracts, opts)
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

		var sold, earned, price, tradingFee *txpipe.Receipt

		offer, hasOffer := txpipe.PickAttributeValueByKey(fromContract, "offer_amount")
		ret, hasReturn := txpipe.PickAttributeValueByKey(fromContract, "return_amount")
		spread, hasSpread := txpipe.PickAttributeValueByKey(fromContract, "spread_amount")
		commission, hasCommission := txpipe.PickAttributeValueByKey(fromContract, "commission_amount")

		var offerAmount, returnAmount sdkmath.Int
		var err error
		if hasOffer {
			if offerAmount, err = microInt(offer); err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			sold = &txpipe.Receipt{Name: "Sold", Value: formatMicro(offerAmount, "ANC")}
		}
		if hasReturn {
			if returnAmount, err = microInt(ret); err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			earned = &txpipe.Receipt{Name: "Earned", Value: formatMicro(returnAmount, "UST")}
		}
		if hasOffer && hasReturn && offerAmount.IsPositive() {
			perANC := sdkmath.LegacyNewDecFromInt(returnAmount).QuoInt(offerAmount)
			price = &txpipe.Receipt{Name: "Price per ANC", Value: notation.FormatWithPostfixUnits(perANC) + " UST"}
		}
		if hasSpread && hasCommission {
			s, err1 := microInt(spread)
			c, err2 := microInt(commission)
			if err1 != nil || err2 != nil {
				return nil, h.FailedToParseTxResult(firstErr(err1, err2))
			}
			tradingFee = &txpipe.Receipt{Name: "Trading Fee", Value: formatMicro(s.Add(c), "UST")}
		}

		txFee := fixedGas
		if v, ok := txpipe.PickAttributeValueByKey(transfer, "amount"); ok {
			tax, err := stripDenom(v)
			if err != nil {
				return nil, h.FailedToParseTxResult(err)
			}
			txFee = txFee.Add(tax)
		}

		return &txpipe.Summary{
			Receipts: receipts(sold, earned, price, tradingFee),
			TxFee:    txFee,
		}, nil
	}), nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
