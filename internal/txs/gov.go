package txs

import (
	"context"

	sdkmath "cosmossdk.io/math"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// GovernanceStakeOptions stakes ANC as voting tokens.
type GovernanceStakeOptions struct {
	Address string

	// Amount of ANC, in units.
	Amount string
}

// GovernanceStakeMsgs fabricates the ANC send to the gov contract.
func GovernanceStakeMsgs(contracts AddressProvider, opts GovernanceStakeOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	amount, err := parseAmount("amount", opts.Amount)
	if err != nil {
		return nil, err
	}

	msg, err := cw20Send(opts.Address, contracts.ANC(), contracts.Gov(), amount,
		map[string]any{"stake_voting_tokens": map[string]any{}})
	if err != nil {
		return nil, err
	}
	return []wallet.Msg{msg}, nil
}

// GovernanceStake stakes ANC in governance.
func GovernanceStake(env Env, opts GovernanceStakeOptions) (*txpipe.Stream, error) {
	msgs, err := GovernanceStakeMsgs(env.Contracts, opts)
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
			staked = &txpipe.Receipt{Name: "Staked", Value: formatMicro(amount, "ANC")}
		}

		return &txpipe.Summary{Receipts: receipts(staked)}, nil
	}), nil
}

// ClaimAllOptions claims ANC rewards from LP staking and borrowing.
type ClaimAllOptions struct {
	Address string

	ClaimLPStaking bool
	ClaimBorrow    bool
}

// ClaimAllMsgs fabricates one withdraw per selected reward source.
func ClaimAllMsgs(contracts AddressProvider, opts ClaimAllOptions) ([]wallet.Msg, error) {
	if err := validateAddress("address", opts.Address); err != nil {
		return nil, err
	}
	if !opts.ClaimLPStaking && !opts.ClaimBorrow {
		return nil, invalid("nothing to claim")
	}

	var msgs []wallet.Msg
	if opts.ClaimBorrow {
		msg, err := wallet.NewExecuteContractMsg(opts.Address, contracts.Market(),
			map[string]any{"claim_rewards": map[string]any{}}, nil)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if opts.ClaimLPStaking {
		msg, err := wallet.NewExecuteContractMsg(opts.Address, contracts.Staking(),
			map[string]any{"withdraw": map[string]any{}}, nil)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

// ClaimAll claims every selected ANC reward.
func ClaimAll(env Env, opts ClaimAllOptions) (*txpipe.Stream, error) {
	msgs, err := ClaimAllMsgs(env.Contracts, opts)
	if err != nil {
		return nil, err
	}

	return env.execute(msgs, func(ctx context.Context, info *lcd.TxInfo, h *txpipe.Helper) (*txpipe.Summary, error) {
		if len(info.Logs) == 0 {
			return nil, h.FailedToFindRawLog()
		}

		// Every reward payout is an ANC transfer reported by its contract.
		claimed := sdkmath.ZeroInt()
		found := false
		for i := range info.Logs {
			fromContract, ok := txpipe.PickEvent(&info.Logs[i], eventFromContract)
			if !ok {
				continue
			}
			found = true
			for _, attr := range fromContract.Attributes {
				if attr.Key != "amount" {
					continue
				}
				amount, err := microInt(attr.Value)
				if err != nil {
					return nil, h.FailedToParseTxResult(err)
				}
				claimed = claimed.Add(amount)
			}
		}
		if !found {
			return nil, h.FailedToFindEvents(eventFromContract)
		}

		return &txpipe.Summary{
			Receipts: []txpipe.Receipt{{Name: "Claimed", Value: formatMicro(claimed, "ANC")}},
		}, nil
	}), nil
}
