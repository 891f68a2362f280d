package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/walletkit/internal/lcd"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/internal/txs"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

var errNoContracts = errors.New("contracts are not configured; set the [contracts] section of walletkit.toml")

// txRun is a connected session ready to post.
type txRun struct {
	sess    *session
	env     txs.Env
	address string
	lcd     *lcd.Client
}

// openTx opens a session and prepares the flow environment for the
// connected wallet.
func (c *cli) openTx(ctx context.Context, metrics *txpipe.Metrics) (*txRun, error) {
	if c.cfg.Contracts == (txs.Contracts{}) {
		return nil, errNoContracts
	}

	sess, err := c.settled(ctx, sessionOptions{})
	if err != nil {
		return nil, err
	}
	w, err := sess.postable()
	if err != nil {
		sess.Close()
		return nil, err
	}

	params := c.cfg.TxParams()
	params.Network = sess.ctrl.Network().Get()
	params.Post = func(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error) {
		return sess.ctrl.Post(ctx, tx, &wallet.PostTarget{Address: w.Address})
	}
	params.Metrics = metrics
	params.Logger = c.logger.With("component", "txpipe")

	if params.Network.LCD == "" {
		params.Network.LCD = c.cfg.Network.LCD
	}

	return &txRun{
		sess:    sess,
		env:     txs.Env{Contracts: &c.cfg.Contracts, Params: params},
		address: w.Address,
		lcd:     lcd.NewClient(params.Network.LCD),
	}, nil
}

// watch prints every rendering of stream and returns an exitError when the
// transaction fails.
func (c *cli) watch(ctx context.Context, action string, stream *txpipe.Stream) error {
	spinner := c.out.TxSpinner(action)
	defer spinner.Stop()

	var last txpipe.Rendering
	for r := range stream.Start(ctx) {
		last = r
		if !spinner.Observe(r) {
			c.out.Rendering(action, r)
		}
	}

	if err := ctx.Err(); err != nil && !last.Phase.IsTerminal() {
		return err
	}
	if last.Phase == txpipe.PhaseFail {
		var err error = errors.New(action + " failed")
		if last.Err != nil {
			err = last.Err
		}
		return &exitError{code: 1, err: err}
	}
	return nil
}

// flowCmd builds a tx subcommand that starts a flow for the connected
// wallet.
func (c *cli) flowCmd(use, short string, args cobra.PositionalArgs, start func(run *txRun, args []string) (*txpipe.Stream, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  args,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			run, err := c.openTx(ctx, nil)
			if err != nil {
				return err
			}
			defer run.sess.Close()

			stream, err := start(run, args)
			if err != nil {
				return err
			}
			return c.watch(ctx, cmd.Name(), stream)
		},
	}
}

func newTxCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tx",
		Short: "Run an Anchor transaction with the connected wallet",
	}

	cmd.AddCommand(
		newSellCmd(c),
		newProvideLPCmd(c),
		c.flowCmd("withdraw-lp <lp-amount>", "Withdraw ANC and UST from the ANC-UST pool", cobra.ExactArgs(1),
			func(run *txRun, args []string) (*txpipe.Stream, error) {
				return txs.AncUstLpWithdraw(run.env, txs.LpWithdrawOptions{Address: run.address, Amount: args[0]})
			}),
		c.flowCmd("stake-lp <lp-amount>", "Stake ANC-UST LP tokens", cobra.ExactArgs(1),
			func(run *txRun, args []string) (*txpipe.Stream, error) {
				return txs.AncUstLpStake(run.env, txs.LpStakeOptions{Address: run.address, Amount: args[0]})
			}),
		c.flowCmd("gov-stake <anc-amount>", "Stake ANC in governance", cobra.ExactArgs(1),
			func(run *txRun, args []string) (*txpipe.Stream, error) {
				return txs.GovernanceStake(run.env, txs.GovernanceStakeOptions{Address: run.address, Amount: args[0]})
			}),
		newClaimAllCmd(c),
		c.flowCmd("provide-collateral <bluna-amount>", "Deposit and lock bLuna collateral", cobra.ExactArgs(1),
			func(run *txRun, args []string) (*txpipe.Stream, error) {
				return txs.BorrowProvideCollateral(run.env, txs.ProvideCollateralOptions{
					Address: run.address,
					Amount:  args[0],
					LTV:     txs.LCDLoanToValue(run.lcd, run.env.Contracts, run.address),
				})
			}),
	)

	return cmd
}

func newSellCmd(c *cli) *cobra.Command {
	var opts txs.SellOptions
	cmd := c.flowCmd("sell <anc-amount>", "Sell ANC for UST", cobra.ExactArgs(1),
		func(run *txRun, args []string) (*txpipe.Stream, error) {
			o := opts
			o.Address = run.address
			o.Amount = args[0]
			return txs.Sell(run.env, o)
		})
	cmd.Flags().StringVar(&opts.BeliefPrice, "belief-price", "", "Expected UST price of one ANC")
	cmd.Flags().StringVar(&opts.MaxSpread, "max-spread", "", "Maximum spread, e.g. 0.01")
	cmd.Flags().StringVar(&opts.To, "to", "", "Recipient of the UST (default: the wallet)")
	return cmd
}

func newProvideLPCmd(c *cli) *cobra.Command {
	var slippage string
	cmd := c.flowCmd("provide-lp <anc-amount> <ust-amount>", "Provide ANC and UST to the ANC-UST pool", cobra.ExactArgs(2),
		func(run *txRun, args []string) (*txpipe.Stream, error) {
			return txs.AncUstLpProvide(run.env, txs.LpProvideOptions{
				Address:           run.address,
				ANCAmount:         args[0],
				USTAmount:         args[1],
				SlippageTolerance: slippage,
			})
		})
	cmd.Flags().StringVar(&slippage, "slippage", "", "Slippage tolerance, e.g. 0.01")
	return cmd
}

func newClaimAllCmd(c *cli) *cobra.Command {
	var lpStaking, borrow bool
	cmd := c.flowCmd("claim-all", "Claim ANC rewards", cobra.NoArgs,
		func(run *txRun, args []string) (*txpipe.Stream, error) {
			return txs.ClaimAll(run.env, txs.ClaimAllOptions{
				Address:        run.address,
				ClaimLPStaking: lpStaking,
				ClaimBorrow:    borrow,
			})
		})
	cmd.Flags().BoolVar(&lpStaking, "lp-staking", true, "Claim LP staking rewards")
	cmd.Flags().BoolVar(&borrow, "borrow", true, "Claim borrow rewards")
	return cmd
}

// describe names a flow failure for logs.
func describe(action string, err error) string {
	if te, ok := txpipe.AsTxError(err); ok {
		return fmt.Sprintf("%s failed (%s)", action, te.Reason)
	}
	return fmt.Sprintf("%s failed: %v", action, err)
}
