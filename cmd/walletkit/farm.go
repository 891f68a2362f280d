package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	sdkmath "cosmossdk.io/math"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/altuslabsxyz/walletkit/internal/autofarm"
	"github.com/altuslabsxyz/walletkit/internal/eventbus"
	"github.com/altuslabsxyz/walletkit/internal/notation"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/internal/txs"
)

const metricsShutdownTimeout = 5 * time.Second

func newFarmCmd(c *cli) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "farm",
		Short: "Claim rewards, provide them as liquidity and stake the LP tokens",
		Long: `farm runs claim-all, then provides the whole ANC balance to the ANC-UST pool
with the matching UST, then stakes the resulting LP tokens. Each step starts
once the previous one shows up in the wallet's balances. Any failure stops the
run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("metrics-listen") {
				listen = c.cfg.Metrics.Listen
			}
			return c.runFarm(cmd.Context(), listen)
		},
	}

	cmd.Flags().StringVar(&listen, "metrics-listen", "", "Serve prometheus metrics on this address while farming")

	return cmd
}

func (c *cli) runFarm(ctx context.Context, listen string) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	run, err := c.openTx(ctx, txpipe.NewMetrics(reg))
	if err != nil {
		return err
	}
	defer run.sess.Close()

	bus := eventbus.New()
	bus.SetLogger(c.logger.With("component", "eventbus"))
	defer bus.Reset()

	unbind := autofarm.Bind(ctx, bus, c.farmActions(ctx, run), func(action string, r txpipe.Rendering) {
		c.out.Rendering(action, r)
		if r.Phase == txpipe.PhaseFail && r.Err != nil {
			c.logger.Debug(describe(action, r.Err))
		}
	})
	defer unbind()

	farm := autofarm.New(autofarm.Config{
		Bus:           bus,
		AfterClaim:    balanceReadiness(run.ancBalance),
		AfterProvide:  balanceReadiness(run.lpBalance),
		ReadyAttempts: c.cfg.Farm.ReadyAttempts,
		ReadyInterval: c.cfg.Farm.ReadyInterval,
		Logger:        c.logger.With("component", "autofarm"),
	})
	defer farm.Close()

	g, gctx := errgroup.WithContext(ctx)
	farmDone := make(chan struct{})

	if listen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			c.logger.Info("serving metrics", "listen", listen)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-farmDone:
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		defer close(farmDone)
		if err := farm.Start(gctx); err != nil {
			return err
		}
		return farm.Wait(gctx)
	})

	err = g.Wait()
	var stepErr *autofarm.StepError
	switch {
	case errors.As(err, &stepErr):
		return &exitError{code: 1, err: err}
	case err != nil:
		return err
	}

	c.out.Success("auto farm completed")
	return nil
}

// farmActions starts each farm step's transaction for the connected wallet.
func (c *cli) farmActions(ctx context.Context, run *txRun) map[string]eventbus.StartFunc {
	return map[string]eventbus.StartFunc{
		autofarm.ActionClaimAll: func() (*txpipe.Stream, error) {
			return txs.ClaimAll(run.env, txs.ClaimAllOptions{
				Address:        run.address,
				ClaimLPStaking: true,
				ClaimBorrow:    true,
			})
		},
		autofarm.ActionProvideLiquidity: func() (*txpipe.Stream, error) {
			balance, err := run.ancBalance(ctx)
			if err != nil {
				return nil, err
			}
			price, err := txs.AncUstPoolPrice(ctx, run.lcd, run.env.Contracts)
			if err != nil {
				return nil, err
			}
			opts, err := txs.ProvideAllOptions(run.address, balance, price)
			if err != nil {
				return nil, err
			}
			return txs.AncUstLpProvide(run.env, opts)
		},
		autofarm.ActionStakeLP: func() (*txpipe.Stream, error) {
			balance, err := run.lpBalance(ctx)
			if err != nil {
				return nil, err
			}
			return txs.AncUstLpStake(run.env, txs.LpStakeOptions{
				Address: run.address,
				Amount:  notation.Demicrofy(balance).String(),
			})
		},
	}
}

func balanceReadiness(balance autofarm.BalanceFunc) autofarm.Readiness {
	return func(ctx context.Context) (autofarm.ReadyFunc, error) {
		return autofarm.BalanceChanged(ctx, balance)
	}
}

func (r *txRun) ancBalance(ctx context.Context) (sdkmath.Int, error) {
	return r.lcd.CW20Balance(ctx, r.env.Contracts.ANC(), r.address)
}

func (r *txRun) lpBalance(ctx context.Context) (sdkmath.Int, error) {
	return r.lcd.CW20Balance(ctx, r.env.Contracts.TerraswapAncUstLPToken(), r.address)
}
