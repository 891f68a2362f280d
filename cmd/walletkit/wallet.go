package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/walletkit/internal/backend/readonly"
	"github.com/altuslabsxyz/walletkit/internal/output"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// settleTimeout bounds the startup session checks.
func (c *cli) settleTimeout() time.Duration {
	return c.cfg.Extension.AvailabilityTimeout + time.Second
}

func (c *cli) settled(ctx context.Context, opts sessionOptions) (*session, error) {
	sess, err := c.openSession(ctx, opts)
	if err != nil {
		return nil, err
	}
	settleCtx, cancel := context.WithTimeout(ctx, c.settleTimeout())
	defer cancel()
	sess.settle(settleCtx)
	return sess, nil
}

func newStatusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the wallet connection",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.settled(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer sess.Close()

			c.out.Status(sess.report())
			return nil
		},
	}
}

func newConnectCmd(c *cli) *cobra.Command {
	var (
		address string
		wait    time.Duration
	)

	cmd := &cobra.Command{
		Use:       "connect [readonly|extension|relay]",
		Short:     "Connect a wallet",
		Long:      "Connect a wallet. Without an argument the available backends are offered in a prompt.",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{"readonly", "extension", "relay"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runConnect(cmd.Context(), args, address, wait)
		},
	}

	cmd.Flags().StringVar(&address, "address", "", "Address to watch for a readonly connection")
	cmd.Flags().DurationVar(&wait, "wait", 2*time.Minute, "How long to wait for a relay signer to approve")

	return cmd
}

func (c *cli) runConnect(ctx context.Context, args []string, address string, wait time.Duration) error {
	sess, err := c.settled(ctx, sessionOptions{
		ReadonlySession: func(ctx context.Context) (*readonly.Session, error) {
			addr := address
			if addr == "" {
				var err error
				addr, err = output.PromptAddress()
				if errors.Is(err, output.ErrCancelled) {
					return nil, nil
				}
				if err != nil {
					return nil, err
				}
			}
			return &readonly.Session{Network: c.cfg.Network.Info(), Address: addr}, nil
		},
		ShowPairingURI: func(uri string) {
			if c.out.JSONMode() {
				_ = c.out.JSON(map[string]string{"pairingUri": uri})
				return
			}
			c.out.Bold("Open this pairing URI in your signer:")
			c.out.Cyan("  %s", uri)
		},
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	available := sess.ctrl.AvailableConnectTypes().Get()

	var connectType wallet.ConnectType
	if len(args) == 1 {
		connectType, err = wallet.ParseConnectType(args[0])
	} else {
		connectType, err = output.SelectConnectType(available)
	}
	if errors.Is(err, output.ErrCancelled) {
		c.out.Warn("connect cancelled")
		return nil
	}
	if err != nil {
		return err
	}

	if !slices.Contains(available, connectType) {
		return fmt.Errorf("%s is not available (is the extension signer running at %s?)",
			connectType, c.cfg.Extension.Endpoint)
	}

	if err := sess.ctrl.Connect(ctx, connectType); err != nil {
		return err
	}

	switch connectType {
	case wallet.ConnectTypeRelay:
		waitCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		c.out.Info("waiting for the signer to approve...")
		if err := sess.waitConnected(waitCtx); err != nil {
			return err
		}
	case wallet.ConnectTypeExtension:
		// the extension publishes its address after the refresh it triggers
		waitCtx, cancel := context.WithTimeout(ctx, c.settleTimeout())
		defer cancel()
		_ = sess.waitConnected(waitCtx)
	}

	if sess.ctrl.Status().Get() != wallet.StatusWalletConnected {
		c.out.Warn("connect cancelled")
		return nil
	}

	c.out.Status(sess.report())
	return nil
}

func newDisconnectCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Disconnect the wallet and forget its session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := c.settled(cmd.Context(), sessionOptions{})
			if err != nil {
				return err
			}
			defer sess.Close()

			wallets := sess.ctrl.Wallets().Get()
			sess.ctrl.Disconnect()

			if c.out.JSONMode() {
				c.out.Status(sess.report())
				return nil
			}
			if len(wallets) == 0 {
				c.out.Info("no wallet was connected")
				return nil
			}
			c.out.Success("disconnected %s", wallets[0].Address)
			return nil
		},
	}
}
