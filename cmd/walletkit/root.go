package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/walletkit/internal/config"
	"github.com/altuslabsxyz/walletkit/internal/output"
	"github.com/altuslabsxyz/walletkit/internal/version"
)

// Command group IDs for organized help output.
const (
	GroupWallet = "wallet"
	GroupTx     = "tx"
	GroupOther  = "other"
)

// cli holds the global flags and what PersistentPreRunE derives from them.
type cli struct {
	configPath string
	dataDir    string
	logLevel   string
	jsonMode   bool
	noColor    bool
	verbose    bool

	cfg    *config.Config
	out    *output.Logger
	logger *slog.Logger
}

// NewRootCmd creates the walletkit command tree.
func NewRootCmd() *cobra.Command {
	c := &cli{}
	defaults := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "walletkit",
		Short: "Connect a Terra wallet and run Anchor transactions",
		Long: `walletkit connects a wallet through the local extension signer, a relay
session or a read-only address, and runs Anchor transactions through it.

Examples:
  # Pick a backend interactively
  walletkit connect

  # Watch an address without signing
  walletkit connect readonly --address terra1...

  # Sell 10 ANC
  walletkit tx sell 10

  # Claim, provide liquidity and stake in one run
  walletkit farm`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&c.configPath, "config", "", "Config file path (default: <data-dir>/walletkit.toml)")
	cmd.PersistentFlags().StringVar(&c.dataDir, "data-dir", "", fmt.Sprintf("Data directory (default: %s)", defaults.Server.DataDir))
	cmd.PersistentFlags().StringVar(&c.logLevel, "log-level", "", fmt.Sprintf("Log level: %s (default: %s)", strings.Join(config.ValidLogLevels, ", "), defaults.Server.LogLevel))
	cmd.PersistentFlags().BoolVar(&c.jsonMode, "json", false, "Print results as JSON")
	cmd.PersistentFlags().BoolVar(&c.noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Verbose output")

	cmd.AddGroup(
		&cobra.Group{ID: GroupWallet, Title: "Wallet Commands:"},
		&cobra.Group{ID: GroupTx, Title: "Transaction Commands:"},
		&cobra.Group{ID: GroupOther, Title: "Other Commands:"},
	)

	for _, sub := range []*cobra.Command{newStatusCmd(c), newConnectCmd(c), newDisconnectCmd(c)} {
		sub.GroupID = GroupWallet
		cmd.AddCommand(sub)
	}
	for _, sub := range []*cobra.Command{newTxCmd(c), newFarmCmd(c)} {
		sub.GroupID = GroupTx
		cmd.AddCommand(sub)
	}
	versionCmd := version.NewCmd("walletkit")
	for _, sub := range []*cobra.Command{newConfigCmd(c), versionCmd} {
		sub.GroupID = GroupOther
		cmd.AddCommand(sub)
	}

	return cmd
}

// setup loads the config, applies flag overrides and builds the loggers.
func (c *cli) setup(cmd *cobra.Command) error {
	c.out = output.NewLoggerTo(cmd.OutOrStdout(), cmd.ErrOrStderr())
	c.out.SetNoColor(c.noColor)
	c.out.SetJSONMode(c.jsonMode)
	c.out.SetVerbose(c.verbose)

	if cmd.Name() == "version" {
		return nil
	}

	// Load config: defaults < file < env
	cfg, err := config.NewLoader(c.dataDir, c.configPath).Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply CLI flag overrides (highest priority)
	c.applyFlagOverrides(cmd, cfg)

	if err := config.Validate(cfg); err != nil {
		return err
	}
	c.cfg = cfg

	c.logger = newSlogLogger(cmd.ErrOrStderr(), cfg.Server.LogLevel, c.jsonMode)
	slog.SetDefault(c.logger)
	return nil
}

func (c *cli) applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("data-dir") {
		cfg.Server.DataDir = c.dataDir
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Server.LogLevel = c.logLevel
	}
	if c.verbose && !cmd.Flags().Changed("log-level") {
		cfg.Server.LogLevel = "debug"
	}
}

func newSlogLogger(w io.Writer, level string, jsonMode bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if jsonMode {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
