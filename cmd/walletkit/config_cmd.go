package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/altuslabsxyz/walletkit/internal/config"
	"github.com/altuslabsxyz/walletkit/internal/output"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and initialize walletkit.toml",
	}
	cmd.AddCommand(newConfigShowCmd(c), newConfigInitCmd(c))
	return cmd
}

func newConfigShowCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Long:  "Print the configuration after defaults, walletkit.toml, WALLETKIT_* variables and flags are applied.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.out.JSONMode() {
				return c.out.JSON(c.cfg)
			}
			data, err := c.cfg.Marshal()
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			c.out.Debug("config file: %s", config.NewLoader(c.dataDir, c.configPath).Path())
			fmt.Fprint(c.out.Writer(), string(data))
			return nil
		},
	}
}

func newConfigInitCmd(c *cli) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the effective configuration to walletkit.toml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath
			if path == "" {
				path = filepath.Join(c.cfg.Server.DataDir, config.ConfigFileName)
			}

			if _, err := os.Stat(path); err == nil && !force {
				ok, err := output.Confirm(fmt.Sprintf("Overwrite %s", path))
				if errors.Is(err, output.ErrNotInteractive) {
					return fmt.Errorf("%s already exists (use --force to overwrite)", path)
				}
				if err != nil {
					return err
				}
				if !ok {
					return output.ErrCancelled
				}
			}

			data, err := c.cfg.Marshal()
			if err != nil {
				return fmt.Errorf("failed to encode config: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return fmt.Errorf("failed to create config dir: %w", err)
			}
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("failed to write config: %w", err)
			}

			c.out.Success("wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")

	return cmd
}
