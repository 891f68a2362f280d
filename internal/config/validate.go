package config

import (
	"fmt"
	"net/url"
	"strings"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/altuslabsxyz/walletkit/internal/txs"
)

// ValidLogLevels are the allowed log level values.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration and returns an error if invalid.
func Validate(cfg *Config) error {
	var errs []string

	// Validate log level
	validLevel := false
	for _, level := range ValidLogLevels {
		if cfg.Server.LogLevel == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		errs = append(errs, fmt.Sprintf("invalid log_level %q (must be one of: %s)",
			cfg.Server.LogLevel, strings.Join(ValidLogLevels, ", ")))
	}

	// Validate network
	if cfg.Network.ChainID == "" {
		errs = append(errs, "network.chain_id is required")
	}
	if err := validateURL(cfg.Network.LCD, "http", "https"); err != nil {
		errs = append(errs, fmt.Sprintf("network.lcd: %v", err))
	}

	// Validate extension
	if cfg.Extension.Enabled {
		if err := validateURL(cfg.Extension.Endpoint, "http", "https"); err != nil {
			errs = append(errs, fmt.Sprintf("extension.endpoint: %v", err))
		}
		if cfg.Extension.ProbeAttempts < 1 {
			errs = append(errs, "extension.probe_attempts must be at least 1")
		}
		if cfg.Extension.ProbeInterval <= 0 {
			errs = append(errs, "extension.probe_interval must be positive")
		}
		if cfg.Extension.AvailabilityTimeout <= 0 {
			errs = append(errs, "extension.availability_timeout must be positive")
		}
	}

	// Validate relay
	if cfg.Relay.Bridge != "" {
		if err := validateURL(cfg.Relay.Bridge, "ws", "wss"); err != nil {
			errs = append(errs, fmt.Sprintf("relay.bridge: %v", err))
		}
	}
	seen := make(map[int]bool, len(cfg.Relay.Chains))
	for _, c := range cfg.Relay.Chains {
		if seen[c.ID] {
			errs = append(errs, fmt.Sprintf("relay.chains: duplicate id %d", c.ID))
		}
		seen[c.ID] = true
	}

	// Validate tx
	if cfg.Tx.PollAttempts < 1 {
		errs = append(errs, "tx.poll_attempts must be at least 1")
	}
	if cfg.Tx.PollInterval <= 0 {
		errs = append(errs, "tx.poll_interval must be positive")
	}
	if cfg.Tx.GasWanted == 0 {
		errs = append(errs, "tx.gas_wanted must be positive")
	}
	if gas, ok := sdkmath.NewIntFromString(cfg.Tx.FixedGas); !ok || gas.IsNegative() {
		errs = append(errs, fmt.Sprintf("tx.fixed_gas %q must be a non-negative integer", cfg.Tx.FixedGas))
	}
	if adj, err := sdkmath.LegacyNewDecFromStr(cfg.Tx.GasAdjustment); err != nil || !adj.IsPositive() {
		errs = append(errs, fmt.Sprintf("tx.gas_adjustment %q must be a positive decimal", cfg.Tx.GasAdjustment))
	}
	if err := sdk.ValidateDenom(cfg.Tx.FeeDenom); err != nil {
		errs = append(errs, fmt.Sprintf("tx.fee_denom: %v", err))
	}

	// Validate farm
	if cfg.Farm.ReadyAttempts < 1 {
		errs = append(errs, "farm.ready_attempts must be at least 1")
	}
	if cfg.Farm.ReadyInterval <= 0 {
		errs = append(errs, "farm.ready_interval must be positive")
	}

	// Contracts are optional until a transaction needs them
	if cfg.Contracts != (txs.Contracts{}) {
		if err := cfg.Contracts.Validate(); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func validateURL(raw string, schemes ...string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	for _, s := range schemes {
		if u.Scheme == s && u.Host != "" {
			return nil
		}
	}
	return fmt.Errorf("%q must be a %s url", raw, strings.Join(schemes, " or "))
}
