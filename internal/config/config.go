// Package config loads walletkit configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	sdkmath "cosmossdk.io/math"

	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/internal/txs"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Config is the single source of truth for walletkit configuration.
// Priority: defaults < config file < environment variables < CLI flags
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Network   NetworkConfig   `toml:"network"`
	Extension ExtensionConfig `toml:"extension"`
	Relay     RelayConfig     `toml:"relay"`
	Tx        TxConfig        `toml:"tx"`
	Farm      FarmConfig      `toml:"farm"`
	Contracts txs.Contracts   `toml:"contracts"`
	Metrics   MetricsConfig   `toml:"metrics"`
}

// ServerConfig holds process settings.
type ServerConfig struct {
	DataDir  string `toml:"data_dir"`
	LogLevel string `toml:"log_level"`
}

// NetworkConfig is a chain walletkit can talk to.
type NetworkConfig struct {
	Name    string `toml:"name"`
	ChainID string `toml:"chain_id"`
	LCD     string `toml:"lcd"`
}

// Info converts the network to its wallet form.
func (n NetworkConfig) Info() wallet.NetworkInfo {
	return wallet.NetworkInfo{Name: n.Name, ChainID: n.ChainID, LCD: n.LCD}
}

// ExtensionConfig holds the local signer settings.
type ExtensionConfig struct {
	Enabled             bool          `toml:"enabled"`
	Endpoint            string        `toml:"endpoint"`
	ProbeAttempts       int           `toml:"probe_attempts"`
	ProbeInterval       time.Duration `toml:"probe_interval"`
	AvailabilityTimeout time.Duration `toml:"availability_timeout"`
}

// RelayChain maps a signer's numeric chain id to a network.
type RelayChain struct {
	ID      int    `toml:"id"`
	Name    string `toml:"name"`
	ChainID string `toml:"chain_id"`
	LCD     string `toml:"lcd"`
}

// RelayConfig holds the relay server and how this client presents itself.
type RelayConfig struct {
	Bridge string       `toml:"bridge"`
	Name   string       `toml:"name"`
	URL    string       `toml:"url"`
	Chains []RelayChain `toml:"chains"`
}

// ChainIDs returns the chain map in the form the relay backend takes.
func (r RelayConfig) ChainIDs() map[int]wallet.NetworkInfo {
	m := make(map[int]wallet.NetworkInfo, len(r.Chains))
	for _, c := range r.Chains {
		m[c.ID] = wallet.NetworkInfo{Name: c.Name, ChainID: c.ChainID, LCD: c.LCD}
	}
	return m
}

// TxConfig holds transaction fee and confirmation settings.
type TxConfig struct {
	PollAttempts int           `toml:"poll_attempts"`
	PollInterval time.Duration `toml:"poll_interval"`

	GasWanted     uint64 `toml:"gas_wanted"`
	FixedGas      string `toml:"fixed_gas"`
	GasAdjustment string `toml:"gas_adjustment"`
	FeeDenom      string `toml:"fee_denom"`
	FeeSymbol     string `toml:"fee_symbol"`
}

// FarmConfig bounds the readiness checks between auto farm steps.
type FarmConfig struct {
	ReadyAttempts int           `toml:"ready_attempts"`
	ReadyInterval time.Duration `toml:"ready_interval"`
}

// MetricsConfig holds the prometheus endpoint settings. An empty Listen
// disables the endpoint.
type MetricsConfig struct {
	Listen string `toml:"listen"`
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".walletkit")
}

// SessionDBPath returns the session database location in dataDir.
func SessionDBPath(dataDir string) string {
	return filepath.Join(dataDir, "session.db")
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			DataDir:  DefaultDataDir(),
			LogLevel: "info",
		},
		Network: NetworkConfig{
			Name:    "mainnet",
			ChainID: "columbus-5",
			LCD:     "https://lcd.terra.dev",
		},
		Extension: ExtensionConfig{
			Enabled:             true,
			Endpoint:            "http://127.0.0.1:8590",
			ProbeAttempts:       20,
			ProbeInterval:       500 * time.Millisecond,
			AvailabilityTimeout: 10 * time.Second,
		},
		Relay: RelayConfig{
			Bridge: "wss://walletconnect.terra.dev",
			Name:   "walletkit",
			Chains: []RelayChain{
				{ID: 1, Name: "mainnet", ChainID: "columbus-5", LCD: "https://lcd.terra.dev"},
				{ID: 0, Name: "testnet", ChainID: "bombay-12", LCD: "https://bombay-lcd.terra.dev"},
			},
		},
		Tx: TxConfig{
			PollAttempts:  20,
			PollInterval:  time.Second,
			GasWanted:     1_000_000,
			FixedGas:      "250000",
			GasAdjustment: "1.6",
			FeeDenom:      "uusd",
			FeeSymbol:     "UST",
		},
		Farm: FarmConfig{
			ReadyAttempts: 10,
			ReadyInterval: time.Second,
		},
	}
}

// TxParams returns the pipeline settings shared by every transaction. The
// config must have passed Validate.
func (c *Config) TxParams() txpipe.Params {
	gas, _ := sdkmath.NewIntFromString(c.Tx.FixedGas)
	return txpipe.Params{
		GasWanted:     c.Tx.GasWanted,
		FixedGas:      gas,
		GasAdjustment: sdkmath.LegacyMustNewDecFromStr(c.Tx.GasAdjustment),
		FeeDenom:      c.Tx.FeeDenom,
		FeeSymbol:     c.Tx.FeeSymbol,
		Network:       c.Network.Info(),
		PollAttempts:  c.Tx.PollAttempts,
		PollInterval:  c.Tx.PollInterval,
	}
}
