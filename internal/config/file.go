package config

import (
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/altuslabsxyz/walletkit/internal/txs"
)

// FileConfig represents the raw walletkit.toml file contents.
// All fields are pointers to distinguish "not set" from "set to zero/false".
type FileConfig struct {
	Server    FileServerConfig    `toml:"server"`
	Network   FileNetworkConfig   `toml:"network"`
	Extension FileExtensionConfig `toml:"extension"`
	Relay     FileRelayConfig     `toml:"relay"`
	Tx        FileTxConfig        `toml:"tx"`
	Farm      FileFarmConfig      `toml:"farm"`
	Contracts *txs.Contracts      `toml:"contracts"`
	Metrics   FileMetricsConfig   `toml:"metrics"`
}

// FileServerConfig is the TOML representation of ServerConfig.
type FileServerConfig struct {
	DataDir  *string `toml:"data_dir"`
	LogLevel *string `toml:"log_level"`
}

// FileNetworkConfig is the TOML representation of NetworkConfig.
type FileNetworkConfig struct {
	Name    *string `toml:"name"`
	ChainID *string `toml:"chain_id"`
	LCD     *string `toml:"lcd"`
}

// FileExtensionConfig is the TOML representation of ExtensionConfig.
// Uses strings for duration values since TOML cannot decode directly to time.Duration.
type FileExtensionConfig struct {
	Enabled             *bool   `toml:"enabled"`
	Endpoint            *string `toml:"endpoint"`
	ProbeAttempts       *int    `toml:"probe_attempts"`
	ProbeInterval       *string `toml:"probe_interval"`
	AvailabilityTimeout *string `toml:"availability_timeout"`
}

// FileRelayConfig is the TOML representation of RelayConfig. A non-nil
// Chains replaces the default chain map.
type FileRelayConfig struct {
	Bridge *string      `toml:"bridge"`
	Name   *string      `toml:"name"`
	URL    *string      `toml:"url"`
	Chains []RelayChain `toml:"chains"`
}

// FileTxConfig is the TOML representation of TxConfig.
type FileTxConfig struct {
	PollAttempts  *int    `toml:"poll_attempts"`
	PollInterval  *string `toml:"poll_interval"`
	GasWanted     *uint64 `toml:"gas_wanted"`
	FixedGas      *string `toml:"fixed_gas"`
	GasAdjustment *string `toml:"gas_adjustment"`
	FeeDenom      *string `toml:"fee_denom"`
	FeeSymbol     *string `toml:"fee_symbol"`
}

// FileFarmConfig is the TOML representation of FarmConfig.
type FileFarmConfig struct {
	ReadyAttempts *int    `toml:"ready_attempts"`
	ReadyInterval *string `toml:"ready_interval"`
}

// FileMetricsConfig is the TOML representation of MetricsConfig.
type FileMetricsConfig struct {
	Listen *string `toml:"listen"`
}

// File converts cfg to its file form, with every field set.
func (c *Config) File() *FileConfig {
	str := func(d time.Duration) *string {
		s := d.String()
		return &s
	}
	contracts := c.Contracts
	chains := append([]RelayChain{}, c.Relay.Chains...)

	return &FileConfig{
		Server: FileServerConfig{
			DataDir:  &c.Server.DataDir,
			LogLevel: &c.Server.LogLevel,
		},
		Network: FileNetworkConfig{
			Name:    &c.Network.Name,
			ChainID: &c.Network.ChainID,
			LCD:     &c.Network.LCD,
		},
		Extension: FileExtensionConfig{
			Enabled:             &c.Extension.Enabled,
			Endpoint:            &c.Extension.Endpoint,
			ProbeAttempts:       &c.Extension.ProbeAttempts,
			ProbeInterval:       str(c.Extension.ProbeInterval),
			AvailabilityTimeout: str(c.Extension.AvailabilityTimeout),
		},
		Relay: FileRelayConfig{
			Bridge: &c.Relay.Bridge,
			Name:   &c.Relay.Name,
			URL:    &c.Relay.URL,
			Chains: chains,
		},
		Tx: FileTxConfig{
			PollAttempts:  &c.Tx.PollAttempts,
			PollInterval:  str(c.Tx.PollInterval),
			GasWanted:     &c.Tx.GasWanted,
			FixedGas:      &c.Tx.FixedGas,
			GasAdjustment: &c.Tx.GasAdjustment,
			FeeDenom:      &c.Tx.FeeDenom,
			FeeSymbol:     &c.Tx.FeeSymbol,
		},
		Farm: FileFarmConfig{
			ReadyAttempts: &c.Farm.ReadyAttempts,
			ReadyInterval: str(c.Farm.ReadyInterval),
		},
		Contracts: &contracts,
		Metrics: FileMetricsConfig{
			Listen: &c.Metrics.Listen,
		},
	}
}

// Marshal renders cfg as walletkit.toml contents.
func (c *Config) Marshal() ([]byte, error) {
	return toml.Marshal(c.File())
}
