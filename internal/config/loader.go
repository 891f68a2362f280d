package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ConfigFileName is the default config file name.
const ConfigFileName = "walletkit.toml"

// Environment variable names
const (
	EnvDataDir           = "WALLETKIT_DATA_DIR"
	EnvLogLevel          = "WALLETKIT_LOG_LEVEL"
	EnvNetworkName       = "WALLETKIT_NETWORK_NAME"
	EnvChainID           = "WALLETKIT_CHAIN_ID"
	EnvLCD               = "WALLETKIT_LCD"
	EnvExtensionEnabled  = "WALLETKIT_EXTENSION_ENABLED"
	EnvExtensionEndpoint = "WALLETKIT_EXTENSION_ENDPOINT"
	EnvRelayBridge       = "WALLETKIT_RELAY_BRIDGE"
	EnvPollAttempts      = "WALLETKIT_POLL_ATTEMPTS"
	EnvPollInterval      = "WALLETKIT_POLL_INTERVAL"
	EnvFixedGas          = "WALLETKIT_FIXED_GAS"
	EnvMetricsListen     = "WALLETKIT_METRICS_LISTEN"
)

// Loader loads configuration from file, environment, and applies defaults.
type Loader struct {
	dataDir    string
	configPath string // explicit config path (empty = use default)
}

// NewLoader creates a new config loader.
// dataDir is the base data directory (for finding walletkit.toml).
// configPath is an explicit config file path (empty = use dataDir/walletkit.toml).
func NewLoader(dataDir, configPath string) *Loader {
	return &Loader{
		dataDir:    dataDir,
		configPath: configPath,
	}
}

// Load loads configuration with priority: defaults < file < env.
// The result is not validated; call Validate once flags are applied.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.dataDir != "" {
		cfg.Server.DataDir = l.dataDir
	}

	fileCfg, err := l.loadFile(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}
	if fileCfg != nil {
		if err := mergeFileConfig(cfg, fileCfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnvVars(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the config file the loader reads.
func (l *Loader) Path() string {
	if l.configPath != "" {
		return l.configPath
	}
	dataDir := l.dataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	return filepath.Join(dataDir, ConfigFileName)
}

// loadFile loads and parses the config file.
// Returns nil if no config file exists (not an error).
func (l *Loader) loadFile(dataDir string) (*FileConfig, error) {
	configPath := l.configPath
	if configPath == "" {
		configPath = filepath.Join(dataDir, ConfigFileName)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) && l.configPath == "" {
			return nil, nil // No config file is OK
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg FileConfig
	if err := toml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("invalid TOML in %s: %w", configPath, err)
	}

	return &fileCfg, nil
}

func parseDuration(key, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}

func setDuration(dst *time.Duration, key string, v *string) error {
	if v == nil {
		return nil
	}
	d, err := parseDuration(key, *v)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// mergeFileConfig merges non-nil FileConfig values into Config.
func mergeFileConfig(cfg *Config, file *FileConfig) error {
	// Server
	set(&cfg.Server.DataDir, file.Server.DataDir)
	set(&cfg.Server.LogLevel, file.Server.LogLevel)

	// Network
	set(&cfg.Network.Name, file.Network.Name)
	set(&cfg.Network.ChainID, file.Network.ChainID)
	set(&cfg.Network.LCD, file.Network.LCD)

	// Extension
	set(&cfg.Extension.Enabled, file.Extension.Enabled)
	set(&cfg.Extension.Endpoint, file.Extension.Endpoint)
	set(&cfg.Extension.ProbeAttempts, file.Extension.ProbeAttempts)
	if err := setDuration(&cfg.Extension.ProbeInterval, "extension.probe_interval", file.Extension.ProbeInterval); err != nil {
		return err
	}
	if err := setDuration(&cfg.Extension.AvailabilityTimeout, "extension.availability_timeout", file.Extension.AvailabilityTimeout); err != nil {
		return err
	}

	// Relay
	set(&cfg.Relay.Bridge, file.Relay.Bridge)
	set(&cfg.Relay.Name, file.Relay.Name)
	set(&cfg.Relay.URL, file.Relay.URL)
	if file.Relay.Chains != nil {
		cfg.Relay.Chains = file.Relay.Chains
	}

	// Tx
	set(&cfg.Tx.PollAttempts, file.Tx.PollAttempts)
	if err := setDuration(&cfg.Tx.PollInterval, "tx.poll_interval", file.Tx.PollInterval); err != nil {
		return err
	}
	set(&cfg.Tx.GasWanted, file.Tx.GasWanted)
	set(&cfg.Tx.FixedGas, file.Tx.FixedGas)
	set(&cfg.Tx.GasAdjustment, file.Tx.GasAdjustment)
	set(&cfg.Tx.FeeDenom, file.Tx.FeeDenom)
	set(&cfg.Tx.FeeSymbol, file.Tx.FeeSymbol)

	// Farm
	set(&cfg.Farm.ReadyAttempts, file.Farm.ReadyAttempts)
	if err := setDuration(&cfg.Farm.ReadyInterval, "farm.ready_interval", file.Farm.ReadyInterval); err != nil {
		return err
	}

	// Contracts
	set(&cfg.Contracts, file.Contracts)

	// Metrics
	set(&cfg.Metrics.Listen, file.Metrics.Listen)

	return nil
}

// applyEnvVars applies environment variable overrides to config.
func applyEnvVars(cfg *Config) error {
	if v := os.Getenv(EnvDataDir); v != "" {
		cfg.Server.DataDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv(EnvNetworkName); v != "" {
		cfg.Network.Name = v
	}
	if v := os.Getenv(EnvChainID); v != "" {
		cfg.Network.ChainID = v
	}
	if v := os.Getenv(EnvLCD); v != "" {
		cfg.Network.LCD = v
	}
	if v := os.Getenv(EnvExtensionEnabled); v != "" {
		cfg.Extension.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv(EnvExtensionEndpoint); v != "" {
		cfg.Extension.Endpoint = v
	}
	if v := os.Getenv(EnvRelayBridge); v != "" {
		cfg.Relay.Bridge = v
	}
	if v := os.Getenv(EnvPollAttempts); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPollAttempts, v, err)
		}
		cfg.Tx.PollAttempts = i
	}
	if v := os.Getenv(EnvPollInterval); v != "" {
		d, err := parseDuration(EnvPollInterval, v)
		if err != nil {
			return err
		}
		cfg.Tx.PollInterval = d
	}
	if v := os.Getenv(EnvFixedGas); v != "" {
		cfg.Tx.FixedGas = v
	}
	if v := os.Getenv(EnvMetricsListen); v != "" {
		cfg.Metrics.Listen = v
	}
	return nil
}
