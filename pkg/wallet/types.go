// Package wallet defines the public data model shared by wallet backends, the
// connection controller and the transaction pipeline.
package wallet

// ConnectType identifies one of the mutually exclusive wallet backends.
type ConnectType string

// Supported connect types.
const (
	ConnectTypeReadonly  ConnectType = "READONLY"
	ConnectTypeExtension ConnectType = "EXTENSION"
	ConnectTypeRelay     ConnectType = "RELAY"
)

// ParseConnectType converts user input (case-insensitive, short aliases
// allowed) into a ConnectType.
func ParseConnectType(s string) (ConnectType, error) {
	switch s {
	case "readonly", "READONLY", "read-only":
		return ConnectTypeReadonly, nil
	case "extension", "EXTENSION", "chrome-extension":
		return ConnectTypeExtension, nil
	case "relay", "RELAY", "walletconnect":
		return ConnectTypeRelay, nil
	default:
		return "", &ConfigurationError{Op: "parse connect type", Message: "unknown connect type " + s}
	}
}

// Design returns the display kind used for wallets of this connect type.
func (t ConnectType) Design() string {
	switch t {
	case ConnectTypeReadonly:
		return "readonly"
	case ConnectTypeExtension:
		return "extension"
	case ConnectTypeRelay:
		return "relay"
	default:
		return ""
	}
}

// CanPost reports whether backends of this type are able to sign and post.
func (t ConnectType) CanPost() bool {
	return t == ConnectTypeExtension || t == ConnectTypeRelay
}

// Status is the process-wide connection status published by the controller.
type Status string

// Connection status values.
const (
	StatusInitializing       Status = "INITIALIZING"
	StatusWalletConnected    Status = "WALLET_CONNECTED"
	StatusWalletNotConnected Status = "WALLET_NOT_CONNECTED"
)

// NetworkInfo describes the chain a backend is attached to.
type NetworkInfo struct {
	// Name is the human readable network name (e.g. "mainnet").
	Name string `json:"name" toml:"name"`

	// ChainID is the chain identifier (e.g. "columbus-5").
	ChainID string `json:"chainID" toml:"chain_id"`

	// LCD is the REST endpoint used to query transactions on this network.
	LCD string `json:"lcd,omitempty" toml:"lcd"`
}

// WalletInfo identifies the wallet exposed by the active backend.
type WalletInfo struct {
	ConnectType ConnectType `json:"connectType"`
	Address     string      `json:"terraAddress"`
	Design      string      `json:"design"`
}

// PostTarget optionally pins a post to a specific network and wallet.
type PostTarget struct {
	Network *NetworkInfo
	Address string
}
