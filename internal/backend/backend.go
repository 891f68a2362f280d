// Package backend defines the capability contract every wallet backend
// satisfies. The connection controller depends on nothing else.
package backend

import (
	"context"

	"github.com/altuslabsxyz/walletkit/internal/stream"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Status is the connectivity of a single backend.
type Status string

// Backend status values.
const (
	StatusInitializing       Status = "INITIALIZING"
	StatusUnavailable        Status = "UNAVAILABLE"
	StatusWalletNotConnected Status = "WALLET_NOT_CONNECTED"
	StatusWalletConnected    Status = "WALLET_CONNECTED"
)

// IsPending reports whether the backend has not settled yet.
func (s Status) IsPending() bool {
	return s == StatusInitializing
}

// Backend is a wallet connection mechanism.
//
// All three streams are hot and always hold a current value. Address is the
// empty string when the backend has no wallet.
type Backend interface {
	// Kind returns the connect type this backend implements.
	Kind() wallet.ConnectType

	// Status streams the backend's connectivity.
	Status() stream.Observable[Status]

	// Network streams the network the backend is attached to.
	Network() stream.Observable[wallet.NetworkInfo]

	// Address streams the raw wallet address.
	Address() stream.Observable[string]

	// Disconnect ends the backend's session and clears whatever it
	// persisted for resumption.
	Disconnect()
}

// Poster is implemented by backends that can sign and broadcast.
type Poster interface {
	Post(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error)
}

// CanPost reports whether b is able to post transactions.
func CanPost(b Backend) bool {
	if b == nil {
		return false
	}
	_, ok := b.(Poster)
	return ok && b.Kind().CanPost()
}
