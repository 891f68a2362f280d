// Package readonly implements an observer backend: a wallet address the user
// wants to watch without being able to sign for it.
package readonly

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/store"
	"github.com/altuslabsxyz/walletkit/internal/stream"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Session is what a readonly backend needs to resume. ID tells one stored
// session from the next and is assigned by Connect.
type Session struct {
	ID      string             `json:"id,omitempty"`
	Network wallet.NetworkInfo `json:"network"`
	Address string             `json:"terraAddress"`
}

// Validate checks the session address.
func (s *Session) Validate() error {
	if err := wallet.ValidateAddress(s.Address); err != nil {
		return &wallet.ConfigurationError{Op: "readonly session", Message: "invalid address", Err: err}
	}
	if s.Network.ChainID == "" {
		return &wallet.ConfigurationError{Op: "readonly session", Message: "network chain id is required"}
	}
	return nil
}

// Readonly is a backend that never posts. Its status is always
// WALLET_CONNECTED for the lifetime of the session.
type Readonly struct {
	store   store.Store
	logger  *slog.Logger
	session Session

	status  *stream.Value[backend.Status]
	network *stream.Value[wallet.NetworkInfo]
	address *stream.Value[string]
}

func newReadonly(s store.Store, session *Session, logger *slog.Logger) *Readonly {
	if logger == nil {
		logger = slog.Default()
	}
	return &Readonly{
		store:   s,
		logger:  logger,
		session: *session,
		status:  stream.NewValue(backend.StatusWalletConnected),
		network: stream.NewValue(session.Network),
		address: stream.NewValue(session.Address),
	}
}

// Connect persists session and returns a backend for it.
func Connect(ctx context.Context, s store.Store, session *Session, logger *slog.Logger) (*Readonly, error) {
	if err := session.Validate(); err != nil {
		return nil, err
	}
	owned := *session
	owned.ID = uuid.NewString()
	if err := store.PutJSON(ctx, s, store.KeyReadonlySession, owned); err != nil {
		return nil, fmt.Errorf("failed to store readonly session: %w", err)
	}
	return newReadonly(s, &owned, logger), nil
}

// ConnectIfSessionExists restores a stored session. It returns nil when
// nothing valid is stored.
func ConnectIfSessionExists(ctx context.Context, s store.Store, logger *slog.Logger) (*Readonly, error) {
	var session Session
	if err := store.GetJSON(ctx, s, store.KeyReadonlySession, &session); err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	if err := session.Validate(); err != nil {
		// A corrupt session is dropped rather than resumed.
		if derr := s.Delete(ctx, store.KeyReadonlySession); derr != nil {
			return nil, derr
		}
		return nil, nil
	}

	return newReadonly(s, &session, logger), nil
}

// Kind implements backend.Backend.
func (r *Readonly) Kind() wallet.ConnectType { return wallet.ConnectTypeReadonly }

// Status implements backend.Backend.
func (r *Readonly) Status() stream.Observable[backend.Status] { return r.status }

// Network implements backend.Backend.
func (r *Readonly) Network() stream.Observable[wallet.NetworkInfo] { return r.network }

// Address implements backend.Backend.
func (r *Readonly) Address() stream.Observable[string] { return r.address }

// Disconnect clears the stored session unless a newer one has replaced it.
func (r *Readonly) Disconnect() {
	r.clearStore(context.Background())
	r.status.Set(backend.StatusWalletNotConnected)
	r.address.Set("")
}

func (r *Readonly) clearStore(ctx context.Context) {
	var stored Session
	err := store.GetJSON(ctx, r.store, store.KeyReadonlySession, &stored)
	switch {
	case store.IsNotFound(err):
		return
	case err == nil && stored != r.session:
		r.logger.Debug("readonly session was replaced, keeping it", "address", stored.Address)
		return
	}

	if err := r.store.Delete(ctx, store.KeyReadonlySession); err != nil {
		r.logger.Warn("failed to clear readonly session", "error", err)
	}
}

var _ backend.Backend = (*Readonly)(nil)

// Connector opens readonly sessions for the connection controller.
type Connector struct {
	Store  store.Store
	Logger *slog.Logger

	// CreateSession supplies the session to watch when a new connection is
	// requested. A nil session with a nil error means the user cancelled.
	CreateSession func(ctx context.Context) (*Session, error)
}

// Connect asks for a session and persists it.
func (c *Connector) Connect(ctx context.Context) (backend.Backend, error) {
	if c.CreateSession == nil {
		return nil, &wallet.ConfigurationError{Op: "readonly connect", Message: "no session source configured"}
	}
	session, err := c.CreateSession(ctx)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, nil
	}
	r, err := Connect(ctx, c.Store, session, c.Logger)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Resume restores the stored session, or returns nil.
func (c *Connector) Resume(ctx context.Context) (backend.Backend, error) {
	r, err := ConnectIfSessionExists(ctx, c.Store, c.Logger)
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}
