package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/backend/extension"
	"github.com/altuslabsxyz/walletkit/internal/backend/readonly"
	"github.com/altuslabsxyz/walletkit/internal/backend/relay"
	"github.com/altuslabsxyz/walletkit/internal/config"
	"github.com/altuslabsxyz/walletkit/internal/controller"
	"github.com/altuslabsxyz/walletkit/internal/output"
	"github.com/altuslabsxyz/walletkit/internal/store"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// errNotConnected is returned by commands that need a wallet.
var errNotConnected = errors.New("no wallet connected; run 'walletkit connect' first")

// sessionOptions tune how a session opens new connections.
type sessionOptions struct {
	// ReadonlySession supplies the address for a readonly connect.
	ReadonlySession func(ctx context.Context) (*readonly.Session, error)

	// ShowPairingURI receives the URI of a new relay session.
	ShowPairingURI func(uri string)
}

// session is one process's wallet state: the store, the backends and the
// controller over them.
type session struct {
	store *store.BoltStore
	ctrl  *controller.Controller
}

// openSession wires the store, every backend and the controller.
func (c *cli) openSession(ctx context.Context, opts sessionOptions) (*session, error) {
	cfg := c.cfg
	if err := os.MkdirAll(cfg.Server.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	st, err := store.NewBoltStore(config.SessionDBPath(cfg.Server.DataDir))
	if err != nil {
		return nil, err
	}

	network := cfg.Network.Info()
	ctrlOpts := controller.Options{
		DefaultNetwork: network,
		Readonly: &readonly.Connector{
			Store:         st,
			Logger:        c.logger.With("backend", "readonly"),
			CreateSession: opts.ReadonlySession,
		},
		Relay: &pairingOpener{
			Connector: relay.NewConnector(relay.Options{
				Bridge: cfg.Relay.Bridge,
				Meta: relay.PeerMeta{
					Name:        cfg.Relay.Name,
					Description: "walletkit command line",
					URL:         cfg.Relay.URL,
				},
				DefaultNetwork: network,
				ChainIDs:       cfg.Relay.ChainIDs(),
				Store:          st,
				Logger:         c.logger.With("backend", "relay"),
			}),
			show: opts.ShowPairingURI,
		},
		AvailabilityTimeout: cfg.Extension.AvailabilityTimeout,
		Logger:              c.logger.With("component", "controller"),
	}

	if cfg.Extension.Enabled {
		ctrlOpts.Extension = extension.New(extension.NewHTTPBridge(cfg.Extension.Endpoint), st, extension.Config{
			HostCapable:            true,
			DefaultNetwork:         network,
			EnableWalletConnection: true,
			ProbeAttempts:          cfg.Extension.ProbeAttempts,
			ProbeInterval:          cfg.Extension.ProbeInterval,
			Logger:                 c.logger.With("backend", "extension"),
		})
	}

	ctrl, err := controller.New(ctx, ctrlOpts)
	if err != nil {
		st.Close()
		return nil, err
	}
	return &session{store: st, ctrl: ctrl}, nil
}

// Close releases the backends, keeping stored sessions.
func (s *session) Close() {
	s.ctrl.Close()
	s.store.Close()
}

// settle waits until the startup session checks have reported.
func (s *session) settle(ctx context.Context) wallet.Status {
	for status := range s.ctrl.Status().Watch(ctx) {
		if status != wallet.StatusInitializing {
			return status
		}
	}
	return s.ctrl.Status().Get()
}

// waitConnected waits until a wallet is connected.
func (s *session) waitConnected(ctx context.Context) error {
	for status := range s.ctrl.Status().Watch(ctx) {
		if status == wallet.StatusWalletConnected {
			return nil
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("wallet did not connect: %w", err)
	}
	return errNotConnected
}

// report snapshots the controller streams.
func (s *session) report() output.StatusReport {
	return output.StatusReport{
		Status:    s.ctrl.Status().Get(),
		Network:   s.ctrl.Network().Get(),
		Wallets:   s.ctrl.Wallets().Get(),
		Available: s.ctrl.AvailableConnectTypes().Get(),
	}
}

// postable returns the connected wallet that can sign transactions.
func (s *session) postable() (wallet.WalletInfo, error) {
	wallets := s.ctrl.Wallets().Get()
	if len(wallets) == 0 {
		return wallet.WalletInfo{}, errNotConnected
	}
	w := wallets[0]
	if !w.ConnectType.CanPost() {
		return wallet.WalletInfo{}, fmt.Errorf("%s wallet %s cannot sign transactions: %w",
			w.Design, w.Address, wallet.ErrNoPostableConnection)
	}
	return w, nil
}

// pairingOpener shows the pairing URI of every new relay session.
type pairingOpener struct {
	*relay.Connector
	show func(uri string)
}

func (p *pairingOpener) Connect(ctx context.Context) (backend.Backend, error) {
	b, err := p.Connector.Connect(ctx)
	if err != nil || b == nil {
		return b, err
	}
	if r, ok := b.(*relay.Relay); ok && p.show != nil {
		session := r.Session().Get()
		p.show(session.URI())
	}
	return b, nil
}
