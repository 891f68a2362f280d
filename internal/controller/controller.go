// Package controller unifies the wallet backends behind one facade. At most
// one backend is active at a time; the controller republishes the active
// backend's status, network and address as its own streams and routes posts
// to it.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/stream"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// DefaultAvailabilityTimeout bounds how long construction waits for the
// extension probe before giving up on it.
const DefaultAvailabilityTimeout = 10 * time.Second

// ExtensionBackend is the long-lived extension backend.
type ExtensionBackend interface {
	backend.Backend
	backend.Poster

	// Connect asks the signer for its address; "" means refused.
	Connect(ctx context.Context) (string, error)

	// RecheckStatus refreshes the backend's status.
	RecheckStatus()
}

// Opener creates backends that hold a session, either a new one or one
// resumed from storage.
type Opener interface {
	// Connect opens a new session. A nil backend with a nil error means the
	// user cancelled.
	Connect(ctx context.Context) (backend.Backend, error)

	// Resume reattaches the stored session, or returns nil.
	Resume(ctx context.Context) (backend.Backend, error)
}

// Options configures a Controller.
type Options struct {
	// DefaultNetwork is published whenever no backend says otherwise.
	DefaultNetwork wallet.NetworkInfo

	// Extension is nil when the environment cannot host the extension.
	Extension ExtensionBackend

	Readonly Opener
	Relay    Opener

	// AvailabilityTimeout bounds the wait for the extension probe.
	AvailabilityTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// activation is the active backend and the means to detach from it.
type activation struct {
	backend backend.Backend
	sub     *stream.Subscription
}

// Controller is the wallet connection controller.
type Controller struct {
	opts   Options
	logger *slog.Logger

	availableConnectTypes *stream.Value[[]wallet.ConnectType]
	status                *stream.Value[wallet.Status]
	network               *stream.Value[wallet.NetworkInfo]
	wallets               *stream.Value[[]wallet.WalletInfo]

	// mu serializes activation. Only enable and disable write active.
	mu            sync.Mutex
	active        *activation
	sessionChecks int

	// pubMu guards gen together with publishing, so a torn-down backend
	// can never publish after the switch.
	pubMu sync.Mutex
	gen   uint64

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the controller and restores any resumable session.
//
// Restoration order: the extension probe starts first and runs in the
// background; a stored readonly session wins and stops further checks;
// otherwise a stored relay session is activated if it is connected. Once
// both the probe and the session checks have reported without activating
// anything, status becomes WALLET_NOT_CONNECTED.
func New(ctx context.Context, opts Options) (*Controller, error) {
	if opts.AvailabilityTimeout <= 0 {
		opts.AvailabilityTimeout = DefaultAvailabilityTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.NewDefaultClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Readonly == nil || opts.Relay == nil {
		return nil, &wallet.ConfigurationError{Op: "new controller", Message: "readonly and relay openers are required"}
	}

	bgCtx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		opts:   opts,
		logger: opts.Logger,
		availableConnectTypes: stream.NewValue([]wallet.ConnectType{
			wallet.ConnectTypeReadonly,
			wallet.ConnectTypeRelay,
		}),
		status:  stream.NewValue(wallet.StatusInitializing),
		network: stream.NewValue(opts.DefaultNetwork),
		wallets: stream.NewValue([]wallet.WalletInfo{}),
		cancel:  cancel,
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if opts.Extension != nil {
		c.wg.Add(1)
		go c.awaitExtension(bgCtx, opts.Extension)
	} else {
		c.sessionChecks++
	}

	readonly, err := opts.Readonly.Resume(ctx)
	if err != nil {
		c.logger.Warn("failed to resume readonly session", "error", err)
	}
	if readonly != nil {
		c.logger.Info("resumed readonly session", "address", readonly.Address().Get())
		c.enableLocked(readonly)
		return c, nil
	}

	relay, err := opts.Relay.Resume(ctx)
	if err != nil {
		c.logger.Warn("failed to resume relay session", "error", err)
	}
	if relay != nil && relay.Status().Get() == backend.StatusWalletConnected {
		c.logger.Info("resumed relay session", "address", relay.Address().Get())
		c.enableLocked(relay)
		return c, nil
	}
	if relay != nil {
		// Keep the stored session around for a later resume.
		closeBackend(relay)
	}

	c.sessionCheckDoneLocked()
	return c, nil
}

// awaitExtension races the extension probe against the availability
// timeout and applies the outcome.
func (c *Controller) awaitExtension(ctx context.Context, ext ExtensionBackend) {
	defer c.wg.Done()

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()

	statuses := ext.Status().Watch(watchCtx)
	timeout := c.opts.Clock.TickAfter(c.opts.AvailabilityTimeout)

	settled := backend.StatusInitializing
wait:
	for {
		select {
		case <-ctx.Done():
			return
		case <-timeout:
			c.logger.Warn("extension availability check timed out",
				"timeout", c.opts.AvailabilityTimeout)
			break wait
		case s, ok := <-statuses:
			if !ok {
				return
			}
			if !s.IsPending() {
				settled = s
				break wait
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !settled.IsPending() && settled != backend.StatusUnavailable {
		c.availableConnectTypes.Set([]wallet.ConnectType{
			wallet.ConnectTypeReadonly,
			wallet.ConnectTypeExtension,
			wallet.ConnectTypeRelay,
		})
	}

	if settled == backend.StatusWalletConnected && c.active == nil {
		c.logger.Info("resumed extension session", "address", ext.Address().Get())
		c.enableLocked(ext)
		return
	}
	c.sessionCheckDoneLocked()
}

// sessionCheckDoneLocked records one finished startup check. The second one
// settles status if nothing got activated meanwhile.
func (c *Controller) sessionCheckDoneLocked() {
	c.sessionChecks++
	if c.sessionChecks < 2 || c.active != nil {
		return
	}
	c.status.Set(wallet.StatusWalletNotConnected)
}

// AvailableConnectTypes streams the connect types usable in this
// environment.
func (c *Controller) AvailableConnectTypes() stream.Observable[[]wallet.ConnectType] {
	return c.availableConnectTypes
}

// Status streams the connection status.
func (c *Controller) Status() stream.Observable[wallet.Status] { return c.status }

// Network streams the active network.
func (c *Controller) Network() stream.Observable[wallet.NetworkInfo] { return c.network }

// Wallets streams the connected wallets. It holds zero or one entries.
func (c *Controller) Wallets() stream.Observable[[]wallet.WalletInfo] { return c.wallets }

// Connect opens a session of the given type and activates it. Opening may
// block on user interaction; activation happens only if it succeeds.
func (c *Controller) Connect(ctx context.Context, connectType wallet.ConnectType) error {
	var (
		b   backend.Backend
		err error
	)

	switch connectType {
	case wallet.ConnectTypeReadonly:
		b, err = c.opts.Readonly.Connect(ctx)
	case wallet.ConnectTypeRelay:
		b, err = c.opts.Relay.Connect(ctx)
	case wallet.ConnectTypeExtension:
		ext := c.opts.Extension
		if ext == nil {
			return &wallet.ConfigurationError{Op: "connect", Message: "extension is not supported in this environment"}
		}
		var address string
		address, err = ext.Connect(ctx)
		if err == nil && address != "" {
			b = ext
		}
	default:
		return &wallet.ConfigurationError{Op: "connect", Message: fmt.Sprintf("unknown connect type %q", connectType)}
	}

	if err != nil {
		return fmt.Errorf("connect %s: %w", connectType.Design(), err)
	}
	if b == nil {
		c.logger.Info("connect cancelled", "type", connectType)
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.enableLocked(b)
	return nil
}

// Disconnect tears down the active backend and resets every stream.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.disableLocked()

	c.pubMu.Lock()
	defer c.pubMu.Unlock()
	c.status.Set(wallet.StatusWalletNotConnected)
	c.network.Set(c.opts.DefaultNetwork)
	c.wallets.Set([]wallet.WalletInfo{})
}

// Post sends tx through the active backend. target, when given, must match
// the active network and wallet.
func (c *Controller) Post(ctx context.Context, tx *wallet.TxOptions, target *wallet.PostTarget) (*wallet.TxResult, error) {
	c.mu.Lock()
	var b backend.Backend
	if c.active != nil {
		b = c.active.backend
	}
	c.mu.Unlock()

	if !backend.CanPost(b) {
		return nil, &wallet.ConfigurationError{
			Op:      "post",
			Message: "no active postable connection",
			Err:     wallet.ErrNoPostableConnection,
		}
	}

	if target != nil {
		if target.Network != nil && target.Network.ChainID != c.network.Get().ChainID {
			return nil, &wallet.ConfigurationError{
				Op:      "post",
				Message: fmt.Sprintf("target network %s does not match active network %s", target.Network.ChainID, c.network.Get().ChainID),
			}
		}
		if target.Address != "" && !slices.ContainsFunc(c.wallets.Get(), func(w wallet.WalletInfo) bool {
			return w.Address == target.Address
		}) {
			return nil, &wallet.ConfigurationError{
				Op:      "post",
				Message: fmt.Sprintf("target wallet %s is not connected", target.Address),
			}
		}
	}

	return b.(backend.Poster).Post(ctx, tx)
}

// RecheckStatus asks the active extension to refresh. Other backends push
// their own updates.
func (c *Controller) RecheckStatus() {
	c.mu.Lock()
	active := c.active
	c.mu.Unlock()

	if active != nil && c.opts.Extension != nil && active.backend == backend.Backend(c.opts.Extension) {
		c.opts.Extension.RecheckStatus()
	}
}

// Close stops background work and releases backends without clearing their
// stored sessions.
func (c *Controller) Close() {
	c.cancel()
	c.wg.Wait()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		c.pubMu.Lock()
		c.gen++
		c.pubMu.Unlock()
		c.active.sub.CancelAndWait()
		if c.active.backend != backend.Backend(c.opts.Extension) {
			closeBackend(c.active.backend)
		}
		c.active = nil
	}
	if c.opts.Extension != nil {
		closeBackend(c.opts.Extension)
	}
}

// enableLocked activates b after tearing down whatever else is active.
// Enabling the already active backend is a no-op.
func (c *Controller) enableLocked(b backend.Backend) {
	if c.active != nil && c.active.backend == b {
		return
	}
	c.disableLocked()

	c.pubMu.Lock()
	c.gen++
	gen := c.gen
	c.publishLocked(b.Kind(), b.Status().Get(), b.Network().Get(), b.Address().Get())
	c.pubMu.Unlock()

	sub := stream.CombineLatest3(b.Status(), b.Network(), b.Address(),
		func(status backend.Status, network wallet.NetworkInfo, address string) {
			c.pubMu.Lock()
			defer c.pubMu.Unlock()
			if c.gen != gen {
				return
			}
			c.publishLocked(b.Kind(), status, network, address)
		})

	c.active = &activation{backend: b, sub: sub}
	c.logger.Debug("backend enabled", "type", b.Kind())
}

// disableLocked detaches the active backend and ends its session. After it
// returns the backend can no longer reach the controller's streams.
func (c *Controller) disableLocked() {
	if c.active == nil {
		return
	}
	active := c.active
	c.active = nil

	c.pubMu.Lock()
	c.gen++
	c.pubMu.Unlock()

	active.sub.CancelAndWait()
	active.backend.Disconnect()
	c.logger.Debug("backend disabled", "type", active.backend.Kind())
}

// publishLocked maps one backend state onto the public streams. pubMu must
// be held.
func (c *Controller) publishLocked(kind wallet.ConnectType, status backend.Status, network wallet.NetworkInfo, address string) {
	c.network.Set(network)

	if status == backend.StatusWalletConnected && wallet.IsValidAddress(address) {
		c.status.Set(wallet.StatusWalletConnected)
		c.wallets.Set([]wallet.WalletInfo{{
			ConnectType: kind,
			Address:     address,
			Design:      kind.Design(),
		}})
		return
	}

	c.status.Set(wallet.StatusWalletNotConnected)
	c.wallets.Set([]wallet.WalletInfo{})
}

func closeBackend(b backend.Backend) {
	if closer, ok := b.(interface{ Close() }); ok {
		closer.Close()
	}
}
