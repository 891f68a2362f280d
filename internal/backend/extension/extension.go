// Package extension implements the backend for a locally installed signer,
// reached through a Bridge.
//
// The signer is injected asynchronously by its host, so on construction the
// backend probes for it a bounded number of times. If it never shows up the
// backend reports UNAVAILABLE for the rest of its life.
package extension

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lightningnetwork/lnd/clock"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/store"
	"github.com/altuslabsxyz/walletkit/internal/stream"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Probe defaults.
const (
	DefaultProbeAttempts = 20
	DefaultProbeInterval = 500 * time.Millisecond
)

// Config configures an Extension backend.
type Config struct {
	// HostCapable is false when the environment cannot host the signer at
	// all. The backend is then UNAVAILABLE from the start and never probes.
	HostCapable bool

	// DefaultNetwork is reported until the signer says otherwise.
	DefaultNetwork wallet.NetworkInfo

	// EnableWalletConnection allows restoring a stored address. When false
	// the backend only reports availability.
	EnableWalletConnection bool

	ProbeAttempts int
	ProbeInterval time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the standard probe budget.
func DefaultConfig(defaultNetwork wallet.NetworkInfo) Config {
	return Config{
		HostCapable:            true,
		DefaultNetwork:         defaultNetwork,
		EnableWalletConnection: true,
		ProbeAttempts:          DefaultProbeAttempts,
		ProbeInterval:          DefaultProbeInterval,
	}
}

// Extension is the extension backend.
type Extension struct {
	cfg    Config
	bridge Bridge
	store  store.Store
	logger *slog.Logger

	status  *stream.Value[backend.Status]
	network *stream.Value[wallet.NetworkInfo]
	address *stream.Value[string]

	// checkMu serializes status checks.
	checkMu        sync.Mutex
	doneFirstCheck atomic.Bool
	gaveUp         atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates the backend and, when the host is capable, starts the one-shot
// presence probe in the background.
func New(bridge Bridge, s store.Store, cfg Config) *Extension {
	if cfg.ProbeAttempts <= 0 {
		cfg.ProbeAttempts = DefaultProbeAttempts
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = DefaultProbeInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewDefaultClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if bridge == nil {
		cfg.HostCapable = false
	}

	initial := backend.StatusUnavailable
	if cfg.HostCapable {
		initial = backend.StatusInitializing
	}

	ctx, cancel := context.WithCancel(context.Background())
	e := &Extension{
		cfg:     cfg,
		bridge:  bridge,
		store:   s,
		logger:  cfg.Logger,
		status:  stream.NewValue(initial),
		network: stream.NewValue(cfg.DefaultNetwork),
		address: stream.NewValue(storedAddress(ctx, s)),
		ctx:     ctx,
		cancel:  cancel,
	}

	if cfg.HostCapable {
		e.goCheck(true)
	}

	return e
}

// Kind implements backend.Backend.
func (e *Extension) Kind() wallet.ConnectType { return wallet.ConnectTypeExtension }

// Status implements backend.Backend.
func (e *Extension) Status() stream.Observable[backend.Status] { return e.status }

// Network implements backend.Backend.
func (e *Extension) Network() stream.Observable[wallet.NetworkInfo] { return e.network }

// Address implements backend.Backend.
func (e *Extension) Address() stream.Observable[string] { return e.address }

// Connect asks the signer for its address and stores it. It returns the
// address, or "" when the user refused.
func (e *Extension) Connect(ctx context.Context) (string, error) {
	if e.status.Get() == backend.StatusUnavailable {
		return "", fmt.Errorf("extension connect: %w", wallet.ErrBackendUnavailable)
	}

	address, err := e.bridge.Connect(ctx)
	if err != nil {
		return "", fmt.Errorf("extension connect: %w", err)
	}
	if address == "" {
		return "", nil
	}

	if err := e.store.Put(ctx, store.KeyExtensionAddress, []byte(address)); err != nil {
		return "", fmt.Errorf("failed to store extension address: %w", err)
	}

	e.checkStatus(ctx, false)
	return address, nil
}

// Disconnect forgets the stored address and refreshes the status.
func (e *Extension) Disconnect() {
	if err := e.store.Delete(e.ctx, store.KeyExtensionAddress); err != nil {
		e.logger.Warn("failed to clear extension address", "error", err)
	}
	e.goCheck(false)
}

// RecheckStatus refreshes the status unless a transaction is being signed.
func (e *Extension) RecheckStatus() {
	if e.bridge == nil || e.bridge.InTransactionProgress() {
		return
	}
	e.goCheck(false)
}

// Post forwards tx to the signer.
func (e *Extension) Post(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error) {
	if e.bridge == nil {
		return nil, errNoBridge
	}
	if e.status.Get() != backend.StatusWalletConnected {
		return nil, fmt.Errorf("extension post: wallet is not connected: %w", wallet.ErrBackendUnavailable)
	}
	return e.bridge.Post(ctx, tx)
}

// Close stops background checks. It does not touch the stored address.
func (e *Extension) Close() {
	e.cancel()
	e.wg.Wait()
}

func (e *Extension) goCheck(waitInjection bool) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.checkStatus(e.ctx, waitInjection)
	}()
}

// checkStatus refreshes status, network and address from the signer. With
// waitInjection set it first runs the bounded presence probe.
func (e *Extension) checkStatus(ctx context.Context, waitInjection bool) {
	if !e.cfg.HostCapable || e.gaveUp.Load() {
		return
	}

	// Manual checks racing the first probe are dropped.
	if !waitInjection && !e.doneFirstCheck.Load() {
		return
	}

	e.checkMu.Lock()
	defer e.checkMu.Unlock()

	var installed bool
	if waitInjection {
		installed = e.probe(ctx)
		if !installed {
			e.gaveUp.Store(true)
		}
	} else {
		installed = e.bridge.IsAvailable(ctx)
	}
	e.doneFirstCheck.Store(true)

	if !installed {
		e.logger.Debug("extension not available", "probe", waitInjection)
		e.status.Set(backend.StatusUnavailable)
		return
	}

	info, err := e.bridge.Info(ctx)
	if err != nil {
		e.logger.Warn("failed to read extension network", "error", err)
	} else if info != nil && e.network.Get().ChainID != info.ChainID {
		e.network.Set(*info)
	}

	if !e.cfg.EnableWalletConnection {
		e.status.Set(backend.StatusWalletNotConnected)
		e.address.Set("")
		return
	}

	stored := storedAddress(ctx, e.store)
	if stored == "" || !wallet.IsValidAddress(stored) {
		if stored != "" {
			e.clearStore(ctx)
		}
		e.status.Set(backend.StatusWalletNotConnected)
		e.address.Set("")
		return
	}

	e.status.Set(backend.StatusWalletConnected)

	address, err := e.bridge.Connect(ctx)
	if err != nil {
		e.logger.Warn("extension connect failed during status check", "error", err)
		address = ""
	}

	if address != "" && wallet.IsValidAddress(address) {
		if err := e.store.Put(ctx, store.KeyExtensionAddress, []byte(address)); err != nil {
			e.logger.Warn("failed to store extension address", "error", err)
		}
	}

	if address == "" {
		e.clearStore(ctx)
		e.status.Set(backend.StatusWalletNotConnected)
		return
	}

	if e.address.Get() != address {
		e.address.Set(address)
	}
}

// probe polls IsAvailable up to ProbeAttempts times. It is bounded by the
// attempt count; cancelling ctx only shortens the waits.
func (e *Extension) probe(ctx context.Context) bool {
	for i := 0; i < e.cfg.ProbeAttempts; i++ {
		if e.bridge.IsAvailable(ctx) {
			e.logger.Debug("extension found", "attempt", i+1)
			return true
		}
		if i == e.cfg.ProbeAttempts-1 {
			break
		}
		select {
		case <-e.cfg.Clock.TickAfter(e.cfg.ProbeInterval):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

func (e *Extension) clearStore(ctx context.Context) {
	if err := e.store.Delete(ctx, store.KeyExtensionAddress); err != nil {
		e.logger.Warn("failed to clear extension address", "error", err)
	}
}

func storedAddress(ctx context.Context, s store.Store) string {
	data, err := s.Get(ctx, store.KeyExtensionAddress)
	if err != nil {
		return ""
	}
	return string(data)
}

var (
	_ backend.Backend = (*Extension)(nil)
	_ backend.Poster  = (*Extension)(nil)
)
