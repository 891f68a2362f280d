package extension

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/lightningnetwork/lnd/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/store"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

const (
	testAddress  = "terra1qyqszqgpqyqszqgpqyqszqgpqyqszqgp5hm70u"
	otherAddress = "terra1qgpqyqszqgpqyqszqgpqyqszqgpqyqsz9namy2"
)

var (
	defaultNetwork = wallet.NetworkInfo{Name: "mainnet", ChainID: "columbus-5"}
	testnet        = wallet.NetworkInfo{Name: "testnet", ChainID: "bombay-12"}
)

// mockBridge implements Bridge for testing.
type mockBridge struct {
	mu sync.Mutex

	availableAfter int // IsAvailable returns true from this call on; <0 never
	availableCalls int
	info           *wallet.NetworkInfo
	address        string
	connectErr     error
	postResult     *wallet.TxResult
	postErr        error
	inProgress     bool
	posted         []*wallet.TxOptions
}

func (m *mockBridge) IsAvailable(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availableCalls++
	return m.availableAfter >= 0 && m.availableCalls > m.availableAfter
}

func (m *mockBridge) Info(ctx context.Context) (*wallet.NetworkInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.info, nil
}

func (m *mockBridge) Connect(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.address, m.connectErr
}

func (m *mockBridge) Post(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.posted = append(m.posted, tx)
	return m.postResult, m.postErr
}

func (m *mockBridge) InTransactionProgress() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgress
}

func (m *mockBridge) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.availableCalls
}

func testConfig() Config {
	cfg := DefaultConfig(defaultNetwork)
	cfg.ProbeInterval = time.Millisecond
	return cfg
}

func waitStatus(t *testing.T, e *Extension, want backend.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		return e.Status().Get() == want
	}, 2*time.Second, time.Millisecond, "status never became %s (is %s)", want, e.Status().Get())
}

func TestNew_NotHostCapable(t *testing.T) {
	b := &mockBridge{}
	cfg := testConfig()
	cfg.HostCapable = false

	e := New(b, store.NewMemoryStore(), cfg)
	defer e.Close()

	assert.Equal(t, backend.StatusUnavailable, e.Status().Get())
	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, b.calls())
}

func TestProbe_UnavailableAfterBudget(t *testing.T) {
	start := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)
	ticks := make(chan time.Duration, 1)
	clk := clock.NewTestClockWithTickSignal(start, ticks)

	b := &mockBridge{availableAfter: -1}
	cfg := DefaultConfig(defaultNetwork)
	cfg.Clock = clk

	e := New(b, store.NewMemoryStore(), cfg)
	defer e.Close()

	assert.Equal(t, backend.StatusInitializing, e.Status().Get())

	for i := 0; i < DefaultProbeAttempts-1; i++ {
		d := <-ticks
		require.Equal(t, DefaultProbeInterval, d)
		clk.SetTime(clk.Now().Add(d))
	}

	waitStatus(t, e, backend.StatusUnavailable)
	assert.Equal(t, DefaultProbeAttempts, b.calls())

	// Unavailable is final once the probe gave up.
	e.RecheckStatus()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, DefaultProbeAttempts, b.calls())
	assert.Equal(t, backend.StatusUnavailable, e.Status().Get())
}

func TestProbe_FindsLateInjection(t *testing.T) {
	b := &mockBridge{availableAfter: 3, info: &testnet}

	e := New(b, store.NewMemoryStore(), testConfig())
	defer e.Close()

	waitStatus(t, e, backend.StatusWalletNotConnected)
	assert.Equal(t, 4, b.calls())
	assert.Equal(t, testnet, e.Network().Get())
	assert.Empty(t, e.Address().Get())
}

func TestCheckStatus_RestoresStoredAddress(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyExtensionAddress, []byte(testAddress)))

	b := &mockBridge{address: otherAddress}
	e := New(b, s, testConfig())
	defer e.Close()

	assert.Equal(t, testAddress, e.Address().Get(), "stored address is published before the probe")

	waitStatus(t, e, backend.StatusWalletConnected)
	require.Eventually(t, func() bool { return e.Address().Get() == otherAddress }, time.Second, time.Millisecond)

	stored, err := s.Get(ctx, store.KeyExtensionAddress)
	require.NoError(t, err)
	assert.Equal(t, otherAddress, string(stored))
}

func TestCheckStatus_RefusedClearsStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyExtensionAddress, []byte(testAddress)))

	b := &mockBridge{address: ""}
	e := New(b, s, testConfig())
	defer e.Close()

	waitStatus(t, e, backend.StatusWalletNotConnected)
	_, err := s.Get(ctx, store.KeyExtensionAddress)
	assert.True(t, store.IsNotFound(err))
}

func TestCheckStatus_InvalidStoredAddress(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyExtensionAddress, []byte("garbage")))

	e := New(&mockBridge{address: testAddress}, s, testConfig())
	defer e.Close()

	waitStatus(t, e, backend.StatusWalletNotConnected)
	_, err := s.Get(ctx, store.KeyExtensionAddress)
	assert.True(t, store.IsNotFound(err))
}

func TestConnect(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	b := &mockBridge{address: testAddress}

	e := New(b, s, testConfig())
	defer e.Close()
	waitStatus(t, e, backend.StatusWalletNotConnected)

	address, err := e.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, testAddress, address)

	waitStatus(t, e, backend.StatusWalletConnected)
	assert.Equal(t, testAddress, e.Address().Get())

	e.Disconnect()
	waitStatus(t, e, backend.StatusWalletNotConnected)
	_, err = s.Get(ctx, store.KeyExtensionAddress)
	assert.True(t, store.IsNotFound(err))
}

func TestConnect_Refused(t *testing.T) {
	b := &mockBridge{}
	e := New(b, store.NewMemoryStore(), testConfig())
	defer e.Close()
	waitStatus(t, e, backend.StatusWalletNotConnected)

	address, err := e.Connect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, address)
}

func TestConnect_Unavailable(t *testing.T) {
	cfg := testConfig()
	cfg.HostCapable = false
	e := New(&mockBridge{}, store.NewMemoryStore(), cfg)
	defer e.Close()

	_, err := e.Connect(context.Background())
	assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
}

func TestRecheckStatus_SkippedWhileSigning(t *testing.T) {
	b := &mockBridge{}
	e := New(b, store.NewMemoryStore(), testConfig())
	defer e.Close()
	waitStatus(t, e, backend.StatusWalletNotConnected)

	b.mu.Lock()
	b.inProgress = true
	b.mu.Unlock()

	before := b.calls()
	e.RecheckStatus()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, before, b.calls())
}

func TestPost(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	require.NoError(t, s.Put(ctx, store.KeyExtensionAddress, []byte(testAddress)))

	want := &wallet.TxResult{Success: true, Result: wallet.TxBroadcastResult{TxHash: "ABC"}}
	b := &mockBridge{address: testAddress, postResult: want}
	e := New(b, s, testConfig())
	defer e.Close()
	waitStatus(t, e, backend.StatusWalletConnected)

	got, err := e.Post(ctx, &wallet.TxOptions{Memo: "hi"})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	b.mu.Lock()
	b.postErr = &wallet.UserDeniedError{Backend: wallet.ConnectTypeExtension}
	b.mu.Unlock()

	_, err = e.Post(ctx, &wallet.TxOptions{})
	assert.True(t, errors.Is(err, wallet.ErrUserDenied))
}

func TestPost_NotConnected(t *testing.T) {
	e := New(&mockBridge{}, store.NewMemoryStore(), testConfig())
	defer e.Close()
	waitStatus(t, e, backend.StatusWalletNotConnected)

	_, err := e.Post(context.Background(), &wallet.TxOptions{})
	assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
}
