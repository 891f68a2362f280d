package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/store"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

const (
	testAddress = "terra1qvpsxqcrqvpsxqcrqvpsxqcrqvpsxqcryru6wt"
	peerID      = "signer-1"
)

var (
	defaultNetwork = wallet.NetworkInfo{Name: "mainnet", ChainID: "columbus-5"}
	testnet        = wallet.NetworkInfo{Name: "testnet", ChainID: "bombay-12"}
)

// fakeTransport is an in-memory Transport. Published frames are readable
// from published; frames pushed to msgs are delivered to the relay.
type fakeTransport struct {
	mu     sync.Mutex
	subs   []string
	closed bool

	published chan Message
	msgs      chan Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		published: make(chan Message, 16),
		msgs:      make(chan Message, 16),
	}
}

func (f *fakeTransport) Subscribe(ctx context.Context, topic string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, topic)
	return nil
}

func (f *fakeTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	f.published <- Message{Topic: topic, Type: MessageTypePub, Payload: string(payload)}
	return nil
}

func (f *fakeTransport) Messages() <-chan Message { return f.msgs }

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// next returns the next published frame.
func (f *fakeTransport) next(t *testing.T) (string, rpcFrame) {
	t.Helper()
	select {
	case msg := <-f.published:
		var frame rpcFrame
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &frame))
		return msg.Topic, frame
	case <-time.After(2 * time.Second):
		t.Fatal("nothing published")
		return "", rpcFrame{}
	}
}

// reply delivers frame on topic.
func (f *fakeTransport) reply(t *testing.T, topic string, frame rpcFrame) {
	t.Helper()
	frame.JSONRPC = "2.0"
	data, err := json.Marshal(frame)
	require.NoError(t, err)
	f.msgs <- Message{Topic: topic, Type: MessageTypePub, Payload: string(data)}
}

func testOptions(s store.Store, tr *fakeTransport) Options {
	return Options{
		Bridge:         "wss://relay.example",
		Meta:           PeerMeta{Name: "walletkit"},
		DefaultNetwork: defaultNetwork,
		ChainIDs:       map[int]wallet.NetworkInfo{1: defaultNetwork, 0: testnet},
		Store:          s,
		Dial: func(ctx context.Context, bridgeURL string) (Transport, error) {
			return tr, nil
		},
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return data
}

// approve runs the handshake as the signer would.
func approve(t *testing.T, tr *fakeTransport, r *Relay, chainID int) {
	t.Helper()

	topic, req := tr.next(t)
	session := r.session.Get()
	require.Equal(t, session.HandshakeTopic, topic)
	require.Equal(t, MethodSessionRequest, req.Method)

	tr.reply(t, session.ClientID, rpcFrame{
		ID: req.ID,
		Result: mustJSON(t, sessionParams{
			Approved: true,
			ChainID:  chainID,
			Accounts: []string{testAddress},
			PeerID:   peerID,
		}),
	})

	require.Eventually(t, func() bool {
		return r.Status().Get() == backend.StatusWalletConnected
	}, 2*time.Second, time.Millisecond)
}

func TestConnect_Approved(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(s, tr))
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, SessionRequested, r.Session().Get().Status)
	assert.Equal(t, backend.StatusWalletNotConnected, r.Status().Get())
	assert.Contains(t, r.Session().Get().URI(), "wc:"+r.Session().Get().HandshakeTopic+"@1?bridge=wss%3A%2F%2Frelay.example")

	approve(t, tr, r, 0)
	assert.Equal(t, testAddress, r.Address().Get())
	assert.Equal(t, testnet, r.Network().Get())

	var stored Session
	require.NoError(t, store.GetJSON(ctx, s, store.KeyRelaySession, &stored))
	assert.Equal(t, SessionConnected, stored.Status)
	assert.Equal(t, peerID, stored.PeerID)
}

func TestConnect_StatusTrailsNetworkAndAddress(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(store.NewMemoryStore(), tr))
	require.NoError(t, err)
	defer r.Close()

	type seen struct {
		network wallet.NetworkInfo
		address string
	}
	got := make(chan seen, 4)
	sub := r.Status().Subscribe(func(status backend.Status) {
		if status == backend.StatusWalletConnected {
			got <- seen{network: r.Network().Get(), address: r.Address().Get()}
		}
	})
	defer sub.Cancel()

	approve(t, tr, r, 0)

	select {
	case v := <-got:
		assert.Equal(t, testnet, v.network)
		assert.Equal(t, testAddress, v.address)
	case <-time.After(2 * time.Second):
		t.Fatal("connected status was never observed")
	}
}

func TestConnect_Rejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(s, tr))
	require.NoError(t, err)
	defer r.Close()

	_, req := tr.next(t)
	tr.reply(t, r.Session().Get().ClientID, rpcFrame{
		ID:    req.ID,
		Error: &rpcError{Code: rpcErrorUserDenied, Message: "rejected"},
	})

	require.Eventually(t, func() bool {
		return r.Session().Get().Status == SessionDisconnected
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, backend.StatusWalletNotConnected, r.Status().Get())

	_, err = s.Get(ctx, store.KeyRelaySession)
	assert.True(t, store.IsNotFound(err))
}

func TestConnect_DialFailure(t *testing.T) {
	opts := testOptions(store.NewMemoryStore(), nil)
	opts.Dial = func(ctx context.Context, bridgeURL string) (Transport, error) {
		return nil, errors.New("connection refused")
	}

	_, err := Connect(context.Background(), opts)
	assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
}

func TestConnectIfSessionExists(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	r, err := ConnectIfSessionExists(ctx, testOptions(s, newFakeTransport()))
	require.NoError(t, err)
	assert.Nil(t, r)

	session := newSession("wss://relay.example", 42)
	session.Status = SessionConnected
	session.PeerID = peerID
	session.ChainID = 1
	session.Address = testAddress
	require.NoError(t, store.PutJSON(ctx, s, store.KeyRelaySession, session))

	tr := newFakeTransport()
	r, err = ConnectIfSessionExists(ctx, testOptions(s, tr))
	require.NoError(t, err)
	require.NotNil(t, r)
	defer r.Close()

	assert.Equal(t, backend.StatusWalletConnected, r.Status().Get())
	assert.Equal(t, defaultNetwork, r.Network().Get())
	assert.Equal(t, testAddress, r.Address().Get())
	assert.Contains(t, tr.subs, session.ClientID)
}

func TestPost(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(store.NewMemoryStore(), tr))
	require.NoError(t, err)
	defer r.Close()
	approve(t, tr, r, 1)

	type result struct {
		res *wallet.TxResult
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := r.Post(ctx, &wallet.TxOptions{Memo: "relay"})
		done <- result{res, err}
	}()

	topic, req := tr.next(t)
	assert.Equal(t, peerID, topic)
	assert.Equal(t, MethodPost, req.Method)

	tr.reply(t, r.Session().Get().ClientID, rpcFrame{
		ID:     req.ID,
		Result: mustJSON(t, wallet.TxBroadcastResult{Height: 10, TxHash: "ABCDEF"}),
	})

	got := <-done
	require.NoError(t, got.err)
	assert.True(t, got.res.Success)
	assert.Equal(t, "ABCDEF", got.res.Result.TxHash)
	assert.Equal(t, "relay", got.res.Memo)
}

func TestPost_UserDenied(t *testing.T) {
	ctx := context.Background()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(store.NewMemoryStore(), tr))
	require.NoError(t, err)
	defer r.Close()
	approve(t, tr, r, 1)

	done := make(chan error, 1)
	go func() {
		_, err := r.Post(ctx, &wallet.TxOptions{})
		done <- err
	}()

	_, req := tr.next(t)
	tr.reply(t, r.Session().Get().ClientID, rpcFrame{
		ID:    req.ID,
		Error: &rpcError{Code: rpcErrorUserDenied, Message: "User rejected"},
	})

	err = <-done
	assert.ErrorIs(t, err, wallet.ErrUserDenied)
}

func TestPost_NotConnected(t *testing.T) {
	r, err := Connect(context.Background(), testOptions(store.NewMemoryStore(), newFakeTransport()))
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Post(context.Background(), &wallet.TxOptions{})
	assert.ErrorIs(t, err, wallet.ErrBackendUnavailable)
}

func TestPost_Cancelled(t *testing.T) {
	tr := newFakeTransport()
	r, err := Connect(context.Background(), testOptions(store.NewMemoryStore(), tr))
	require.NoError(t, err)
	defer r.Close()
	approve(t, tr, r, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Post(ctx, &wallet.TxOptions{})
		done <- err
	}()

	tr.next(t)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSessionUpdate_ClosedBySigner(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(s, tr))
	require.NoError(t, err)
	defer r.Close()
	approve(t, tr, r, 1)

	tr.reply(t, r.Session().Get().ClientID, rpcFrame{
		ID:     99,
		Method: MethodSessionUpdate,
		Params: mustJSON(t, []sessionParams{{Approved: false}}),
	})

	require.Eventually(t, func() bool {
		return r.Status().Get() == backend.StatusWalletNotConnected
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, defaultNetwork, r.Network().Get())

	_, err = s.Get(ctx, store.KeyRelaySession)
	assert.True(t, store.IsNotFound(err))
}

func TestDisconnect(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	tr := newFakeTransport()

	r, err := Connect(ctx, testOptions(s, tr))
	require.NoError(t, err)
	approve(t, tr, r, 1)

	r.Disconnect()

	topic, frame := tr.next(t)
	assert.Equal(t, peerID, topic)
	assert.Equal(t, MethodSessionUpdate, frame.Method)

	assert.Equal(t, SessionDisconnected, r.Session().Get().Status)
	assert.True(t, tr.isClosed())
	_, err = s.Get(ctx, store.KeyRelaySession)
	assert.True(t, store.IsNotFound(err))
}

func TestDisconnect_KeepsNewerPairing(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	tr1 := newFakeTransport()
	old, err := Connect(ctx, testOptions(s, tr1))
	require.NoError(t, err)
	approve(t, tr1, old, 1)

	tr2 := newFakeTransport()
	next, err := Connect(ctx, testOptions(s, tr2))
	require.NoError(t, err)
	defer next.Close()

	old.Disconnect()
	assert.Equal(t, SessionDisconnected, old.Session().Get().Status)

	var stored Session
	require.NoError(t, store.GetJSON(ctx, s, store.KeyRelaySession, &stored))
	assert.Equal(t, next.Session().Get().ClientID, stored.ClientID)
}

func TestParseURI(t *testing.T) {
	session := newSession("https://bridge.example/relay", 1)

	topic, bridge, key, err := ParseURI(session.URI())
	require.NoError(t, err)
	assert.Equal(t, session.HandshakeTopic, topic)
	assert.Equal(t, session.Bridge, bridge)
	assert.Equal(t, session.Key, key)
	assert.Len(t, key, 64)

	_, _, _, err = ParseURI("http://nope")
	assert.Error(t, err)
}
