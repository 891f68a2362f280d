// Package relay implements the backend for a remote signer paired over a
// relay server. The local side publishes a session request on a handshake
// topic; the signer answers on the client's own topic and from then on both
// sides exchange JSON-RPC messages through the relay.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/altuslabsxyz/walletkit/internal/backend"
	"github.com/altuslabsxyz/walletkit/internal/store"
	"github.com/altuslabsxyz/walletkit/internal/stream"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// JSON-RPC methods spoken with the signer.
const (
	MethodSessionRequest = "wc_sessionRequest"
	MethodSessionUpdate  = "wc_sessionUpdate"
	MethodPost           = "post"
)

// rpcErrorUserDenied is the signer's code for a refused request.
const rpcErrorUserDenied = 1

// Options configures relay sessions.
type Options struct {
	// Bridge is the relay server URL.
	Bridge string

	// Meta describes this client to the signer.
	Meta PeerMeta

	// DefaultNetwork is reported while no session is connected, and for
	// chain ids missing from ChainIDs.
	DefaultNetwork wallet.NetworkInfo

	// ChainIDs maps the signer's numeric chain id to a network.
	ChainIDs map[int]wallet.NetworkInfo

	Dial   Dialer
	Store  store.Store
	Logger *slog.Logger
}

func (o *Options) setDefaults() {
	if o.Dial == nil {
		o.Dial = DialWebSocket
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// rpcFrame covers both requests and responses.
type rpcFrame struct {
	ID      int64           `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type sessionRequestParams struct {
	PeerID   string   `json:"peerId"`
	PeerMeta PeerMeta `json:"peerMeta"`
	ChainID  *int     `json:"chainId"`
}

type sessionParams struct {
	Approved bool      `json:"approved"`
	ChainID  int       `json:"chainId"`
	Accounts []string  `json:"accounts"`
	PeerID   string    `json:"peerId,omitempty"`
	PeerMeta *PeerMeta `json:"peerMeta,omitempty"`
}

// Relay is a relay-backed backend bound to one session.
type Relay struct {
	opts      Options
	transport Transport
	logger    *slog.Logger

	session *stream.Value[Session]
	status  *stream.Value[backend.Status]
	network *stream.Value[wallet.NetworkInfo]
	address *stream.Value[string]

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan rpcFrame

	quit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Connect dials the relay and requests a new session. It returns as soon as
// the request is published; the session stays REQUESTED until the signer
// answers.
func Connect(ctx context.Context, opts Options) (*Relay, error) {
	opts.setDefaults()

	transport, err := opts.Dial(ctx, opts.Bridge)
	if err != nil {
		return nil, fmt.Errorf("relay connect: %w: %w", wallet.ErrBackendUnavailable, err)
	}

	session := newSession(opts.Bridge, time.Now().UnixNano()/int64(time.Millisecond))
	r := newRelay(opts, transport, session)

	if err := r.transport.Subscribe(ctx, session.ClientID); err != nil {
		r.shutdown()
		return nil, fmt.Errorf("relay connect: %w", err)
	}

	params, err := json.Marshal([]sessionRequestParams{{
		PeerID:   session.ClientID,
		PeerMeta: opts.Meta,
	}})
	if err != nil {
		r.shutdown()
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	if err := r.publish(ctx, session.HandshakeTopic, rpcFrame{
		ID:      session.HandshakeID,
		JSONRPC: "2.0",
		Method:  MethodSessionRequest,
		Params:  params,
	}); err != nil {
		r.shutdown()
		return nil, fmt.Errorf("relay connect: %w", err)
	}

	r.persist(ctx, session)
	r.logger.Info("relay session requested", "clientId", session.ClientID, "topic", session.HandshakeTopic)

	return r, nil
}

// ConnectIfSessionExists reattaches a stored session. It returns nil when no
// session is stored.
func ConnectIfSessionExists(ctx context.Context, opts Options) (*Relay, error) {
	opts.setDefaults()

	var session Session
	if err := store.GetJSON(ctx, opts.Store, store.KeyRelaySession, &session); err != nil {
		if store.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	transport, err := opts.Dial(ctx, session.Bridge)
	if err != nil {
		return nil, fmt.Errorf("relay resume: %w: %w", wallet.ErrBackendUnavailable, err)
	}

	r := newRelay(opts, transport, session)
	if err := r.transport.Subscribe(ctx, session.ClientID); err != nil {
		r.shutdown()
		return nil, fmt.Errorf("relay resume: %w", err)
	}

	r.logger.Info("relay session resumed", "clientId", session.ClientID, "status", session.Status)
	return r, nil
}

func newRelay(opts Options, transport Transport, session Session) *Relay {
	r := &Relay{
		opts:      opts,
		transport: transport,
		logger:    opts.Logger,
		session:   stream.NewValue(session),
		status:    stream.NewValue(backend.StatusWalletNotConnected),
		network:   stream.NewValue(opts.DefaultNetwork),
		address:   stream.NewValue(""),
		pending:   make(map[int64]chan rpcFrame),
		nextID:    session.HandshakeID,
		quit:      make(chan struct{}),
	}
	r.apply(session)

	r.wg.Add(1)
	go r.readLoop()

	return r
}

// Kind implements backend.Backend.
func (r *Relay) Kind() wallet.ConnectType { return wallet.ConnectTypeRelay }

// Status implements backend.Backend.
func (r *Relay) Status() stream.Observable[backend.Status] { return r.status }

// Network implements backend.Backend.
func (r *Relay) Network() stream.Observable[wallet.NetworkInfo] { return r.network }

// Address implements backend.Backend.
func (r *Relay) Address() stream.Observable[string] { return r.address }

// Session streams the raw session state.
func (r *Relay) Session() stream.Observable[Session] { return r.session }

// Post sends tx to the signer and waits for its answer.
func (r *Relay) Post(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error) {
	session := r.session.Get()
	if session.Status != SessionConnected {
		return nil, fmt.Errorf("relay post: session is %s: %w", session.Status, wallet.ErrBackendUnavailable)
	}

	params, err := json.Marshal([]*wallet.TxOptions{tx})
	if err != nil {
		return nil, fmt.Errorf("failed to encode tx: %w", err)
	}

	r.mu.Lock()
	r.nextID++
	id := r.nextID
	ch := make(chan rpcFrame, 1)
	r.pending[id] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, id)
		r.mu.Unlock()
	}()

	if err := r.publish(ctx, session.PeerID, rpcFrame{
		ID:      id,
		JSONRPC: "2.0",
		Method:  MethodPost,
		Params:  params,
	}); err != nil {
		return nil, fmt.Errorf("relay post: %w", err)
	}

	var resp rpcFrame
	select {
	case resp = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-r.quit:
		return nil, fmt.Errorf("relay post: %w", errClosed)
	}

	if resp.Error != nil {
		if resp.Error.Code == rpcErrorUserDenied {
			return nil, &wallet.UserDeniedError{Backend: wallet.ConnectTypeRelay, Message: resp.Error.Message}
		}
		return nil, fmt.Errorf("relay post failed (code %d): %s", resp.Error.Code, resp.Error.Message)
	}

	var result wallet.TxBroadcastResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("relay post: failed to parse result: %w", err)
	}

	return &wallet.TxResult{
		TxOptions: *tx,
		Result:    result,
		Success:   true,
	}, nil
}

// Disconnect tells the signer the session is over, clears the stored session
// and closes the transport.
func (r *Relay) Disconnect() {
	session := r.session.Get()

	if session.Status == SessionConnected && session.PeerID != "" {
		params, _ := json.Marshal([]sessionParams{{Approved: false}})

		r.mu.Lock()
		r.nextID++
		id := r.nextID
		r.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := r.publish(ctx, session.PeerID, rpcFrame{
			ID:      id,
			JSONRPC: "2.0",
			Method:  MethodSessionUpdate,
			Params:  params,
		})
		cancel()
		if err != nil {
			r.logger.Debug("failed to notify signer of disconnect", "error", err)
		}
	}

	r.kill()
	r.shutdown()
}

// Close releases the transport but keeps the stored session for resumption.
func (r *Relay) Close() {
	r.shutdown()
}

func (r *Relay) shutdown() {
	r.closeOnce.Do(func() {
		close(r.quit)
		if err := r.transport.Close(); err != nil {
			r.logger.Debug("relay transport close failed", "error", err)
		}
	})
	r.wg.Wait()
}

func (r *Relay) publish(ctx context.Context, topic string, frame rpcFrame) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode rpc frame: %w", err)
	}
	return r.transport.Publish(ctx, topic, data)
}

func (r *Relay) readLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.quit:
			return
		case msg, ok := <-r.transport.Messages():
			if !ok {
				return
			}
			r.handle(msg)
		}
	}
}

func (r *Relay) handle(msg Message) {
	var frame rpcFrame
	if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
		r.logger.Debug("dropping malformed relay payload", "topic", msg.Topic, "error", err)
		return
	}

	if frame.Method != "" {
		r.handleRequest(frame)
		return
	}

	session := r.session.Get()
	if session.Status == SessionRequested && frame.ID == session.HandshakeID {
		r.handleSessionResponse(frame)
		return
	}

	r.mu.Lock()
	ch, ok := r.pending[frame.ID]
	r.mu.Unlock()
	if !ok {
		r.logger.Debug("dropping unexpected relay response", "id", frame.ID)
		return
	}
	select {
	case ch <- frame:
	default:
		r.logger.Debug("dropping duplicate relay response", "id", frame.ID)
	}
}

func (r *Relay) handleSessionResponse(frame rpcFrame) {
	var params sessionParams
	if frame.Error == nil {
		if err := json.Unmarshal(frame.Result, &params); err != nil {
			r.logger.Warn("malformed session response", "error", err)
			return
		}
	}

	if frame.Error != nil || !params.Approved || len(params.Accounts) == 0 {
		r.logger.Info("relay session rejected")
		r.kill()
		return
	}

	session := r.session.Get()
	session.Status = SessionConnected
	session.PeerID = params.PeerID
	session.PeerMeta = params.PeerMeta
	session.ChainID = params.ChainID
	session.Address = params.Accounts[0]

	r.logger.Info("relay session connected", "address", session.Address, "chainId", session.ChainID)
	r.persist(context.Background(), session)
	r.apply(session)
}

func (r *Relay) handleRequest(frame rpcFrame) {
	switch frame.Method {
	case MethodSessionUpdate:
		var params []sessionParams
		if err := json.Unmarshal(frame.Params, &params); err != nil || len(params) == 0 {
			r.logger.Warn("malformed session update", "error", err)
			return
		}

		update := params[0]
		if !update.Approved {
			r.logger.Info("relay session closed by signer")
			r.kill()
			return
		}

		session := r.session.Get()
		session.ChainID = update.ChainID
		if len(update.Accounts) > 0 {
			session.Address = update.Accounts[0]
		}
		r.persist(context.Background(), session)
		r.apply(session)

	default:
		r.logger.Debug("ignoring relay request", "method", frame.Method)
	}
}

// kill marks the session disconnected and forgets it. A stored session of
// another client is a newer pairing and is kept.
func (r *Relay) kill() {
	session := r.session.Get()
	session.Status = SessionDisconnected
	session.Address = ""

	ctx := context.Background()
	var stored Session
	err := store.GetJSON(ctx, r.opts.Store, store.KeyRelaySession, &stored)
	switch {
	case store.IsNotFound(err):
	case err == nil && stored.ClientID != session.ClientID:
		r.logger.Debug("relay session was replaced, keeping it", "clientId", stored.ClientID)
	default:
		if err := r.opts.Store.Delete(ctx, store.KeyRelaySession); err != nil {
			r.logger.Warn("failed to clear relay session", "error", err)
		}
	}
	r.apply(session)
}

func (r *Relay) persist(ctx context.Context, session Session) {
	if err := store.PutJSON(ctx, r.opts.Store, store.KeyRelaySession, session); err != nil {
		r.logger.Warn("failed to store relay session", "error", err)
	}
}

// apply publishes session and the backend streams derived from it. Status
// leads when going down and trails when coming up, so no observer pairs a
// connected status with a stale network or address.
func (r *Relay) apply(session Session) {
	r.session.Set(session)

	if session.Status != SessionConnected {
		r.status.Set(backend.StatusWalletNotConnected)
		r.address.Set("")
		r.network.Set(r.opts.DefaultNetwork)
		return
	}

	network, ok := r.opts.ChainIDs[session.ChainID]
	if !ok {
		network = r.opts.DefaultNetwork
	}
	r.network.Set(network)
	r.address.Set(session.Address)
	r.status.Set(backend.StatusWalletConnected)
}

// Connector opens relay sessions with fixed options.
type Connector struct {
	opts Options
}

// NewConnector creates a Connector.
func NewConnector(opts Options) *Connector {
	opts.setDefaults()
	return &Connector{opts: opts}
}

// Connect starts a new session.
func (c *Connector) Connect(ctx context.Context) (backend.Backend, error) {
	r, err := Connect(ctx, c.opts)
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Resume reattaches the stored session, or returns nil.
func (c *Connector) Resume(ctx context.Context) (backend.Backend, error) {
	r, err := ConnectIfSessionExists(ctx, c.opts)
	if err != nil || r == nil {
		return nil, err
	}
	return r, nil
}

var (
	errClosed = errors.New("relay closed")

	_ backend.Backend = (*Relay)(nil)
	_ backend.Poster  = (*Relay)(nil)
)
