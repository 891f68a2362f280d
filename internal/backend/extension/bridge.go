package extension

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// Bridge is the narrow capability the extension backend needs from the
// signer it talks to. Key management and signing stay behind it.
type Bridge interface {
	// IsAvailable reports whether the signer is reachable right now.
	IsAvailable(ctx context.Context) bool

	// Info returns the network the signer is attached to.
	Info(ctx context.Context) (*wallet.NetworkInfo, error)

	// Connect asks the signer for its address. An empty address means the
	// user refused.
	Connect(ctx context.Context) (string, error)

	// Post asks the signer to sign and broadcast tx.
	Post(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error)

	// InTransactionProgress reports whether a Post is in flight. The
	// signer holds a modal while signing and must not be queried.
	InTransactionProgress() bool
}

// DefaultHTTPTimeout bounds every bridge request except Post, which waits on
// a human.
const DefaultHTTPTimeout = 5 * time.Second

// HTTPBridge talks JSON to a local signer endpoint.
//
//	GET  /ping     -> 200 when available
//	GET  /info     -> {"name": "...", "chainID": "..."}
//	POST /connect  -> {"address": "..."}
//	POST /post     -> {"success": true, "result": {...}} or {"error": {...}}
type HTTPBridge struct {
	baseURL string
	client  *http.Client

	inProgress atomic.Int32
}

// NewHTTPBridge creates a bridge for the signer at baseURL.
func NewHTTPBridge(baseURL string) *HTTPBridge {
	return &HTTPBridge{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
}

type connectResponse struct {
	Address string `json:"address"`
}

type postResponse struct {
	Success bool                     `json:"success"`
	Result  wallet.TxBroadcastResult `json:"result"`
	Error   *postError               `json:"error,omitempty"`
}

// postError codes follow the signer: 1 means the user denied.
type postError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

const postErrorUserDenied = 1

// IsAvailable pings the signer.
func (b *HTTPBridge) IsAvailable(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, DefaultHTTPTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"/ping", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode == http.StatusOK
}

// Info returns the signer's network.
func (b *HTTPBridge) Info(ctx context.Context) (*wallet.NetworkInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultHTTPTimeout)
	defer cancel()

	var info wallet.NetworkInfo
	if err := b.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return nil, err
	}
	if info.ChainID == "" {
		return nil, nil
	}
	return &info, nil
}

// Connect returns the signer's address.
func (b *HTTPBridge) Connect(ctx context.Context) (string, error) {
	var out connectResponse
	if err := b.do(ctx, http.MethodPost, "/connect", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

// Post submits tx for signing. The request is not time-bounded; cancel ctx
// to give up.
func (b *HTTPBridge) Post(ctx context.Context, tx *wallet.TxOptions) (*wallet.TxResult, error) {
	b.inProgress.Add(1)
	defer b.inProgress.Add(-1)

	var out postResponse
	if err := b.do(ctx, http.MethodPost, "/post", tx, &out); err != nil {
		return nil, err
	}

	if out.Error != nil {
		if out.Error.Code == postErrorUserDenied {
			return nil, &wallet.UserDeniedError{Backend: wallet.ConnectTypeExtension, Message: out.Error.Message}
		}
		return nil, fmt.Errorf("extension post failed (code %d): %s", out.Error.Code, out.Error.Message)
	}

	return &wallet.TxResult{
		TxOptions: *tx,
		Result:    out.Result,
		Success:   out.Success,
	}, nil
}

// InTransactionProgress implements Bridge.
func (b *HTTPBridge) InTransactionProgress() bool {
	return b.inProgress.Load() > 0
}

func (b *HTTPBridge) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("extension %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("extension %s: failed to read response: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("extension %s: HTTP %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("extension %s: failed to parse response: %w", path, err)
	}
	return nil
}

var (
	_ Bridge = (*HTTPBridge)(nil)

	errNoBridge = errors.New("extension bridge not configured")
)
