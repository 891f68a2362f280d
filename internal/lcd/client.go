// Package lcd is a small client for the chain's REST (LCD) endpoint: it
// looks up transactions by hash and reads balances for readiness checks.
package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// DefaultTimeout is the default HTTP timeout.
const DefaultTimeout = 10 * time.Second

// Client queries an LCD endpoint.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a Client for the LCD at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.client = hc
	return c
}

// BaseURL returns the endpoint this client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// TxInfo is an included transaction.
type TxInfo struct {
	Height    int64               `json:"height,string"`
	TxHash    string              `json:"txhash"`
	Code      uint32              `json:"code"`
	Codespace string              `json:"codespace"`
	RawLog    string              `json:"raw_log"`
	Logs      sdk.ABCIMessageLogs `json:"logs"`
	GasWanted int64               `json:"gas_wanted,string"`
	GasUsed   int64               `json:"gas_used,string"`
}

// Failed reports whether the chain rejected the transaction.
func (t *TxInfo) Failed() bool {
	return t.Code != 0
}

type txResponse struct {
	TxResponse *TxInfo `json:"tx_response"`
}

// TxInfo returns the transaction with the given hash. It returns a
// NotFoundError while the transaction is not included.
func (c *Client) TxInfo(ctx context.Context, hash string) (*TxInfo, error) {
	const op = "tx"

	var resp txResponse
	if err := c.get(ctx, op, "/cosmos/tx/v1beta1/txs/"+url.PathEscape(hash), &resp); err != nil {
		if IsNotFound(err) {
			return nil, &NotFoundError{Resource: "tx " + hash}
		}
		return nil, err
	}
	if resp.TxResponse == nil || resp.TxResponse.TxHash == "" {
		return nil, &NotFoundError{Resource: "tx " + hash}
	}

	// Older nodes leave logs empty and only fill raw_log.
	if len(resp.TxResponse.Logs) == 0 && resp.TxResponse.Code == 0 && resp.TxResponse.RawLog != "" {
		if logs, err := sdk.ParseABCILogs(resp.TxResponse.RawLog); err == nil {
			resp.TxResponse.Logs = logs
		}
	}

	return resp.TxResponse, nil
}

// Balance returns the bank balance of address in denom.
func (c *Client) Balance(ctx context.Context, address, denom string) (sdkmath.Int, error) {
	const op = "balance"

	var resp struct {
		Balance sdk.Coin `json:"balance"`
	}
	path := fmt.Sprintf("/cosmos/bank/v1beta1/balances/%s/by_denom?denom=%s",
		url.PathEscape(address), url.QueryEscape(denom))
	if err := c.get(ctx, op, path, &resp); err != nil {
		return sdkmath.Int{}, err
	}
	if resp.Balance.Amount.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return resp.Balance.Amount, nil
}

// SmartQuery runs a CosmWasm smart query against contract and decodes the
// result data into out.
func (c *Client) SmartQuery(ctx context.Context, contract string, query, out any) error {
	const op = "smart query"

	msg, err := json.Marshal(query)
	if err != nil {
		return &LCDError{Operation: op, Message: "failed to encode query: " + err.Error()}
	}

	var resp struct {
		Data json.RawMessage `json:"data"`
	}
	path := fmt.Sprintf("/cosmwasm/wasm/v1/contract/%s/smart/%s",
		url.PathEscape(contract), base64.URLEncoding.EncodeToString(msg))
	if err := c.get(ctx, op, path, &resp); err != nil {
		return err
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &LCDError{Operation: op, Message: "failed to parse response"}
	}
	return nil
}

// CW20Balance returns address's balance of the cw20 token.
func (c *Client) CW20Balance(ctx context.Context, token, address string) (sdkmath.Int, error) {
	var resp struct {
		Balance sdkmath.Int `json:"balance"`
	}
	query := map[string]any{"balance": map[string]string{"address": address}}
	if err := c.SmartQuery(ctx, token, query, &resp); err != nil {
		return sdkmath.Int{}, err
	}
	if resp.Balance.IsNil() {
		return sdkmath.ZeroInt(), nil
	}
	return resp.Balance, nil
}

func (c *Client) get(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return &LCDError{Operation: op, Message: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &LCDError{Operation: op, Message: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &LCDError{Operation: op, Message: err.Error()}
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: path}
	case resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(string(body)), "not found"):
		// The tx endpoint answers 400 for unknown hashes on some versions.
		return &NotFoundError{Resource: path}
	case resp.StatusCode != http.StatusOK:
		return &LCDError{Operation: op, Message: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &LCDError{Operation: op, Message: "failed to parse response"}
	}
	return nil
}
