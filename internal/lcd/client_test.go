package lcd

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const includedTx = `{
  "tx_response": {
    "height": "4711",
    "txhash": "ABC123",
    "code": 0,
    "raw_log": "[]",
    "gas_wanted": "300000",
    "gas_used": "123456",
    "logs": [{
      "msg_index": 0,
      "log": "",
      "events": [{
        "type": "from_contract",
        "attributes": [
          {"key": "contract_address", "value": "terra1pair"},
          {"key": "offer_amount", "value": "1000000"}
        ]
      }]
    }]
  }
}`

func TestTxInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/cosmos/tx/v1beta1/txs/ABC123":
			_, _ = w.Write([]byte(includedTx))
		case "/cosmos/tx/v1beta1/txs/PENDING":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"code":5,"message":"tx not found: PENDING"}`))
		case "/cosmos/tx/v1beta1/txs/OLDNODE":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"code":3,"message":"tx (OLDNODE) not found"}`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
	defer server.Close()

	c := NewClient(server.URL + "/")
	ctx := context.Background()

	info, err := c.TxInfo(ctx, "ABC123")
	require.NoError(t, err)
	assert.Equal(t, int64(4711), info.Height)
	assert.Equal(t, int64(123456), info.GasUsed)
	assert.False(t, info.Failed())
	require.Len(t, info.Logs, 1)
	require.Len(t, info.Logs[0].Events, 1)
	assert.Equal(t, "from_contract", info.Logs[0].Events[0].Type)
	assert.Equal(t, "1000000", info.Logs[0].Events[0].Attributes[1].Value)

	_, err = c.TxInfo(ctx, "PENDING")
	assert.True(t, IsNotFound(err))

	_, err = c.TxInfo(ctx, "OLDNODE")
	assert.True(t, IsNotFound(err))

	_, err = c.TxInfo(ctx, "BROKEN")
	assert.True(t, IsLCDError(err))
	assert.False(t, IsNotFound(err))
}

func TestTxInfo_RawLogFallback(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"tx_response":{"height":"1","txhash":"H","code":0,` +
			`"raw_log":"[{\"msg_index\":0,\"events\":[{\"type\":\"transfer\",\"attributes\":[{\"key\":\"amount\",\"value\":\"5uusd\"}]}]}]"}}`))
	}))
	defer server.Close()

	info, err := NewClient(server.URL).TxInfo(context.Background(), "H")
	require.NoError(t, err)
	require.Len(t, info.Logs, 1)
	assert.Equal(t, "transfer", info.Logs[0].Events[0].Type)
}

func TestTxInfo_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	server.Close()

	_, err := NewClient(server.URL).TxInfo(context.Background(), "H")
	assert.True(t, IsLCDError(err))
}

func TestBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cosmos/bank/v1beta1/balances/terra1abc/by_denom", r.URL.Path)
		assert.Equal(t, "uusd", r.URL.Query().Get("denom"))
		_, _ = w.Write([]byte(`{"balance":{"denom":"uusd","amount":"2500000"}}`))
	}))
	defer server.Close()

	amount, err := NewClient(server.URL).Balance(context.Background(), "terra1abc", "uusd")
	require.NoError(t, err)
	assert.Equal(t, "2500000", amount.String())
}

func TestCW20Balance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		prefix := "/cosmwasm/wasm/v1/contract/terra1token/smart/"
		require.True(t, strings.HasPrefix(r.URL.Path, prefix))

		raw, err := base64.URLEncoding.DecodeString(strings.TrimPrefix(r.URL.Path, prefix))
		require.NoError(t, err)

		var query map[string]map[string]string
		require.NoError(t, json.Unmarshal(raw, &query))
		assert.Equal(t, "terra1abc", query["balance"]["address"])

		_, _ = w.Write([]byte(`{"data":{"balance":"42"}}`))
	}))
	defer server.Close()

	amount, err := NewClient(server.URL).CW20Balance(context.Background(), "terra1token", "terra1abc")
	require.NoError(t, err)
	assert.Equal(t, int64(42), amount.Int64())
}
