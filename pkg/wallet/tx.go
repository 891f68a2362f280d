package wallet

import (
	"encoding/json"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
)

// MsgTypeExecuteContract is the amino type of a wasm contract execution.
const MsgTypeExecuteContract = "wasm/MsgExecuteContract"

// Msg is a single transaction message in amino JSON form.
type Msg struct {
	// Type is the amino type name, e.g. "wasm/MsgExecuteContract".
	Type string `json:"type"`

	// Value is the message body.
	Value json.RawMessage `json:"value"`
}

// MsgExecuteContract executes a wasm contract with optional attached coins.
type MsgExecuteContract struct {
	Sender     string          `json:"sender"`
	Contract   string          `json:"contract"`
	ExecuteMsg json.RawMessage `json:"execute_msg"`
	Coins      sdk.Coins       `json:"coins"`
}

// NewExecuteContractMsg builds a wasm execute message. executeMsg is
// marshalled to JSON.
func NewExecuteContractMsg(sender, contract string, executeMsg any, coins sdk.Coins) (Msg, error) {
	raw, err := json.Marshal(executeMsg)
	if err != nil {
		return Msg{}, fmt.Errorf("failed to marshal execute msg: %w", err)
	}

	if coins == nil {
		coins = sdk.Coins{}
	}

	value, err := json.Marshal(MsgExecuteContract{
		Sender:     sender,
		Contract:   contract,
		ExecuteMsg: raw,
		Coins:      coins,
	})
	if err != nil {
		return Msg{}, fmt.Errorf("failed to marshal execute contract: %w", err)
	}

	return Msg{Type: MsgTypeExecuteContract, Value: value}, nil
}

// Fee is the fee attached to a transaction.
type Fee struct {
	// Gas is the gas limit.
	Gas uint64 `json:"gas"`

	// Amount is the fee paid.
	Amount sdk.Coins `json:"amount"`
}

// TxOptions is the caller supplied description of a transaction: messages
// plus fee parameters. It must not be mutated after it is handed to post.
type TxOptions struct {
	Msgs          []Msg             `json:"msgs"`
	Fee           *Fee              `json:"fee,omitempty"`
	GasAdjustment sdkmath.LegacyDec `json:"gasAdjustment"`
	Memo          string            `json:"memo,omitempty"`
}

// TxBroadcastResult is the signer's view of a submitted transaction.
type TxBroadcastResult struct {
	// Height is the block height reported by the broadcaster (may be 0 for
	// sync broadcasts).
	Height int64 `json:"height"`

	// TxHash is the transaction hash.
	TxHash string `json:"txhash"`

	// RawLog is the raw log returned by the broadcaster.
	RawLog string `json:"raw_log,omitempty"`
}

// TxResult is returned by a backend's post once the signer has broadcast the
// transaction.
type TxResult struct {
	TxOptions

	Result  TxBroadcastResult `json:"result"`
	Success bool              `json:"success"`
}
