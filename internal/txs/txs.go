// Package txs implements the Anchor transaction flows on top of txpipe: each
// flow fabricates its contract messages and parses the confirmed logs into
// receipts.
package txs

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"

	"github.com/altuslabsxyz/walletkit/internal/notation"
	"github.com/altuslabsxyz/walletkit/internal/txpipe"
	"github.com/altuslabsxyz/walletkit/pkg/wallet"
)

// ErrInvalidInput is returned when a flow is started with bad arguments.
var ErrInvalidInput = errors.New("invalid input")

// Event types the parsers look for.
const (
	eventFromContract = "from_contract"
	eventTransfer     = "transfer"
)

// Env is what every flow shares: the contracts and the pipeline parameters.
// Params.Msgs is ignored and filled by each flow.
type Env struct {
	Contracts AddressProvider
	Params    txpipe.Params
}

func (e Env) execute(msgs []wallet.Msg, parse txpipe.ParseFunc) *txpipe.Stream {
	p := e.Params
	p.Msgs = msgs
	return txpipe.Execute(p, parse)
}

func (e Env) fixedGas() sdkmath.Int {
	if e.Params.FixedGas.IsNil() {
		return sdkmath.ZeroInt()
	}
	return e.Params.FixedGas
}

func (e Env) feeDenom() string {
	if e.Params.FeeDenom == "" {
		return txpipe.DefaultFeeDenom
	}
	return e.Params.FeeDenom
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func validateAddress(field, addr string) error {
	if err := wallet.ValidateAddress(addr); err != nil {
		return invalid("%s: %v", field, err)
	}
	return nil
}

// parseAmount parses a positive unit amount such as "12.5" into micro units.
func parseAmount(field, amount string) (sdkmath.Int, error) {
	micro, err := notation.ParseMicro(amount)
	if err != nil {
		return sdkmath.Int{}, invalid("%s %q is not a number", field, amount)
	}
	if !micro.IsPositive() {
		return sdkmath.Int{}, invalid("%s must be greater than zero", field)
	}
	return micro, nil
}

// hookMsg encodes msg the way cw20 send expects it.
func hookMsg(msg any) (string, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// cw20Send builds a cw20 send of amount to contract carrying hook.
func cw20Send(sender, token, contract string, amount sdkmath.Int, hook any) (wallet.Msg, error) {
	encoded, err := hookMsg(hook)
	if err != nil {
		return wallet.Msg{}, err
	}
	return wallet.NewExecuteContractMsg(sender, token, map[string]any{
		"send": map[string]any{
			"contract": contract,
			"amount":   amount.String(),
			"msg":      encoded,
		},
	}, nil)
}

// microInt parses an attribute value holding a bare micro amount.
func microInt(v string) (sdkmath.Int, error) {
	i, ok := sdkmath.NewIntFromString(v)
	if !ok {
		return sdkmath.Int{}, fmt.Errorf("invalid amount %q", v)
	}
	return i, nil
}

// stripDenom parses a coin string like "1000uusd" and returns its amount.
func stripDenom(v string) (sdkmath.Int, error) {
	coin, err := sdk.ParseCoinNormalized(v)
	if err != nil {
		return sdkmath.Int{}, err
	}
	return coin.Amount, nil
}

func formatMicro(v sdkmath.Int, symbol string) string {
	return notation.FormatMicro(v) + " " + symbol
}

// receipts drops the entries whose value could not be computed.
func receipts(rs ...*txpipe.Receipt) []txpipe.Receipt {
	out := make([]txpipe.Receipt, 0, len(rs))
	for _, r := range rs {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}
