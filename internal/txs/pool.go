package txs

import (
	"context"
	"errors"
	"fmt"

	sdkmath "cosmossdk.io/math"

	"github.com/altuslabsxyz/walletkit/internal/notation"
)

// ustDenom is the native denom of the pair's quote asset.
const ustDenom = "uusd"

type poolAsset struct {
	Info struct {
		Token *struct {
			ContractAddr string `json:"contract_addr"`
		} `json:"token,omitempty"`
		NativeToken *struct {
			Denom string `json:"denom"`
		} `json:"native_token,omitempty"`
	} `json:"info"`
	Amount sdkmath.Int `json:"amount"`
}

// AncUstPoolPrice returns the UST price of one ANC from the ANC-UST pair
// reserves.
func AncUstPoolPrice(ctx context.Context, q SmartQuerier, contracts AddressProvider) (sdkmath.LegacyDec, error) {
	var pool struct {
		Assets []poolAsset `json:"assets"`
	}
	if err := q.SmartQuery(ctx, contracts.TerraswapAncUstPair(), map[string]any{"pool": map[string]any{}}, &pool); err != nil {
		return sdkmath.LegacyDec{}, fmt.Errorf("anc-ust pool: %w", err)
	}

	var anc, ust sdkmath.Int
	for _, a := range pool.Assets {
		switch {
		case a.Info.Token != nil && a.Info.Token.ContractAddr == contracts.ANC():
			anc = a.Amount
		case a.Info.NativeToken != nil && a.Info.NativeToken.Denom == ustDenom:
			ust = a.Amount
		}
	}
	if anc.IsNil() || ust.IsNil() {
		return sdkmath.LegacyDec{}, errors.New("anc-ust pool: missing reserves")
	}
	if !anc.IsPositive() {
		return sdkmath.LegacyDec{}, errors.New("anc-ust pool: empty anc reserve")
	}
	return sdkmath.LegacyNewDecFromInt(ust).QuoInt(anc), nil
}

// ProvideAllOptions pairs the whole ANC balance with the UST it is worth at
// price.
func ProvideAllOptions(address string, ancBalance sdkmath.Int, price sdkmath.LegacyDec) (LpProvideOptions, error) {
	if ancBalance.IsNil() || !ancBalance.IsPositive() {
		return LpProvideOptions{}, invalid("no ANC to provide")
	}
	ust := price.MulInt(ancBalance).TruncateInt()
	if !ust.IsPositive() {
		return LpProvideOptions{}, invalid("ANC balance is worth no UST")
	}
	return LpProvideOptions{
		Address:   address,
		ANCAmount: notation.Demicrofy(ancBalance).String(),
		USTAmount: notation.Demicrofy(ust).String(),
		ANCPrice:  price,
	}, nil
}
