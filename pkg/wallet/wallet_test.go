package wallet

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	sdkmath "cosmossdk.io/math"
	sdk "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/bech32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encode(t *testing.T, hrp string, n int) string {
	t.Helper()
	bz := make([]byte, n)
	for i := range bz {
		bz[i] = byte(i + 1)
	}
	addr, err := bech32.ConvertAndEncode(hrp, bz)
	require.NoError(t, err)
	return addr
}

func TestValidateAddress(t *testing.T) {
	valid := encode(t, AddressPrefix, accAddressLen)

	tests := []struct {
		name    string
		address string
		wantErr string
	}{
		{name: "valid", address: valid},
		{name: "empty", address: "", wantErr: "address is empty"},
		{name: "garbage", address: "not-an-address", wantErr: "invalid address"},
		{name: "wrong prefix", address: encode(t, "cosmos", accAddressLen), wantErr: "invalid address prefix"},
		{name: "wrong length", address: encode(t, AddressPrefix, 32), wantErr: "invalid address length"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAddress(tt.address)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				assert.True(t, IsValidAddress(tt.address))
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
			assert.False(t, IsValidAddress(tt.address))
		})
	}
}

func TestParseConnectType(t *testing.T) {
	for in, want := range map[string]ConnectType{
		"readonly":         ConnectTypeReadonly,
		"READONLY":         ConnectTypeReadonly,
		"read-only":        ConnectTypeReadonly,
		"extension":        ConnectTypeExtension,
		"chrome-extension": ConnectTypeExtension,
		"relay":            ConnectTypeRelay,
		"walletconnect":    ConnectTypeRelay,
	} {
		got, err := ParseConnectType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseConnectType("ledger")
	assert.True(t, IsConfiguration(err))
	assert.ErrorContains(t, err, "unknown connect type ledger")
}

func TestConnectType(t *testing.T) {
	assert.False(t, ConnectTypeReadonly.CanPost())
	assert.True(t, ConnectTypeExtension.CanPost())
	assert.True(t, ConnectTypeRelay.CanPost())

	assert.Equal(t, "readonly", ConnectTypeReadonly.Design())
	assert.Equal(t, "extension", ConnectTypeExtension.Design())
	assert.Equal(t, "relay", ConnectTypeRelay.Design())
	assert.Empty(t, ConnectType("OTHER").Design())
}

func TestConfigurationError(t *testing.T) {
	cause := errors.New("boom")

	err := fmt.Errorf("connect: %w", &ConfigurationError{Op: "connect", Message: "bad input", Err: cause})
	assert.True(t, IsConfiguration(err))
	assert.ErrorIs(t, err, cause)
	assert.EqualError(t, err, "connect: connect: bad input: boom")

	plain := &ConfigurationError{Op: "post", Message: "no wallet"}
	assert.True(t, IsConfiguration(plain))
	assert.EqualError(t, plain, "post: no wallet")

	assert.False(t, IsConfiguration(cause))
}

func TestUserDeniedError(t *testing.T) {
	err := &UserDeniedError{Backend: ConnectTypeRelay}
	assert.ErrorIs(t, err, ErrUserDenied)
	assert.EqualError(t, err, "relay: user denied the transaction")

	err = &UserDeniedError{Backend: ConnectTypeExtension, Message: "closed popup"}
	assert.EqualError(t, err, "extension: user denied the transaction: closed popup")
}

func TestNewExecuteContractMsg(t *testing.T) {
	msg, err := NewExecuteContractMsg("terra1sender", "terra1contract",
		map[string]any{"claim_rewards": map[string]any{}}, nil)
	require.NoError(t, err)
	assert.Equal(t, MsgTypeExecuteContract, msg.Type)
	assert.JSONEq(t, `{
		"sender": "terra1sender",
		"contract": "terra1contract",
		"execute_msg": {"claim_rewards": {}},
		"coins": []
	}`, string(msg.Value))

	coins := sdk.NewCoins(sdk.NewCoin("uusd", sdkmath.NewInt(1500)))
	msg, err = NewExecuteContractMsg("terra1sender", "terra1pair", map[string]any{"swap": map[string]any{}}, coins)
	require.NoError(t, err)

	var body MsgExecuteContract
	require.NoError(t, json.Unmarshal(msg.Value, &body))
	assert.Equal(t, "1500uusd", body.Coins.String())

	_, err = NewExecuteContractMsg("a", "b", func() {}, nil)
	assert.ErrorContains(t, err, "failed to marshal execute msg")
}
