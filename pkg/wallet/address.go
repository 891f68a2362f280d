package wallet

import (
	"fmt"

	"github.com/cosmos/cosmos-sdk/types/bech32"
)

// AddressPrefix is the bech32 human readable part of account addresses.
const AddressPrefix = "terra"

// accAddressLen is the byte length of an account address payload.
const accAddressLen = 20

// ValidateAddress checks that address is a bech32 account address with the
// expected prefix.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address is empty")
	}

	hrp, bz, err := bech32.DecodeAndConvert(address)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", address, err)
	}
	if hrp != AddressPrefix {
		return fmt.Errorf("invalid address prefix %q, expected %q", hrp, AddressPrefix)
	}
	if len(bz) != accAddressLen {
		return fmt.Errorf("invalid address length %d, expected %d", len(bz), accAddressLen)
	}

	return nil
}

// IsValidAddress is a boolean form of ValidateAddress.
func IsValidAddress(address string) bool {
	return ValidateAddress(address) == nil
}
