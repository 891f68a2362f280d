// Package notation formats on-chain micro-denominated amounts for display.
package notation

import (
	"strings"

	sdkmath "cosmossdk.io/math"
)

// MicroFactor is the number of micro units in one unit.
const MicroFactor = 1_000_000

// Display precision.
const (
	UnitDecimals = 3
	RateDecimals = 2
)

var million = sdkmath.LegacyNewDec(1_000_000)

// Demicrofy converts a micro amount into units.
func Demicrofy(micro sdkmath.Int) sdkmath.LegacyDec {
	if micro.IsNil() {
		return sdkmath.LegacyZeroDec()
	}
	return sdkmath.LegacyNewDecFromInt(micro).QuoInt64(MicroFactor)
}

// Microfy converts units into a micro amount, truncating below one micro.
func Microfy(units sdkmath.LegacyDec) sdkmath.Int {
	return units.MulInt64(MicroFactor).TruncateInt()
}

// ParseMicro parses a decimal string of units, e.g. "1.5", into micro units.
func ParseMicro(s string) (sdkmath.Int, error) {
	d, err := sdkmath.LegacyNewDecFromStr(strings.TrimSpace(s))
	if err != nil {
		return sdkmath.Int{}, err
	}
	return Microfy(d), nil
}

// FormatWithPostfixUnits formats units with thousands separators, switching
// to an "M" postfix from one million on.
func FormatWithPostfixUnits(units sdkmath.LegacyDec) string {
	if units.Abs().GTE(million) {
		return FormatDecimal(units.Quo(million), RateDecimals) + "M"
	}
	return FormatDecimal(units, UnitDecimals)
}

// FormatMicro demicrofies micro and formats it with postfix units.
func FormatMicro(micro sdkmath.Int) string {
	return FormatWithPostfixUnits(Demicrofy(micro))
}

// FormatRate formats a ratio as a percentage number, e.g. 0.4512 -> "45.12".
func FormatRate(rate sdkmath.LegacyDec) string {
	return FormatDecimal(rate.MulInt64(100), RateDecimals)
}

// FormatDecimal renders d with exactly decimals fraction digits, truncating
// the rest, and commas between thousands.
func FormatDecimal(d sdkmath.LegacyDec, decimals int) string {
	neg := d.IsNegative()
	scaled := d.Abs().Mul(sdkmath.LegacyNewDec(10).Power(uint64(decimals))).TruncateInt().String()

	if len(scaled) <= decimals {
		scaled = strings.Repeat("0", decimals-len(scaled)+1) + scaled
	}
	whole, frac := scaled[:len(scaled)-decimals], scaled[len(scaled)-decimals:]

	var b strings.Builder
	if neg && strings.Trim(scaled, "0") != "" {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if decimals > 0 {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
