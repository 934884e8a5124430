// Package units converts between human-readable CELO amounts and their
// smallest on-chain unit (wei, 10^-18).
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of the native coin.
const Decimals int32 = 18

// ParseEther parses a decimal string such as "0.25" into an amount. The value
// must be non-negative and carry no more than 18 fractional digits.
func ParseEther(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("units.ParseEther: empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("units.ParseEther: %q: %w", s, err)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("units.ParseEther: %q is negative", s)
	}
	if !d.Equal(d.Truncate(Decimals)) {
		return decimal.Zero, fmt.Errorf("units.ParseEther: %q has more than %d decimals", s, Decimals)
	}
	return d, nil
}

// FormatEther renders an amount without trailing zeros ("39.4", "0").
func FormatEther(d decimal.Decimal) string {
	return d.String()
}

// ToWei converts an amount to wei, truncating anything below one wei.
func ToWei(d decimal.Decimal) *big.Int {
	return d.Truncate(Decimals).Shift(Decimals).BigInt()
}

// FromWei converts a wei value to an amount. A nil value is zero.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -Decimals)
}
