// Package units converts between integer base units and decimal display
// strings at a fixed 18-decimal scale.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// Decimals is the fixed scale used by every token amount in this module.
const Decimals = 18

// FormatUnits renders base units as a decimal string, trimming trailing
// zeros ("950", "0.5"). A nil value formats as "0".
func FormatUnits(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -Decimals).String()
}

// ParseUnits parses a plain decimal string into base units. Exponent
// notation, more than 18 fractional digits and negative amounts are errors.
func ParseUnits(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	if strings.ContainsAny(s, "eE") {
		return nil, fmt.Errorf("invalid amount %q: exponent notation not allowed", s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	shifted := d.Shift(Decimals)
	if !shifted.IsInteger() {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, Decimals)
	}
	return shifted.BigInt(), nil
}

// Ether returns n whole tokens in base units.
func Ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(Decimals), nil))
}
