// Package amount converts between base units, as stored and moved by the
// lottery, and the decimal strings shown to people.
package amount

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

const DefaultDecimals = 8

var maxUnits = decimal.NewFromUint64(math.MaxUint64)

// Parse converts a decimal string like "0.01" to base units. Amounts with more
// fractional digits than decimals are rejected rather than rounded.
func Parse(s string, decimals int32) (uint64, error) {
	s = strings.TrimSpace(s)
	if len(s) <= 0 {
		return 0, fmt.Errorf("missing amount")
	}
	value, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("invalid amount format %q", s)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("amount must not be negative")
	}

	units := value.Shift(decimals)
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimals", s, decimals)
	}
	if units.GreaterThan(maxUnits) {
		return 0, fmt.Errorf("amount %s is too large", s)
	}
	return units.BigInt().Uint64(), nil
}

// Format renders base units with exactly decimals fractional digits.
func Format(units uint64, decimals int32) string {
	return decimal.NewFromUint64(units).Shift(-decimals).StringFixed(decimals)
}
