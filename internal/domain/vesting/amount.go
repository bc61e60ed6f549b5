package vesting

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// FormatAmount renders a base-unit amount in display units, e.g. 1500 with 3
// decimals is "1.5".
func FormatAmount(amount uint64, decimals uint8) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals)).String()
}

// ParseAmount converts a display-unit string to base units. Fractions finer
// than decimals are rejected rather than rounded.
func ParseAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, ErrInvalidInput
	}
	if d.IsNegative() {
		return 0, ErrInvalidInput
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return 0, ErrInvalidInput
	}
	n := scaled.BigInt()
	if !n.IsUint64() {
		return 0, ErrInvalidInput
	}
	return n.Uint64(), nil
}
