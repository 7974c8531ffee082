package model

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// BpsDenominator is the number of basis points in a whole.
const BpsDenominator = 10000

// ParseAmount parses a decimal string holding an integer number of base
// currency units (wei).  Fractions and negative values are rejected.
func ParseAmount(raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := CheckAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// CheckAmount validates an amount already held as a decimal.
func CheckAmount(d decimal.Decimal) error {
	if d.IsNegative() || !d.IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

// MulDivFloor returns floor(amount * num / den) computed exactly.  den must
// be positive; callers guarantee it (total shares are positive from mint).
func MulDivFloor(amount decimal.Decimal, num, den uint64) decimal.Decimal {
	q, _ := amount.Mul(decimalFromUint(num)).QuoRem(decimalFromUint(den), 0)
	return q
}

func decimalFromUint(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

// Units converts a share count or day count into a decimal multiplier.
func Units(u uint64) decimal.Decimal { return decimalFromUint(u) }

// BpsOf returns floor(amount * bps / 10000).
func BpsOf(amount decimal.Decimal, bps uint32) decimal.Decimal {
	return MulDivFloor(amount, uint64(bps), BpsDenominator)
}
