// Package fixedpoint provides the 512-bit-safe multiply-divide primitives and
// the fixed-point constants shared by the whole engine. Values are Q64.96
// (sqrt prices) or Q128.128 (fee growth) binary fractions held in uint256.
package fixedpoint

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"
)

var (
	One  = uint256.NewInt(1)
	Q96  = new(uint256.Int).Lsh(uint256.NewInt(1), 96)
	Q128 = new(uint256.Int).Lsh(uint256.NewInt(1), 128)

	MaxUint128 = new(uint256.Int).SubUint64(new(uint256.Int).Lsh(uint256.NewInt(1), 128), 1)
	MaxUint256 = new(uint256.Int).Sub(new(uint256.Int), uint256.NewInt(1))
)

// ErrMulDivOverflow is returned when the quotient does not fit in 256 bits.
var ErrMulDivOverflow = errors.New("muldiv overflow")

// ErrDivisionByZero is returned when the denominator is zero.
var ErrDivisionByZero = errors.New("division by zero")

// MulDiv computes floor(a*b/denominator) with a full 512-bit intermediate
// product, so a*b may exceed 256 bits as long as the quotient fits.
func MulDiv(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}

	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	quotient := product.Div(product, denominator.ToBig())

	result, overflow := uint256.FromBig(quotient)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return result, nil
}

// MulDivRoundingUp computes ceil(a*b/denominator) with the same overflow
// guarantees as MulDiv. Amounts owed by a caller are always computed with
// this variant so that rounding favors the pool.
func MulDivRoundingUp(a, b, denominator *uint256.Int) (*uint256.Int, error) {
	if denominator.IsZero() {
		return nil, ErrDivisionByZero
	}

	product := new(big.Int).Mul(a.ToBig(), b.ToBig())
	quotient, remainder := new(big.Int).QuoRem(product, denominator.ToBig(), new(big.Int))
	if remainder.Sign() > 0 {
		quotient.Add(quotient, big.NewInt(1))
	}

	result, overflow := uint256.FromBig(quotient)
	if overflow {
		return nil, ErrMulDivOverflow
	}
	return result, nil
}

// DivRoundingUp computes ceil(x/y) without any intermediate widening.
func DivRoundingUp(x, y *uint256.Int) (*uint256.Int, error) {
	if y.IsZero() {
		return nil, ErrDivisionByZero
	}

	quotient, remainder := new(uint256.Int).DivMod(x, y, new(uint256.Int))
	if !remainder.IsZero() {
		quotient.Add(quotient, One)
	}
	return quotient, nil
}
