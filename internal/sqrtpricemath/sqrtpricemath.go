// Package sqrtpricemath holds the closed-form price-derivative formulas: how
// much of each asset a liquidity amount represents between two sqrt prices,
// and where the price lands after consuming a given input amount.
package sqrtpricemath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
)

var ErrZeroSqrtRatio = errors.New("zero sqrt ratio")

// Amount0Delta returns the amount of token0 between the two sqrt prices for
// the given liquidity: L * 2^96 * (upper - lower) / (upper * lower). The two
// divisions are performed separately so the Q96 prices are never multiplied
// together. Arguments may be supplied in either order.
func Amount0Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return nil, ErrZeroSqrtRatio
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)
	numerator2 := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)

	if roundUp {
		inner, err := fixedpoint.MulDivRoundingUp(numerator1, numerator2, sqrtRatioBX96)
		if err != nil {
			return nil, err
		}
		return fixedpoint.DivRoundingUp(inner, sqrtRatioAX96)
	}

	inner, err := fixedpoint.MulDiv(numerator1, numerator2, sqrtRatioBX96)
	if err != nil {
		return nil, err
	}
	return inner.Div(inner, sqrtRatioAX96), nil
}

// Amount1Delta returns the amount of token1 between the two sqrt prices for
// the given liquidity: L * (upper - lower) / 2^96.
func Amount1Delta(sqrtRatioAX96, sqrtRatioBX96, liquidity *uint256.Int, roundUp bool) (*uint256.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	if sqrtRatioAX96.IsZero() {
		return nil, ErrZeroSqrtRatio
	}

	diff := new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96)
	if roundUp {
		return fixedpoint.MulDivRoundingUp(liquidity, diff, fixedpoint.Q96)
	}
	return fixedpoint.MulDiv(liquidity, diff, fixedpoint.Q96)
}

// Amount0DeltaSigned mirrors Amount0Delta for a signed liquidity delta:
// positive deltas are amounts owed by the caller (rounded up), negative
// deltas are amounts owed to the caller (magnitude rounded down).
func Amount0DeltaSigned(sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	if liquidity.Sign() < 0 {
		mag, overflow := uint256.FromBig(new(big.Int).Neg(liquidity))
		if overflow {
			return nil, fixedpoint.ErrMulDivOverflow
		}
		amount, err := Amount0Delta(sqrtRatioAX96, sqrtRatioBX96, mag, false)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Neg(amount.ToBig()), nil
	}

	mag, overflow := uint256.FromBig(liquidity)
	if overflow {
		return nil, fixedpoint.ErrMulDivOverflow
	}
	amount, err := Amount0Delta(sqrtRatioAX96, sqrtRatioBX96, mag, true)
	if err != nil {
		return nil, err
	}
	return amount.ToBig(), nil
}

// Amount1DeltaSigned mirrors Amount1Delta for a signed liquidity delta with
// the same rounding asymmetry as Amount0DeltaSigned.
func Amount1DeltaSigned(sqrtRatioAX96, sqrtRatioBX96 *uint256.Int, liquidity *big.Int) (*big.Int, error) {
	if liquidity.Sign() < 0 {
		mag, overflow := uint256.FromBig(new(big.Int).Neg(liquidity))
		if overflow {
			return nil, fixedpoint.ErrMulDivOverflow
		}
		amount, err := Amount1Delta(sqrtRatioAX96, sqrtRatioBX96, mag, false)
		if err != nil {
			return nil, err
		}
		return new(big.Int).Neg(amount.ToBig()), nil
	}

	mag, overflow := uint256.FromBig(liquidity)
	if overflow {
		return nil, fixedpoint.ErrMulDivOverflow
	}
	amount, err := Amount1Delta(sqrtRatioAX96, sqrtRatioBX96, mag, true)
	if err != nil {
		return nil, err
	}
	return amount.ToBig(), nil
}

// NextSqrtPriceFromInput returns the price after consuming amountIn of the
// input asset at the given liquidity, rounding so the pool never gives the
// price away: up when the price falls (zeroForOne), down when it rises.
func NextSqrtPriceFromInput(sqrtPX96, liquidity, amountIn *uint256.Int, zeroForOne bool) (*uint256.Int, error) {
	if sqrtPX96.IsZero() {
		return nil, ErrZeroSqrtRatio
	}
	if zeroForOne {
		return nextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amountIn)
	}
	return nextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amountIn)
}

func nextSqrtPriceFromAmount0RoundingUp(sqrtPX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	if amount.IsZero() {
		return new(uint256.Int).Set(sqrtPX96), nil
	}

	numerator1 := new(uint256.Int).Lsh(liquidity, 96)

	// Prefer the exact form liquidity*2^96*sqrtP / (liquidity*2^96 + amount*sqrtP)
	// when the product does not overflow; fall back to the equivalent
	// division-first form otherwise.
	product := new(uint256.Int).Mul(amount, sqrtPX96)
	check := new(uint256.Int).Div(product, amount)
	if check.Eq(sqrtPX96) {
		denominator := new(uint256.Int).Add(numerator1, product)
		if denominator.Cmp(numerator1) >= 0 {
			return fixedpoint.MulDivRoundingUp(numerator1, sqrtPX96, denominator)
		}
	}

	denominator := new(uint256.Int).Div(numerator1, sqrtPX96)
	denominator.Add(denominator, amount)
	return fixedpoint.DivRoundingUp(numerator1, denominator)
}

func nextSqrtPriceFromAmount1RoundingDown(sqrtPX96, liquidity, amount *uint256.Int) (*uint256.Int, error) {
	quotient, err := fixedpoint.MulDiv(amount, fixedpoint.Q96, liquidity)
	if err != nil {
		return nil, err
	}
	return new(uint256.Int).Add(sqrtPX96, quotient), nil
}
