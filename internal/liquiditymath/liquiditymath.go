// Package liquiditymath converts between liquidity amounts and asset amounts
// for a price range, and applies signed liquidity deltas with explicit
// underflow/overflow errors.
package liquiditymath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
)

var (
	ErrLiquidityUnderflow = errors.New("liquidity underflow")
	ErrLiquidityOverflow  = errors.New("liquidity overflow")
)

// AddDelta applies a signed delta to an unsigned liquidity value. Removing
// more liquidity than is present is a caller error, not a recoverable
// condition, and the result must stay within 128 bits.
func AddDelta(x *uint256.Int, delta *big.Int) (*uint256.Int, error) {
	mag, overflow := uint256.FromBig(new(big.Int).Abs(delta))
	if overflow {
		return nil, ErrLiquidityOverflow
	}

	if delta.Sign() < 0 {
		if x.Cmp(mag) < 0 {
			return nil, ErrLiquidityUnderflow
		}
		return new(uint256.Int).Sub(x, mag), nil
	}

	sum := new(uint256.Int).Add(x, mag)
	if sum.Cmp(fixedpoint.MaxUint128) > 0 {
		return nil, ErrLiquidityOverflow
	}
	return sum, nil
}

// LiquidityForAmount0 returns the largest liquidity amount0 can provide over
// [sqrtRatioA, sqrtRatioB]: amount0 * (sqrtA * sqrtB / 2^96) / (sqrtB - sqrtA).
func LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0 *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	intermediate, err := fixedpoint.MulDiv(sqrtRatioAX96, sqrtRatioBX96, fixedpoint.Q96)
	if err != nil {
		return nil, err
	}
	return fixedpoint.MulDiv(amount0, intermediate, new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// LiquidityForAmount1 returns the largest liquidity amount1 can provide over
// [sqrtRatioA, sqrtRatioB]: amount1 * 2^96 / (sqrtB - sqrtA).
func LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1 *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}
	return fixedpoint.MulDiv(amount1, fixedpoint.Q96, new(uint256.Int).Sub(sqrtRatioBX96, sqrtRatioAX96))
}

// LiquidityForAmounts returns the maximum liquidity obtainable from the two
// asset amounts over a range. Below the range only token0 contributes, above
// it only token1; inside, the tighter of the two independent constraints
// wins, since only one token0:token1 proportion is valid at the current
// price.
func LiquidityForAmounts(sqrtRatioX96, sqrtRatioAX96, sqrtRatioBX96, amount0, amount1 *uint256.Int) (*uint256.Int, error) {
	if sqrtRatioAX96.Cmp(sqrtRatioBX96) > 0 {
		sqrtRatioAX96, sqrtRatioBX96 = sqrtRatioBX96, sqrtRatioAX96
	}

	if sqrtRatioX96.Cmp(sqrtRatioAX96) <= 0 {
		return LiquidityForAmount0(sqrtRatioAX96, sqrtRatioBX96, amount0)
	}

	if sqrtRatioX96.Cmp(sqrtRatioBX96) < 0 {
		liquidity0, err := LiquidityForAmount0(sqrtRatioX96, sqrtRatioBX96, amount0)
		if err != nil {
			return nil, err
		}
		liquidity1, err := LiquidityForAmount1(sqrtRatioAX96, sqrtRatioX96, amount1)
		if err != nil {
			return nil, err
		}
		if liquidity0.Cmp(liquidity1) < 0 {
			return liquidity0, nil
		}
		return liquidity1, nil
	}

	return LiquidityForAmount1(sqrtRatioAX96, sqrtRatioBX96, amount1)
}
