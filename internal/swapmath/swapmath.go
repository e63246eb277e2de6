// Package swapmath computes a single segment of a swap: given the current
// price, a target price and the active liquidity, how much input is
// consumed, how much output is produced, what fee is taken, and where the
// price lands.
package swapmath

import (
	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/sqrtpricemath"
)

// FeeDenominator expresses fee rates in parts per million.
var FeeDenominator = uint256.NewInt(1_000_000)

// StepResult is the outcome of one swap segment.
type StepResult struct {
	SqrtRatioNextX96 *uint256.Int
	AmountIn         *uint256.Int
	AmountOut        *uint256.Int
	FeeAmount        *uint256.Int
}

// ComputeStep advances the price from sqrtRatioCurrentX96 toward
// sqrtRatioTargetX96, consuming at most amountRemaining of the input asset.
// The fee is carved out of the input before the curve math, so providers
// earn fees even on a segment that stops short of the target.
func ComputeStep(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, amountRemaining *uint256.Int, feePips uint32) (StepResult, error) {
	zeroForOne := sqrtRatioCurrentX96.Cmp(sqrtRatioTargetX96) >= 0
	feeRate := uint256.NewInt(uint64(feePips))
	feeComplement := new(uint256.Int).Sub(FeeDenominator, feeRate)

	amountRemainingLessFee, err := fixedpoint.MulDiv(amountRemaining, feeComplement, FeeDenominator)
	if err != nil {
		return StepResult{}, err
	}

	var amountIn *uint256.Int
	if zeroForOne {
		amountIn, err = sqrtpricemath.Amount0Delta(sqrtRatioTargetX96, sqrtRatioCurrentX96, liquidity, true)
	} else {
		amountIn, err = sqrtpricemath.Amount1Delta(sqrtRatioCurrentX96, sqrtRatioTargetX96, liquidity, true)
	}
	if err != nil {
		return StepResult{}, err
	}

	var next *uint256.Int
	if amountRemainingLessFee.Cmp(amountIn) >= 0 {
		next = new(uint256.Int).Set(sqrtRatioTargetX96)
	} else {
		next, err = sqrtpricemath.NextSqrtPriceFromInput(sqrtRatioCurrentX96, liquidity, amountRemainingLessFee, zeroForOne)
		if err != nil {
			return StepResult{}, err
		}
	}

	reachedTarget := sqrtRatioTargetX96.Eq(next)

	var amountOut *uint256.Int
	if zeroForOne {
		if !reachedTarget {
			amountIn, err = sqrtpricemath.Amount0Delta(next, sqrtRatioCurrentX96, liquidity, true)
			if err != nil {
				return StepResult{}, err
			}
		}
		amountOut, err = sqrtpricemath.Amount1Delta(next, sqrtRatioCurrentX96, liquidity, false)
	} else {
		if !reachedTarget {
			amountIn, err = sqrtpricemath.Amount1Delta(sqrtRatioCurrentX96, next, liquidity, true)
			if err != nil {
				return StepResult{}, err
			}
		}
		amountOut, err = sqrtpricemath.Amount0Delta(sqrtRatioCurrentX96, next, liquidity, false)
	}
	if err != nil {
		return StepResult{}, err
	}

	var feeAmount *uint256.Int
	if !reachedTarget {
		// The step stopped mid-segment, so everything left over is fee.
		feeAmount = new(uint256.Int).Sub(amountRemaining, amountIn)
	} else {
		feeAmount, err = fixedpoint.MulDivRoundingUp(amountIn, feeRate, feeComplement)
		if err != nil {
			return StepResult{}, err
		}
	}

	return StepResult{
		SqrtRatioNextX96: next,
		AmountIn:         amountIn,
		AmountOut:        amountOut,
		FeeAmount:        feeAmount,
	}, nil
}
