// Package tick keeps the per-tick liquidity bookkeeping and the bitmap index
// used to find the next initialized tick in a direction.
package tick

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityCore/internal/liquiditymath"
)

// ErrLiquidityGrossOverflow is returned when a tick would reference more
// gross liquidity than the per-tick cap allows.
var ErrLiquidityGrossOverflow = errors.New("liquidity gross exceeds per-tick cap")

// Info is the state tracked for one initialized tick. Fee-growth-outside
// snapshots hold the growth accumulated on the side of the tick away from
// the current price; all growth arithmetic wraps at 256 bits.
type Info struct {
	// LiquidityGross is the total position liquidity referencing this tick
	// as a range boundary.
	LiquidityGross *uint256.Int
	// LiquidityNet is the signed liquidity change applied to active
	// liquidity when the price crosses this tick left to right.
	LiquidityNet          *big.Int
	FeeGrowthOutside0X128 *uint256.Int
	FeeGrowthOutside1X128 *uint256.Int
}

func newInfo() *Info {
	return &Info{
		LiquidityGross:        new(uint256.Int),
		LiquidityNet:          new(big.Int),
		FeeGrowthOutside0X128: new(uint256.Int),
		FeeGrowthOutside1X128: new(uint256.Int),
	}
}

// Map stores tick state keyed by tick index.
type Map map[int]*Info

func NewMap() Map {
	return make(Map)
}

// Get returns the tick record, creating a zero-valued one on first access.
func (m Map) Get(tick int) *Info {
	info, ok := m[tick]
	if !ok {
		info = newInfo()
		m[tick] = info
	}
	return info
}

// Clear removes a tick record entirely.
func (m Map) Clear(tick int) {
	delete(m, tick)
}

// Update applies a liquidity delta to the tick and reports whether the tick
// flipped between initialized and uninitialized (the caller must then mirror
// the flip in the bitmap). A tick activated at or below the current price
// seeds its outside snapshots with the current global growth; by convention
// all growth before activation happened below the tick.
func (m Map) Update(tick, currentTick int, liquidityDelta *big.Int, feeGrowthGlobal0X128, feeGrowthGlobal1X128, maxLiquidity *uint256.Int, upper bool) (bool, error) {
	info := m.Get(tick)

	grossBefore := info.LiquidityGross
	grossAfter, err := liquiditymath.AddDelta(grossBefore, liquidityDelta)
	if err != nil {
		return false, err
	}
	if grossAfter.Cmp(maxLiquidity) > 0 {
		return false, ErrLiquidityGrossOverflow
	}

	flipped := grossAfter.IsZero() != grossBefore.IsZero()

	if grossBefore.IsZero() && tick <= currentTick {
		info.FeeGrowthOutside0X128.Set(feeGrowthGlobal0X128)
		info.FeeGrowthOutside1X128.Set(feeGrowthGlobal1X128)
	}

	info.LiquidityGross = grossAfter
	if upper {
		info.LiquidityNet.Sub(info.LiquidityNet, liquidityDelta)
	} else {
		info.LiquidityNet.Add(info.LiquidityNet, liquidityDelta)
	}

	return flipped, nil
}

// Cross flips the tick's outside snapshots as the price traverses it and
// returns the net liquidity delta for the caller to apply.
func (m Map) Cross(tick int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) *big.Int {
	info := m.Get(tick)
	info.FeeGrowthOutside0X128.Sub(feeGrowthGlobal0X128, info.FeeGrowthOutside0X128)
	info.FeeGrowthOutside1X128.Sub(feeGrowthGlobal1X128, info.FeeGrowthOutside1X128)
	return info.LiquidityNet
}

// FeeGrowthInside computes the growth accrued strictly inside [lower, upper]
// as global growth minus the growth below the lower tick and above the upper
// tick. Subtractions wrap at 256 bits by design; the accumulators are
// allowed to overflow over the pool's lifetime.
func (m Map) FeeGrowthInside(lower, upper, currentTick int, feeGrowthGlobal0X128, feeGrowthGlobal1X128 *uint256.Int) (*uint256.Int, *uint256.Int) {
	lowerInfo := m.Get(lower)
	upperInfo := m.Get(upper)

	below0 := new(uint256.Int)
	below1 := new(uint256.Int)
	if currentTick >= lower {
		below0.Set(lowerInfo.FeeGrowthOutside0X128)
		below1.Set(lowerInfo.FeeGrowthOutside1X128)
	} else {
		below0.Sub(feeGrowthGlobal0X128, lowerInfo.FeeGrowthOutside0X128)
		below1.Sub(feeGrowthGlobal1X128, lowerInfo.FeeGrowthOutside1X128)
	}

	above0 := new(uint256.Int)
	above1 := new(uint256.Int)
	if currentTick < upper {
		above0.Set(upperInfo.FeeGrowthOutside0X128)
		above1.Set(upperInfo.FeeGrowthOutside1X128)
	} else {
		above0.Sub(feeGrowthGlobal0X128, upperInfo.FeeGrowthOutside0X128)
		above1.Sub(feeGrowthGlobal1X128, upperInfo.FeeGrowthOutside1X128)
	}

	inside0 := new(uint256.Int).Sub(feeGrowthGlobal0X128, below0)
	inside0.Sub(inside0, above0)
	inside1 := new(uint256.Int).Sub(feeGrowthGlobal1X128, below1)
	inside1.Sub(inside1, above1)
	return inside0, inside1
}
