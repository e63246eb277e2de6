// Package position tracks per-(owner, range) liquidity, fee-growth
// snapshots, and tokens owed but not yet collected.
package position

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/liquiditymath"
)

// Key identifies a position by owner and tick range.
type Key struct {
	Owner     common.Address
	TickLower int
	TickUpper int
}

// Info is the ledger entry for one position. TokensOwed accumulates fees and
// burned principal until collected; a position with zero liquidity is kept
// while anything remains owed.
type Info struct {
	Liquidity                *uint256.Int
	FeeGrowthInside0LastX128 *uint256.Int
	FeeGrowthInside1LastX128 *uint256.Int
	TokensOwed0              *uint256.Int
	TokensOwed1              *uint256.Int
}

func newInfo() *Info {
	return &Info{
		Liquidity:                new(uint256.Int),
		FeeGrowthInside0LastX128: new(uint256.Int),
		FeeGrowthInside1LastX128: new(uint256.Int),
		TokensOwed0:              new(uint256.Int),
		TokensOwed1:              new(uint256.Int),
	}
}

// Map stores positions by (owner, range) key.
type Map map[Key]*Info

func NewMap() Map {
	return make(Map)
}

// Get returns the position record, creating a zero-valued one on first
// access. Records are never implicitly deleted.
func (m Map) Get(owner common.Address, tickLower, tickUpper int) *Info {
	key := Key{Owner: owner, TickLower: tickLower, TickUpper: tickUpper}
	info, ok := m[key]
	if !ok {
		info = newInfo()
		m[key] = info
	}
	return info
}

// Update credits fees accrued since the last snapshot to tokens owed, then
// applies the liquidity delta. It must be called with a zero delta to
// collect fees without changing principal. Growth deltas use wrapping
// subtraction; the accumulators overflow by design.
func (p *Info) Update(liquidityDelta *big.Int, feeGrowthInside0X128, feeGrowthInside1X128 *uint256.Int) error {
	liquidityNext, err := liquiditymath.AddDelta(p.Liquidity, liquidityDelta)
	if err != nil {
		return err
	}

	delta0 := new(uint256.Int).Sub(feeGrowthInside0X128, p.FeeGrowthInside0LastX128)
	delta1 := new(uint256.Int).Sub(feeGrowthInside1X128, p.FeeGrowthInside1LastX128)

	owed0, err := fixedpoint.MulDiv(delta0, p.Liquidity, fixedpoint.Q128)
	if err != nil {
		return err
	}
	owed1, err := fixedpoint.MulDiv(delta1, p.Liquidity, fixedpoint.Q128)
	if err != nil {
		return err
	}

	p.Liquidity = liquidityNext
	p.FeeGrowthInside0LastX128.Set(feeGrowthInside0X128)
	p.FeeGrowthInside1LastX128.Set(feeGrowthInside1X128)
	p.TokensOwed0.Add(p.TokensOwed0, owed0)
	p.TokensOwed1.Add(p.TokensOwed1, owed1)
	return nil
}
