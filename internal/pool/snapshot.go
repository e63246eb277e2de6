package pool

import (
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/model"
	"liquidityCore/internal/oracle"
)

// Snapshot serializes the pool's complete state. Ticks and positions are
// sorted so the output is deterministic for a given state.
func (p *Pool) Snapshot() (*model.PoolSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, ErrNotInitialized
	}

	snap := &model.PoolSnapshot{
		Address:                    p.addr.Hex(),
		Token0:                     p.token0.Hex(),
		Token1:                     p.token1.Hex(),
		Fee:                        p.fee,
		TickSpacing:                int32(p.tickSpacing),
		SqrtPriceX96:               p.sqrtPriceX96.Dec(),
		Tick:                       int32(p.tick),
		ObservationIndex:           p.observationIndex,
		ObservationCardinality:     p.observationCardinality,
		ObservationCardinalityNext: p.observationCardinalityNext,
		FeeGrowthGlobal0X128:       p.feeGrowthGlobal0X128.Dec(),
		FeeGrowthGlobal1X128:       p.feeGrowthGlobal1X128.Dec(),
		Liquidity:                  p.liquidity.Dec(),
	}

	for t, info := range p.ticks {
		snap.Ticks = append(snap.Ticks, model.TickSnapshot{
			Tick:                  int32(t),
			LiquidityGross:        info.LiquidityGross.Dec(),
			LiquidityNet:          info.LiquidityNet.String(),
			FeeGrowthOutside0X128: info.FeeGrowthOutside0X128.Dec(),
			FeeGrowthOutside1X128: info.FeeGrowthOutside1X128.Dec(),
		})
	}
	sort.Slice(snap.Ticks, func(i, j int) bool { return snap.Ticks[i].Tick < snap.Ticks[j].Tick })

	for key, info := range p.positions {
		snap.Positions = append(snap.Positions, model.PositionSnapshot{
			Owner:                    key.Owner.Hex(),
			TickLower:                int32(key.TickLower),
			TickUpper:                int32(key.TickUpper),
			Liquidity:                info.Liquidity.Dec(),
			FeeGrowthInside0LastX128: info.FeeGrowthInside0LastX128.Dec(),
			FeeGrowthInside1LastX128: info.FeeGrowthInside1LastX128.Dec(),
			TokensOwed0:              info.TokensOwed0.Dec(),
			TokensOwed1:              info.TokensOwed1.Dec(),
		})
	}
	sort.Slice(snap.Positions, func(i, j int) bool {
		a, b := snap.Positions[i], snap.Positions[j]
		if a.Owner != b.Owner {
			return a.Owner < b.Owner
		}
		if a.TickLower != b.TickLower {
			return a.TickLower < b.TickLower
		}
		return a.TickUpper < b.TickUpper
	})

	for _, obs := range p.observations {
		snap.Observations = append(snap.Observations, model.ObservationSnapshot{
			BlockTimestamp: obs.BlockTimestamp,
			TickCumulative: obs.TickCumulative,
			Initialized:    obs.Initialized,
		})
	}

	return snap, nil
}

// FromSnapshot reconstructs a pool from a serialized state. The bitmap is
// rebuilt from the tick entries rather than persisted separately.
func FromSnapshot(snap *model.PoolSnapshot, ledger Ledger, logger *zap.Logger, clock func() uint32) (*Pool, error) {
	p, err := New(Config{
		Address:     common.HexToAddress(snap.Address),
		Token0:      common.HexToAddress(snap.Token0),
		Token1:      common.HexToAddress(snap.Token1),
		Fee:         snap.Fee,
		TickSpacing: int(snap.TickSpacing),
		Ledger:      ledger,
		Logger:      logger,
		Clock:       clock,
	})
	if err != nil {
		return nil, err
	}

	if p.sqrtPriceX96, err = parseUint256(snap.SqrtPriceX96, "sqrt_price_x96"); err != nil {
		return nil, err
	}
	if p.feeGrowthGlobal0X128, err = parseUint256(snap.FeeGrowthGlobal0X128, "fee_growth_global0_x128"); err != nil {
		return nil, err
	}
	if p.feeGrowthGlobal1X128, err = parseUint256(snap.FeeGrowthGlobal1X128, "fee_growth_global1_x128"); err != nil {
		return nil, err
	}
	if p.liquidity, err = parseUint256(snap.Liquidity, "liquidity"); err != nil {
		return nil, err
	}
	p.tick = int(snap.Tick)
	p.observationIndex = snap.ObservationIndex
	p.observationCardinality = snap.ObservationCardinality
	p.observationCardinalityNext = snap.ObservationCardinalityNext
	p.initialized = true

	for _, ts := range snap.Ticks {
		info := p.ticks.Get(int(ts.Tick))
		if info.LiquidityGross, err = parseUint256(ts.LiquidityGross, "liquidity_gross"); err != nil {
			return nil, err
		}
		net, ok := new(big.Int).SetString(ts.LiquidityNet, 10)
		if !ok {
			return nil, fmt.Errorf("snapshot tick %d: bad liquidity_net %q", ts.Tick, ts.LiquidityNet)
		}
		info.LiquidityNet = net
		if info.FeeGrowthOutside0X128, err = parseUint256(ts.FeeGrowthOutside0X128, "fee_growth_outside0_x128"); err != nil {
			return nil, err
		}
		if info.FeeGrowthOutside1X128, err = parseUint256(ts.FeeGrowthOutside1X128, "fee_growth_outside1_x128"); err != nil {
			return nil, err
		}
		if err := p.bitmap.FlipTick(int(ts.Tick), p.tickSpacing); err != nil {
			return nil, fmt.Errorf("snapshot tick %d: %w", ts.Tick, err)
		}
	}

	for _, ps := range snap.Positions {
		info := p.positions.Get(common.HexToAddress(ps.Owner), int(ps.TickLower), int(ps.TickUpper))
		if info.Liquidity, err = parseUint256(ps.Liquidity, "liquidity"); err != nil {
			return nil, err
		}
		if info.FeeGrowthInside0LastX128, err = parseUint256(ps.FeeGrowthInside0LastX128, "fee_growth_inside0_last_x128"); err != nil {
			return nil, err
		}
		if info.FeeGrowthInside1LastX128, err = parseUint256(ps.FeeGrowthInside1LastX128, "fee_growth_inside1_last_x128"); err != nil {
			return nil, err
		}
		if info.TokensOwed0, err = parseUint256(ps.TokensOwed0, "tokens_owed0"); err != nil {
			return nil, err
		}
		if info.TokensOwed1, err = parseUint256(ps.TokensOwed1, "tokens_owed1"); err != nil {
			return nil, err
		}
	}

	p.observations = make(oracle.Observations, 0, len(snap.Observations))
	for _, obs := range snap.Observations {
		p.observations = append(p.observations, oracle.Observation{
			BlockTimestamp: obs.BlockTimestamp,
			TickCumulative: obs.TickCumulative,
			Initialized:    obs.Initialized,
		})
	}

	return p, nil
}

func parseUint256(s, field string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot field %s: %w", field, err)
	}
	return v, nil
}
