// Package pool ties the tick map, position ledger, swap stepping and oracle
// together into one concentrated-liquidity pool instance. A pool owns all of
// its mutable state; operations run under a single mutex held for the whole
// operation including its callback round-trip, so one logical mutation
// completes before the next begins. Callbacks may operate on other pools but
// must not re-enter the same pool.
package pool

import (
	"bytes"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/liquiditymath"
	"liquidityCore/internal/oracle"
	"liquidityCore/internal/position"
	"liquidityCore/internal/sqrtpricemath"
	"liquidityCore/internal/tick"
	"liquidityCore/internal/tickmath"
)

// Config carries the four immutable pool parameters plus collaborators.
// Assets must be distinct and ordered (Token0 < Token1).
type Config struct {
	Address     common.Address
	Token0      common.Address
	Token1      common.Address
	Fee         uint32 // parts per million
	TickSpacing int
	Ledger      Ledger
	Logger      *zap.Logger
	Clock       func() uint32
}

// Pool is one concentrated-liquidity market.
type Pool struct {
	mu     sync.Mutex
	logger *zap.Logger
	clock  func() uint32

	addr        common.Address
	token0      common.Address
	token1      common.Address
	fee         uint32
	tickSpacing int

	maxLiquidityPerTick *uint256.Int

	initialized  bool
	sqrtPriceX96 *uint256.Int
	tick         int

	observationIndex           uint16
	observationCardinality     uint16
	observationCardinalityNext uint16

	feeGrowthGlobal0X128 *uint256.Int
	feeGrowthGlobal1X128 *uint256.Int
	liquidity            *uint256.Int

	ticks        tick.Map
	bitmap       tick.Bitmap
	positions    position.Map
	observations oracle.Observations

	ledger Ledger
}

// New builds an uninitialized pool from its immutable configuration.
func New(cfg Config) (*Pool, error) {
	if cfg.Token0 == cfg.Token1 {
		return nil, fmt.Errorf("%w: identical assets", ErrUnsupportedConfig)
	}
	if bytes.Compare(cfg.Token0.Bytes(), cfg.Token1.Bytes()) > 0 {
		return nil, fmt.Errorf("%w: assets out of order", ErrUnsupportedConfig)
	}
	if cfg.Fee >= 1_000_000 {
		return nil, fmt.Errorf("%w: fee %d out of range", ErrUnsupportedConfig, cfg.Fee)
	}
	if cfg.TickSpacing <= 0 || cfg.TickSpacing > tickmath.MaxTick {
		return nil, fmt.Errorf("%w: tick spacing %d", ErrUnsupportedConfig, cfg.TickSpacing)
	}
	if cfg.Ledger == nil {
		return nil, fmt.Errorf("%w: ledger is required", ErrUnsupportedConfig)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := cfg.Clock
	if clock == nil {
		clock = func() uint32 { return uint32(time.Now().Unix()) }
	}

	return &Pool{
		logger:               logger,
		clock:                clock,
		addr:                 cfg.Address,
		token0:               cfg.Token0,
		token1:               cfg.Token1,
		fee:                  cfg.Fee,
		tickSpacing:          cfg.TickSpacing,
		maxLiquidityPerTick:  maxLiquidityPerTick(cfg.TickSpacing),
		sqrtPriceX96:         new(uint256.Int),
		feeGrowthGlobal0X128: new(uint256.Int),
		feeGrowthGlobal1X128: new(uint256.Int),
		liquidity:            new(uint256.Int),
		ticks:                tick.NewMap(),
		bitmap:               tick.NewBitmap(),
		positions:            position.NewMap(),
		ledger:               cfg.Ledger,
	}, nil
}

// maxLiquidityPerTick spreads the 128-bit liquidity ceiling evenly across
// every usable tick for the spacing.
func maxLiquidityPerTick(spacing int) *uint256.Int {
	minTick := (tickmath.MinTick / spacing) * spacing
	maxTick := (tickmath.MaxTick / spacing) * spacing
	numTicks := uint64((maxTick-minTick)/spacing + 1)
	return new(uint256.Int).Div(fixedpoint.MaxUint128, uint256.NewInt(numTicks))
}

// Address returns the pool's ledger identity.
func (p *Pool) Address() common.Address { return p.addr }

// Token0 returns the lower-ordered asset.
func (p *Pool) Token0() common.Address { return p.token0 }

// Token1 returns the higher-ordered asset.
func (p *Pool) Token1() common.Address { return p.token1 }

// Fee returns the fee rate in parts per million.
func (p *Pool) Fee() uint32 { return p.fee }

// TickSpacing returns the minimum granularity between usable ticks.
func (p *Pool) TickSpacing() int { return p.tickSpacing }

// Slot0 returns the current price, tick and oracle bookkeeping.
func (p *Pool) Slot0() (*uint256.Int, int, uint16, uint16, uint16) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.sqrtPriceX96), p.tick,
		p.observationIndex, p.observationCardinality, p.observationCardinalityNext
}

// Liquidity returns the pool's active liquidity.
func (p *Pool) Liquidity() *uint256.Int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.liquidity)
}

// FeeGrowthGlobal returns both global fee-growth accumulators.
func (p *Pool) FeeGrowthGlobal() (*uint256.Int, *uint256.Int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return new(uint256.Int).Set(p.feeGrowthGlobal0X128), new(uint256.Int).Set(p.feeGrowthGlobal1X128)
}

// Initialize sets the starting price, derives the starting tick, and writes
// oracle slot 0. A pool can be initialized exactly once.
func (p *Pool) Initialize(sqrtPriceX96 *uint256.Int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return ErrAlreadyInitialized
	}

	startTick, err := tickmath.TickAtSqrtRatio(sqrtPriceX96)
	if err != nil {
		return err
	}

	ring, cardinality, cardinalityNext := oracle.NewRing(p.clock())
	p.observations = ring
	p.observationIndex = 0
	p.observationCardinality = cardinality
	p.observationCardinalityNext = cardinalityNext

	p.sqrtPriceX96 = new(uint256.Int).Set(sqrtPriceX96)
	p.tick = startTick
	p.initialized = true

	p.logger.Info("pool initialized",
		zap.String("pool", p.addr.Hex()),
		zap.String("sqrt_price_x96", sqrtPriceX96.Dec()),
		zap.Int("tick", startTick),
	)
	return nil
}

func (p *Pool) checkTicks(tickLower, tickUpper int) error {
	if tickLower >= tickUpper {
		return fmt.Errorf("%w: lower %d >= upper %d", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if tickLower < tickmath.MinTick || tickUpper > tickmath.MaxTick {
		return fmt.Errorf("%w: [%d, %d] outside tick bounds", ErrInvalidTickRange, tickLower, tickUpper)
	}
	if tickLower%p.tickSpacing != 0 || tickUpper%p.tickSpacing != 0 {
		return fmt.Errorf("%w: [%d, %d] not aligned to spacing %d", ErrInvalidTickRange, tickLower, tickUpper, p.tickSpacing)
	}
	return nil
}

// rangeAmounts computes the signed asset deltas a liquidity delta over
// [tickLower, tickUpper] represents at the current price. Pure: no state is
// touched, so callers can verify settlement before committing.
func (p *Pool) rangeAmounts(tickLower, tickUpper int, liquidityDelta *big.Int) (*big.Int, *big.Int, error) {
	sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		return nil, nil, err
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		return nil, nil, err
	}

	amount0 := new(big.Int)
	amount1 := new(big.Int)

	switch {
	case p.tick < tickLower:
		// Range entirely above the price: value comes from token0 only.
		amount0, err = sqrtpricemath.Amount0DeltaSigned(sqrtLower, sqrtUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
	case p.tick < tickUpper:
		amount0, err = sqrtpricemath.Amount0DeltaSigned(p.sqrtPriceX96, sqrtUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
		amount1, err = sqrtpricemath.Amount1DeltaSigned(sqrtLower, p.sqrtPriceX96, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
	default:
		// Range entirely below the price: value comes from token1 only.
		amount1, err = sqrtpricemath.Amount1DeltaSigned(sqrtLower, sqrtUpper, liquidityDelta)
		if err != nil {
			return nil, nil, err
		}
	}

	return amount0, amount1, nil
}

// checkTickCaps rejects a liquidity increase that would push either boundary
// tick past the per-tick cap. Pure, so Mint can run it before any funds move.
func (p *Pool) checkTickCaps(tickLower, tickUpper int, amount *uint256.Int) error {
	for _, boundary := range []int{tickLower, tickUpper} {
		gross := new(uint256.Int)
		if info, ok := p.ticks[boundary]; ok {
			gross.Set(info.LiquidityGross)
		}
		if gross.Add(gross, amount).Cmp(p.maxLiquidityPerTick) > 0 {
			return tick.ErrLiquidityGrossOverflow
		}
	}
	return nil
}

// applyPositionChange mutates tick, bitmap and position state for a
// liquidity delta, and adjusts active liquidity (writing an oracle
// observation first) when the range straddles the current tick. Underflow
// and per-tick cap violations are validated before the first mutation so a
// failure leaves no partial state.
func (p *Pool) applyPositionChange(owner common.Address, tickLower, tickUpper int, liquidityDelta *big.Int) (*position.Info, error) {
	pos := p.positions.Get(owner, tickLower, tickUpper)

	if liquidityDelta.Sign() < 0 {
		if _, err := liquiditymath.AddDelta(pos.Liquidity, liquidityDelta); err != nil {
			return nil, err
		}
	} else if liquidityDelta.Sign() > 0 {
		mag, _ := uint256.FromBig(liquidityDelta)
		if err := p.checkTickCaps(tickLower, tickUpper, mag); err != nil {
			return nil, err
		}
	}

	var flippedLower, flippedUpper bool
	if liquidityDelta.Sign() != 0 {
		var err error
		flippedLower, err = p.ticks.Update(tickLower, p.tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, p.maxLiquidityPerTick, false)
		if err != nil {
			return nil, err
		}
		flippedUpper, err = p.ticks.Update(tickUpper, p.tick, liquidityDelta,
			p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128, p.maxLiquidityPerTick, true)
		if err != nil {
			return nil, err
		}

		if flippedLower {
			if err := p.bitmap.FlipTick(tickLower, p.tickSpacing); err != nil {
				return nil, err
			}
		}
		if flippedUpper {
			if err := p.bitmap.FlipTick(tickUpper, p.tickSpacing); err != nil {
				return nil, err
			}
		}
	}

	inside0, inside1 := p.ticks.FeeGrowthInside(tickLower, tickUpper, p.tick,
		p.feeGrowthGlobal0X128, p.feeGrowthGlobal1X128)
	if err := pos.Update(liquidityDelta, inside0, inside1); err != nil {
		return nil, err
	}

	if liquidityDelta.Sign() < 0 {
		if flippedLower {
			p.ticks.Clear(tickLower)
		}
		if flippedUpper {
			p.ticks.Clear(tickUpper)
		}
	}

	if liquidityDelta.Sign() != 0 && tickLower <= p.tick && p.tick < tickUpper {
		p.observationIndex, p.observationCardinality = p.observations.Write(
			p.observationIndex, p.clock(), p.tick,
			p.observationCardinality, p.observationCardinalityNext)

		updated, err := liquiditymath.AddDelta(p.liquidity, liquidityDelta)
		if err != nil {
			return nil, err
		}
		p.liquidity = updated
	}

	return pos, nil
}

// Mint adds liquidity to a range. The required asset amounts are computed
// first, the callback is given the chance to pay them, the pool's balances
// are verified, and only then is the position committed.
func (p *Pool) Mint(owner common.Address, tickLower, tickUpper int, amount *uint256.Int, cb MintCallback, data []byte) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if cb == nil {
		return nil, nil, fmt.Errorf("%w: mint callback is required", ErrUnsupportedConfig)
	}

	if err := p.checkTickCaps(tickLower, tickUpper, amount); err != nil {
		return nil, nil, err
	}

	delta := amount.ToBig()
	amount0Signed, amount1Signed, err := p.rangeAmounts(tickLower, tickUpper, delta)
	if err != nil {
		return nil, nil, err
	}
	amount0, _ := uint256.FromBig(amount0Signed)
	amount1, _ := uint256.FromBig(amount1Signed)

	balance0Before := new(uint256.Int)
	balance1Before := new(uint256.Int)
	if !amount0.IsZero() {
		balance0Before.Set(p.ledger.BalanceOf(p.token0, p.addr))
	}
	if !amount1.IsZero() {
		balance1Before.Set(p.ledger.BalanceOf(p.token1, p.addr))
	}

	if err := cb.OnLiquidityReceived(amount0, amount1, data); err != nil {
		return nil, nil, fmt.Errorf("mint callback: %w", err)
	}

	if !amount0.IsZero() {
		required := new(uint256.Int).Add(balance0Before, amount0)
		if p.ledger.BalanceOf(p.token0, p.addr).Cmp(required) < 0 {
			return nil, nil, fmt.Errorf("%w: token0", ErrInsufficientMint)
		}
	}
	if !amount1.IsZero() {
		required := new(uint256.Int).Add(balance1Before, amount1)
		if p.ledger.BalanceOf(p.token1, p.addr).Cmp(required) < 0 {
			return nil, nil, fmt.Errorf("%w: token1", ErrInsufficientMint)
		}
	}

	if _, err := p.applyPositionChange(owner, tickLower, tickUpper, delta); err != nil {
		return nil, nil, err
	}

	p.logger.Debug("mint",
		zap.String("pool", p.addr.Hex()),
		zap.String("owner", owner.Hex()),
		zap.Int("tick_lower", tickLower),
		zap.Int("tick_upper", tickUpper),
		zap.String("amount", amount.Dec()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

// Burn removes liquidity from the caller's position. No funds move: the
// withdrawn principal is accrued to tokens owed, collectible via Collect.
func (p *Pool) Burn(owner common.Address, tickLower, tickUpper int, amount *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}
	if amount == nil || amount.IsZero() {
		return nil, nil, ErrZeroAmount
	}

	delta := new(big.Int).Neg(amount.ToBig())
	amount0Signed, amount1Signed, err := p.rangeAmounts(tickLower, tickUpper, delta)
	if err != nil {
		return nil, nil, err
	}

	pos, err := p.applyPositionChange(owner, tickLower, tickUpper, delta)
	if err != nil {
		return nil, nil, err
	}

	amount0, _ := uint256.FromBig(new(big.Int).Neg(amount0Signed))
	amount1, _ := uint256.FromBig(new(big.Int).Neg(amount1Signed))
	pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
	pos.TokensOwed1.Add(pos.TokensOwed1, amount1)

	p.logger.Debug("burn",
		zap.String("pool", p.addr.Hex()),
		zap.String("owner", owner.Hex()),
		zap.Int("tick_lower", tickLower),
		zap.Int("tick_upper", tickUpper),
		zap.String("amount", amount.Dec()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

// Collect pays out up to the requested amounts from what the position is
// owed. The pool already holds the funds, so there is no callback.
func (p *Pool) Collect(owner, recipient common.Address, tickLower, tickUpper int, amount0Requested, amount1Requested *uint256.Int) (*uint256.Int, *uint256.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if err := p.checkTicks(tickLower, tickUpper); err != nil {
		return nil, nil, err
	}

	pos := p.positions.Get(owner, tickLower, tickUpper)

	amount0 := new(uint256.Int).Set(amount0Requested)
	if amount0.Cmp(pos.TokensOwed0) > 0 {
		amount0.Set(pos.TokensOwed0)
	}
	amount1 := new(uint256.Int).Set(amount1Requested)
	if amount1.Cmp(pos.TokensOwed1) > 0 {
		amount1.Set(pos.TokensOwed1)
	}

	if !amount0.IsZero() {
		pos.TokensOwed0.Sub(pos.TokensOwed0, amount0)
		if err := p.ledger.Transfer(p.token0, p.addr, recipient, amount0); err != nil {
			pos.TokensOwed0.Add(pos.TokensOwed0, amount0)
			return nil, nil, fmt.Errorf("collect token0: %w", err)
		}
	}
	if !amount1.IsZero() {
		pos.TokensOwed1.Sub(pos.TokensOwed1, amount1)
		if err := p.ledger.Transfer(p.token1, p.addr, recipient, amount1); err != nil {
			pos.TokensOwed1.Add(pos.TokensOwed1, amount1)
			return nil, nil, fmt.Errorf("collect token1: %w", err)
		}
	}

	p.logger.Debug("collect",
		zap.String("pool", p.addr.Hex()),
		zap.String("owner", owner.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
	)
	return amount0, amount1, nil
}

// IncreaseObservationCardinalityNext grows the oracle ring's target
// capacity. Monotonic: a value at or below the current target is a no-op.
func (p *Pool) IncreaseObservationCardinalityNext(next uint16) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return ErrNotInitialized
	}

	old := p.observationCardinalityNext
	ring, updated := oracle.Grow(p.observations, old, next)
	p.observations = ring
	p.observationCardinalityNext = updated
	if updated != old {
		p.logger.Debug("observation cardinality next increased",
			zap.String("pool", p.addr.Hex()),
			zap.Uint16("old", old),
			zap.Uint16("new", updated),
		)
	}
	return nil
}

// ObserveSingle returns the cumulative tick as of secondsAgo.
func (p *Pool) ObserveSingle(secondsAgo uint32) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return 0, ErrNotInitialized
	}
	return p.observations.ObserveSingle(p.clock(), secondsAgo, p.tick,
		p.observationIndex, p.observationCardinality)
}

// Observe returns cumulative ticks for each requested age.
func (p *Pool) Observe(secondsAgos []uint32) ([]int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, ErrNotInitialized
	}
	return p.observations.Observe(p.clock(), secondsAgos, p.tick,
		p.observationIndex, p.observationCardinality)
}
