package pool

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/liquiditymath"
	"liquidityCore/internal/swapmath"
	"liquidityCore/internal/tickmath"
)

// crossing records a tick traversal discovered by the pure swap loop, along
// with the fee-growth accumulator values as of the moment it was crossed.
// Traversals are replayed against tick state only after settlement verifies.
type crossing struct {
	tick           int
	feeGrowth0X128 *uint256.Int
	feeGrowth1X128 *uint256.Int
}

// swapOutcome is everything a committed swap would change, computed without
// touching pool state. amount0/amount1 are signed from the pool's
// perspective: positive is owed to the pool, negative is paid out.
type swapOutcome struct {
	amount0             *big.Int
	amount1             *big.Int
	sqrtPriceX96        *uint256.Int
	tick                int
	liquidity           *uint256.Int
	feeGrowthGlobalX128 *uint256.Int // accumulator for the input asset
	crossings           []crossing
}

func (p *Pool) checkPriceLimit(zeroForOne bool, sqrtPriceLimitX96 *uint256.Int) error {
	if zeroForOne {
		if sqrtPriceLimitX96.Cmp(p.sqrtPriceX96) >= 0 || sqrtPriceLimitX96.Cmp(tickmath.MinSqrtRatio) <= 0 {
			return ErrInvalidPriceLimit
		}
		return nil
	}
	if sqrtPriceLimitX96.Cmp(p.sqrtPriceX96) <= 0 || sqrtPriceLimitX96.Cmp(tickmath.MaxSqrtRatio) >= 0 {
		return ErrInvalidPriceLimit
	}
	return nil
}

// nextInitializedTick scans word by word for the nearest initialized tick in
// the given direction, or reports that none remains within tick bounds.
func (p *Pool) nextInitializedTick(fromTick int, lte bool) (int, bool) {
	current := fromTick
	for {
		next, found := p.bitmap.NextInitializedTickWithinOneWord(current, p.tickSpacing, lte)
		if found {
			if next < tickmath.MinTick || next > tickmath.MaxTick {
				return 0, false
			}
			return next, true
		}
		if lte {
			if next <= tickmath.MinTick {
				return 0, false
			}
			current = next - 1
		} else {
			if next >= tickmath.MaxTick {
				return 0, false
			}
			current = next
		}
	}
}

// computeSwap runs the full swap loop without mutating the pool. Each
// iteration either consumes input, crosses an initialized tick, or
// terminates, so the loop is bounded by the number of initialized ticks.
func (p *Pool) computeSwap(zeroForOne bool, amountIn, sqrtPriceLimitX96 *uint256.Int) (swapOutcome, error) {
	state := swapOutcome{
		sqrtPriceX96: new(uint256.Int).Set(p.sqrtPriceX96),
		tick:         p.tick,
		liquidity:    new(uint256.Int).Set(p.liquidity),
	}
	if zeroForOne {
		state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.feeGrowthGlobal0X128)
	} else {
		state.feeGrowthGlobalX128 = new(uint256.Int).Set(p.feeGrowthGlobal1X128)
	}

	remaining := new(uint256.Int).Set(amountIn)
	amountOut := new(uint256.Int)

	for !remaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
		if state.liquidity.IsZero() {
			// The swap begins outside any active range: jump to the first
			// initialized tick, or fail if none exists in this direction.
			// Mid-swap exhaustion never reaches here; it errors at the
			// crossing below.
			nextTick, found := p.nextInitializedTick(state.tick, zeroForOne)
			if !found {
				return swapOutcome{}, ErrNotEnoughLiquidity
			}
			sqrtNext, err := tickmath.SqrtRatioAtTick(nextTick)
			if err != nil {
				return swapOutcome{}, err
			}
			if (zeroForOne && sqrtNext.Cmp(sqrtPriceLimitX96) < 0) ||
				(!zeroForOne && sqrtNext.Cmp(sqrtPriceLimitX96) > 0) {
				// The limit is nearer than the next depth.
				state.sqrtPriceX96 = new(uint256.Int).Set(sqrtPriceLimitX96)
				state.tick, err = tickmath.TickAtSqrtRatio(sqrtPriceLimitX96)
				if err != nil {
					return swapOutcome{}, err
				}
				break
			}
			state.sqrtPriceX96 = sqrtNext
			if err := p.crossInState(&state, nextTick, zeroForOne); err != nil {
				return swapOutcome{}, err
			}
			continue
		}

		stepStart := new(uint256.Int).Set(state.sqrtPriceX96)
		nextTick, initialized := p.bitmap.NextInitializedTickWithinOneWord(state.tick, p.tickSpacing, zeroForOne)
		if nextTick < tickmath.MinTick {
			nextTick = tickmath.MinTick
		} else if nextTick > tickmath.MaxTick {
			nextTick = tickmath.MaxTick
		}
		sqrtNextTick, err := tickmath.SqrtRatioAtTick(nextTick)
		if err != nil {
			return swapOutcome{}, err
		}

		target := sqrtNextTick
		if (zeroForOne && sqrtNextTick.Cmp(sqrtPriceLimitX96) < 0) ||
			(!zeroForOne && sqrtNextTick.Cmp(sqrtPriceLimitX96) > 0) {
			target = sqrtPriceLimitX96
		}

		step, err := swapmath.ComputeStep(state.sqrtPriceX96, target, state.liquidity, remaining, p.fee)
		if err != nil {
			return swapOutcome{}, err
		}
		state.sqrtPriceX96 = step.SqrtRatioNextX96

		consumed := new(uint256.Int).Add(step.AmountIn, step.FeeAmount)
		if consumed.Cmp(remaining) >= 0 {
			remaining.Clear()
		} else {
			remaining.Sub(remaining, consumed)
		}
		amountOut.Add(amountOut, step.AmountOut)

		if !step.FeeAmount.IsZero() {
			growth, err := fixedpoint.MulDiv(step.FeeAmount, fixedpoint.Q128, state.liquidity)
			if err != nil {
				return swapOutcome{}, err
			}
			state.feeGrowthGlobalX128.Add(state.feeGrowthGlobalX128, growth)
		}

		if state.sqrtPriceX96.Eq(sqrtNextTick) {
			if initialized {
				if err := p.crossInState(&state, nextTick, zeroForOne); err != nil {
					return swapOutcome{}, err
				}
				// Crossing out of the last active range with input left over
				// means the pool has no more depth in this direction.
				if state.liquidity.IsZero() && !remaining.IsZero() && !state.sqrtPriceX96.Eq(sqrtPriceLimitX96) {
					return swapOutcome{}, ErrNotEnoughLiquidity
				}
			} else if zeroForOne {
				state.tick = nextTick - 1
			} else {
				state.tick = nextTick
			}
		} else if !state.sqrtPriceX96.Eq(stepStart) {
			// Stopped mid-segment at the limit: recompute the tick from the
			// price directly, no crossing happened.
			state.tick, err = tickmath.TickAtSqrtRatio(state.sqrtPriceX96)
			if err != nil {
				return swapOutcome{}, err
			}
		}
	}

	consumed := new(uint256.Int).Sub(amountIn, remaining)
	if zeroForOne {
		state.amount0 = consumed.ToBig()
		state.amount1 = new(big.Int).Neg(amountOut.ToBig())
	} else {
		state.amount1 = consumed.ToBig()
		state.amount0 = new(big.Int).Neg(amountOut.ToBig())
	}
	return state, nil
}

// crossInState records the traversal of an initialized tick in the working
// state: the crossing itself is deferred, but its net liquidity takes effect
// immediately so subsequent segments price against the right depth.
func (p *Pool) crossInState(state *swapOutcome, crossedTick int, zeroForOne bool) error {
	var fg0, fg1 *uint256.Int
	if zeroForOne {
		fg0 = new(uint256.Int).Set(state.feeGrowthGlobalX128)
		fg1 = new(uint256.Int).Set(p.feeGrowthGlobal1X128)
	} else {
		fg0 = new(uint256.Int).Set(p.feeGrowthGlobal0X128)
		fg1 = new(uint256.Int).Set(state.feeGrowthGlobalX128)
	}
	state.crossings = append(state.crossings, crossing{
		tick:           crossedTick,
		feeGrowth0X128: fg0,
		feeGrowth1X128: fg1,
	})

	net := new(big.Int).Set(p.ticks.Get(crossedTick).LiquidityNet)
	if zeroForOne {
		net.Neg(net)
	}
	updated, err := liquiditymath.AddDelta(state.liquidity, net)
	if err != nil {
		return err
	}
	state.liquidity = updated

	if zeroForOne {
		state.tick = crossedTick - 1
	} else {
		state.tick = crossedTick
	}
	return nil
}

// commitSwap applies a verified outcome: replay the deferred tick crossings,
// write an oracle observation at the pre-swap tick if the tick moved, then
// store the new price, tick, liquidity and fee growth.
func (p *Pool) commitSwap(zeroForOne bool, res swapOutcome) {
	for _, c := range res.crossings {
		p.ticks.Cross(c.tick, c.feeGrowth0X128, c.feeGrowth1X128)
	}

	if res.tick != p.tick {
		p.observationIndex, p.observationCardinality = p.observations.Write(
			p.observationIndex, p.clock(), p.tick,
			p.observationCardinality, p.observationCardinalityNext)
	}

	p.sqrtPriceX96 = res.sqrtPriceX96
	p.tick = res.tick
	p.liquidity = res.liquidity
	if zeroForOne {
		p.feeGrowthGlobal0X128 = res.feeGrowthGlobalX128
	} else {
		p.feeGrowthGlobal1X128 = res.feeGrowthGlobalX128
	}
}

// Swap trades an exact input of one asset for the other, stopping early if
// the price reaches sqrtPriceLimitX96. The output is paid to the recipient
// before the callback runs; the callback must then deliver the input, which
// is verified against ledger balances before any pool state is committed.
func (p *Pool) Swap(recipient common.Address, zeroForOne bool, amountIn, sqrtPriceLimitX96 *uint256.Int, cb SwapCallback, data []byte) (*big.Int, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if err := p.checkPriceLimit(zeroForOne, sqrtPriceLimitX96); err != nil {
		return nil, nil, err
	}
	if cb == nil {
		return nil, nil, fmt.Errorf("%w: swap callback is required", ErrUnsupportedConfig)
	}

	res, err := p.computeSwap(zeroForOne, amountIn, sqrtPriceLimitX96)
	if err != nil {
		return nil, nil, err
	}

	inAsset, outAsset := p.token0, p.token1
	owedSigned, paidSigned := res.amount0, res.amount1
	if !zeroForOne {
		inAsset, outAsset = p.token1, p.token0
		owedSigned, paidSigned = res.amount1, res.amount0
	}
	owed, _ := uint256.FromBig(owedSigned)
	paid, _ := uint256.FromBig(new(big.Int).Neg(paidSigned))

	if !paid.IsZero() {
		if err := p.ledger.Transfer(outAsset, p.addr, recipient, paid); err != nil {
			return nil, nil, fmt.Errorf("swap payout: %w", err)
		}
	}

	balanceBefore := new(uint256.Int).Set(p.ledger.BalanceOf(inAsset, p.addr))
	if err := cb.OnSwapSettled(res.amount0, res.amount1, data); err != nil {
		p.refundPayout(outAsset, recipient, paid)
		return nil, nil, fmt.Errorf("swap callback: %w", err)
	}

	required := new(uint256.Int).Add(balanceBefore, owed)
	if p.ledger.BalanceOf(inAsset, p.addr).Cmp(required) < 0 {
		p.refundPayout(outAsset, recipient, paid)
		return nil, nil, ErrInsufficientInput
	}

	p.commitSwap(zeroForOne, res)

	p.logger.Debug("swap",
		zap.String("pool", p.addr.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.Bool("zero_for_one", zeroForOne),
		zap.String("amount0", res.amount0.String()),
		zap.String("amount1", res.amount1.String()),
		zap.String("sqrt_price_x96", res.sqrtPriceX96.Dec()),
		zap.Int("tick", res.tick),
	)
	return res.amount0, res.amount1, nil
}

// refundPayout claws back the optimistic output transfer after a failed
// settlement so the whole operation leaves no trace.
func (p *Pool) refundPayout(asset, recipient common.Address, amount *uint256.Int) {
	if amount.IsZero() {
		return
	}
	if err := p.ledger.Transfer(asset, recipient, p.addr, amount); err != nil {
		p.logger.Error("swap payout refund failed",
			zap.String("pool", p.addr.Hex()),
			zap.String("asset", asset.Hex()),
			zap.String("recipient", recipient.Hex()),
			zap.String("amount", amount.Dec()),
			zap.Error(err),
		)
	}
}

// Quote prices a swap without executing it: the same loop as Swap, with the
// outcome discarded instead of committed.
func (p *Pool) Quote(zeroForOne bool, amountIn, sqrtPriceLimitX96 *uint256.Int) (*big.Int, *big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return nil, nil, ErrNotInitialized
	}
	if amountIn == nil || amountIn.IsZero() {
		return nil, nil, ErrZeroAmount
	}
	if err := p.checkPriceLimit(zeroForOne, sqrtPriceLimitX96); err != nil {
		return nil, nil, err
	}

	res, err := p.computeSwap(zeroForOne, amountIn, sqrtPriceLimitX96)
	if err != nil {
		return nil, nil, err
	}
	return res.amount0, res.amount1, nil
}
