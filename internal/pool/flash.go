package pool

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"go.uber.org/zap"

	"liquidityCore/internal/fixedpoint"
	"liquidityCore/internal/swapmath"
)

// Flash lends the recipient any amount of both assets for the duration of
// the callback. The callback must return the principal plus a fee at the
// pool's swap fee rate; the fee is verified against ledger balances and then
// credited to in-range liquidity providers through the fee-growth
// accumulators.
func (p *Pool) Flash(recipient common.Address, amount0, amount1 *uint256.Int, cb FlashCallback, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.initialized {
		return ErrNotInitialized
	}
	if p.liquidity.IsZero() {
		return ErrNotEnoughLiquidity
	}
	if cb == nil {
		return fmt.Errorf("%w: flash callback is required", ErrUnsupportedConfig)
	}

	fee0, err := fixedpoint.MulDivRoundingUp(amount0, uint256.NewInt(uint64(p.fee)), swapmath.FeeDenominator)
	if err != nil {
		return err
	}
	fee1, err := fixedpoint.MulDivRoundingUp(amount1, uint256.NewInt(uint64(p.fee)), swapmath.FeeDenominator)
	if err != nil {
		return err
	}

	balance0Before := new(uint256.Int).Set(p.ledger.BalanceOf(p.token0, p.addr))
	balance1Before := new(uint256.Int).Set(p.ledger.BalanceOf(p.token1, p.addr))

	if !amount0.IsZero() {
		if err := p.ledger.Transfer(p.token0, p.addr, recipient, amount0); err != nil {
			return fmt.Errorf("flash payout token0: %w", err)
		}
	}
	if !amount1.IsZero() {
		if err := p.ledger.Transfer(p.token1, p.addr, recipient, amount1); err != nil {
			p.refundPayout(p.token0, recipient, amount0)
			return fmt.Errorf("flash payout token1: %w", err)
		}
	}

	if err := cb.OnFlashLoanReceived(fee0, fee1, data); err != nil {
		p.restoreBalance(p.token0, recipient, balance0Before)
		p.restoreBalance(p.token1, recipient, balance1Before)
		return fmt.Errorf("flash callback: %w", err)
	}

	required0 := new(uint256.Int).Add(balance0Before, fee0)
	required1 := new(uint256.Int).Add(balance1Before, fee1)
	balance0After := new(uint256.Int).Set(p.ledger.BalanceOf(p.token0, p.addr))
	balance1After := new(uint256.Int).Set(p.ledger.BalanceOf(p.token1, p.addr))
	if balance0After.Cmp(required0) < 0 || balance1After.Cmp(required1) < 0 {
		p.restoreBalance(p.token0, recipient, balance0Before)
		p.restoreBalance(p.token1, recipient, balance1Before)
		return ErrFlashNotRepaid
	}

	// Anything above the principal counts as paid fee, including overpayment.
	paid0 := new(uint256.Int).Sub(balance0After, balance0Before)
	paid1 := new(uint256.Int).Sub(balance1After, balance1Before)
	if !paid0.IsZero() {
		growth0, err := fixedpoint.MulDiv(paid0, fixedpoint.Q128, p.liquidity)
		if err != nil {
			return err
		}
		p.feeGrowthGlobal0X128.Add(p.feeGrowthGlobal0X128, growth0)
	}
	if !paid1.IsZero() {
		growth1, err := fixedpoint.MulDiv(paid1, fixedpoint.Q128, p.liquidity)
		if err != nil {
			return err
		}
		p.feeGrowthGlobal1X128.Add(p.feeGrowthGlobal1X128, growth1)
	}

	p.logger.Debug("flash",
		zap.String("pool", p.addr.Hex()),
		zap.String("recipient", recipient.Hex()),
		zap.String("amount0", amount0.Dec()),
		zap.String("amount1", amount1.Dec()),
		zap.String("paid0", paid0.Dec()),
		zap.String("paid1", paid1.Dec()),
	)
	return nil
}

// restoreBalance claws back from the recipient whatever is needed to bring
// the pool's balance of the asset back to target after a failed loan.
func (p *Pool) restoreBalance(asset common.Address, recipient common.Address, target *uint256.Int) {
	current := p.ledger.BalanceOf(asset, p.addr)
	if current.Cmp(target) >= 0 {
		return
	}
	p.refundPayout(asset, recipient, new(uint256.Int).Sub(target, current))
}
