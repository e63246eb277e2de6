package ledger

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Payer settles pool callbacks by transferring owed amounts from a funded
// account to the pool. One Payer is bound to one (account, pool) pair.
type Payer struct {
	Ledger  *Memory
	Account common.Address
	Pool    common.Address
	Token0  common.Address
	Token1  common.Address
}

// OnLiquidityReceived pays the amounts a mint requires.
func (p *Payer) OnLiquidityReceived(amount0, amount1 *uint256.Int, _ []byte) error {
	if !amount0.IsZero() {
		if err := p.Ledger.Transfer(p.Token0, p.Account, p.Pool, amount0); err != nil {
			return err
		}
	}
	if !amount1.IsZero() {
		return p.Ledger.Transfer(p.Token1, p.Account, p.Pool, amount1)
	}
	return nil
}

// OnSwapSettled pays whichever signed delta is owed to the pool.
func (p *Payer) OnSwapSettled(amount0, amount1 *big.Int, _ []byte) error {
	if amount0.Sign() > 0 {
		owed, _ := uint256.FromBig(amount0)
		return p.Ledger.Transfer(p.Token0, p.Account, p.Pool, owed)
	}
	if amount1.Sign() > 0 {
		owed, _ := uint256.FromBig(amount1)
		return p.Ledger.Transfer(p.Token1, p.Account, p.Pool, owed)
	}
	return nil
}

// FlashRepayer returns a flash loan plus fees from the borrower's account.
// Amount0 and Amount1 must be set to the borrowed principal.
type FlashRepayer struct {
	Ledger  *Memory
	Account common.Address
	Pool    common.Address
	Token0  common.Address
	Token1  common.Address
	Amount0 *uint256.Int
	Amount1 *uint256.Int
}

// OnFlashLoanReceived repays principal plus fee for both assets.
func (f *FlashRepayer) OnFlashLoanReceived(fee0, fee1 *uint256.Int, _ []byte) error {
	repay0 := new(uint256.Int).Add(f.Amount0, fee0)
	if !repay0.IsZero() {
		if err := f.Ledger.Transfer(f.Token0, f.Account, f.Pool, repay0); err != nil {
			return err
		}
	}
	repay1 := new(uint256.Int).Add(f.Amount1, fee1)
	if !repay1.IsZero() {
		return f.Ledger.Transfer(f.Token1, f.Account, f.Pool, repay1)
	}
	return nil
}
