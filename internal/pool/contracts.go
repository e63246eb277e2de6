package pool

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

// Ledger is the external asset ledger the pool settles against. The pool
// only reads its own balance and initiates outbound transfers; inbound
// payments are verified by re-reading the balance after a callback, never
// assumed.
type Ledger interface {
	BalanceOf(asset, holder common.Address) *uint256.Int
	Transfer(asset, from, to common.Address, amount *uint256.Int) error
}

// MintCallback is implemented by mint callers. It must cause the ledger to
// credit the pool with at least the given amounts before returning.
type MintCallback interface {
	OnLiquidityReceived(amount0, amount1 *uint256.Int, data []byte) error
}

// SwapCallback is implemented by swap callers. Deltas are signed from the
// pool's perspective: the positive one is owed to the pool and must be
// delivered before the callback returns.
type SwapCallback interface {
	OnSwapSettled(amount0, amount1 *big.Int, data []byte) error
}

// FlashCallback is implemented by flash-loan callers, which must return the
// borrowed principal plus the given fees before returning.
type FlashCallback interface {
	OnFlashLoanReceived(fee0, fee1 *uint256.Int, data []byte) error
}
