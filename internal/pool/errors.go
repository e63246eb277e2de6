package pool

import "errors"

// Validation errors: rejected before any state mutation.
var (
	ErrUnsupportedConfig  = errors.New("unsupported pool configuration")
	ErrNotInitialized     = errors.New("pool not initialized")
	ErrAlreadyInitialized = errors.New("pool already initialized")
	ErrInvalidTickRange   = errors.New("invalid tick range")
	ErrZeroAmount         = errors.New("amount must be nonzero")
	ErrInvalidPriceLimit  = errors.New("price limit on wrong side of current price")
)

// Settlement errors: the callback did not deliver the promised funds. The
// engine computes, verifies, then commits; these surface between the verify
// and commit stages with no pool-state change.
var (
	ErrInsufficientInput = errors.New("callback did not deliver input amount")
	ErrInsufficientMint  = errors.New("callback did not deliver mint amounts")
	ErrFlashNotRepaid    = errors.New("flash loan not repaid with fee")
)

// ErrNotEnoughLiquidity distinguishes "the market has no more depth in this
// direction" from a malformed order.
var ErrNotEnoughLiquidity = errors.New("not enough liquidity for swap")
