package pool

import (
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"liquidityCore/internal/ledger"
	"liquidityCore/internal/liquiditymath"
	"liquidityCore/internal/tick"
	"liquidityCore/internal/tickmath"
)

var (
	testPoolAddr = common.HexToAddress("0x00000000000000000000000000000000000000F0")
	testToken0   = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testToken1   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	alice        = common.HexToAddress("0x00000000000000000000000000000000000000A1")
	bob          = common.HexToAddress("0x00000000000000000000000000000000000000B2")
)

// sqrt(5000) in Q64.96, the price used by the reference liquidity below.
// 1517882343751509868544 units of liquidity over [84222, 86129] is worth
// roughly 1 token0 and 5000e18 token1 at that price.
var (
	sqrtPrice5000     = uint256.MustFromDecimal("5602277097478614198912276234240")
	testLiquidity     = uint256.MustFromDecimal("1517882343751509868544")
	testTickLower     = 84222
	testTickUpper     = 86129
	startingTick      = 85176
	fundingPerAccount = uint256.MustFromDecimal("10000000000000000000000000")
)

type testClock struct{ now uint32 }

func (c *testClock) Now() uint32 { return c.now }

func mustBig(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return v
}

func newTestPool(t *testing.T, fee uint32, spacing int) (*Pool, *ledger.Memory, *testClock) {
	t.Helper()
	led := ledger.NewMemory()
	clk := &testClock{now: 100}
	p, err := New(Config{
		Address:     testPoolAddr,
		Token0:      testToken0,
		Token1:      testToken1,
		Fee:         fee,
		TickSpacing: spacing,
		Ledger:      led,
		Clock:       clk.Now,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	led.Credit(testToken0, alice, fundingPerAccount)
	led.Credit(testToken1, alice, fundingPerAccount)
	return p, led, clk
}

func payerFor(led *ledger.Memory, account common.Address) *ledger.Payer {
	return &ledger.Payer{Ledger: led, Account: account, Pool: testPoolAddr, Token0: testToken0, Token1: testToken1}
}

// seedLiquidity initializes at sqrt(5000) and mints the reference position.
func seedLiquidity(t *testing.T, p *Pool, led *ledger.Memory) (*uint256.Int, *uint256.Int) {
	t.Helper()
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	amount0, amount1, err := p.Mint(alice, testTickLower, testTickUpper, testLiquidity, payerFor(led, alice), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	return amount0, amount1
}

func TestNewRejectsBadConfig(t *testing.T) {
	led := ledger.NewMemory()
	base := Config{Address: testPoolAddr, Token0: testToken0, Token1: testToken1, Fee: 3000, TickSpacing: 60, Ledger: led}

	cases := map[string]func(*Config){
		"identical assets":  func(c *Config) { c.Token1 = c.Token0 },
		"assets unordered":  func(c *Config) { c.Token0, c.Token1 = c.Token1, c.Token0 },
		"fee out of range":  func(c *Config) { c.Fee = 1_000_000 },
		"zero tick spacing": func(c *Config) { c.TickSpacing = 0 },
		"missing ledger":    func(c *Config) { c.Ledger = nil },
	}
	for name, mutate := range cases {
		cfg := base
		mutate(&cfg)
		if _, err := New(cfg); !errors.Is(err, ErrUnsupportedConfig) {
			t.Fatalf("%s: expected config error, got %v", name, err)
		}
	}
}

func TestInitializeOnce(t *testing.T) {
	p, _, _ := newTestPool(t, 3000, 1)

	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	price, tick, index, cardinality, cardinalityNext := p.Slot0()
	if !price.Eq(sqrtPrice5000) {
		t.Fatalf("price mismatch: %s", price.Dec())
	}
	if tick != startingTick {
		t.Fatalf("tick mismatch: %d != %d", tick, startingTick)
	}
	if index != 0 || cardinality != 1 || cardinalityNext != 1 {
		t.Fatalf("oracle slot mismatch: %d/%d/%d", index, cardinality, cardinalityNext)
	}

	if err := p.Initialize(sqrtPrice5000); !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("expected already-initialized error, got %v", err)
	}
}

func TestOperationsRequireInitialize(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)

	if _, _, err := p.Mint(alice, testTickLower, testTickUpper, testLiquidity, payerFor(led, alice), nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("mint: expected not-initialized error, got %v", err)
	}
	if _, _, err := p.Burn(alice, testTickLower, testTickUpper, testLiquidity); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("burn: expected not-initialized error, got %v", err)
	}
	limit := new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1)
	if _, _, err := p.Swap(bob, true, uint256.NewInt(1), limit, payerFor(led, bob), nil); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("swap: expected not-initialized error, got %v", err)
	}
	if _, err := p.Snapshot(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("snapshot: expected not-initialized error, got %v", err)
	}
}

func TestMintAmountsAndBalances(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	amount0, amount1 := seedLiquidity(t, p, led)

	// The reference position deposits ~0.9986 token0 and ~5000.2 token1,
	// both rounded up to the last digit by the mint charge.
	want0 := uint256.MustFromDecimal("998628802115141959")
	want1 := uint256.MustFromDecimal("5000209190920489524100")
	if !amount0.Eq(want0) {
		t.Fatalf("amount0 mismatch: %s != %s", amount0.Dec(), want0.Dec())
	}
	if !amount1.Eq(want1) {
		t.Fatalf("amount1 mismatch: %s != %s", amount1.Dec(), want1.Dec())
	}

	// The pool holds exactly what the mint charged.
	if got := led.BalanceOf(testToken0, testPoolAddr); !got.Eq(amount0) {
		t.Fatalf("pool balance0 mismatch: %s != %s", got.Dec(), amount0.Dec())
	}
	if got := led.BalanceOf(testToken1, testPoolAddr); !got.Eq(amount1) {
		t.Fatalf("pool balance1 mismatch: %s != %s", got.Dec(), amount1.Dec())
	}

	// The range straddles the current tick, so it is all active.
	if got := p.Liquidity(); !got.Eq(testLiquidity) {
		t.Fatalf("active liquidity mismatch: %s != %s", got.Dec(), testLiquidity.Dec())
	}
}

func TestMintRangeAboveCurrentPrice(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Price range [5001, 6250] sits entirely above the current tick, so the
	// deposit is all token0.
	tickLower, tickUpper := 85178, 87407
	sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	liq, err := liquiditymath.LiquidityForAmounts(sqrtPrice5000, sqrtLower, sqrtUpper,
		uint256.MustFromDecimal("1000000000000000000"), new(uint256.Int))
	if err != nil {
		t.Fatalf("liquidity for amounts: %v", err)
	}
	if want := uint256.MustFromDecimal("670565280937709473686"); !liq.Eq(want) {
		t.Fatalf("liquidity mismatch: %s != %s", liq.Dec(), want.Dec())
	}

	amount0, amount1, err := p.Mint(alice, tickLower, tickUpper, liq, payerFor(led, alice), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if want := uint256.MustFromDecimal("1000000000000000000"); !amount0.Eq(want) {
		t.Fatalf("amount0 mismatch: %s != %s", amount0.Dec(), want.Dec())
	}
	if !amount1.IsZero() {
		t.Fatalf("amount1 charged for a range above the price: %s", amount1.Dec())
	}
	// The range does not include the current tick, so nothing is active.
	if !p.Liquidity().IsZero() {
		t.Fatalf("inactive range credited to active liquidity: %s", p.Liquidity().Dec())
	}
}

func TestMintRangeBelowCurrentPrice(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Price range [4000, 4999] sits entirely below the current tick, so the
	// deposit is all token1.
	tickLower, tickUpper := 82944, 85174
	sqrtLower, err := tickmath.SqrtRatioAtTick(tickLower)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	sqrtUpper, err := tickmath.SqrtRatioAtTick(tickUpper)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	liq, err := liquiditymath.LiquidityForAmounts(sqrtPrice5000, sqrtLower, sqrtUpper,
		new(uint256.Int), uint256.MustFromDecimal("5000000000000000000000"))
	if err != nil {
		t.Fatalf("liquidity for amounts: %v", err)
	}
	if want := uint256.MustFromDecimal("670293788068824290806"); !liq.Eq(want) {
		t.Fatalf("liquidity mismatch: %s != %s", liq.Dec(), want.Dec())
	}

	amount0, amount1, err := p.Mint(alice, tickLower, tickUpper, liq, payerFor(led, alice), nil)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if !amount0.IsZero() {
		t.Fatalf("amount0 charged for a range below the price: %s", amount0.Dec())
	}
	// The liquidity conversion rounds down, so the charge lands three units
	// under the 5000 token1 supplied.
	if want := uint256.MustFromDecimal("4999999999999999999997"); !amount1.Eq(want) {
		t.Fatalf("amount1 mismatch: %s != %s", amount1.Dec(), want.Dec())
	}
	if !p.Liquidity().IsZero() {
		t.Fatalf("inactive range credited to active liquidity: %s", p.Liquidity().Dec())
	}
}

func TestMintValidation(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 60)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	cb := payerFor(led, alice)

	if _, _, err := p.Mint(alice, 120, 60, uint256.NewInt(1), cb, nil); !errors.Is(err, ErrInvalidTickRange) {
		t.Fatalf("inverted range: expected tick range error, got %v", err)
	}
	if _, _, err := p.Mint(alice, -30, 60, uint256.NewInt(1), cb, nil); !errors.Is(err, ErrInvalidTickRange) {
		t.Fatalf("unaligned range: expected tick range error, got %v", err)
	}
	if _, _, err := p.Mint(alice, tickmath.MinTick-60, 60, uint256.NewInt(1), cb, nil); !errors.Is(err, ErrInvalidTickRange) {
		t.Fatalf("out of bounds: expected tick range error, got %v", err)
	}
	if _, _, err := p.Mint(alice, -60, 60, new(uint256.Int), cb, nil); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("zero amount: expected zero amount error, got %v", err)
	}
	if _, _, err := p.Mint(alice, -60, 60, uint256.NewInt(1), nil, nil); !errors.Is(err, ErrUnsupportedConfig) {
		t.Fatalf("nil callback: expected config error, got %v", err)
	}
}

type noopMintCallback struct{}

func (noopMintCallback) OnLiquidityReceived(_, _ *uint256.Int, _ []byte) error { return nil }

type noopSwapCallback struct{}

func (noopSwapCallback) OnSwapSettled(_, _ *big.Int, _ []byte) error { return nil }

type noopFlashCallback struct{}

func (noopFlashCallback) OnFlashLoanReceived(_, _ *uint256.Int, _ []byte) error { return nil }

func TestMintUnpaidRollsBack(t *testing.T) {
	p, _, _ := newTestPool(t, 3000, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	_, _, err := p.Mint(alice, testTickLower, testTickUpper, testLiquidity, noopMintCallback{}, nil)
	if !errors.Is(err, ErrInsufficientMint) {
		t.Fatalf("expected insufficient mint error, got %v", err)
	}
	if !p.Liquidity().IsZero() {
		t.Fatalf("liquidity committed despite failed settlement")
	}
}

func TestMintOverCapTakesNoFunds(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Fill a narrow high range to the per-tick cap. It sits far above the
	// price, so the deposit is a few hundred units of token0.
	capAmount := new(uint256.Int).Set(p.maxLiquidityPerTick)
	if _, _, err := p.Mint(alice, 887270, 887271, capAmount, payerFor(led, alice), nil); err != nil {
		t.Fatalf("mint at cap: %v", err)
	}

	alice0 := led.BalanceOf(testToken0, alice)
	alice1 := led.BalanceOf(testToken1, alice)
	pool0 := led.BalanceOf(testToken0, testPoolAddr)

	_, _, err := p.Mint(alice, 887270, 887271, uint256.NewInt(1000), payerFor(led, alice), nil)
	if !errors.Is(err, tick.ErrLiquidityGrossOverflow) {
		t.Fatalf("expected per-tick cap error, got %v", err)
	}

	// The cap is checked before the callback, so the caller never paid.
	if got := led.BalanceOf(testToken0, alice); !got.Eq(alice0) {
		t.Fatalf("caller balance0 moved: %s != %s", got.Dec(), alice0.Dec())
	}
	if got := led.BalanceOf(testToken1, alice); !got.Eq(alice1) {
		t.Fatalf("caller balance1 moved: %s != %s", got.Dec(), alice1.Dec())
	}
	if got := led.BalanceOf(testToken0, testPoolAddr); !got.Eq(pool0) {
		t.Fatalf("pool balance0 moved: %s != %s", got.Dec(), pool0.Dec())
	}
}

func TestBurnCollectRoundTrip(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	minted0, minted1 := seedLiquidity(t, p, led)

	burned0, burned1, err := p.Burn(alice, testTickLower, testTickUpper, testLiquidity)
	if err != nil {
		t.Fatalf("burn: %v", err)
	}
	if !p.Liquidity().IsZero() {
		t.Fatalf("active liquidity not released: %s", p.Liquidity().Dec())
	}

	// Mint charges round up, burn credits round down: at most 1 unit of dust
	// per asset stays with the pool.
	dust0 := new(uint256.Int).Sub(minted0, burned0)
	dust1 := new(uint256.Int).Sub(minted1, burned1)
	if dust0.Cmp(uint256.NewInt(1)) > 0 || dust1.Cmp(uint256.NewInt(1)) > 0 {
		t.Fatalf("excessive rounding dust: %s / %s", dust0.Dec(), dust1.Dec())
	}

	// Burn moves nothing until collected.
	if got := led.BalanceOf(testToken0, testPoolAddr); !got.Eq(minted0) {
		t.Fatalf("pool balance0 moved on burn: %s", got.Dec())
	}

	max := new(uint256.Int).SetAllOne()
	collected0, collected1, err := p.Collect(alice, bob, testTickLower, testTickUpper, max, max)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if !collected0.Eq(burned0) || !collected1.Eq(burned1) {
		t.Fatalf("collect mismatch: %s/%s != %s/%s", collected0.Dec(), collected1.Dec(), burned0.Dec(), burned1.Dec())
	}
	if got := led.BalanceOf(testToken0, bob); !got.Eq(burned0) {
		t.Fatalf("recipient balance0 mismatch: %s != %s", got.Dec(), burned0.Dec())
	}

	// Nothing further is owed.
	collected0, collected1, err = p.Collect(alice, bob, testTickLower, testTickUpper, max, max)
	if err != nil {
		t.Fatalf("second collect: %v", err)
	}
	if !collected0.IsZero() || !collected1.IsZero() {
		t.Fatalf("second collect paid out: %s / %s", collected0.Dec(), collected1.Dec())
	}
}

func TestSwapExactInput(t *testing.T) {
	p, led, _ := newTestPool(t, 0, 1)
	seedLiquidity(t, p, led)
	led.Credit(testToken1, bob, fundingPerAccount)

	amountIn := uint256.MustFromDecimal("42000000000000000000")
	limit := new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)

	quote0, quote1, err := p.Quote(false, amountIn, limit)
	if err != nil {
		t.Fatalf("quote: %v", err)
	}

	poolBalance0 := led.BalanceOf(testToken0, testPoolAddr)
	amount0, amount1, err := p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	if amount0.Cmp(quote0) != 0 || amount1.Cmp(quote1) != 0 {
		t.Fatalf("quote mismatch: %s/%s != %s/%s", amount0, amount1, quote0, quote1)
	}
	if amount1.Cmp(amountIn.ToBig()) != 0 {
		t.Fatalf("input not fully consumed: %s != %s", amount1, amountIn.Dec())
	}

	// Buying 42 token1 worth of token0 around price 5000 yields about
	// 0.0084 token0.
	out0 := new(big.Int).Neg(amount0)
	if out0.Cmp(mustBig("8300000000000000")) < 0 || out0.Cmp(mustBig("8500000000000000")) > 0 {
		t.Fatalf("output out of range: %s", out0)
	}
	if got := led.BalanceOf(testToken0, bob); got.ToBig().Cmp(out0) != 0 {
		t.Fatalf("recipient balance mismatch: %s != %s", got.Dec(), out0)
	}
	wantPool0 := new(uint256.Int).Sub(poolBalance0, uint256.MustFromBig(out0))
	if got := led.BalanceOf(testToken0, testPoolAddr); !got.Eq(wantPool0) {
		t.Fatalf("pool balance mismatch: %s != %s", got.Dec(), wantPool0.Dec())
	}

	// Price and tick moved up.
	price, tick, _, _, _ := p.Slot0()
	if price.Cmp(sqrtPrice5000) <= 0 {
		t.Fatalf("price did not rise: %s", price.Dec())
	}
	if tick <= startingTick {
		t.Fatalf("tick did not rise: %d", tick)
	}
}

func TestSwapStopsAtPriceLimit(t *testing.T) {
	p, led, _ := newTestPool(t, 0, 1)
	seedLiquidity(t, p, led)
	led.Credit(testToken0, bob, fundingPerAccount)

	limit, err := tickmath.SqrtRatioAtTick(85000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amountIn := uint256.MustFromDecimal("1000000000000000000000000")
	amount0, _, err := p.Swap(bob, true, amountIn, limit, payerFor(led, bob), nil)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}

	// Only part of the input fits before the limit.
	if amount0.Cmp(amountIn.ToBig()) >= 0 {
		t.Fatalf("limit ignored: consumed %s of %s", amount0, amountIn.Dec())
	}
	price, tick, _, _, _ := p.Slot0()
	if !price.Eq(limit) {
		t.Fatalf("price mismatch: %s != %s", price.Dec(), limit.Dec())
	}
	if tick != 85000 && tick != 84999 {
		t.Fatalf("tick not at limit: %d", tick)
	}
}

func TestSwapPriceLimitValidation(t *testing.T) {
	p, led, _ := newTestPool(t, 0, 1)
	seedLiquidity(t, p, led)
	cb := payerFor(led, alice)

	// zeroForOne needs a limit strictly below the current price.
	if _, _, err := p.Swap(bob, true, uint256.NewInt(1), sqrtPrice5000, cb, nil); !errors.Is(err, ErrInvalidPriceLimit) {
		t.Fatalf("expected price limit error, got %v", err)
	}
	above := new(uint256.Int).AddUint64(sqrtPrice5000, 1)
	if _, _, err := p.Swap(bob, true, uint256.NewInt(1), above, cb, nil); !errors.Is(err, ErrInvalidPriceLimit) {
		t.Fatalf("expected price limit error, got %v", err)
	}
	below := new(uint256.Int).SubUint64(sqrtPrice5000, 1)
	if _, _, err := p.Swap(bob, false, uint256.NewInt(1), below, cb, nil); !errors.Is(err, ErrInvalidPriceLimit) {
		t.Fatalf("expected price limit error, got %v", err)
	}
	if _, _, err := p.Swap(bob, true, new(uint256.Int), below, cb, nil); !errors.Is(err, ErrZeroAmount) {
		t.Fatalf("expected zero amount error, got %v", err)
	}
}

func TestSwapWithoutLiquidity(t *testing.T) {
	p, led, _ := newTestPool(t, 0, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	led.Credit(testToken0, bob, fundingPerAccount)

	limit := new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1)
	_, _, err := p.Swap(bob, true, uint256.NewInt(1_000_000), limit, payerFor(led, bob), nil)
	if !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("expected liquidity error, got %v", err)
	}
}

func TestSwapFailsWhenLiquidityDrainsMidSwap(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	seedLiquidity(t, p, led)

	// A second range separated from the seeded one by an empty gap.
	if _, _, err := p.Mint(alice, 87000, 88000, uint256.MustFromDecimal("1000000000000000000"), payerFor(led, alice), nil); err != nil {
		t.Fatalf("mint upper range: %v", err)
	}

	led.Credit(testToken1, bob, fundingPerAccount)
	limit, err := tickmath.SqrtRatioAtTick(87500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Enough input to drain the seeded range; crossing its upper tick leaves
	// zero liquidity with input remaining, which fails the whole swap rather
	// than skipping across the gap.
	amountIn := uint256.MustFromDecimal("6000000000000000000000")
	_, _, err = p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil)
	if !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("expected liquidity error, got %v", err)
	}

	// Nothing committed.
	price, tickNow, _, _, _ := p.Slot0()
	if !price.Eq(sqrtPrice5000) || tickNow != startingTick {
		t.Fatalf("state committed despite failed swap: %s / %d", price.Dec(), tickNow)
	}
	if !p.Liquidity().Eq(testLiquidity) {
		t.Fatalf("active liquidity changed: %s", p.Liquidity().Dec())
	}
	if got := led.BalanceOf(testToken0, bob); !got.IsZero() {
		t.Fatalf("recipient received payout: %s", got.Dec())
	}
}

func TestSwapStartsOutsideActiveRange(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// The only range sits above the current tick: a buy of token0 enters it
	// before consuming anything.
	rangeLiquidity := uint256.MustFromDecimal("1000000000000000000")
	if _, _, err := p.Mint(alice, testTickUpper, 87000, rangeLiquidity, payerFor(led, alice), nil); err != nil {
		t.Fatalf("mint: %v", err)
	}

	led.Credit(testToken1, bob, fundingPerAccount)
	limit, err := tickmath.SqrtRatioAtTick(86500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amountIn := uint256.MustFromDecimal("1000000000000000000")
	amount0, amount1, err := p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil)
	if err != nil {
		t.Fatalf("swap: %v", err)
	}
	if amount1.Cmp(amountIn.ToBig()) != 0 {
		t.Fatalf("input not fully consumed: %s != %s", amount1, amountIn.Dec())
	}
	if amount0.Sign() >= 0 {
		t.Fatalf("no token0 paid out: %s", amount0)
	}

	_, tickNow, _, _, _ := p.Slot0()
	if tickNow < testTickUpper {
		t.Fatalf("tick did not enter the range: %d", tickNow)
	}
	if !p.Liquidity().Eq(rangeLiquidity) {
		t.Fatalf("active liquidity mismatch: %s != %s", p.Liquidity().Dec(), rangeLiquidity.Dec())
	}
}

func TestSwapUnpaidRollsBack(t *testing.T) {
	p, led, _ := newTestPool(t, 0, 1)
	seedLiquidity(t, p, led)

	amountIn := uint256.MustFromDecimal("42000000000000000000")
	limit := new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	_, _, err := p.Swap(bob, false, amountIn, limit, noopSwapCallback{}, nil)
	if !errors.Is(err, ErrInsufficientInput) {
		t.Fatalf("expected insufficient input error, got %v", err)
	}

	// The optimistic payout was clawed back and no state moved.
	if got := led.BalanceOf(testToken0, bob); !got.IsZero() {
		t.Fatalf("recipient kept payout: %s", got.Dec())
	}
	price, tick, _, _, _ := p.Slot0()
	if !price.Eq(sqrtPrice5000) || tick != startingTick {
		t.Fatalf("state committed despite failed settlement: %s / %d", price.Dec(), tick)
	}
}

func TestSwapCrossesIntoNextRange(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	seedLiquidity(t, p, led)

	// A second, thinner range above the seeded one.
	upperLiquidity := uint256.MustFromDecimal("1000000000000000000")
	if _, _, err := p.Mint(alice, testTickUpper, 87000, upperLiquidity, payerFor(led, alice), nil); err != nil {
		t.Fatalf("mint upper range: %v", err)
	}

	led.Credit(testToken1, bob, fundingPerAccount)
	limit, err := tickmath.SqrtRatioAtTick(86500)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	amountIn := uint256.MustFromDecimal("6000000000000000000000")
	if _, _, err := p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// The swap drained the first range, crossed its upper tick, and ended in
	// the thin range at the limit.
	_, tick, _, _, _ := p.Slot0()
	if tick < testTickUpper {
		t.Fatalf("did not cross upper tick: %d", tick)
	}
	if got := p.Liquidity(); !got.Eq(upperLiquidity) {
		t.Fatalf("active liquidity mismatch: %s != %s", got.Dec(), upperLiquidity.Dec())
	}

	// Fees accrued on the input side only.
	growth0, growth1 := p.FeeGrowthGlobal()
	if !growth0.IsZero() {
		t.Fatalf("unexpected token0 fee growth: %s", growth0.Dec())
	}
	if growth1.IsZero() {
		t.Fatalf("missing token1 fee growth")
	}
}

func TestSwapFeesCollectable(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	seedLiquidity(t, p, led)
	led.Credit(testToken1, bob, fundingPerAccount)

	amountIn := uint256.MustFromDecimal("42000000000000000000")
	limit := new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	if _, _, err := p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	// Burn one unit to refresh the position's owed fees before collecting.
	if _, _, err := p.Burn(alice, testTickLower, testTickUpper, uint256.NewInt(1)); err != nil {
		t.Fatalf("burn: %v", err)
	}

	max := new(uint256.Int).SetAllOne()
	_, collected1, err := p.Collect(alice, alice, testTickLower, testTickUpper, max, max)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	// 0.3% of 42 token1, rounded down by the fee-growth arithmetic, plus a
	// few units of principal from the one-unit burn.
	feeLow := uint256.MustFromDecimal("125000000000000000")
	feeHigh := uint256.MustFromDecimal("126100000000000000")
	if collected1.Cmp(feeLow) < 0 || collected1.Cmp(feeHigh) > 0 {
		t.Fatalf("collected fee out of range: %s", collected1.Dec())
	}
}

func TestFlashRepaid(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	seedLiquidity(t, p, led)

	amount0 := uint256.NewInt(100_000_000_000_000_000)
	amount1 := uint256.MustFromDecimal("1000000000000000000")
	fee0 := uint256.NewInt(300_000_000_000_000)
	fee1 := uint256.NewInt(3_000_000_000_000_000)
	led.Credit(testToken0, bob, fee0)
	led.Credit(testToken1, bob, fee1)

	before0 := led.BalanceOf(testToken0, testPoolAddr)
	before1 := led.BalanceOf(testToken1, testPoolAddr)

	repayer := &ledger.FlashRepayer{
		Ledger: led, Account: bob, Pool: testPoolAddr,
		Token0: testToken0, Token1: testToken1,
		Amount0: amount0, Amount1: amount1,
	}
	if err := p.Flash(bob, amount0, amount1, repayer, nil); err != nil {
		t.Fatalf("flash: %v", err)
	}

	want0 := new(uint256.Int).Add(before0, fee0)
	want1 := new(uint256.Int).Add(before1, fee1)
	if got := led.BalanceOf(testToken0, testPoolAddr); !got.Eq(want0) {
		t.Fatalf("pool balance0 mismatch: %s != %s", got.Dec(), want0.Dec())
	}
	if got := led.BalanceOf(testToken1, testPoolAddr); !got.Eq(want1) {
		t.Fatalf("pool balance1 mismatch: %s != %s", got.Dec(), want1.Dec())
	}

	growth0, growth1 := p.FeeGrowthGlobal()
	if growth0.IsZero() || growth1.IsZero() {
		t.Fatalf("flash fees not credited to fee growth: %s / %s", growth0.Dec(), growth1.Dec())
	}
}

func TestFlashNotRepaidRollsBack(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	seedLiquidity(t, p, led)

	before0 := led.BalanceOf(testToken0, testPoolAddr)
	before1 := led.BalanceOf(testToken1, testPoolAddr)

	amount0 := uint256.NewInt(100_000_000_000_000_000)
	amount1 := uint256.MustFromDecimal("1000000000000000000")
	err := p.Flash(bob, amount0, amount1, noopFlashCallback{}, nil)
	if !errors.Is(err, ErrFlashNotRepaid) {
		t.Fatalf("expected not-repaid error, got %v", err)
	}

	if got := led.BalanceOf(testToken0, testPoolAddr); !got.Eq(before0) {
		t.Fatalf("pool balance0 not restored: %s != %s", got.Dec(), before0.Dec())
	}
	if got := led.BalanceOf(testToken1, testPoolAddr); !got.Eq(before1) {
		t.Fatalf("pool balance1 not restored: %s != %s", got.Dec(), before1.Dec())
	}
	if got := led.BalanceOf(testToken0, bob); !got.IsZero() {
		t.Fatalf("borrower kept loan: %s", got.Dec())
	}

	growth0, growth1 := p.FeeGrowthGlobal()
	if !growth0.IsZero() || !growth1.IsZero() {
		t.Fatalf("fee growth credited on failed flash")
	}
}

func TestFlashRequiresLiquidity(t *testing.T) {
	p, _, _ := newTestPool(t, 3000, 1)
	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	err := p.Flash(bob, uint256.NewInt(1), uint256.NewInt(1), noopFlashCallback{}, nil)
	if !errors.Is(err, ErrNotEnoughLiquidity) {
		t.Fatalf("expected liquidity error, got %v", err)
	}
}

func TestObserveTracksTickOverTime(t *testing.T) {
	p, led, clk := newTestPool(t, 0, 1)
	seedLiquidity(t, p, led)
	led.Credit(testToken1, bob, fundingPerAccount)

	if err := p.IncreaseObservationCardinalityNext(4); err != nil {
		t.Fatalf("grow cardinality: %v", err)
	}

	// Ten seconds at the starting tick, then a swap that moves the tick
	// writes an observation for the elapsed period.
	clk.now += 10
	amountIn := uint256.MustFromDecimal("42000000000000000000")
	limit := new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	if _, _, err := p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	cumulatives, err := p.Observe([]uint32{0, 10})
	if err != nil {
		t.Fatalf("observe: %v", err)
	}
	if cumulatives[1] != 0 {
		t.Fatalf("oldest cumulative mismatch: %d != 0", cumulatives[1])
	}
	twap := (cumulatives[0] - cumulatives[1]) / 10
	if twap != int64(startingTick) {
		t.Fatalf("twap mismatch: %d != %d", twap, startingTick)
	}

	_, _, index, cardinality, cardinalityNext := p.Slot0()
	if index != 1 || cardinality != 4 || cardinalityNext != 4 {
		t.Fatalf("oracle slot mismatch: %d/%d/%d", index, cardinality, cardinalityNext)
	}
}

func TestIncreaseObservationCardinalityMonotonic(t *testing.T) {
	p, _, _ := newTestPool(t, 0, 1)
	if err := p.IncreaseObservationCardinalityNext(4); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected not-initialized error, got %v", err)
	}

	if err := p.Initialize(sqrtPrice5000); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := p.IncreaseObservationCardinalityNext(4); err != nil {
		t.Fatalf("grow: %v", err)
	}
	if err := p.IncreaseObservationCardinalityNext(2); err != nil {
		t.Fatalf("shrink request: %v", err)
	}
	_, _, _, _, cardinalityNext := p.Slot0()
	if cardinalityNext != 4 {
		t.Fatalf("cardinality next mismatch: %d != 4", cardinalityNext)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	p, led, _ := newTestPool(t, 3000, 1)
	seedLiquidity(t, p, led)
	led.Credit(testToken1, bob, fundingPerAccount)

	amountIn := uint256.MustFromDecimal("42000000000000000000")
	limit := new(uint256.Int).SubUint64(tickmath.MaxSqrtRatio, 1)
	if _, _, err := p.Swap(bob, false, amountIn, limit, payerFor(led, bob), nil); err != nil {
		t.Fatalf("swap: %v", err)
	}

	snap, err := p.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	restored, err := FromSnapshot(snap, ledger.NewMemory(), nil, nil)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}

	wantPrice, wantTick, wantIndex, wantCardinality, wantNext := p.Slot0()
	gotPrice, gotTick, gotIndex, gotCardinality, gotNext := restored.Slot0()
	if !gotPrice.Eq(wantPrice) || gotTick != wantTick ||
		gotIndex != wantIndex || gotCardinality != wantCardinality || gotNext != wantNext {
		t.Fatalf("slot0 mismatch after restore")
	}
	if !restored.Liquidity().Eq(p.Liquidity()) {
		t.Fatalf("liquidity mismatch: %s != %s", restored.Liquidity().Dec(), p.Liquidity().Dec())
	}
	wantGrowth0, wantGrowth1 := p.FeeGrowthGlobal()
	gotGrowth0, gotGrowth1 := restored.FeeGrowthGlobal()
	if !gotGrowth0.Eq(wantGrowth0) || !gotGrowth1.Eq(wantGrowth1) {
		t.Fatalf("fee growth mismatch after restore")
	}

	// The restored pool prices identically, which exercises the rebuilt tick
	// map and bitmap. Half a token0 fits well inside the seeded depth.
	verifyIn := uint256.MustFromDecimal("500000000000000000")
	quote0, quote1, err := p.Quote(true, verifyIn, new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1))
	if err != nil {
		t.Fatalf("quote: %v", err)
	}
	restored0, restored1, err := restored.Quote(true, verifyIn, new(uint256.Int).AddUint64(tickmath.MinSqrtRatio, 1))
	if err != nil {
		t.Fatalf("restored quote: %v", err)
	}
	if quote0.Cmp(restored0) != 0 || quote1.Cmp(restored1) != 0 {
		t.Fatalf("quote mismatch: %s/%s != %s/%s", quote0, quote1, restored0, restored1)
	}
}
