package tick

import (
	"errors"
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
)

func TestUpdateFlipsOnActivation(t *testing.T) {
	m := NewMap()
	flipped, err := m.Update(60, 0, big.NewInt(100), new(uint256.Int), new(uint256.Int), fixedpoint.MaxUint128, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flipped {
		t.Fatalf("expected flip on first liquidity")
	}

	flipped, err = m.Update(60, 0, big.NewInt(50), new(uint256.Int), new(uint256.Int), fixedpoint.MaxUint128, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if flipped {
		t.Fatalf("unexpected flip on additional liquidity")
	}

	flipped, err = m.Update(60, 0, big.NewInt(-150), new(uint256.Int), new(uint256.Int), fixedpoint.MaxUint128, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !flipped {
		t.Fatalf("expected flip when all liquidity removed")
	}
}

func TestUpdateNetSign(t *testing.T) {
	m := NewMap()
	if _, err := m.Update(-60, 0, big.NewInt(100), new(uint256.Int), new(uint256.Int), fixedpoint.MaxUint128, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Update(60, 0, big.NewInt(100), new(uint256.Int), new(uint256.Int), fixedpoint.MaxUint128, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := m.Get(-60).LiquidityNet.Int64(); got != 100 {
		t.Fatalf("lower net mismatch: %d != 100", got)
	}
	if got := m.Get(60).LiquidityNet.Int64(); got != -100 {
		t.Fatalf("upper net mismatch: %d != -100", got)
	}
}

func TestUpdateSeedsOutsideGrowth(t *testing.T) {
	m := NewMap()
	global0 := uint256.NewInt(111)
	global1 := uint256.NewInt(222)

	// Activated at or below the current tick: outside snapshots seed with
	// the global accumulators.
	if _, err := m.Update(-60, 0, big.NewInt(10), global0, global1, fixedpoint.MaxUint128, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info := m.Get(-60)
	if !info.FeeGrowthOutside0X128.Eq(global0) || !info.FeeGrowthOutside1X128.Eq(global1) {
		t.Fatalf("outside growth not seeded: %s/%s", info.FeeGrowthOutside0X128.Dec(), info.FeeGrowthOutside1X128.Dec())
	}

	// Activated above the current tick: snapshots stay zero.
	if _, err := m.Update(120, 0, big.NewInt(10), global0, global1, fixedpoint.MaxUint128, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	info = m.Get(120)
	if !info.FeeGrowthOutside0X128.IsZero() || !info.FeeGrowthOutside1X128.IsZero() {
		t.Fatalf("outside growth should be zero above current tick")
	}
}

func TestUpdateGrossCap(t *testing.T) {
	m := NewMap()
	cap := uint256.NewInt(100)
	if _, err := m.Update(0, 0, big.NewInt(101), new(uint256.Int), new(uint256.Int), cap, false); !errors.Is(err, ErrLiquidityGrossOverflow) {
		t.Fatalf("expected gross overflow error, got %v", err)
	}
}

func TestCrossFlipsOutside(t *testing.T) {
	m := NewMap()
	if _, err := m.Update(60, 100, big.NewInt(40), uint256.NewInt(500), uint256.NewInt(700), fixedpoint.MaxUint128, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	net := m.Cross(60, uint256.NewInt(800), uint256.NewInt(900))
	if net.Int64() != -40 {
		t.Fatalf("net mismatch: %d != -40", net.Int64())
	}

	info := m.Get(60)
	if info.FeeGrowthOutside0X128.Uint64() != 300 {
		t.Fatalf("outside0 mismatch: %s != 300", info.FeeGrowthOutside0X128.Dec())
	}
	if info.FeeGrowthOutside1X128.Uint64() != 200 {
		t.Fatalf("outside1 mismatch: %s != 200", info.FeeGrowthOutside1X128.Dec())
	}
}

func TestFeeGrowthInsidePartition(t *testing.T) {
	m := NewMap()
	global0 := uint256.NewInt(1000)
	global1 := uint256.NewInt(2000)

	// Both boundaries below the current tick seed with the globals at
	// activation time.
	if _, err := m.Update(-60, 0, big.NewInt(10), uint256.NewInt(100), uint256.NewInt(150), fixedpoint.MaxUint128, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := m.Update(60, 100, big.NewInt(10), uint256.NewInt(400), uint256.NewInt(450), fixedpoint.MaxUint128, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Current tick inside the range: inside = global - below - above.
	inside0, inside1 := m.FeeGrowthInside(-60, 60, 0, global0, global1)
	if inside0.Uint64() != 1000-100-400 {
		t.Fatalf("inside0 mismatch: %s != 500", inside0.Dec())
	}
	if inside1.Uint64() != 2000-150-450 {
		t.Fatalf("inside1 mismatch: %s != 1400", inside1.Dec())
	}

	// Current tick above the range: growth above the upper tick no longer
	// counts as inside.
	inside0, _ = m.FeeGrowthInside(-60, 60, 100, global0, global1)
	if inside0.Uint64() != 1000-100-600 {
		t.Fatalf("inside0 above range mismatch: %s != 300", inside0.Dec())
	}
}

func TestFeeGrowthInsideWraps(t *testing.T) {
	m := NewMap()
	// Subtraction wraps rather than erroring when outside exceeds global.
	if _, err := m.Update(-60, 0, big.NewInt(10), uint256.NewInt(100), new(uint256.Int), fixedpoint.MaxUint128, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inside0, _ := m.FeeGrowthInside(-60, 60, 0, uint256.NewInt(50), new(uint256.Int))
	want := new(uint256.Int).Sub(uint256.NewInt(50), uint256.NewInt(100))
	if !inside0.Eq(want) {
		t.Fatalf("wrapping mismatch: %s != %s", inside0.Dec(), want.Dec())
	}
}

func TestClear(t *testing.T) {
	m := NewMap()
	m.Get(60)
	m.Clear(60)
	if _, ok := m[60]; ok {
		t.Fatalf("tick not cleared")
	}
}
