// Package tickmath converts between integer tick indexes and the Q64.96
// square-root prices they represent. Price at tick t is 1.0001^t, so the
// stored value is sqrt(1.0001)^t * 2^96. The conversion is a deterministic
// bit decomposition over precomputed per-bit factors, never a runtime
// transcendental call.
package tickmath

import (
	"errors"
	"math/big"

	"github.com/holiman/uint256"

	"liquidityCore/internal/fixedpoint"
)

const (
	// MinTick and MaxTick bound every usable tick index.
	MinTick = -887272
	MaxTick = 887272
)

var (
	// MinSqrtRatio is SqrtRatioAtTick(MinTick).
	MinSqrtRatio = uint256.NewInt(4295128739)
	// MaxSqrtRatio is SqrtRatioAtTick(MaxTick). Valid sqrt prices live in
	// [MinSqrtRatio, MaxSqrtRatio).
	MaxSqrtRatio = mustFromDecimal("1461446703485210103287273052203988822378723970342")
)

var (
	ErrTickOutOfRange      = errors.New("tick out of range")
	ErrSqrtRatioOutOfRange = errors.New("sqrt ratio out of range")
)

// ratioFactors[i] is sqrt(1/1.0001)^(2^i) as a UQ128.128. ratioOne is 1 in
// the same encoding, used when bit 0 of |tick| is clear.
var (
	ratioOne     = uint256.MustFromHex("0x100000000000000000000000000000000")
	ratioFactors = [20]*uint256.Int{
		uint256.MustFromHex("0xfffcb933bd6fad37aa2d162d1a594001"),
		uint256.MustFromHex("0xfff97272373d413259a46990580e213a"),
		uint256.MustFromHex("0xfff2e50f5f656932ef12357cf3c7fdcc"),
		uint256.MustFromHex("0xffe5caca7e10e4e61c3624eaa0941cd0"),
		uint256.MustFromHex("0xffcb9843d60f6159c9db58835c926644"),
		uint256.MustFromHex("0xff973b41fa98c081472e6896dfb254c0"),
		uint256.MustFromHex("0xff2ea16466c96a3843ec78b326b52861"),
		uint256.MustFromHex("0xfe5dee046a99a2a811c461f1969c3053"),
		uint256.MustFromHex("0xfcbe86c7900a88aedcffc83b479aa3a4"),
		uint256.MustFromHex("0xf987a7253ac413176f2b074cf7815e54"),
		uint256.MustFromHex("0xf3392b0822b70005940c7a398e4b70f3"),
		uint256.MustFromHex("0xe7159475a2c29b7443b29c7fa6e889d9"),
		uint256.MustFromHex("0xd097f3bdfd2022b8845ad8f792aa5825"),
		uint256.MustFromHex("0xa9f746462d870fdf8a65dc1f90e061e5"),
		uint256.MustFromHex("0x70d869a156d2a1b890bb3df62baf32f7"),
		uint256.MustFromHex("0x31be135f97d08fd981231505542fcfa6"),
		uint256.MustFromHex("0x9aa508b5b7a84e1c677de54f3e99bc9"),
		uint256.MustFromHex("0x5d6af8dedb81196699c329225ee604"),
		uint256.MustFromHex("0x2216e584f5fa1ea926041bedfe98"),
		uint256.MustFromHex("0x48a170391f7dc42444e8fa2"),
	}
	low32Mask = uint256.NewInt(0xffffffff)

	logSqrt10001Factor = mustFromDecimal("255738958999603826347141")
	tickLowOffset      = mustBigFromDecimal("3402992956809132418596140100660247210")
	tickHighOffset     = mustBigFromDecimal("291339464771989622907027621153398088495")
)

// SqrtRatioAtTick returns sqrt(1.0001^tick) * 2^96, monotonically increasing
// in tick over [MinTick, MaxTick].
func SqrtRatioAtTick(tick int) (*uint256.Int, error) {
	if tick < MinTick || tick > MaxTick {
		return nil, ErrTickOutOfRange
	}

	absTick := tick
	if absTick < 0 {
		absTick = -absTick
	}

	ratio := new(uint256.Int)
	if absTick&1 != 0 {
		ratio.Set(ratioFactors[0])
	} else {
		ratio.Set(ratioOne)
	}
	for i := 1; i < len(ratioFactors); i++ {
		if absTick&(1<<i) != 0 {
			ratio.Mul(ratio, ratioFactors[i])
			ratio.Rsh(ratio, 128)
		}
	}

	if tick > 0 {
		ratio.Div(fixedpoint.MaxUint256, ratio)
	}

	// Down from Q128.128 to Q64.96, rounding up so the result always maps
	// back to the same tick.
	remainder := new(uint256.Int).And(ratio, low32Mask)
	ratio.Rsh(ratio, 32)
	if !remainder.IsZero() {
		ratio.Add(ratio, fixedpoint.One)
	}
	return ratio, nil
}

// TickAtSqrtRatio returns the greatest tick whose price is at most
// sqrtPriceX96. It is the exact inverse of SqrtRatioAtTick at every tick
// boundary: a fixed-point base-2 logarithm narrows the answer to two
// candidates and the forward function picks between them.
func TickAtSqrtRatio(sqrtPriceX96 *uint256.Int) (int, error) {
	if sqrtPriceX96.Cmp(MinSqrtRatio) < 0 || sqrtPriceX96.Cmp(MaxSqrtRatio) >= 0 {
		return 0, ErrSqrtRatioOutOfRange
	}

	ratio := new(uint256.Int).Lsh(sqrtPriceX96, 32)
	msb := ratio.BitLen() - 1

	r := new(uint256.Int)
	if msb >= 128 {
		r.Rsh(ratio, uint(msb-127))
	} else {
		r.Lsh(ratio, uint(127-msb))
	}

	// log2 is a signed Q64.64 value; the integer part comes from the msb and
	// fourteen squaring rounds refine the fraction, which is enough
	// precision for a one-tick-wide answer.
	log2 := big.NewInt(int64(msb) - 128)
	log2.Lsh(log2, 64)
	frac := new(big.Int)
	for i := 0; i < 14; i++ {
		r.Rsh(r.Mul(r, r), 127)
		if r.BitLen() > 128 {
			frac.SetBit(frac, 63-i, 1)
			r.Rsh(r, 1)
		}
	}
	log2.Add(log2, frac)

	logSqrt10001 := log2.Mul(log2, logSqrt10001Factor.ToBig())

	tickLow := new(big.Int).Sub(logSqrt10001, tickLowOffset)
	tickLow.Rsh(tickLow, 128)
	tickHigh := new(big.Int).Add(logSqrt10001, tickHighOffset)
	tickHigh.Rsh(tickHigh, 128)

	low := int(tickLow.Int64())
	high := int(tickHigh.Int64())
	if low == high {
		return low, nil
	}

	ratioAtHigh, err := SqrtRatioAtTick(high)
	if err != nil {
		return 0, err
	}
	if ratioAtHigh.Cmp(sqrtPriceX96) <= 0 {
		return high, nil
	}
	return low, nil
}

func mustFromDecimal(s string) *uint256.Int {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		panic(err)
	}
	return v
}

func mustBigFromDecimal(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad decimal constant: " + s)
	}
	return v
}
