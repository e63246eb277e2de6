package tick

import (
	"errors"
	"math/bits"

	"github.com/holiman/uint256"
)

// ErrUnalignedTick is returned when a tick is not a multiple of the spacing.
var ErrUnalignedTick = errors.New("tick not aligned to spacing")

// Bitmap indexes initialized ticks. Ticks are compressed by the spacing and
// packed 256 per word; bit b of word w is set iff compressed tick w*256+b is
// initialized.
type Bitmap map[int16]*uint256.Int

func NewBitmap() Bitmap {
	return make(Bitmap)
}

func compress(tick, spacing int) int {
	compressed := tick / spacing
	if tick < 0 && tick%spacing != 0 {
		compressed--
	}
	return compressed
}

func tickPosition(compressed int) (int16, uint) {
	return int16(compressed >> 8), uint(compressed & 0xff)
}

// FlipTick toggles the initialized bit for the tick.
func (b Bitmap) FlipTick(tick, spacing int) error {
	if tick%spacing != 0 {
		return ErrUnalignedTick
	}

	wordPos, bitPos := tickPosition(tick / spacing)
	word, ok := b[wordPos]
	if !ok {
		word = new(uint256.Int)
		b[wordPos] = word
	}

	mask := new(uint256.Int).Lsh(uint256.NewInt(1), bitPos)
	word.Xor(word, mask)
	if word.IsZero() {
		delete(b, wordPos)
	}
	return nil
}

// NextInitializedTickWithinOneWord searches the 256-tick word containing the
// given tick for the nearest initialized tick: at or below it when lte is
// true (price falling), strictly above it when lte is false (price rising).
// When the word holds no set bit in that direction, the word boundary is
// returned with initialized=false so the caller can step to it and search
// the next word.
func (b Bitmap) NextInitializedTickWithinOneWord(tick, spacing int, lte bool) (int, bool) {
	compressed := compress(tick, spacing)

	if lte {
		wordPos, bitPos := tickPosition(compressed)
		// Bits at or below the current bit position.
		mask := new(uint256.Int).Lsh(uint256.NewInt(1), bitPos+1)
		mask.SubUint64(mask, 1)
		masked := new(uint256.Int)
		if word, ok := b[wordPos]; ok {
			masked.And(word, mask)
		}

		if !masked.IsZero() {
			msb := uint(masked.BitLen() - 1)
			return (compressed - int(bitPos-msb)) * spacing, true
		}
		return (compressed - int(bitPos)) * spacing, false
	}

	// Search strictly above: start from the next compressed tick.
	wordPos, bitPos := tickPosition(compressed + 1)
	// Bits at or above the start position.
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), bitPos)
	mask.SubUint64(mask, 1)
	mask.Not(mask)
	masked := new(uint256.Int)
	if word, ok := b[wordPos]; ok {
		masked.And(word, mask)
	}

	if !masked.IsZero() {
		lsb := leastSignificantBit(masked)
		return (compressed + 1 + int(lsb-bitPos)) * spacing, true
	}
	return (compressed + 1 + int(255-bitPos)) * spacing, false
}

func leastSignificantBit(x *uint256.Int) uint {
	for i, limb := range x {
		if limb != 0 {
			return uint(i*64 + bits.TrailingZeros64(limb))
		}
	}
	return 0
}
