package tick

import (
	"errors"
	"testing"
)

func TestFlipTickUnaligned(t *testing.T) {
	b := NewBitmap()
	if err := b.FlipTick(5, 60); !errors.Is(err, ErrUnalignedTick) {
		t.Fatalf("expected unaligned error, got %v", err)
	}
}

func TestFlipTickToggles(t *testing.T) {
	b := NewBitmap()
	if err := b.FlipTick(120, 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, initialized := b.NextInitializedTickWithinOneWord(120, 60, true); !initialized || got != 120 {
		t.Fatalf("flipped tick not found: got %d initialized=%v", got, initialized)
	}

	if err := b.FlipTick(120, 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, initialized := b.NextInitializedTickWithinOneWord(120, 60, true); initialized {
		t.Fatalf("tick still set after second flip")
	}
	if len(b) != 0 {
		t.Fatalf("empty word not deleted")
	}
}

func TestNextInitializedTickLte(t *testing.T) {
	b := NewBitmap()
	for _, tick := range []int{-240, 60, 300} {
		if err := b.FlipTick(tick, 60); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// At an initialized tick, lte finds the tick itself.
	if got, initialized := b.NextInitializedTickWithinOneWord(300, 60, true); !initialized || got != 300 {
		t.Fatalf("self lookup failed: got %d initialized=%v", got, initialized)
	}
	// Between initialized ticks it finds the one below.
	if got, initialized := b.NextInitializedTickWithinOneWord(299, 60, true); !initialized || got != 60 {
		t.Fatalf("at-or-below lookup failed: got %d initialized=%v", got, initialized)
	}
	// -1 compresses into the negative word, where -240 lives.
	if got, initialized := b.NextInitializedTickWithinOneWord(-1, 60, true); !initialized || got != -240 {
		t.Fatalf("negative lookup failed: got %d initialized=%v", got, initialized)
	}
}

func TestNextInitializedTickGt(t *testing.T) {
	b := NewBitmap()
	for _, tick := range []int{-240, 60, 300} {
		if err := b.FlipTick(tick, 60); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Strictly above: standing on an initialized tick skips it.
	if got, initialized := b.NextInitializedTickWithinOneWord(60, 60, false); !initialized || got != 300 {
		t.Fatalf("strictly-above lookup failed: got %d initialized=%v", got, initialized)
	}
	if got, initialized := b.NextInitializedTickWithinOneWord(-241, 60, false); !initialized || got != -240 {
		t.Fatalf("negative lookup failed: got %d initialized=%v", got, initialized)
	}
}

func TestNextInitializedTickWordBoundary(t *testing.T) {
	b := NewBitmap()

	// Empty word: the search reports the word edge, uninitialized, so the
	// caller can continue into the next word.
	got, initialized := b.NextInitializedTickWithinOneWord(0, 60, true)
	if initialized {
		t.Fatalf("found tick in empty bitmap")
	}
	if got > 0 {
		t.Fatalf("lte boundary should be at or below start: %d", got)
	}

	got, initialized = b.NextInitializedTickWithinOneWord(0, 60, false)
	if initialized {
		t.Fatalf("found tick in empty bitmap")
	}
	if got <= 0 {
		t.Fatalf("gt boundary should be above start: %d", got)
	}
}

func TestCompressNegativeFloors(t *testing.T) {
	// -1 with spacing 60 lives in compressed tick -1, not 0.
	b := NewBitmap()
	if err := b.FlipTick(-60, 60); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, initialized := b.NextInitializedTickWithinOneWord(-1, 60, true); !initialized || got != -60 {
		t.Fatalf("floor compression lookup failed: got %d initialized=%v", got, initialized)
	}
}
