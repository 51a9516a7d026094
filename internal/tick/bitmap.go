package tick

import (
	errorsmod "cosmossdk.io/errors"
	"github.com/holiman/uint256"

	"liquidityEngine/internal/bitmath"
	"liquidityEngine/internal/types"
)

// WordStore holds the 256-bit words of the initialized tick bitmap, keyed by compressed
// tick >> 8. A missing word reads as zero.
type WordStore interface {
	Word(pos int16) uint256.Int
	SetWord(pos int16, word uint256.Int)
}

// Bitmap is the plain in-memory WordStore.
type Bitmap map[int16]uint256.Int

func (b Bitmap) Word(pos int16) uint256.Int { return b[pos] }

func (b Bitmap) SetWord(pos int16, word uint256.Int) {
	if word.IsZero() {
		delete(b, pos)
		return
	}
	b[pos] = word
}

func position(compressed int32) (wordPos int16, bitPos uint8) {
	return int16(compressed >> 8), uint8(compressed)
}

// compress divides tick by the spacing, rounding toward negative infinity.
func compress(tick, tickSpacing int32) int32 {
	compressed := tick / tickSpacing
	if tick < 0 && tick%tickSpacing != 0 {
		compressed--
	}
	return compressed
}

// FlipTick toggles the initialized bit of a tick.
func FlipTick(s WordStore, tick, tickSpacing int32) error {
	if tickSpacing <= 0 || tick%tickSpacing != 0 {
		return errorsmod.Wrapf(types.ErrInvalidInput, "tick %d not a multiple of spacing %d", tick, tickSpacing)
	}
	wordPos, bitPos := position(tick / tickSpacing)
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	word := s.Word(wordPos)
	word.Xor(&word, mask)
	s.SetWord(wordPos, word)
	return nil
}

// IsInitialized reports whether the bit of tick is set.
func IsInitialized(s WordStore, tick, tickSpacing int32) bool {
	wordPos, bitPos := position(compress(tick, tickSpacing))
	word := s.Word(wordPos)
	return word.Rsh(&word, uint(bitPos)).Uint64()&1 == 1
}

// NextInitializedTickWithinOneWord returns the next initialized tick in the same word as tick,
// searching to the left (lte, ticks <= tick) or to the right (ticks > tick). When no tick is
// initialized it returns the last tick of the searched range with initialized false.
func NextInitializedTickWithinOneWord(s WordStore, tick, tickSpacing int32, lte bool) (next int32, initialized bool) {
	compressed := compress(tick, tickSpacing)

	if lte {
		wordPos, bitPos := position(compressed)
		// all bits at or right of bitPos
		mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
		mask.Add(mask, new(uint256.Int).SubUint64(mask, 1))
		word := s.Word(wordPos)
		masked := mask.And(mask, &word)

		if masked.IsZero() {
			return (compressed - int32(bitPos)) * tickSpacing, false
		}
		msb, _ := bitmath.MostSignificantBit(masked)
		return (compressed - int32(bitPos) + int32(msb)) * tickSpacing, true
	}

	wordPos, bitPos := position(compressed + 1)
	// all bits at or left of bitPos
	mask := new(uint256.Int).Lsh(uint256.NewInt(1), uint(bitPos))
	mask.SubUint64(mask, 1).Not(mask)
	word := s.Word(wordPos)
	masked := mask.And(mask, &word)

	if masked.IsZero() {
		return (compressed + 1 + int32(255-bitPos)) * tickSpacing, false
	}
	lsb, _ := bitmath.LeastSignificantBit(masked)
	return (compressed + 1 + int32(lsb) - int32(bitPos)) * tickSpacing, true
}

// NextInitializedTick searches word by word until it finds an initialized tick or passes
// bound. The bound is inclusive in the direction of the search.
func NextInitializedTick(s WordStore, tick, tickSpacing int32, lte bool, bound int32) (int32, bool) {
	for {
		next, initialized := NextInitializedTickWithinOneWord(s, tick, tickSpacing, lte)
		if lte {
			if next < bound {
				return bound, false
			}
			if initialized {
				return next, true
			}
			if next == bound {
				return bound, false
			}
			tick = next - 1
			continue
		}
		if next > bound {
			return bound, false
		}
		if initialized {
			return next, true
		}
		if next == bound {
			return bound, false
		}
		tick = next
	}
}
