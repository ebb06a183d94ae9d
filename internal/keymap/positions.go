package keymap

import (
	"fmt"
	"math/bits"
	"strings"
)

// Position is a rail index: the white key, counted from the keyboard's first
// white key, under the rail's leftmost diatonic solenoid.
type Position int

// maxPositions bounds the rail range so a PositionSet fits in one word. An
// 88-key keyboard needs 44.
const maxPositions = 64

// PositionSet is a set of rail positions. Sets produced by a KeyMap, and any
// intersection of them, are contiguous intervals.
type PositionSet uint64

// Interval returns the set {lo..hi}. It is empty when lo > hi.
func Interval(lo, hi Position) PositionSet {
	if lo < 0 {
		lo = 0
	}
	if hi >= maxPositions {
		hi = maxPositions - 1
	}
	if lo > hi {
		return 0
	}
	width := uint(hi - lo + 1)
	var mask uint64
	if width == 64 {
		mask = ^uint64(0)
	} else {
		mask = (uint64(1) << width) - 1
	}
	return PositionSet(mask << uint(lo))
}

// Intersect returns the positions present in both sets.
func (s PositionSet) Intersect(o PositionSet) PositionSet { return s & o }

// Empty reports whether the set has no positions.
func (s PositionSet) Empty() bool { return s == 0 }

// Contains reports whether p is in the set.
func (s PositionSet) Contains(p Position) bool {
	if p < 0 || p >= maxPositions {
		return false
	}
	return s&(1<<uint(p)) != 0
}

// Len returns the number of positions in the set.
func (s PositionSet) Len() int { return bits.OnesCount64(uint64(s)) }

// Min returns the lowest position, or -1 for an empty set.
func (s PositionSet) Min() Position {
	if s == 0 {
		return -1
	}
	return Position(bits.TrailingZeros64(uint64(s)))
}

// Max returns the highest position, or -1 for an empty set.
func (s PositionSet) Max() Position {
	if s == 0 {
		return -1
	}
	return Position(63 - bits.LeadingZeros64(uint64(s)))
}

// Slice lists the positions in ascending order.
func (s PositionSet) Slice() []Position {
	out := make([]Position, 0, s.Len())
	for v := uint64(s); v != 0; v &= v - 1 {
		out = append(out, Position(bits.TrailingZeros64(v)))
	}
	return out
}

func (s PositionSet) String() string {
	if s == 0 {
		return "{}"
	}
	if s == Interval(s.Min(), s.Max()) {
		if s.Len() == 1 {
			return fmt.Sprintf("{%d}", s.Min())
		}
		return fmt.Sprintf("{%d..%d}", s.Min(), s.Max())
	}
	parts := make([]string, 0, s.Len())
	for _, p := range s.Slice() {
		parts = append(parts, fmt.Sprint(int(p)))
	}
	return "{" + strings.Join(parts, ",") + "}"
}
