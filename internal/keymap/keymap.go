// Package keymap maps MIDI pitches to the rail positions from which one of the
// hand's fixed solenoids can strike them.
//
// The hand carries a row of diatonic solenoids over consecutive white keys and
// a row of chromatic solenoids over the gaps between them. With the rail at
// position p, diatonic slot i sits over white key p+i and chromatic slot
// Diatonic+k sits over the black key (if any) between white keys p+k and
// p+k+1.
package keymap

import (
	"errors"
	"fmt"
)

// MaxSlots is the number of solenoids a hand can carry.
const MaxSlots = 17

// Slot identifies one solenoid on the hand.
type Slot uint8

// Span describes the solenoid rows of the hand.
type Span struct {
	Diatonic  int `yaml:"diatonic"`
	Chromatic int `yaml:"chromatic"`
}

// DefaultSpan is the 9 + 8 solenoid hand.
var DefaultSpan = Span{Diatonic: 9, Chromatic: 8}

// Slots returns the total number of solenoids.
func (s Span) Slots() int { return s.Diatonic + s.Chromatic }

// standardFirstKeys holds the lowest MIDI pitch of each supported keyboard.
var standardFirstKeys = map[int]int{
	88: 21, // A0
	76: 28, // E1
	61: 36, // C2
	49: 36, // C2
}

// Layout configures a KeyMap.
type Layout struct {
	Keys     int  // 88, 76, 61 or 49
	FirstKey int  // MIDI pitch of the lowest key; 0 picks the standard one
	Span     Span // zero value picks DefaultSpan
}

// DefaultLayout returns the standard layout for a keyboard size.
func DefaultLayout(keys int) Layout {
	return Layout{Keys: keys, FirstKey: standardFirstKeys[keys], Span: DefaultSpan}
}

var (
	// ErrOutOfRange is returned for pitches no rail position can reach.
	ErrOutOfRange = errors.New("pitch out of range")
	// ErrLayout is returned for unusable keyboard layouts.
	ErrLayout = errors.New("invalid keyboard layout")
)

// OutOfRangeError reports a pitch outside the keyboard.
type OutOfRangeError struct {
	Pitch  int
	Lo, Hi int
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("pitch %d (%s) outside keyboard %s..%s",
		e.Pitch, PitchName(e.Pitch), PitchName(e.Lo), PitchName(e.Hi))
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

type keyInfo struct {
	white bool
	index int // white key index, or the white key left of a black key
	set   PositionSet
}

// KeyMap is the immutable pitch -> reachable positions table.
type KeyMap struct {
	layout Layout
	whites int
	maxPos Position
	keys   []keyInfo // indexed by pitch - FirstKey
	whiteP []int     // white key index -> pitch
}

// New builds the table for a layout.
func New(l Layout) (*KeyMap, error) {
	if _, ok := standardFirstKeys[l.Keys]; !ok {
		return nil, fmt.Errorf("%w: key count must be 88, 76, 61 or 49, got %d", ErrLayout, l.Keys)
	}
	if l.FirstKey == 0 {
		l.FirstKey = standardFirstKeys[l.Keys]
	}
	if l.Span == (Span{}) {
		l.Span = DefaultSpan
	}
	last := l.FirstKey + l.Keys - 1
	switch {
	case l.FirstKey < 0 || last > 127:
		return nil, fmt.Errorf("%w: keys %d..%d outside MIDI range", ErrLayout, l.FirstKey, last)
	case !IsWhite(l.FirstKey) || !IsWhite(last):
		return nil, fmt.Errorf("%w: keyboard must start and end on white keys (%s..%s)",
			ErrLayout, PitchName(l.FirstKey), PitchName(last))
	case l.Span.Diatonic < 1 || l.Span.Chromatic < 0 || l.Span.Chromatic > l.Span.Diatonic-1:
		return nil, fmt.Errorf("%w: span %d/%d", ErrLayout, l.Span.Diatonic, l.Span.Chromatic)
	case l.Span.Slots() > MaxSlots:
		return nil, fmt.Errorf("%w: span has %d solenoids, at most %d supported", ErrLayout, l.Span.Slots(), MaxSlots)
	}

	km := &KeyMap{layout: l, keys: make([]keyInfo, l.Keys)}
	w := -1
	for pitch := l.FirstKey; pitch <= last; pitch++ {
		if IsWhite(pitch) {
			w++
			km.whiteP = append(km.whiteP, pitch)
			km.keys[pitch-l.FirstKey] = keyInfo{white: true, index: w}
		} else {
			km.keys[pitch-l.FirstKey] = keyInfo{index: w}
		}
	}
	km.whites = w + 1
	km.maxPos = Position(km.whites - l.Span.Diatonic)
	if km.maxPos < 0 {
		return nil, fmt.Errorf("%w: %d white keys cannot hold %d diatonic solenoids", ErrLayout, km.whites, l.Span.Diatonic)
	}
	if km.maxPos >= maxPositions {
		return nil, fmt.Errorf("%w: %d rail positions exceed %d", ErrLayout, km.maxPos+1, maxPositions)
	}

	for i := range km.keys {
		k := &km.keys[i]
		row := l.Span.Chromatic
		if k.white {
			row = l.Span.Diatonic
		}
		// The rail stops at maxPos, so keys near the top lose the
		// high-index slots that would otherwise reach them.
		lo := Position(k.index - row + 1)
		hi := Position(k.index)
		if hi > km.maxPos {
			hi = km.maxPos
		}
		k.set = Interval(lo, hi)
		if k.set.Empty() {
			return nil, fmt.Errorf("%w: %s unreachable", ErrLayout, PitchName(l.FirstKey+i))
		}
	}
	return km, nil
}

// Layout returns the resolved layout.
func (km *KeyMap) Layout() Layout { return km.layout }

// Range returns the lowest and highest playable pitch.
func (km *KeyMap) Range() (lo, hi int) {
	return km.layout.FirstKey, km.layout.FirstKey + km.layout.Keys - 1
}

// MaxPosition returns the highest rail position.
func (km *KeyMap) MaxPosition() Position { return km.maxPos }

// WhiteKeys returns the number of white keys on the keyboard.
func (km *KeyMap) WhiteKeys() int { return km.whites }

func (km *KeyMap) lookup(pitch int) (keyInfo, error) {
	lo, hi := km.Range()
	if pitch < lo || pitch > hi {
		return keyInfo{}, &OutOfRangeError{Pitch: pitch, Lo: lo, Hi: hi}
	}
	return km.keys[pitch-lo], nil
}

// PositionsFor returns every rail position from which pitch can be struck.
func (km *KeyMap) PositionsFor(pitch int) (PositionSet, error) {
	k, err := km.lookup(pitch)
	if err != nil {
		return 0, err
	}
	return k.set, nil
}

// SlotAt returns the solenoid that strikes pitch with the rail at pos.
func (km *KeyMap) SlotAt(pitch int, pos Position) (Slot, bool) {
	k, err := km.lookup(pitch)
	if err != nil || !k.set.Contains(pos) {
		return 0, false
	}
	offset := k.index - int(pos)
	if k.white {
		return Slot(offset), true
	}
	return Slot(km.layout.Span.Diatonic + offset), true
}

// PitchAt is the inverse of SlotAt: the pitch under slot with the rail at pos.
// Chromatic slots over a gap with no black key report false.
func (km *KeyMap) PitchAt(pos Position, slot Slot) (int, bool) {
	if pos < 0 || pos > km.maxPos || int(slot) >= km.layout.Span.Slots() {
		return 0, false
	}
	if int(slot) < km.layout.Span.Diatonic {
		return km.whiteP[int(pos)+int(slot)], true
	}
	left := int(pos) + int(slot) - km.layout.Span.Diatonic
	if left+1 >= km.whites {
		return 0, false
	}
	if p := km.whiteP[left] + 1; !IsWhite(p) {
		return p, true
	}
	return 0, false
}
