package pcode

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chase3718/lou-piano/internal/keymap"
)

// ChordWidth is the number of slot symbols in a deploy's chord field.
const ChordWidth = 5

// alphabet renders slots 0..16; the final symbol pads unused positions.
const alphabet = "0123456789ABCDEFGH"

var padSymbol = alphabet[len(alphabet)-1]

// ErrChordTooWide is returned for chords with more than ChordWidth pitches.
var ErrChordTooWide = errors.New("chord too wide")

// Chord is the set of solenoids one deploy extends, in strike order.
type Chord struct {
	slots [ChordWidth]keymap.Slot
	n     int
}

// NewChord builds a chord from up to ChordWidth distinct slots.
func NewChord(slots ...keymap.Slot) (Chord, error) {
	var c Chord
	if len(slots) > ChordWidth {
		return c, fmt.Errorf("%w: %d slots, at most %d", ErrChordTooWide, len(slots), ChordWidth)
	}
	for _, s := range slots {
		if int(s) >= keymap.MaxSlots {
			return c, fmt.Errorf("pcode: slot %d out of range", s)
		}
		if c.Has(s) {
			return c, fmt.Errorf("pcode: slot %d repeated", s)
		}
		c.slots[c.n] = s
		c.n++
	}
	return c, nil
}

// Slots returns the chord's solenoids.
func (c Chord) Slots() []keymap.Slot { return append([]keymap.Slot(nil), c.slots[:c.n]...) }

// Len returns the number of solenoids.
func (c Chord) Len() int { return c.n }

// Has reports whether slot s is part of the chord.
func (c Chord) Has(s keymap.Slot) bool {
	for _, x := range c.slots[:c.n] {
		if x == s {
			return true
		}
	}
	return false
}

// String renders the fixed-width field, e.g. "48CHH".
func (c Chord) String() string {
	var b strings.Builder
	for i := 0; i < ChordWidth; i++ {
		if i < c.n {
			b.WriteByte(alphabet[c.slots[i]])
		} else {
			b.WriteByte(padSymbol)
		}
	}
	return b.String()
}

// ParseChord reads a chord field. Padding may only trail the slots.
func ParseChord(s string) (Chord, error) {
	if len(s) != ChordWidth {
		return Chord{}, fmt.Errorf("chord field %q must be %d symbols", s, ChordWidth)
	}
	var slots []keymap.Slot
	padded := false
	for i := 0; i < len(s); i++ {
		if s[i] == padSymbol {
			padded = true
			continue
		}
		if padded {
			return Chord{}, fmt.Errorf("chord field %q has a slot after padding", s)
		}
		idx := strings.IndexByte(alphabet, s[i])
		if idx < 0 {
			return Chord{}, fmt.Errorf("chord field %q: bad symbol %q", s, s[i])
		}
		slots = append(slots, keymap.Slot(idx))
	}
	return NewChord(slots...)
}
