package keymap

import (
	"fmt"
	"strconv"
)

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// PitchName renders a MIDI pitch in scientific pitch notation, e.g. 60 is
// C4 and 0 is C-1. Values outside 0..127 render as "pitch(N)".
func PitchName(pitch int) string {
	if pitch < 0 || pitch > 127 {
		return fmt.Sprintf("pitch(%d)", pitch)
	}
	return noteNames[pitch%12] + strconv.Itoa(pitch/12-1)
}

// IsWhite reports whether the pitch sits on a natural (white) key.
func IsWhite(pitch int) bool {
	switch ((pitch % 12) + 12) % 12 {
	case 1, 3, 6, 8, 10:
		return false
	}
	return true
}
