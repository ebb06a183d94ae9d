// Package hw talks to the hand controller over a serial line.
package hw

import (
	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/sim"
)

const (
	SOF0          = 0xAA
	SOF1          = 0x55
	CmdApplyState = 0x20
)

// payloadLen is position (2) + solenoid mask (3) + sequence (1).
const payloadLen = 6

// EncodeFrame builds the on-wire representation of a hand state:
//
//	[SOF0][SOF1][LEN][CMD][posLo][posHi][mask0][mask1][mask2][Seq][CKS]
//
// LEN counts CMD and payload; CKS is the XOR of LEN, CMD and payload. Bit n
// of the little-endian mask is solenoid n.
func EncodeFrame(f sim.Frame, seq byte) []byte {
	var mask uint32
	for i, on := range f.Solenoids {
		if on {
			mask |= 1 << i
		}
	}
	pos := uint16(f.Position)
	payload := []byte{
		byte(pos), byte(pos >> 8),
		byte(mask), byte(mask >> 8), byte(mask >> 16),
		seq,
	}

	length := byte(len(payload) + 1) // +1 for CMD byte
	cks := length ^ CmdApplyState
	for _, b := range payload {
		cks ^= b
	}

	out := make([]byte, 0, 4+payloadLen+1)
	out = append(out, SOF0, SOF1, length, CmdApplyState)
	out = append(out, payload...)
	out = append(out, cks)
	return out
}

// ReleaseFrame returns the all-retracted state at pos, used to let go of
// every key at once.
func ReleaseFrame(pos keymap.Position) sim.Frame {
	return sim.Frame{Position: pos}
}
