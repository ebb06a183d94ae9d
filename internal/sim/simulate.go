// Package sim replays pcode into hardware-state frames and paces them out to
// a sink in real or virtual time.
package sim

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/kinematics"
	"github.com/chase3718/lou-piano/internal/pcode"
)

// Frame is the hand's state from At until the next frame.
type Frame struct {
	At        time.Duration
	Position  keymap.Position
	Solenoids [keymap.MaxSlots]bool // true = extended
}

// Extended lists the extended solenoids.
func (f Frame) Extended() []keymap.Slot {
	var out []keymap.Slot
	for i, on := range f.Solenoids {
		if on {
			out = append(out, keymap.Slot(i))
		}
	}
	return out
}

// Options configures the simulated hand.
type Options struct {
	Hand     pcode.Hand // commands for other hands are not simulated
	KeyWidth float64    // mm per white key
	Profile  kinematics.Profile
}

// ErrBadMove is returned for move targets the rail cannot reach.
var ErrBadMove = errors.New("invalid move target")

// Simulate runs commands through the hand's state machine. The first frame
// is the idle hand at position 0; every extension, retraction and one-key
// rail step adds a frame.
func Simulate(cmds []pcode.Command, opts Options) ([]Frame, error) {
	if !(opts.KeyWidth > 0) {
		return nil, fmt.Errorf("sim: key width must be positive, got %v", opts.KeyWidth)
	}
	if err := opts.Profile.Validate(); err != nil {
		return nil, err
	}

	var s scheduler
	for _, c := range cmds {
		if c.Hand != opts.Hand {
			continue
		}
		typ := evDeploy
		if c.Kind == pcode.KindMove {
			typ = evMove
		}
		s.push(event{at: c.At, typ: typ, cmd: c})
	}

	var (
		state   Frame
		frames  = []Frame{state}
		target  keymap.Position // last commanded rail position
		moveEnd time.Duration
		gen     int
		pending bool // a retract is scheduled for the current deploy
	)
	emit := func(at time.Duration) {
		state.At = at
		frames = append(frames, state)
	}

	for s.len() > 0 {
		e := s.pop()
		switch e.typ {
		case evRetract:
			if !pending || e.gen != gen {
				continue
			}
			pending = false
			state.Solenoids = [keymap.MaxSlots]bool{}
			emit(e.at)

		case evStep:
			state.Position = e.position
			emit(e.at)

		case evMove:
			if e.cmd.PositionMM < 0 {
				return nil, fmt.Errorf("%w: %dmm at %v", ErrBadMove, e.cmd.PositionMM, e.at)
			}
			dest := keymap.Position(math.Round(float64(e.cmd.PositionMM) / opts.KeyWidth))
			dist := int(dest - target)
			if dist == 0 {
				continue
			}
			dir := keymap.Position(1)
			if dist < 0 {
				dir, dist = -1, -dist
			}
			start := max(e.at, moveEnd)
			offsets := opts.Profile.Steps(opts.KeyWidth, dist)
			for k, off := range offsets {
				s.push(event{at: start + off, typ: evStep, position: target + dir*keymap.Position(k+1)})
			}
			moveEnd = start + offsets[len(offsets)-1]
			target = dest

		case evDeploy:
			if pending {
				pending = false
				state.Solenoids = [keymap.MaxSlots]bool{}
				emit(e.at)
			}
			for _, slot := range e.cmd.Chord.Slots() {
				state.Solenoids[slot] = true
			}
			emit(e.at)
			gen++
			pending = true
			s.push(event{at: e.at + e.cmd.Duration, typ: evRetract, gen: gen})
		}
	}
	return frames, nil
}
