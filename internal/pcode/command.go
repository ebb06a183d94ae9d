// Package pcode reads and writes the line-oriented actuation program that
// drives a piano hand:
//
//	s
//	d s<hand> n<chord> f<force> t<ms> l<ms>
//	h s<hand> p<mm> t<ms> l<ms>
//	e
//
// Deploy (d) and move (h) lines form independent streams per hand. The first
// command of a stream carries an absolute time, later ones the delta from the
// previous command of the same stream.
package pcode

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Hand selects the hand a command drives.
type Hand int

const (
	RightHand Hand = 0
	LeftHand  Hand = 1
)

func (h Hand) String() string {
	switch h {
	case RightHand:
		return "right"
	case LeftHand:
		return "left"
	}
	return fmt.Sprintf("Hand(%d)", int(h))
}

// ParseHand accepts "right", "left", "0" or "1".
func ParseHand(s string) (Hand, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "right", "0":
		return RightHand, nil
	case "left", "1":
		return LeftHand, nil
	}
	return 0, fmt.Errorf("unknown hand %q", s)
}

// Kind is the record tag of a command.
type Kind byte

const (
	KindDeploy Kind = 'd'
	KindMove   Kind = 'h'
)

func (k Kind) String() string {
	switch k {
	case KindDeploy:
		return "deploy"
	case KindMove:
		return "move"
	}
	return fmt.Sprintf("Kind(%q)", byte(k))
}

// Command is one deploy or move with an absolute time.
type Command struct {
	Kind     Kind
	Hand     Hand
	At       time.Duration
	Duration time.Duration // hold for a deploy, travel window for a move

	Chord Chord // deploy only
	Force int   // deploy only

	PositionMM int // move only
}

func (c Command) String() string {
	switch c.Kind {
	case KindDeploy:
		return fmt.Sprintf("deploy %s %s force %d at %v for %v", c.Hand, c.Chord, c.Force, c.At, c.Duration)
	case KindMove:
		return fmt.Sprintf("move %s to %dmm at %v within %v", c.Hand, c.PositionMM, c.At, c.Duration)
	}
	return fmt.Sprintf("%v at %v", c.Kind, c.At)
}

// ErrMalformed is wrapped by every decoding error.
var ErrMalformed = errors.New("malformed pcode")

// MalformedCommandError reports the offending line.
type MalformedCommandError struct {
	Line   int // 1-based
	Text   string
	Reason string
}

func (e *MalformedCommandError) Error() string {
	return fmt.Sprintf("pcode line %d %q: %s", e.Line, e.Text, e.Reason)
}

func (e *MalformedCommandError) Unwrap() error { return ErrMalformed }

// Merge orders commands by time, moves before deploys at the same instant,
// keeping the input order otherwise.
func Merge(cmds []Command) []Command {
	out := append([]Command(nil), cmds...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].At != out[j].At {
			return out[i].At < out[j].At
		}
		return out[i].Kind == KindMove && out[j].Kind == KindDeploy
	})
	return out
}
