package pcode

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/plan"
)

// Options controls program generation.
type Options struct {
	Hand     Hand
	PrePlay  time.Duration // first deploy, measured from program start
	PreMove  time.Duration // initial move to the first position
	Retract  time.Duration // solenoid release before the rail may move
	KeyWidth float64       // mm per white key
}

// DefaultOptions matches the reference hand.
func DefaultOptions() Options {
	return Options{
		Hand:     RightHand,
		PrePlay:  5000 * time.Millisecond,
		PreMove:  100 * time.Millisecond,
		Retract:  50 * time.Millisecond,
		KeyWidth: 23.2,
	}
}

// Program is the actuation program for one hand. Times are absolute and
// rounded to the millisecond.
type Program struct {
	Hand    Hand
	Deploys []Command
	Moves   []Command
}

// Commands returns both streams merged in execution order.
func (p *Program) Commands() []Command {
	all := make([]Command, 0, len(p.Deploys)+len(p.Moves))
	all = append(all, p.Moves...)
	all = append(all, p.Deploys...)
	return Merge(all)
}

// Build renders a movement plan as a program.
func Build(res *plan.Result, km *keymap.KeyMap, opts Options) (*Program, error) {
	if opts.PreMove > opts.PrePlay {
		return nil, fmt.Errorf("pcode: pre-move %v after pre-play %v", opts.PreMove, opts.PrePlay)
	}
	prog := &Program{Hand: opts.Hand}
	if len(res.Notes) == 0 {
		return prog, nil
	}

	prog.Moves = append(prog.Moves, Command{
		Kind:       KindMove,
		Hand:       opts.Hand,
		At:         roundMS(opts.PreMove),
		Duration:   roundMS(opts.PrePlay - opts.PreMove),
		PositionMM: toMM(res.Positions[0], opts.KeyWidth),
	})

	origin := res.Notes[0].Start
	for i, n := range res.Notes {
		pos := res.Positions[i]
		slots := make([]keymap.Slot, 0, len(n.Pitches))
		for _, p := range n.Pitches {
			s, ok := km.SlotAt(p, pos)
			if !ok {
				panic(fmt.Sprintf("pcode: %s not reachable from planned position %d", keymap.PitchName(p), pos))
			}
			slots = append(slots, s)
		}
		chord, err := NewChord(slots...)
		if err != nil {
			return nil, fmt.Errorf("note %d at %v: %w", i, n.Start, err)
		}

		at := opts.PrePlay + (n.Start - origin)
		hold := n.Duration - max(0, res.TimeLoss[i]-n.Spare())
		hold = max(0, hold)
		prog.Deploys = append(prog.Deploys, Command{
			Kind:     KindDeploy,
			Hand:     opts.Hand,
			At:       roundMS(at),
			Duration: roundMS(hold),
			Chord:    chord,
			Force:    n.Velocity,
		})

		if res.Moves[i] == 0 {
			continue
		}
		window := n.NextDelay - hold
		prog.Moves = append(prog.Moves, Command{
			Kind:       KindMove,
			Hand:       opts.Hand,
			At:         roundMS(at + hold + opts.Retract),
			Duration:   roundMS(max(0, window-opts.Retract)),
			PositionMM: toMM(res.Positions[i+1], opts.KeyWidth),
		})
	}
	return prog, nil
}

// Encode writes the program in execution order.
func (p *Program) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "s")
	last := map[Kind]time.Duration{}
	seen := map[Kind]bool{}
	for _, c := range p.Commands() {
		delta := c.At
		if seen[c.Kind] {
			delta = c.At - last[c.Kind]
		}
		seen[c.Kind] = true
		last[c.Kind] = c.At
		switch c.Kind {
		case KindDeploy:
			fmt.Fprintf(bw, "d s%d n%s f%d t%d l%d\n", c.Hand, c.Chord, c.Force, delta.Milliseconds(), c.Duration.Milliseconds())
		case KindMove:
			fmt.Fprintf(bw, "h s%d p%d t%d l%d\n", c.Hand, c.PositionMM, delta.Milliseconds(), c.Duration.Milliseconds())
		}
	}
	fmt.Fprintln(bw, "e")
	return bw.Flush()
}

func roundMS(d time.Duration) time.Duration { return d.Round(time.Millisecond) }

func toMM(pos keymap.Position, keyWidth float64) int {
	return int(math.Round(float64(pos) * keyWidth))
}
