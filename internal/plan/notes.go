package plan

import (
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
)

// Event is one tempo-resolved note or chord from the score.
type Event struct {
	Pitches  []int
	Start    time.Duration
	Duration time.Duration
	Velocity int
}

// PlayableNote is a chord struck by a single deploy.
type PlayableNote struct {
	Start     time.Duration
	Duration  time.Duration
	Velocity  int
	Pitches   []int // ascending
	Locations keymap.PositionSet
	NextDelay time.Duration // until the next note starts; Duration for the last note
}

// Spare is the idle time between the end of this note and the next start.
func (n PlayableNote) Spare() time.Duration { return n.NextDelay - n.Duration }

// Policy decides what happens to a pitch that shares no rail position with
// the chord it starts with.
type Policy int

const (
	// PolicyDrop leaves the pitch out and logs a warning.
	PolicyDrop Policy = iota
	// PolicySplit plays the pitch as a separate note with the same start.
	// One hand cannot be in two places at once, so the split note always
	// needs a move in zero time and the piece compiles as unplayable.
	PolicySplit
	// PolicyReject fails the compilation with *UnmergeableChordError.
	PolicyReject
)

func (p Policy) String() string {
	switch p {
	case PolicyDrop:
		return "drop"
	case PolicySplit:
		return "split"
	case PolicyReject:
		return "reject"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// ParsePolicy accepts the names printed by Policy.String.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "drop":
		return PolicyDrop, nil
	case "split":
		return PolicySplit, nil
	case "reject":
		return PolicyReject, nil
	}
	return 0, fmt.Errorf("unknown chord policy %q (want drop, split or reject)", s)
}

type chord struct {
	pitches  []int
	locs     keymap.PositionSet
	duration time.Duration
	velocity int
}

func (c *chord) add(pitch int, set keymap.PositionSet, ev Event) {
	if !slices.Contains(c.pitches, pitch) {
		c.pitches = append(c.pitches, pitch)
		c.locs = c.locs.Intersect(set)
	}
	c.duration = max(c.duration, ev.Duration)
	c.velocity = max(c.velocity, ev.Velocity)
}

// CompileNotes turns score events into the chord sequence the planner works
// on. It returns the notes and the number of pitches dropped under
// PolicyDrop.
func CompileNotes(events []Event, km *keymap.KeyMap, policy Policy, log *slog.Logger) ([]PlayableNote, int, error) {
	if log == nil {
		log = slog.Default()
	}
	sorted := make([]Event, 0, len(events))
	for i, ev := range events {
		if ev.Start < 0 || ev.Duration < 0 || ev.Velocity < 0 {
			return nil, 0, fmt.Errorf("%w: event %d: start %v, duration %v, velocity %d",
				ErrInvalidEvent, i, ev.Start, ev.Duration, ev.Velocity)
		}
		if len(ev.Pitches) == 0 {
			log.Debug("notes: skipping event without pitches", "index", i, "start", ev.Start)
			continue
		}
		sorted = append(sorted, ev)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })

	var (
		notes   []PlayableNote
		dropped int
	)
	for i := 0; i < len(sorted); {
		start := sorted[i].Start
		var chords []*chord
		for ; i < len(sorted) && sorted[i].Start == start; i++ {
			ev := sorted[i]
			for _, pitch := range ev.Pitches {
				set, err := km.PositionsFor(pitch)
				if err != nil {
					return nil, dropped, fmt.Errorf("note at %v: %w", start, err)
				}
				if home := findChord(chords, pitch, set); home != nil {
					home.add(pitch, set, ev)
					continue
				}
				if len(chords) == 0 {
					chords = append(chords, &chord{locs: set})
					chords[0].add(pitch, set, ev)
					continue
				}
				switch policy {
				case PolicyReject:
					return nil, dropped, &UnmergeableChordError{
						Pitch:   pitch,
						Start:   start,
						Pitches: slices.Sorted(slices.Values(chords[0].pitches)),
					}
				case PolicySplit:
					c := &chord{locs: set}
					c.add(pitch, set, ev)
					chords = append(chords, c)
					log.Warn("notes: pitch split into its own note",
						"pitch", keymap.PitchName(pitch), "start", start)
				default:
					dropped++
					log.Warn("notes: pitch dropped (no shared rail position with chord)",
						"pitch", keymap.PitchName(pitch), "start", start, "chord", chords[0].pitches)
				}
			}
		}
		for _, c := range chords {
			slices.Sort(c.pitches)
			notes = append(notes, PlayableNote{
				Start:     start,
				Duration:  c.duration,
				Velocity:  c.velocity,
				Pitches:   c.pitches,
				Locations: c.locs,
			})
		}
	}

	for i := range notes {
		n := &notes[i]
		if i+1 < len(notes) {
			n.NextDelay = notes[i+1].Start - n.Start
		} else {
			n.NextDelay = n.Duration
		}
		if n.Duration > n.NextDelay {
			n.Duration = n.NextDelay
		}
	}
	return notes, dropped, nil
}

// findChord returns the chord that already holds pitch, or the first one
// (main chord first, then split-off notes) whose positions overlap set.
func findChord(chords []*chord, pitch int, set keymap.PositionSet) *chord {
	for _, c := range chords {
		if slices.Contains(c.pitches, pitch) {
			return c
		}
	}
	for _, c := range chords {
		if !c.locs.Intersect(set).Empty() {
			return c
		}
	}
	return nil
}
