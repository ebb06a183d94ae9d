package plan

import (
	"fmt"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
)

// StartPosition is where the rail waits before the first note: the edge of
// the first group that leaves the most room for the first move.
func StartPosition(groups []Group) keymap.Position {
	g := groups[0]
	if g.Out == Right {
		return g.Locations.Max()
	}
	return g.Locations.Min()
}

// FindLocations applies moves cumulatively from the start position. A
// position outside its note's locations is a planner bug and panics.
func FindLocations(notes []PlayableNote, groups []Group, moves []int) []keymap.Position {
	if len(notes) == 0 {
		return nil
	}
	positions := make([]keymap.Position, len(notes))
	pos := StartPosition(groups)
	for i, n := range notes {
		if !n.Locations.Contains(pos) {
			panic(fmt.Sprintf("plan: note %d at %v placed at %d outside %v", i, n.Start, pos, n.Locations))
		}
		positions[i] = pos
		pos += keymap.Position(moves[i])
	}
	return positions
}

// FindTimeLosses returns, per note, the time the move after it takes plus
// the solenoid retraction.
func FindTimeLosses(moves []int, cost MoveCost) []time.Duration {
	losses := make([]time.Duration, len(moves))
	for i, m := range moves {
		losses[i] = cost.Travel(abs(m))
	}
	return losses
}
