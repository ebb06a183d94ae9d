package plan

import (
	"fmt"
	"math"

	"github.com/chase3718/lou-piano/internal/keymap"
)

// Direction is the way the rail travels between two groups.
type Direction int

const (
	None Direction = iota
	Left
	Right
)

func (d Direction) String() string {
	switch d {
	case None:
		return "none"
	case Left:
		return "left"
	case Right:
		return "right"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// Sign is -1 for Left, +1 for Right. It panics on None: callers only ask
// for the sign of a real transition.
func (d Direction) Sign() int {
	switch d {
	case Left:
		return -1
	case Right:
		return 1
	}
	panic(fmt.Sprintf("plan: sign of direction %v", d))
}

// span returns the near (lo) and far (hi) edge of s measured along d, so that
// travelling in d always increases the coordinate.
func (d Direction) span(s keymap.PositionSet) (lo, hi int) {
	if s.Empty() {
		panic("plan: span of empty position set")
	}
	if d.Sign() > 0 {
		return int(s.Min()), int(s.Max())
	}
	return -int(s.Max()), -int(s.Min())
}

// Point is an amount of rail travel, in keys, tied to a note index.
type Point struct {
	Index int // group-local, or cluster-local once flattened
	Keys  int
}

// Group is a maximal run of consecutive notes playable from one position.
type Group struct {
	First, Last int // note indices, inclusive
	Locations   keymap.PositionSet
	In, Out     Direction

	// NeedPoints mark where, measured from the previous group's far edge,
	// the rail must have travelled further in direction In before a note
	// can be struck. The first point is always at index 0.
	NeedPoints []Point
	// FreedPoints mark where the rail may run further past this group's far
	// edge in direction Out without leaving a later note of the group.
	FreedPoints []Point
}

// Len returns the number of notes in the group.
func (g Group) Len() int { return g.Last - g.First + 1 }

// FindGroups partitions notes into groups and derives their directions and
// need/freed points.
func FindGroups(notes []PlayableNote) []Group {
	if len(notes) == 0 {
		return nil
	}
	groups := []Group{{First: 0, Last: 0, Locations: notes[0].Locations}}
	for i := 1; i < len(notes); i++ {
		g := &groups[len(groups)-1]
		if next := g.Locations.Intersect(notes[i].Locations); !next.Empty() {
			g.Last = i
			g.Locations = next
			continue
		}
		groups = append(groups, Group{First: i, Last: i, Locations: notes[i].Locations})
	}

	for i := 0; i+1 < len(groups); i++ {
		d := Left
		if groups[i+1].Locations.Min() > groups[i].Locations.Max() {
			d = Right
		}
		groups[i].Out = d
		groups[i+1].In = d
	}

	for i := range groups {
		g := &groups[i]
		members := notes[g.First : g.Last+1]
		if g.In != None {
			_, from := g.In.span(groups[i-1].Locations)
			g.NeedPoints = needPoints(members, g.In, from)
		}
		if g.Out != None {
			g.FreedPoints = freedPoints(members, g.Out, g.Locations)
		}
	}
	return groups
}

// needPoints tracks the running maximum of each note's near edge along d,
// starting from the previous group's far edge.
func needPoints(members []PlayableNote, d Direction, from int) []Point {
	var pts []Point
	reached := from
	for k, n := range members {
		lo, _ := d.span(n.Locations)
		if lo > reached {
			pts = append(pts, Point{Index: k, Keys: lo - reached})
			reached = lo
		}
	}
	if len(pts) == 0 || pts[0].Index != 0 {
		panic(fmt.Sprintf("plan: group entry %v does not start at its first note: %v", d, pts))
	}
	return pts
}

// freedPoints walks the group backwards taking the suffix minimum of each
// note's far edge along d, relative to the group's own far edge.
func freedPoints(members []PlayableNote, d Direction, locs keymap.PositionSet) []Point {
	_, exit := d.span(locs)
	room := make([]int, len(members))
	limit := math.MaxInt
	for k := len(members) - 1; k >= 0; k-- {
		_, hi := d.span(members[k].Locations)
		limit = min(limit, hi)
		room[k] = limit - exit
	}
	var pts []Point
	for k := 1; k < len(room); k++ {
		if room[k] > room[k-1] {
			pts = append(pts, Point{Index: k, Keys: room[k] - room[k-1]})
		}
	}
	return pts
}
