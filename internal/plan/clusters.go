package plan

import (
	"math"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/kinematics"
)

// MoveCost prices rail moves against the time a note leaves free.
type MoveCost struct {
	Profile  kinematics.Profile
	KeyWidth float64       // mm per white key
	Retract  time.Duration // solenoid release before the rail may move
}

// Travel is the time a move of keys white keys costs, retraction included.
func (c MoveCost) Travel(keys int) time.Duration {
	return c.Profile.TravelTime(float64(keys)*c.KeyWidth) + c.Retract
}

// Score rates putting a move of keys keys after a note; see MoveScore.
func (c MoveCost) Score(keys int, n PlayableNote) float64 {
	return MoveScore(keys, n.Spare(), n.Duration, c.KeyWidth, c.Profile, c.Retract)
}

// MoveScore is 0 when a move of extraKeys fits in the spare time after a
// note, and otherwise the share of the note's duration the move would cut
// off. A score of 1 or more cannot be played.
func MoveScore(extraKeys int, spare, duration time.Duration, keyWidth float64, p kinematics.Profile, retract time.Duration) float64 {
	travel := p.TravelTime(float64(extraKeys)*keyWidth) + retract
	if travel < spare {
		return 0
	}
	if duration <= 0 {
		return math.Inf(1)
	}
	return float64(travel-spare) / float64(duration)
}

// Cluster is a run of groups crossed in one direction. Adjacent clusters
// share the group where the direction reverses.
type Cluster struct {
	Direction             Direction
	FirstGroup, LastGroup int
	FirstNote, LastNote   int
	Start, End            keymap.Position

	// need holds cluster-local boundaries and how many more keys must have
	// been travelled by the time each is struck. A later group's needs are
	// measured from the previous group's far edge, so its first increment
	// also covers that group's width.
	need []Point
	// bound is, per cluster-local note, the furthest the rail may be from
	// Start when that note is struck.
	bound []int
	// freed is the slack each note still has for another key of travel.
	freed []int

	// Moves holds the signed keys travelled after each cluster-local note.
	Moves []int
}

// Len returns the number of notes the cluster spans.
func (c *Cluster) Len() int { return c.LastNote - c.FirstNote + 1 }

// Distance is the total signed travel across the cluster.
func (c *Cluster) Distance() int { return int(c.End - c.Start) }

// FindClusters splits the group sequence at every direction reversal. A
// single group needs no cluster.
func FindClusters(groups []Group) []Cluster {
	var out []Cluster
	first := 0
	for i := 1; i < len(groups); i++ {
		last := i == len(groups)-1
		if last || groups[i].Out != groups[first].Out {
			out = append(out, newCluster(groups, first, i))
			first = i
		}
	}
	return out
}

func newCluster(groups []Group, a, b int) Cluster {
	d := groups[a].Out
	c := Cluster{
		Direction:  d,
		FirstGroup: a,
		LastGroup:  b,
		FirstNote:  groups[a].First,
		LastNote:   groups[b].Last,
	}
	sign := d.Sign()
	_, start := d.span(groups[a].Locations)
	end, _ := d.span(groups[b].Locations)
	c.Start = keymap.Position(sign * start)
	c.End = keymap.Position(sign * end)

	c.bound = make([]int, c.Len())
	reach := 0 // width of the previous group, 0 while leaving group a
	for gi := a; gi <= b; gi++ {
		g := groups[gi]
		base := g.First - c.FirstNote
		if gi > a {
			for k, p := range g.NeedPoints {
				keys := p.Keys
				if k == 0 {
					keys += reach
				}
				c.need = append(c.need, Point{Index: base + p.Index, Keys: keys})
			}
		}
		near, far := d.span(g.Locations)
		exit := far - start
		room, fp := 0, 0
		for k := 0; k < g.Len(); k++ {
			if gi < b && fp < len(g.FreedPoints) && g.FreedPoints[fp].Index == k {
				room += g.FreedPoints[fp].Keys
				fp++
			}
			c.bound[base+k] = exit + room
		}
		if gi > a {
			reach = far - near
		}
	}
	return c
}

// decay recomputes every note's slack from the travel assigned so far: the
// smallest margin any later note has left under its bound.
func (c *Cluster) decay(travelled []int) {
	margin := math.MaxInt
	for j := len(c.freed) - 1; j >= 0; j-- {
		if margin == math.MaxInt {
			c.freed[j] = 0
		} else {
			c.freed[j] = max(0, margin)
		}
		margin = min(margin, c.bound[j]-travelled[j])
	}
}

// optimize spreads the cluster's travel one key at a time over the notes
// before each boundary, always choosing the note the move harms least.
func (c *Cluster) optimize(index int, notes []PlayableNote, cost MoveCost) error {
	n := c.Len()
	c.Moves = make([]int, n)
	c.freed = make([]int, n)
	travelled := make([]int, n)
	c.decay(travelled)

	sign := c.Direction.Sign()
	for _, p := range c.need {
		for step := 0; step < p.Keys; step++ {
			best, bestScore := -1, math.Inf(1)
			for j := 0; j < p.Index; j++ {
				if c.freed[j] <= 0 {
					continue
				}
				sc := cost.Score(abs(c.Moves[j])+1, notes[c.FirstNote+j])
				if sc < bestScore {
					best, bestScore = j, sc
				}
			}
			if best < 0 || bestScore >= 1 {
				boundary := c.FirstNote + p.Index
				return &UnplayableError{
					Cluster: index,
					Note:    boundary,
					Start:   notes[boundary].Start,
					Score:   bestScore,
				}
			}
			c.Moves[best] += sign
			for i := best + 1; i < n; i++ {
				travelled[i]++
			}
			c.decay(travelled)
		}
	}
	return nil
}

// Optimize assigns moves within every cluster. It stops at the first cluster
// that cannot be played.
func Optimize(clusters []Cluster, notes []PlayableNote, cost MoveCost) error {
	for i := range clusters {
		if err := clusters[i].optimize(i, notes, cost); err != nil {
			return err
		}
	}
	return nil
}

// CombineClusterMoves lays every cluster's moves over one per-note list,
// summing where clusters overlap at a reversal group.
func CombineClusterMoves(clusters []Cluster, notes int) []int {
	moves := make([]int, notes)
	for _, c := range clusters {
		for j, m := range c.Moves {
			moves[c.FirstNote+j] += m
		}
	}
	return moves
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
