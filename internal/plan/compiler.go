// Package plan turns a score into rail positions for one piano hand.
//
// Notes starting together become chords. Consecutive chords playable from a
// common position form groups; runs of groups crossed in one direction form
// clusters. Within each cluster the travel the rail must cover is spread, one
// key at a time, over the notes that lose the least playing time to it.
package plan

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/metrics"
)

// Result is the movement plan for a score.
type Result struct {
	Notes     []PlayableNote
	Groups    []Group
	Clusters  []Cluster
	Moves     []int // signed keys travelled after each note
	Positions []keymap.Position
	TimeLoss  []time.Duration
	Dropped   int // pitches left out under PolicyDrop
}

// MoveKeys returns the total rail travel in keys.
func (r *Result) MoveKeys() int {
	total := 0
	for _, m := range r.Moves {
		total += abs(m)
	}
	return total
}

// Compiler runs the full planning pipeline.
type Compiler struct {
	KeyMap  *keymap.KeyMap
	Cost    MoveCost
	Policy  Policy
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Compile plans events. Errors wrap keymap.ErrOutOfRange, ErrUnplayable,
// ErrUnmergeableChord, ErrInvalidEvent or ErrNoNotes.
func (c *Compiler) Compile(events []Event) (*Result, error) {
	begin := time.Now()
	log := c.Logger
	if log == nil {
		log = slog.Default()
	}
	if err := c.Cost.Profile.Validate(); err != nil {
		return nil, err
	}

	res, err := c.compile(events, log)
	if err != nil {
		c.Metrics.IncCompileFailure(failureReason(err))
		return nil, err
	}
	c.Metrics.AddDroppedPitches(res.Dropped)
	c.Metrics.ObserveCompile(len(res.Notes), len(res.Groups), len(res.Clusters), res.MoveKeys(), time.Since(begin))
	log.Info("compile: plan ready",
		"notes", len(res.Notes),
		"groups", len(res.Groups),
		"clusters", len(res.Clusters),
		"move_keys", res.MoveKeys(),
		"dropped", res.Dropped,
		"took", time.Since(begin),
	)
	return res, nil
}

func (c *Compiler) compile(events []Event, log *slog.Logger) (*Result, error) {
	notes, dropped, err := CompileNotes(events, c.KeyMap, c.Policy, log)
	if err != nil {
		return nil, err
	}
	if len(notes) == 0 {
		return nil, ErrNoNotes
	}

	groups := FindGroups(notes)
	for i, g := range groups {
		log.Debug("compile: group",
			"index", i, "notes", fmt.Sprintf("%d..%d", g.First, g.Last),
			"locations", g.Locations, "in", g.In, "out", g.Out)
	}

	clusters := FindClusters(groups)
	if err := Optimize(clusters, notes, c.Cost); err != nil {
		return nil, err
	}
	for i, cl := range clusters {
		log.Debug("compile: cluster",
			"index", i, "direction", cl.Direction,
			"groups", fmt.Sprintf("%d..%d", cl.FirstGroup, cl.LastGroup),
			"from", cl.Start, "to", cl.End)
	}

	moves := CombineClusterMoves(clusters, len(notes))
	return &Result{
		Notes:     notes,
		Groups:    groups,
		Clusters:  clusters,
		Moves:     moves,
		Positions: FindLocations(notes, groups, moves),
		TimeLoss:  FindTimeLosses(moves, c.Cost),
		Dropped:   dropped,
	}, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, keymap.ErrOutOfRange):
		return metrics.ReasonOutOfRange
	case errors.Is(err, ErrUnplayable):
		return metrics.ReasonUnplayable
	case errors.Is(err, ErrUnmergeableChord):
		return metrics.ReasonUnmergeable
	}
	return metrics.ReasonInvalid
}
