package plan

import (
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	// ErrUnplayable is returned when no note can absorb a required rail move
	// within the kinematic limits.
	ErrUnplayable = errors.New("piece not playable")
	// ErrUnmergeableChord is returned under PolicyReject when a pitch cannot
	// join the chord it starts with.
	ErrUnmergeableChord = errors.New("unmergeable chord")
	// ErrInvalidEvent is returned for events with negative timing.
	ErrInvalidEvent = errors.New("invalid note event")
	// ErrNoNotes is returned when nothing is left to play.
	ErrNoNotes = errors.New("no playable notes")
)

// UnplayableError locates the boundary the optimizer could not satisfy.
type UnplayableError struct {
	Cluster int           // cluster index
	Note    int           // index of the note that needed the rail to have moved
	Start   time.Duration // start time of that note
	Score   float64       // best score found, +Inf when no note had slack left
}

func (e *UnplayableError) Error() string {
	if math.IsInf(e.Score, 1) {
		return fmt.Sprintf("piece not playable: cluster %d, note %d at %v: no note left to absorb the move",
			e.Cluster, e.Note, e.Start)
	}
	return fmt.Sprintf("piece not playable: cluster %d, note %d at %v: best move score %.3f",
		e.Cluster, e.Note, e.Start, e.Score)
}

func (e *UnplayableError) Unwrap() error { return ErrUnplayable }

// UnmergeableChordError names the pitch that could not join a chord.
type UnmergeableChordError struct {
	Pitch   int
	Start   time.Duration
	Pitches []int // pitches already in the chord
}

func (e *UnmergeableChordError) Error() string {
	return fmt.Sprintf("pitch %d at %v cannot share a rail position with chord %v", e.Pitch, e.Start, e.Pitches)
}

func (e *UnmergeableChordError) Unwrap() error { return ErrUnmergeableChord }
