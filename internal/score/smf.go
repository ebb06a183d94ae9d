// Package score loads note events from Standard MIDI Files and YAML event
// lists.
package score

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chase3718/lou-piano/internal/plan"
)

// AllTracks and AllChannels disable the corresponding filter.
const (
	AllTracks   = -1
	AllChannels = -1
)

// defaultBPM applies until the first tempo event.
const defaultBPM = 120.0

// Options selects what to read from a MIDI file.
type Options struct {
	Track   int // track index, or AllTracks
	Channel int // 0-based channel, or AllChannels
}

// ErrTimeFormat is returned for files not timed in metric ticks.
var ErrTimeFormat = errors.New("unsupported MIDI time format")

// ReadSMF loads the notes of a Standard MIDI File.
func ReadSMF(path string, opts Options) ([]plan.Event, error) {
	s, err := smf.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("score: read %s: %w", path, err)
	}
	ticks, ok := s.TimeFormat.(smf.MetricTicks)
	if !ok {
		return nil, fmt.Errorf("%w: %v", ErrTimeFormat, s.TimeFormat)
	}
	if opts.Track != AllTracks && (opts.Track < 0 || opts.Track >= len(s.Tracks)) {
		return nil, fmt.Errorf("score: track %d out of range (file has %d)", opts.Track, len(s.Tracks))
	}
	return fromTracks(s.Tracks, ticks, opts), nil
}

type tempoChange struct {
	tick uint64
	bpm  float64
}

// tempoMap converts absolute ticks to time across tempo changes.
type tempoMap struct {
	ticks   smf.MetricTicks
	changes []tempoChange // sorted, first at tick 0
}

func newTempoMap(tracks []smf.Track, ticks smf.MetricTicks) *tempoMap {
	changes := []tempoChange{{0, defaultBPM}}
	for _, tr := range tracks {
		var abs uint64
		for _, ev := range tr {
			abs += uint64(ev.Delta)
			var bpm float64
			if ev.Message.GetMetaTempo(&bpm) && bpm > 0 {
				changes = append(changes, tempoChange{abs, bpm})
			}
		}
	}
	// a later change at the same tick wins
	sort.SliceStable(changes, func(i, j int) bool { return changes[i].tick < changes[j].tick })
	out := changes[:0]
	for _, c := range changes {
		if n := len(out); n > 0 && out[n-1].tick == c.tick {
			out[n-1] = c
			continue
		}
		out = append(out, c)
	}
	return &tempoMap{ticks: ticks, changes: out}
}

func (m *tempoMap) at(tick uint64) time.Duration {
	var total time.Duration
	for i, c := range m.changes {
		if c.tick >= tick {
			break
		}
		end := tick
		if i+1 < len(m.changes) && m.changes[i+1].tick < tick {
			end = m.changes[i+1].tick
		}
		total += m.ticks.Duration(c.bpm, uint32(end-c.tick))
	}
	return total
}

type noteKey struct{ channel, key uint8 }

type openNote struct {
	tick     uint64
	velocity uint8
}

func fromTracks(tracks []smf.Track, ticks smf.MetricTicks, opts Options) []plan.Event {
	tempo := newTempoMap(tracks, ticks)
	var events []plan.Event
	for ti, tr := range tracks {
		if opts.Track != AllTracks && ti != opts.Track {
			continue
		}
		open := map[noteKey][]openNote{}
		closeNote := func(k noteKey, on openNote, offTick uint64) {
			start := tempo.at(on.tick)
			events = append(events, plan.Event{
				Pitches:  []int{int(k.key)},
				Start:    start,
				Duration: tempo.at(offTick) - start,
				Velocity: int(on.velocity),
			})
		}

		var abs uint64
		for _, ev := range tr {
			abs += uint64(ev.Delta)
			msg := midi.Message(ev.Message)
			var ch, key, vel uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				if opts.Channel == AllChannels || int(ch) == opts.Channel {
					k := noteKey{ch, key}
					open[k] = append(open[k], openNote{abs, vel})
				}
			case msg.GetNoteEnd(&ch, &key):
				k := noteKey{ch, key}
				if q := open[k]; len(q) > 0 {
					closeNote(k, q[0], abs)
					open[k] = q[1:]
				}
			}
		}
		// notes still sounding end with the track
		for k, q := range open {
			for _, on := range q {
				closeNote(k, on, abs)
			}
		}
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].Start != events[j].Start {
			return events[i].Start < events[j].Start
		}
		return events[i].Pitches[0] < events[j].Pitches[0]
	})
	return events
}
