package score

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chase3718/lou-piano/internal/plan"
)

// EventFile is the YAML form of a tempo-resolved score.
type EventFile struct {
	Events []EventEntry `yaml:"events"`
}

// EventEntry is one note or chord; times are microseconds.
type EventEntry struct {
	Pitches    []int `yaml:"pitches"`
	StartUS    int64 `yaml:"start_us"`
	DurationUS int64 `yaml:"duration_us"`
	Velocity   int   `yaml:"velocity"`
}

// ReadYAML decodes an event list.
func ReadYAML(r io.Reader) ([]plan.Event, error) {
	var f EventFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("score: decode events: %w", err)
	}
	events := make([]plan.Event, 0, len(f.Events))
	for _, e := range f.Events {
		events = append(events, plan.Event{
			Pitches:  e.Pitches,
			Start:    time.Duration(e.StartUS) * time.Microsecond,
			Duration: time.Duration(e.DurationUS) * time.Microsecond,
			Velocity: e.Velocity,
		})
	}
	return events, nil
}

// WriteYAML encodes events in the format ReadYAML accepts.
func WriteYAML(w io.Writer, events []plan.Event) error {
	f := EventFile{Events: make([]EventEntry, 0, len(events))}
	for _, e := range events {
		f.Events = append(f.Events, EventEntry{
			Pitches:    e.Pitches,
			StartUS:    e.Start.Microseconds(),
			DurationUS: e.Duration.Microseconds(),
			Velocity:   e.Velocity,
		})
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return fmt.Errorf("score: encode events: %w", err)
	}
	return enc.Close()
}
