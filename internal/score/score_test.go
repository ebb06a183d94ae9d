package score

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/chase3718/lou-piano/internal/plan"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

// writeSMF builds a one-track file: a C4/E4 chord for a quarter at 120 bpm,
// a tempo drop to 60 bpm, G4 for a quarter (ended by a zero-velocity note
// on), then C5 on channel 1 left sounding until the end of the track.
func writeSMF(t *testing.T) string {
	t.Helper()
	clock := smf.MetricTicks(960)
	var tr smf.Track
	tr.Add(0, smf.MetaTempo(120))
	tr.Add(0, midi.NoteOn(0, 60, 100))
	tr.Add(0, midi.NoteOn(0, 64, 80))
	tr.Add(960, midi.NoteOff(0, 60))
	tr.Add(0, midi.NoteOff(0, 64))
	tr.Add(0, smf.MetaTempo(60))
	tr.Add(0, midi.NoteOn(0, 67, 90))
	tr.Add(960, midi.NoteOn(0, 67, 0))
	tr.Add(0, midi.NoteOn(1, 72, 50))
	tr.Close(480)

	s := smf.New()
	s.TimeFormat = clock
	if err := s.Add(tr); err != nil {
		t.Fatalf("Add track: %v", err)
	}
	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo: %v", err)
	}
	path := filepath.Join(t.TempDir(), "score.mid")
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	return path
}

func TestReadSMF(t *testing.T) {
	path := writeSMF(t)
	got, err := ReadSMF(path, Options{Track: AllTracks, Channel: AllChannels})
	if err != nil {
		t.Fatalf("ReadSMF: %v", err)
	}
	want := []plan.Event{
		{Pitches: []int{60}, Start: 0, Duration: ms(500), Velocity: 100},
		{Pitches: []int{64}, Start: 0, Duration: ms(500), Velocity: 80},
		{Pitches: []int{67}, Start: ms(500), Duration: ms(1000), Velocity: 90},
		{Pitches: []int{72}, Start: ms(1500), Duration: ms(500), Velocity: 50},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("events:\n got %+v\nwant %+v", got, want)
	}
}

func TestReadSMFChannelFilter(t *testing.T) {
	got, err := ReadSMF(writeSMF(t), Options{Track: 0, Channel: 0})
	if err != nil {
		t.Fatalf("ReadSMF: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("channel 0 events = %d, want 3", len(got))
	}
	if _, err := ReadSMF(writeSMF(t), Options{Track: 4, Channel: AllChannels}); err == nil {
		t.Error("missing track accepted")
	}
}

func TestTempoMap(t *testing.T) {
	m := &tempoMap{ticks: 960, changes: []tempoChange{{0, 120}, {960, 60}}}
	for tick, want := range map[uint64]time.Duration{0: 0, 480: ms(250), 960: ms(500), 1920: ms(1500)} {
		if got := m.at(tick); got != want {
			t.Errorf("at(%d) = %v, want %v", tick, got, want)
		}
	}
}

func TestYAMLRoundTrip(t *testing.T) {
	src := `events:
  - pitches: [60, 64]
    start_us: 0
    duration_us: 500000
    velocity: 80
  - pitches: [67]
    start_us: 750000
    duration_us: 250000
    velocity: 64
`
	events, err := ReadYAML(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadYAML: %v", err)
	}
	want := []plan.Event{
		{Pitches: []int{60, 64}, Start: 0, Duration: ms(500), Velocity: 80},
		{Pitches: []int{67}, Start: ms(750), Duration: ms(250), Velocity: 64},
	}
	if !reflect.DeepEqual(events, want) {
		t.Fatalf("events = %+v", events)
	}

	var buf bytes.Buffer
	if err := WriteYAML(&buf, events); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	back, err := ReadYAML(&buf)
	if err != nil || !reflect.DeepEqual(back, want) {
		t.Fatalf("re-read = %+v, %v", back, err)
	}
}

func TestReadYAMLRejectsUnknownFields(t *testing.T) {
	if _, err := ReadYAML(strings.NewReader("events:\n  - pitch: 60\n")); err == nil {
		t.Fatal("unknown field accepted")
	}
}
