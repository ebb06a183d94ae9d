package sim

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/kinematics"
	"github.com/chase3718/lou-piano/internal/metrics"
	"github.com/chase3718/lou-piano/internal/pcode"
)

var opts = Options{
	Hand:     pcode.RightHand,
	KeyWidth: 23.2,
	Profile:  kinematics.Profile{Acceleration: 3000, MaxVelocity: 300},
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func decode(t *testing.T, src string) []pcode.Command {
	t.Helper()
	cmds, err := pcode.Decode(strings.NewReader(src))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return cmds
}

func deploy(at, hold int, slots ...keymap.Slot) pcode.Command {
	c, _ := pcode.NewChord(slots...)
	return pcode.Command{Kind: pcode.KindDeploy, At: ms(at), Duration: ms(hold), Chord: c, Force: 64}
}

func move(at, mm int) pcode.Command {
	return pcode.Command{Kind: pcode.KindMove, At: ms(at), PositionMM: mm}
}

func TestSimulateProgram(t *testing.T) {
	frames, err := Simulate(decode(t, `s
h s0 p534 t100 l4900
d s0 n0HHHH f64 t5000 l500
h s0 p603 t5450 l450
d s0 n8HHHH f64 t1000 l450
e
`), opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	// idle + 23 steps + extend/retract + 3 steps + extend/retract
	if len(frames) != 31 {
		t.Fatalf("frames = %d, want 31", len(frames))
	}
	if f := frames[0]; f.At != 0 || f.Position != 0 || len(f.Extended()) != 0 {
		t.Errorf("first frame = %+v, want idle at home", f)
	}
	for i := 1; i < len(frames); i++ {
		prev, cur := frames[i-1], frames[i]
		if cur.At < prev.At {
			t.Fatalf("frame %d at %v before %v", i, cur.At, prev.At)
		}
		if d := cur.Position - prev.Position; d > 1 || d < -1 {
			t.Fatalf("frame %d jumps %d keys", i, d)
		}
	}
	if got := frames[23]; got.Position != 23 || got.At != ms(100)+opts.Profile.Steps(opts.KeyWidth, 23)[22] {
		t.Errorf("end of first move = %+v", got)
	}

	var extends []Frame
	for _, f := range frames {
		if len(f.Extended()) > 0 {
			extends = append(extends, f)
		}
	}
	if len(extends) != 2 {
		t.Fatalf("extend frames = %d, want 2", len(extends))
	}
	if e := extends[0]; e.At != ms(5000) || e.Position != 23 || !slices.Equal(e.Extended(), []keymap.Slot{0}) {
		t.Errorf("first deploy frame = %+v", e)
	}
	if e := extends[1]; e.At != ms(6000) || e.Position != 26 || !slices.Equal(e.Extended(), []keymap.Slot{8}) {
		t.Errorf("second deploy frame = %+v", e)
	}
	if last := frames[len(frames)-1]; last.At != ms(6450) || len(last.Extended()) != 0 {
		t.Errorf("last frame = %+v, want retract at 6.45s", last)
	}
}

func TestDeployFlushesPendingRetract(t *testing.T) {
	frames, err := Simulate([]pcode.Command{deploy(0, 1000, 3), deploy(500, 100, 4)}, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	type state struct {
		at    time.Duration
		slots []keymap.Slot
	}
	want := []state{{0, nil}, {0, []keymap.Slot{3}}, {ms(500), nil}, {ms(500), []keymap.Slot{4}}, {ms(600), nil}}
	if len(frames) != len(want) {
		t.Fatalf("frames = %d, want %d: %+v", len(frames), len(want), frames)
	}
	for i, w := range want {
		if frames[i].At != w.at || !slices.Equal(frames[i].Extended(), w.slots) {
			t.Errorf("frame %d = %v %v, want %v %v", i, frames[i].At, frames[i].Extended(), w.at, w.slots)
		}
	}
}

func TestMovesQueueBehindEachOther(t *testing.T) {
	frames, err := Simulate([]pcode.Command{move(0, 46), move(10, 93)}, opts)
	if err != nil {
		t.Fatalf("Simulate: %v", err)
	}
	if len(frames) != 5 {
		t.Fatalf("frames = %d, want idle + 4 steps", len(frames))
	}
	firstEnd := opts.Profile.Steps(opts.KeyWidth, 2)[1]
	if frames[2].At != firstEnd || frames[3].At <= firstEnd {
		t.Errorf("second move did not wait for the first: %v, %v", frames[2].At, frames[3].At)
	}
	if frames[4].Position != 4 {
		t.Errorf("final position = %d, want 4", frames[4].Position)
	}
}

func TestSimulateSkipsOtherHand(t *testing.T) {
	left := deploy(0, 10, 1)
	left.Hand = pcode.LeftHand
	frames, err := Simulate([]pcode.Command{left}, opts)
	if err != nil || len(frames) != 1 {
		t.Fatalf("frames = %d, err %v; want only the idle frame", len(frames), err)
	}
}

func TestSimulateRejectsBadInput(t *testing.T) {
	if _, err := Simulate(nil, Options{Profile: opts.Profile}); err == nil {
		t.Error("zero key width accepted")
	}
	if _, err := Simulate([]pcode.Command{move(0, -5)}, opts); !errors.Is(err, ErrBadMove) {
		t.Errorf("negative target err = %v", err)
	}
}

func TestPlayerPacesWithVirtualClock(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := NewVirtualClock(start)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	p := &Player{Clock: clock, Speed: 2, Metrics: m, Logger: slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))}

	var sent []time.Duration
	sink := SinkFunc(func(f Frame) error {
		sent = append(sent, clock.Now().Sub(start))
		return nil
	})
	frames := []Frame{{At: 0}, {At: ms(100)}, {At: ms(250)}}
	if err := p.Play(context.Background(), frames, sink); err != nil {
		t.Fatalf("Play: %v", err)
	}
	if want := []time.Duration{0, ms(50), ms(125)}; !slices.Equal(sent, want) {
		t.Errorf("sent at %v, want %v", sent, want)
	}
	if got := testutil.ToFloat64(m.FramesPlayed); got != 3 {
		t.Errorf("frames played = %v, want 3", got)
	}
}

func TestPlayerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Player{Clock: NewVirtualClock(time.Unix(0, 0))}
	n := 0
	err := p.Play(ctx, []Frame{{At: 0}, {At: ms(10)}}, SinkFunc(func(Frame) error { n++; return nil }))
	if !errors.Is(err, context.Canceled) || n != 0 {
		t.Fatalf("err = %v after %d frames, want Canceled before any", err, n)
	}
}

func TestPlayerReportsSinkError(t *testing.T) {
	boom := errors.New("port gone")
	p := &Player{Clock: NewVirtualClock(time.Unix(0, 0))}
	err := p.Play(context.Background(), []Frame{{At: 0}}, SinkFunc(func(Frame) error { return boom }))
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want sink error", err)
	}
}

func TestLogSinkNamesKeys(t *testing.T) {
	km, err := keymap.New(keymap.DefaultLayout(88))
	if err != nil {
		t.Fatalf("keymap.New: %v", err)
	}
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), KeyMap: km}
	f := Frame{Position: 23}
	f.Solenoids[0] = true
	if err := sink.Send(f); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !strings.Contains(buf.String(), "C4") {
		t.Errorf("log line %q does not name C4", buf.String())
	}
}
