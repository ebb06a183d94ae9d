package sim

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/metrics"
)

// Sink receives frames as they become due.
type Sink interface {
	Send(f Frame) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Frame) error

func (fn SinkFunc) Send(f Frame) error { return fn(f) }

// Player paces frames out against a clock.
type Player struct {
	Clock   Clock   // defaults to RealClock
	Speed   float64 // playback rate; 0 means 1
	Metrics *metrics.Collector
	Logger  *slog.Logger
}

// Play sends every frame to sink at its scheduled time, measured from the
// moment Play is called. It stops early when ctx is cancelled or the sink
// fails.
func (p *Player) Play(ctx context.Context, frames []Frame, sink Sink) error {
	clock := p.Clock
	if clock == nil {
		clock = RealClock{}
	}
	speed := p.Speed
	if speed <= 0 {
		speed = 1
	}
	log := p.Logger
	if log == nil {
		log = slog.Default()
	}

	begin := clock.Now()
	log.Info("play: starting", "frames", len(frames), "speed", speed)
	for i, f := range frames {
		due := begin.Add(time.Duration(float64(f.At) / speed))
		if wait := due.Sub(clock.Now()); wait > 0 {
			select {
			case <-ctx.Done():
				log.Warn("play: cancelled", "frame", i, "err", ctx.Err())
				return ctx.Err()
			case <-clock.After(wait):
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		lag := clock.Now().Sub(due)
		if err := sink.Send(f); err != nil {
			return fmt.Errorf("play: frame %d at %v: %w", i, f.At, err)
		}
		p.Metrics.ObserveFrame(lag)
	}
	log.Info("play: done", "frames", len(frames), "took", clock.Now().Sub(begin))
	return nil
}

// LogSink writes each frame to a logger at debug level, naming the struck
// keys when a KeyMap is set.
type LogSink struct {
	Logger *slog.Logger
	KeyMap *keymap.KeyMap
}

func (s LogSink) Send(f Frame) error {
	log := s.Logger
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{"at", f.At, "position", f.Position, "solenoids", f.Extended()}
	if s.KeyMap != nil {
		var keys []string
		for _, slot := range f.Extended() {
			if pitch, ok := s.KeyMap.PitchAt(f.Position, slot); ok {
				keys = append(keys, keymap.PitchName(pitch))
			}
		}
		attrs = append(attrs, "keys", keys)
	}
	log.Debug("frame", attrs...)
	return nil
}
