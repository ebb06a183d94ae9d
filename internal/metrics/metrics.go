// Package metrics exposes Prometheus collectors for compilation and playback.
// A nil *Collector is valid and records nothing.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons used as the "reason" label of lou_piano_compile_failures_total.
const (
	ReasonOutOfRange  = "out_of_range"
	ReasonUnplayable  = "unplayable"
	ReasonUnmergeable = "unmergeable_chord"
	ReasonInvalid     = "invalid_input"
)

// Collector holds the compile and playback metrics.
type Collector struct {
	gatherer prometheus.Gatherer

	CompiledNotes   prometheus.Counter
	PlannedGroups   prometheus.Counter
	PlannedClusters prometheus.Counter
	MoveKeys        prometheus.Counter
	DroppedPitches  prometheus.Counter
	CompileFailures *prometheus.CounterVec
	CompileDuration prometheus.Histogram

	FramesPlayed prometheus.Counter
	PlaybackLag  prometheus.Histogram
}

// New registers the collectors against reg, or the default registerer when
// reg is nil. Registering twice against the same registry reuses the
// existing collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}
	c := &Collector{gatherer: gatherer}

	counters := []struct {
		dst  *prometheus.Counter
		name string
		help string
	}{
		{&c.CompiledNotes, "lou_piano_compiled_notes_total", "Playable notes (chords) produced by the note compiler."},
		{&c.PlannedGroups, "lou_piano_planned_groups_total", "Zero-movement groups produced by the group planner."},
		{&c.PlannedClusters, "lou_piano_planned_clusters_total", "Single-direction clusters optimized."},
		{&c.MoveKeys, "lou_piano_move_keys_total", "Rail travel assigned by the optimizer, in keys."},
		{&c.DroppedPitches, "lou_piano_dropped_pitches_total", "Pitches dropped because they could not join a chord."},
		{&c.FramesPlayed, "lou_piano_frames_played_total", "Frames forwarded to a playback sink."},
	}
	for _, cc := range counters {
		counter, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Name: cc.name,
			Help: cc.help,
		}), cc.name)
		if err != nil {
			return nil, err
		}
		*cc.dst = counter
	}

	failures, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lou_piano_compile_failures_total",
		Help: "Compilations that failed, by reason.",
	}, []string{"reason"}), "lou_piano_compile_failures_total")
	if err != nil {
		return nil, err
	}
	c.CompileFailures = failures

	c.CompileDuration, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lou_piano_compile_duration_seconds",
		Help:    "Wall time spent compiling a score.",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}), "lou_piano_compile_duration_seconds")
	if err != nil {
		return nil, err
	}

	c.PlaybackLag, err = registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "lou_piano_playback_lag_seconds",
		Help:    "How late each frame reached its sink relative to its schedule.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.002, 0.005, 0.01, 0.05},
	}), "lou_piano_playback_lag_seconds")
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Gatherer returns the gatherer associated with the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	gatherer := c.Gatherer()
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// ObserveCompile records the outcome of one successful compilation.
func (c *Collector) ObserveCompile(notes, groups, clusters, moveKeys int, took time.Duration) {
	if c == nil {
		return
	}
	c.CompiledNotes.Add(float64(notes))
	c.PlannedGroups.Add(float64(groups))
	c.PlannedClusters.Add(float64(clusters))
	c.MoveKeys.Add(float64(moveKeys))
	c.CompileDuration.Observe(took.Seconds())
}

// IncCompileFailure counts a failed compilation.
func (c *Collector) IncCompileFailure(reason string) {
	if c == nil || c.CompileFailures == nil {
		return
	}
	c.CompileFailures.WithLabelValues(reason).Inc()
}

// AddDroppedPitches counts pitches removed from chords.
func (c *Collector) AddDroppedPitches(n int) {
	if c == nil || c.DroppedPitches == nil || n <= 0 {
		return
	}
	c.DroppedPitches.Add(float64(n))
}

// ObserveFrame records a frame delivered lag after its scheduled time.
func (c *Collector) ObserveFrame(lag time.Duration) {
	if c == nil {
		return
	}
	if lag < 0 {
		lag = 0
	}
	c.FramesPlayed.Inc()
	c.PlaybackLag.Observe(lag.Seconds())
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}
