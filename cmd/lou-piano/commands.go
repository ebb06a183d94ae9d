package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/chase3718/lou-piano/internal/config"
	"github.com/chase3718/lou-piano/internal/hw"
	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/logging"
	"github.com/chase3718/lou-piano/internal/metrics"
	"github.com/chase3718/lou-piano/internal/pcode"
	"github.com/chase3718/lou-piano/internal/plan"
	"github.com/chase3718/lou-piano/internal/score"
	"github.com/chase3718/lou-piano/internal/sim"
)

// common holds the flags every command accepts.
type common struct {
	debug      bool
	logFormat  string
	configPath string
	in         string
	track      int
	channel    int
	hand       string
	policy     string
}

func (c *common) register(fs *flag.FlagSet) {
	fs.BoolVar(&c.debug, "debug", false, "enable debug logging (adds source location)")
	fs.StringVar(&c.logFormat, "log-format", "", "log format: text or json (default from config)")
	fs.StringVar(&c.configPath, "config", "", "YAML config file (defaults when empty)")
	fs.StringVar(&c.in, "in", "", "input: .mid/.midi, .yaml/.yml event list or .pcode program")
	fs.IntVar(&c.track, "track", score.AllTracks, "MIDI track to read, -1 for all")
	fs.IntVar(&c.channel, "channel", score.AllChannels, "MIDI channel (0-15) to read, -1 for all")
	fs.StringVar(&c.hand, "hand", "", "hand to program: right or left (default from config)")
	fs.StringVar(&c.policy, "policy", "", "unmergeable chord policy: drop, split or reject (default from config)")
}

// env is what a command needs after flags and config are resolved.
type env struct {
	cfg     config.Config
	log     *slog.Logger
	km      *keymap.KeyMap
	metrics *metrics.Collector
}

func (c *common) setup() (*env, error) {
	cfg := config.Default()
	if c.configPath != "" {
		var err error
		if cfg, err = config.Load(c.configPath); err != nil {
			return nil, err
		}
	}
	if c.debug {
		cfg.Log.Debug = true
	}
	if c.logFormat != "" {
		cfg.Log.Format = c.logFormat
	}
	if c.hand != "" {
		cfg.PCode.Hand = c.hand
	}
	if c.policy != "" {
		cfg.ChordPolicy = c.policy
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logging.Init(cfg.Log.Debug, cfg.Log.Format)

	km, err := keymap.New(cfg.Layout())
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, km: km}, nil
}

func (e *env) compile(path string, opts score.Options) (*plan.Result, error) {
	var (
		events []plan.Event
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mid", ".midi", ".smf":
		events, err = score.ReadSMF(path, opts)
	case ".yaml", ".yml":
		var f *os.File
		if f, err = os.Open(path); err != nil {
			return nil, err
		}
		events, err = score.ReadYAML(f)
		f.Close()
	default:
		return nil, fmt.Errorf("%s: unknown score format (want .mid or .yaml)", path)
	}
	if err != nil {
		return nil, err
	}
	e.log.Info("score: loaded", "path", path, "events", len(events))

	c := &plan.Compiler{
		KeyMap:  e.km,
		Cost:    e.cfg.MoveCost(),
		Policy:  e.cfg.Policy(),
		Logger:  e.log,
		Metrics: e.metrics,
	}
	return c.Compile(events)
}

// commands returns the program for c.in, compiling scores on the fly.
func (e *env) commands(c *common) ([]pcode.Command, error) {
	if strings.EqualFold(filepath.Ext(c.in), ".pcode") {
		f, err := os.Open(c.in)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		cmds, err := pcode.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.in, err)
		}
		return cmds, nil
	}
	res, err := e.compile(c.in, score.Options{Track: c.track, Channel: c.channel})
	if err != nil {
		return nil, err
	}
	prog, err := pcode.Build(res, e.km, e.cfg.EncoderOptions())
	if err != nil {
		return nil, err
	}
	return prog.Commands(), nil
}

func runCompile(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compile", flag.ContinueOnError)
	var c common
	c.register(fs)
	out := fs.String("out", "", "output pcode file (stdout when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.in == "" {
		return errors.New("compile: -in is required")
	}
	e, err := c.setup()
	if err != nil {
		return err
	}

	res, err := e.compile(c.in, score.Options{Track: c.track, Channel: c.channel})
	if err != nil {
		return err
	}
	prog, err := pcode.Build(res, e.km, e.cfg.EncoderOptions())
	if err != nil {
		return err
	}

	if *out == "" {
		if err := prog.Encode(stdout); err != nil {
			return err
		}
	} else {
		f, err := os.Create(*out)
		if err != nil {
			return err
		}
		if err := writeProgram(prog, f); err != nil {
			return fmt.Errorf("compile: write %s: %w", *out, err)
		}
	}
	e.log.Info("compile: done",
		"notes", len(res.Notes),
		"deploys", len(prog.Deploys),
		"moves", len(prog.Moves),
		"move_keys", res.MoveKeys(),
		"dropped", res.Dropped,
	)
	return nil
}

// writeProgram encodes prog into w and closes it, returning the first error.
func writeProgram(prog *pcode.Program, w io.WriteCloser) error {
	err := prog.Encode(w)
	if cerr := w.Close(); err == nil {
		err = cerr
	}
	return err
}

func runSimulate(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("simulate", flag.ContinueOnError)
	var c common
	c.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.in == "" {
		return errors.New("simulate: -in is required")
	}
	e, err := c.setup()
	if err != nil {
		return err
	}
	cmds, err := e.commands(&c)
	if err != nil {
		return err
	}
	frames, err := sim.Simulate(cmds, e.cfg.SimOptions())
	if err != nil {
		return err
	}
	for _, f := range frames {
		var keys []string
		for _, slot := range f.Extended() {
			if pitch, ok := e.km.PitchAt(f.Position, slot); ok {
				keys = append(keys, keymap.PitchName(pitch))
			}
		}
		fmt.Fprintf(stdout, "%10.3fs  pos %2d  %v %s\n",
			f.At.Seconds(), f.Position, f.Extended(), strings.Join(keys, " "))
	}
	e.log.Info("simulate: done", "commands", len(cmds), "frames", len(frames))
	return nil
}

func runPlay(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("play", flag.ContinueOnError)
	var c common
	c.register(fs)
	serialDev := fs.String("serial", "", "serial port device (frames are logged when empty)")
	baud := fs.Int("baud", 0, "serial baud rate (default from config)")
	speed := fs.Float64("speed", 0, "playback speed factor (default from config)")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if c.in == "" {
		return errors.New("play: -in is required")
	}
	e, err := c.setup()
	if err != nil {
		return err
	}
	pb := e.cfg.Playback
	if *serialDev != "" {
		pb.Serial = *serialDev
	}
	if *baud > 0 {
		pb.Baud = *baud
	}
	if *speed > 0 {
		pb.Speed = *speed
	}
	if *metricsAddr != "" {
		pb.MetricsAddr = *metricsAddr
	}

	if e.metrics, err = metrics.New(prometheus.NewRegistry()); err != nil {
		return err
	}
	if pb.MetricsAddr != "" {
		srv := &http.Server{Addr: pb.MetricsAddr, Handler: metricsMux(e.metrics)}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.Error("metrics: server failed", "addr", pb.MetricsAddr, "err", err)
			}
		}()
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			srv.Shutdown(sctx)
		}()
		e.log.Info("metrics: serving", "addr", pb.MetricsAddr)
	}

	cmds, err := e.commands(&c)
	if err != nil {
		return err
	}
	frames, err := sim.Simulate(cmds, e.cfg.SimOptions())
	if err != nil {
		return err
	}

	var sink sim.Sink = sim.LogSink{Logger: e.log, KeyMap: e.km}
	var link *hw.Link
	if pb.Serial != "" {
		if link, err = hw.OpenSerial(pb.Serial, pb.Baud, e.log); err != nil {
			return err
		}
		defer link.Close()
		sink = link
	}

	p := &sim.Player{Speed: pb.Speed, Metrics: e.metrics, Logger: e.log}
	err = p.Play(ctx, frames, sink)
	if link != nil {
		// leave no solenoid extended, whether playback finished or not
		if rerr := link.Release(); rerr != nil {
			e.log.Error("serial: release failed", "err", rerr)
		}
	}
	if errors.Is(err, context.Canceled) {
		e.log.Info("play: interrupted")
		return nil
	}
	return err
}

func metricsMux(m *metrics.Collector) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return mux
}
