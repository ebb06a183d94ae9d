// Package config loads the YAML settings shared by the lou-piano commands.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/kinematics"
	"github.com/chase3718/lou-piano/internal/pcode"
	"github.com/chase3718/lou-piano/internal/plan"
	"github.com/chase3718/lou-piano/internal/sim"
)

// Config is the on-disk configuration. Durations are milliseconds.
type Config struct {
	Keyboard    Keyboard `yaml:"keyboard"`
	Rail        Rail     `yaml:"rail"`
	RetractMS   int      `yaml:"retract_ms"`
	PCode       PCode    `yaml:"pcode"`
	ChordPolicy string   `yaml:"chord_policy"` // drop, split or reject
	Playback    Playback `yaml:"playback"`
	Log         Log      `yaml:"log"`
}

type Keyboard struct {
	Keys       int         `yaml:"keys"`
	FirstKey   int         `yaml:"first_key"`
	Span       keymap.Span `yaml:"span"`
	KeyWidthMM float64     `yaml:"key_width_mm"`
}

// Rail holds the motion limits in mm/s and mm/s^2.
type Rail struct {
	MaxVelocity  float64 `yaml:"max_velocity"`
	Acceleration float64 `yaml:"acceleration"`
}

type PCode struct {
	Hand      string `yaml:"hand"`
	PrePlayMS int    `yaml:"pre_play_ms"`
	PreMoveMS int    `yaml:"pre_move_ms"`
}

type Playback struct {
	Serial      string  `yaml:"serial"` // empty logs frames instead
	Baud        int     `yaml:"baud"`
	Speed       float64 `yaml:"speed"`
	MetricsAddr string  `yaml:"metrics_addr"`
}

type Log struct {
	Debug  bool   `yaml:"debug"`
	Format string `yaml:"format"` // text or json
}

// Default returns the reference hand on an 88-key piano.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads and validates a config file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML, fills unset fields with defaults and validates.
func Parse(data []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse: %w", err)
	}
	c.applyDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Keyboard.Keys == 0 {
		c.Keyboard.Keys = 88
	}
	if c.Keyboard.Span == (keymap.Span{}) {
		c.Keyboard.Span = keymap.DefaultSpan
	}
	if c.Keyboard.KeyWidthMM == 0 {
		c.Keyboard.KeyWidthMM = 23.2
	}
	if c.Rail.MaxVelocity == 0 {
		c.Rail.MaxVelocity = 300
	}
	if c.Rail.Acceleration == 0 {
		c.Rail.Acceleration = 3000
	}
	if c.RetractMS == 0 {
		c.RetractMS = 50
	}
	if c.PCode.Hand == "" {
		c.PCode.Hand = "right"
	}
	if c.PCode.PrePlayMS == 0 {
		c.PCode.PrePlayMS = 5000
	}
	if c.PCode.PreMoveMS == 0 {
		c.PCode.PreMoveMS = 100
	}
	if c.ChordPolicy == "" {
		c.ChordPolicy = "drop"
	}
	if c.Playback.Baud == 0 {
		c.Playback.Baud = 115200
	}
	if c.Playback.Speed == 0 {
		c.Playback.Speed = 1
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks every field that defaults cannot repair.
func (c Config) Validate() error {
	var errs []error
	if _, err := keymap.New(c.Layout()); err != nil {
		errs = append(errs, err)
	}
	if !(c.Keyboard.KeyWidthMM > 0) {
		errs = append(errs, fmt.Errorf("keyboard.key_width_mm must be positive, got %v", c.Keyboard.KeyWidthMM))
	}
	if err := c.Profile().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.RetractMS < 0 {
		errs = append(errs, fmt.Errorf("retract_ms must not be negative, got %d", c.RetractMS))
	}
	if _, err := pcode.ParseHand(c.PCode.Hand); err != nil {
		errs = append(errs, err)
	}
	if c.PCode.PreMoveMS < 0 || c.PCode.PrePlayMS <= c.PCode.PreMoveMS {
		errs = append(errs, fmt.Errorf("pcode: need 0 <= pre_move_ms < pre_play_ms, got %d and %d", c.PCode.PreMoveMS, c.PCode.PrePlayMS))
	}
	if _, err := plan.ParsePolicy(c.ChordPolicy); err != nil {
		errs = append(errs, err)
	}
	if c.Playback.Baud < 0 {
		errs = append(errs, fmt.Errorf("playback.baud must be positive, got %d", c.Playback.Baud))
	}
	if !(c.Playback.Speed > 0) {
		errs = append(errs, fmt.Errorf("playback.speed must be positive, got %v", c.Playback.Speed))
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (c Config) Layout() keymap.Layout {
	return keymap.Layout{Keys: c.Keyboard.Keys, FirstKey: c.Keyboard.FirstKey, Span: c.Keyboard.Span}
}

func (c Config) Profile() kinematics.Profile {
	return kinematics.Profile{Acceleration: c.Rail.Acceleration, MaxVelocity: c.Rail.MaxVelocity}
}

func (c Config) MoveCost() plan.MoveCost {
	return plan.MoveCost{Profile: c.Profile(), KeyWidth: c.Keyboard.KeyWidthMM, Retract: ms(c.RetractMS)}
}

// Policy and Hand assume a validated config; unknown values fall back to
// the defaults.
func (c Config) Policy() plan.Policy {
	p, _ := plan.ParsePolicy(c.ChordPolicy)
	return p
}

func (c Config) Hand() pcode.Hand {
	h, _ := pcode.ParseHand(c.PCode.Hand)
	return h
}

func (c Config) EncoderOptions() pcode.Options {
	return pcode.Options{
		Hand:     c.Hand(),
		PrePlay:  ms(c.PCode.PrePlayMS),
		PreMove:  ms(c.PCode.PreMoveMS),
		Retract:  ms(c.RetractMS),
		KeyWidth: c.Keyboard.KeyWidthMM,
	}
}

func (c Config) SimOptions() sim.Options {
	return sim.Options{Hand: c.Hand(), KeyWidth: c.Keyboard.KeyWidthMM, Profile: c.Profile()}
}
