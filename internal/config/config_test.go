package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chase3718/lou-piano/internal/keymap"
	"github.com/chase3718/lou-piano/internal/pcode"
	"github.com/chase3718/lou-piano/internal/plan"
)

func TestDefaultMatchesEncoderDefaults(t *testing.T) {
	c := Default()
	if err := c.Validate(); err != nil {
		t.Fatalf("Default().Validate: %v", err)
	}
	if got, want := c.EncoderOptions(), pcode.DefaultOptions(); got != want {
		t.Errorf("EncoderOptions = %+v, want %+v", got, want)
	}
	if got := c.Layout(); got.Keys != 88 || got.Span != keymap.DefaultSpan {
		t.Errorf("Layout = %+v", got)
	}
	if got := c.MoveCost(); got.Retract != 50*time.Millisecond || got.KeyWidth != 23.2 {
		t.Errorf("MoveCost = %+v", got)
	}
	if c.Policy() != plan.PolicyDrop {
		t.Errorf("Policy = %v, want drop", c.Policy())
	}
}

func TestParseKeepsSetFields(t *testing.T) {
	c, err := Parse([]byte(`
keyboard:
  keys: 61
  key_width_mm: 22.5
rail:
  max_velocity: 250
pcode:
  hand: left
  pre_play_ms: 2000
chord_policy: reject
playback:
  serial: /dev/ttyACM0
  speed: 0.5
log:
  format: json
`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.Keyboard.Keys != 61 || c.Keyboard.KeyWidthMM != 22.5 {
		t.Errorf("keyboard = %+v", c.Keyboard)
	}
	if c.Rail.MaxVelocity != 250 || c.Rail.Acceleration != 3000 {
		t.Errorf("rail = %+v, want set velocity and default acceleration", c.Rail)
	}
	if c.Hand() != pcode.LeftHand || c.SimOptions().Hand != pcode.LeftHand {
		t.Errorf("hand = %v", c.Hand())
	}
	if opts := c.EncoderOptions(); opts.PrePlay != 2*time.Second || opts.PreMove != 100*time.Millisecond {
		t.Errorf("encoder options = %+v", opts)
	}
	if c.Policy() != plan.PolicyReject {
		t.Errorf("policy = %v", c.Policy())
	}
	if c.Playback.Baud != 115200 || c.Playback.Speed != 0.5 || c.Playback.Serial != "/dev/ttyACM0" {
		t.Errorf("playback = %+v", c.Playback)
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name, src, want string
	}{
		{"key count", "keyboard: {keys: 72}", "key count"},
		{"policy", "chord_policy: merge", "merge"},
		{"hand", "pcode: {hand: both}", "both"},
		{"pre move after pre play", "pcode: {pre_play_ms: 50}", "pre_move_ms"},
		{"speed", "playback: {speed: -1}", "speed"},
		{"log format", "log: {format: xml}", "xml"},
		{"negative acceleration", "rail: {acceleration: -5}", "acceleration"},
		{"syntax", "keyboard: [", "parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
	if _, err := Parse([]byte("keyboard: {keys: 72}")); !errors.Is(err, keymap.ErrLayout) {
		t.Errorf("layout err = %v, want ErrLayout", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lou.yaml")
	if err := os.WriteFile(path, []byte("retract_ms: 80\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.MoveCost().Retract != 80*time.Millisecond {
		t.Errorf("retract = %v", c.MoveCost().Retract)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("missing file err = %v", err)
	}
}
