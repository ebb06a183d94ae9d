package kinematics

import (
	"testing"
	"time"
)

var rail = Profile{Acceleration: 3000, MaxVelocity: 300}

func near(a, b time.Duration) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= time.Microsecond
}

func TestTravelTime(t *testing.T) {
	tests := []struct {
		name string
		dist float64
		want time.Duration
	}{
		{"zero", 0, 0},
		{"triangle one key", 23.2, 175_879 * time.Microsecond},
		{"threshold", 30, 200 * time.Millisecond},
		{"trapezoid", 100, 433_333 * time.Microsecond},
		{"negative distance is symmetric", -100, 433_333 * time.Microsecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := rail.TravelTime(tt.dist)
			if !near(got, tt.want) {
				t.Errorf("TravelTime(%v) = %v, want %v", tt.dist, got, tt.want)
			}
		})
	}
}

func TestTravelTimeMonotonic(t *testing.T) {
	prev := time.Duration(0)
	for mm := 0.0; mm < 1200; mm += 2.9 {
		got := rail.TravelTime(mm)
		if got < prev {
			t.Fatalf("TravelTime(%v) = %v decreased from %v", mm, got, prev)
		}
		prev = got
	}
}

func TestTimeAtEndpoints(t *testing.T) {
	for _, total := range []float64{10, 30, 232} {
		if got := rail.TimeAt(0, total); got != 0 {
			t.Errorf("TimeAt(0, %v) = %v, want 0", total, got)
		}
		if got, want := rail.TimeAt(total, total), rail.TravelTime(total); got != want {
			t.Errorf("TimeAt(total, %v) = %v, want %v", total, got, want)
		}
		half := rail.TimeAt(total/2, total)
		if !near(2*half, rail.TravelTime(total)) {
			t.Errorf("TimeAt(half, %v) = %v, want half of %v", total, half, rail.TravelTime(total))
		}
	}
}

func TestSteps(t *testing.T) {
	steps := rail.Steps(23.2, 5)
	if len(steps) != 5 {
		t.Fatalf("len(Steps) = %d, want 5", len(steps))
	}
	for i := 1; i < len(steps); i++ {
		if steps[i] <= steps[i-1] {
			t.Fatalf("steps not increasing: %v", steps)
		}
	}
	if got, want := steps[4], rail.TravelTime(5*23.2); got != want {
		t.Errorf("last step = %v, want %v", got, want)
	}
	if rail.Steps(23.2, 0) != nil {
		t.Error("Steps with n=0 should be nil")
	}
}

func TestValidate(t *testing.T) {
	if err := rail.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := (Profile{Acceleration: 0, MaxVelocity: 1}).Validate(); err == nil {
		t.Error("zero acceleration accepted")
	}
	if err := (Profile{Acceleration: 1, MaxVelocity: -1}).Validate(); err == nil {
		t.Error("negative velocity accepted")
	}
}
