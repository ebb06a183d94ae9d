// Package kinematics models rail travel with a symmetric trapezoidal velocity
// profile: constant acceleration up to the velocity limit, cruise, then
// constant deceleration to rest. Short moves never reach the limit and use a
// triangular profile instead.
//
// Distances are millimetres, acceleration mm/s^2 and velocity mm/s.
package kinematics

import (
	"errors"
	"math"
	"time"
)

// Profile holds the motion limits of the rail.
type Profile struct {
	Acceleration float64 // mm/s^2
	MaxVelocity  float64 // mm/s
}

// Validate reports whether both limits are usable.
func (p Profile) Validate() error {
	if !(p.Acceleration > 0) {
		return errors.New("kinematics: acceleration must be positive")
	}
	if !(p.MaxVelocity > 0) {
		return errors.New("kinematics: max velocity must be positive")
	}
	return nil
}

// cruiseThreshold is the shortest move that reaches MaxVelocity: the distance
// covered accelerating to the limit plus decelerating back to rest.
func (p Profile) cruiseThreshold() float64 {
	return p.MaxVelocity * p.MaxVelocity / p.Acceleration
}

// TravelTime returns how long a move of distance mm takes from rest to rest.
func (p Profile) TravelTime(distance float64) time.Duration {
	return seconds(p.travelSeconds(math.Abs(distance)))
}

func (p Profile) travelSeconds(d float64) float64 {
	if d <= 0 {
		return 0
	}
	if d < p.cruiseThreshold() {
		return 2 * math.Sqrt(d/p.Acceleration)
	}
	return d/p.MaxVelocity + p.MaxVelocity/p.Acceleration
}

// TimeAt returns the elapsed time at which a move of length total has covered
// distance. Values outside [0, total] are clamped.
func (p Profile) TimeAt(distance, total float64) time.Duration {
	total = math.Abs(total)
	switch {
	case distance <= 0 || total == 0:
		return 0
	case distance >= total:
		return p.TravelTime(total)
	}

	end := p.travelSeconds(total)
	var accelDist float64
	if total < p.cruiseThreshold() {
		accelDist = total / 2
	} else {
		accelDist = p.MaxVelocity * p.MaxVelocity / (2 * p.Acceleration)
	}

	switch {
	case distance <= accelDist:
		return seconds(math.Sqrt(2 * distance / p.Acceleration))
	case distance <= total-accelDist:
		return seconds(p.MaxVelocity/p.Acceleration + (distance-accelDist)/p.MaxVelocity)
	default:
		// mirror of the acceleration phase
		return seconds(end - math.Sqrt(2*(total-distance)/p.Acceleration))
	}
}

// Steps returns, for a move of n steps of step mm each, the elapsed time at
// which each step boundary 1..n is reached. The last entry equals
// TravelTime(n*step).
func (p Profile) Steps(step float64, n int) []time.Duration {
	if n <= 0 {
		return nil
	}
	total := step * float64(n)
	out := make([]time.Duration, n)
	for k := 1; k <= n; k++ {
		out[k-1] = p.TimeAt(step*float64(k), total)
	}
	return out
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}
