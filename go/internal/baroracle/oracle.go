// Package baroracle computes the position of the cyclic timing bar.
//
// Both server-side shot adjudication and every client's visual bar are
// derived from the same pure function of wall-clock time, so they agree
// (within network jitter) without any per-client synchronization.
package baroracle

import (
	"fmt"
	"math"
	"time"
)

// MinCycleDuration is the hard floor for a bar cycle. Durations below it
// are a configuration bug: at high round numbers a near-zero cycle turns
// the position into numeric noise.
const MinCycleDuration = 500 * time.Millisecond

// Position returns the bar position in [0, 1) at the given instant.
// It is pure and deterministic: replaying the same timestamps always
// yields the same position.
//
// cycleDuration below MinCycleDuration is a programmer error and panics.
func Position(now, cycleStart time.Time, cycleDuration time.Duration) float64 {
	if cycleDuration < MinCycleDuration {
		panic(fmt.Sprintf("baroracle: cycle duration %v below minimum %v", cycleDuration, MinCycleDuration))
	}
	elapsed := now.Sub(cycleStart)
	if elapsed < 0 {
		elapsed = 0
	}
	pos := float64(elapsed%cycleDuration) / float64(cycleDuration)
	// Guard the upper boundary against float rounding.
	if pos >= 1 {
		pos = math.Nextafter(1, 0)
	}
	return pos
}

// Schedule maps a round number to its bar cycle duration. The duration
// decays exponentially per round and never drops below Floor, so later
// rounds get strictly harder until they hit the floor.
type Schedule struct {
	Base   time.Duration
	Factor float64
	Floor  time.Duration
}

// DefaultSchedule matches the tuning the game shipped with: a 2s opening
// cycle shrinking 15% per round down to 600ms.
func DefaultSchedule() Schedule {
	return Schedule{
		Base:   2 * time.Second,
		Factor: 0.85,
		Floor:  600 * time.Millisecond,
	}
}

// Validate rejects schedules that could ever produce a cycle below the
// hard floor. Called once at config load so Position can trust its input.
func (s Schedule) Validate() error {
	if s.Floor < MinCycleDuration {
		return fmt.Errorf("schedule floor %v below minimum cycle duration %v", s.Floor, MinCycleDuration)
	}
	if s.Base < s.Floor {
		return fmt.Errorf("schedule base %v below floor %v", s.Base, s.Floor)
	}
	if s.Factor <= 0 || s.Factor > 1 {
		return fmt.Errorf("schedule factor %v outside (0, 1]", s.Factor)
	}
	return nil
}

// CycleDuration returns the bar cycle duration for the given round
// (rounds start at 1). Non-increasing in round number, floored.
func (s Schedule) CycleDuration(round int) time.Duration {
	if round < 1 {
		round = 1
	}
	d := time.Duration(float64(s.Base) * math.Pow(s.Factor, float64(round-1)))
	if d < s.Floor {
		return s.Floor
	}
	return d
}

// Window is the sub-range of the bar cycle within which a shot is a hit.
type Window struct {
	Lower float64
	Upper float64
}

// DefaultWindow is the shipped target window.
func DefaultWindow() Window {
	return Window{Lower: 0.60, Upper: 0.80}
}

// Validate rejects degenerate windows.
func (w Window) Validate() error {
	if w.Lower < 0 || w.Upper > 1 || w.Lower >= w.Upper {
		return fmt.Errorf("invalid target window [%v, %v)", w.Lower, w.Upper)
	}
	return nil
}

// Contains reports whether pos falls inside the half-open window.
func (w Window) Contains(pos float64) bool {
	return pos >= w.Lower && pos < w.Upper
}
