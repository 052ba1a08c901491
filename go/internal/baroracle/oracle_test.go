package baroracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPositionBounds(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle := 2 * time.Second

	for _, offset := range []time.Duration{
		0,
		1 * time.Millisecond,
		999 * time.Millisecond,
		1999 * time.Millisecond,
		2 * time.Second,
		5_500 * time.Millisecond,
		1 * time.Hour,
	} {
		pos := Position(start.Add(offset), start, cycle)
		assert.GreaterOrEqual(t, pos, 0.0, "offset %v", offset)
		assert.Less(t, pos, 1.0, "offset %v", offset)
	}
}

func TestPositionMonotonicWithinCycle(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle := 2 * time.Second

	prev := -1.0
	for ms := 0; ms < 2000; ms += 50 {
		pos := Position(start.Add(time.Duration(ms)*time.Millisecond), start, cycle)
		assert.Greater(t, pos, prev, "position must increase within a cycle (t=%dms)", ms)
		prev = pos
	}
}

func TestPositionWrapsAround(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cycle := 2 * time.Second

	justBefore := Position(start.Add(cycle-time.Millisecond), start, cycle)
	atWrap := Position(start.Add(cycle), start, cycle)

	assert.InDelta(t, 0.9995, justBefore, 1e-9)
	assert.Equal(t, 0.0, atWrap)
}

func TestPositionDeterministic(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := start.Add(1300 * time.Millisecond)

	a := Position(now, start, 2*time.Second)
	b := Position(now, start, 2*time.Second)
	assert.Equal(t, a, b)
	assert.InDelta(t, 0.65, a, 1e-9)
}

func TestPositionBeforeCycleStartClampsToZero(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 0.0, Position(start.Add(-time.Second), start, 2*time.Second))
}

func TestPositionPanicsBelowMinimumDuration(t *testing.T) {
	start := time.Now()
	assert.Panics(t, func() {
		Position(start, start, 100*time.Millisecond)
	})
	assert.Panics(t, func() {
		Position(start, start, 0)
	})
}

func TestScheduleNonIncreasingAndFloored(t *testing.T) {
	s := DefaultSchedule()
	require.NoError(t, s.Validate())

	prev := s.CycleDuration(1)
	assert.Equal(t, 2*time.Second, prev)

	for round := 2; round <= 50; round++ {
		d := s.CycleDuration(round)
		assert.LessOrEqual(t, d, prev, "round %d", round)
		assert.GreaterOrEqual(t, d, s.Floor, "round %d", round)
		prev = d
	}
	assert.Equal(t, s.Floor, s.CycleDuration(50))
}

func TestScheduleRoundTwoStrictlyShorter(t *testing.T) {
	s := DefaultSchedule()
	assert.Less(t, s.CycleDuration(2), s.CycleDuration(1))
}

func TestScheduleValidate(t *testing.T) {
	bad := Schedule{Base: 2 * time.Second, Factor: 0.85, Floor: 100 * time.Millisecond}
	assert.Error(t, bad.Validate())

	bad = Schedule{Base: 400 * time.Millisecond, Factor: 0.85, Floor: 600 * time.Millisecond}
	assert.Error(t, bad.Validate())

	bad = Schedule{Base: 2 * time.Second, Factor: 1.2, Floor: 600 * time.Millisecond}
	assert.Error(t, bad.Validate())
}

func TestWindowContains(t *testing.T) {
	w := DefaultWindow()
	require.NoError(t, w.Validate())

	assert.False(t, w.Contains(0.59))
	assert.True(t, w.Contains(0.60))
	assert.True(t, w.Contains(0.65))
	assert.True(t, w.Contains(0.7999))
	assert.False(t, w.Contains(0.80), "upper bound is exclusive")
	assert.False(t, w.Contains(0.55))
}

func TestWindowValidate(t *testing.T) {
	assert.Error(t, Window{Lower: 0.8, Upper: 0.6}.Validate())
	assert.Error(t, Window{Lower: -0.1, Upper: 0.5}.Validate())
	assert.Error(t, Window{Lower: 0.5, Upper: 1.1}.Validate())
}
