package auction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bidder(id string, amount int64, betAt time.Time) Bidder {
	return Bidder{ConnID: id, Wallet: "w-" + id, Amount: amount, LastBetAt: betAt}
}

func TestCountdownStartsAtTwoBidders(t *testing.T) {
	c := New(DefaultConfig())
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	ch := c.OnBetsChanged([]Bidder{bidder("a", 1000, t0)})
	assert.False(t, ch.Started)
	assert.Nil(t, c.Countdown(), "countdown idle with one bidder")

	ch = c.OnBetsChanged([]Bidder{bidder("a", 1000, t0), bidder("b", 500, t0.Add(time.Second))})
	assert.True(t, ch.Started)
	require.NotNil(t, c.Countdown())
	assert.Equal(t, 30, *c.Countdown())
}

func TestCountdownInvariant(t *testing.T) {
	// Countdown is non-nil iff bidder count >= 2, across a sequence of
	// bet and leave events.
	c := New(DefaultConfig())
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := bidder("a", 1000, t0)
	b := bidder("b", 500, t0.Add(time.Second))

	c.OnBetsChanged([]Bidder{a})
	assert.Nil(t, c.Countdown())

	c.OnBetsChanged([]Bidder{a, b})
	assert.NotNil(t, c.Countdown())

	ch := c.OnBetsChanged([]Bidder{a})
	assert.True(t, ch.Cancelled)
	assert.Nil(t, c.Countdown())
}

func TestRankTieBreaks(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// Equal stakes rank by earlier bet; identical timestamps fall back
	// to conn id so the order is stable across snapshots.
	ranked := rank([]Bidder{
		bidder("c", 1000, t0),
		bidder("a", 1000, t0),
		bidder("b", 1000, t0.Add(-time.Second)),
	})
	require.Len(t, ranked, 3)
	assert.Equal(t, "b", ranked[0].ConnID)
	assert.Equal(t, "a", ranked[1].ConnID)
	assert.Equal(t, "c", ranked[2].ConnID)
}

func TestOvertimeOnTopSetChange(t *testing.T) {
	c := New(DefaultConfig())
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := bidder("a", 1000, t0)
	b := bidder("b", 500, t0.Add(time.Second))
	c.OnBetsChanged([]Bidder{a, b})
	before := *c.Countdown()

	// A third bidder out-bids b and displaces it from the top-2.
	cc := bidder("c", 800, t0.Add(2*time.Second))
	ch := c.OnBetsChanged([]Bidder{a, b, cc})
	assert.True(t, ch.Extended)
	assert.GreaterOrEqual(t, *c.Countdown(), before+10, "overtime invariant")
}

func TestNoOvertimeWhenTopSetStable(t *testing.T) {
	c := New(DefaultConfig())
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := bidder("a", 1000, t0)
	b := bidder("b", 500, t0.Add(time.Second))
	c.OnBetsChanged([]Bidder{a, b})
	before := *c.Countdown()

	// a raises their own bet; top-2 membership and order are unchanged.
	a2 := bidder("a", 1500, t0.Add(2*time.Second))
	ch := c.OnBetsChanged([]Bidder{a2, b})
	assert.False(t, ch.Extended)
	assert.Equal(t, before, *c.Countdown())
}

func TestTieBreakEarlierBidderWins(t *testing.T) {
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	early := bidder("early", 500, t0)
	late := bidder("late", 500, t0.Add(time.Second))
	big := bidder("big", 900, t0.Add(2*time.Second))

	ranked := rank([]Bidder{late, big, early})
	assert.Equal(t, []string{"big", "early", "late"}, topIDs(ranked, 3))
}

func TestTickCountsDownAndFinalizes(t *testing.T) {
	cfg := Config{FighterCount: 2, BaseCountdown: 3, OvertimeBonus: 10}
	c := New(cfg)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	// A bets 1000, B bets 500, C bets 2000: top-2 are C and A, B's
	// stake is forfeit into the pot.
	a := bidder("a", 1000, t0)
	b := bidder("b", 500, t0.Add(time.Second))
	cc := bidder("c", 2000, t0.Add(2*time.Second))
	bidders := []Bidder{a, b, cc}
	c.OnBetsChanged(bidders)

	res := c.Tick(bidders)
	require.NotNil(t, res.Countdown)
	assert.Equal(t, 2, *res.Countdown)

	res = c.Tick(bidders)
	require.NotNil(t, res.Countdown)
	assert.Equal(t, 1, *res.Countdown)

	res = c.Tick(bidders)
	require.NotNil(t, res.Finalized)
	fin := res.Finalized

	assert.Equal(t, int64(3500), fin.Pot)
	require.Len(t, fin.Fighters, 2)
	assert.Equal(t, "c", fin.Fighters[0].ConnID)
	assert.Equal(t, "a", fin.Fighters[1].ConnID)
	require.Len(t, fin.NonFighters, 1)
	assert.Equal(t, "b", fin.NonFighters[0].ConnID)

	assert.Nil(t, c.Countdown(), "coordinator idle after finalization")
}

func TestTickCancelsWithoutEnoughBidders(t *testing.T) {
	cfg := Config{FighterCount: 2, BaseCountdown: 1, OvertimeBonus: 10}
	c := New(cfg)
	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := bidder("a", 1000, t0)
	b := bidder("b", 500, t0.Add(time.Second))
	c.OnBetsChanged([]Bidder{a, b})

	// Safety net: bidders vanished between the guard and the tick.
	res := c.Tick([]Bidder{a})
	assert.True(t, res.Cancelled)
	assert.Nil(t, res.Finalized)
	assert.Nil(t, c.Countdown())
}

func TestTickIdleIsNoop(t *testing.T) {
	c := New(DefaultConfig())
	res := c.Tick(nil)
	assert.Nil(t, res.Countdown)
	assert.Nil(t, res.Finalized)
	assert.False(t, res.Cancelled)
}
