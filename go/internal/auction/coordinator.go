// Package auction runs the lobby bidding cycle: the countdown that
// starts once enough distinct bidders exist, the overtime extension that
// protects bidders from last-second snipes, and the finalization that
// selects fighters and computes the round pot.
package auction

import (
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Config tunes the auction countdown.
type Config struct {
	FighterCount  int
	BaseCountdown int // seconds
	OvertimeBonus int // seconds added when the top set changes
}

// DefaultConfig matches the shipped lobby tuning.
func DefaultConfig() Config {
	return Config{FighterCount: 2, BaseCountdown: 30, OvertimeBonus: 10}
}

// Bidder is a snapshot of one player's stake, fed in by the caller on
// every bet change. The coordinator never reaches into player records.
type Bidder struct {
	ConnID    string
	Wallet    string
	Amount    int64
	LastBetAt time.Time
}

// Change describes what a bet update did to the countdown.
type Change struct {
	Started   bool
	Extended  bool
	Cancelled bool
}

// Finalization is the irreversible hand-off to the duel: the selected
// fighters, the pot (every bidder's stake, fighters and non-fighters
// alike; non-qualifying stakes are forfeit), and the losing bidders.
type Finalization struct {
	Fighters    []Bidder
	NonFighters []Bidder
	Pot         int64
}

// TickResult is the outcome of one countdown second.
type TickResult struct {
	Countdown *int
	Finalized *Finalization
	Cancelled bool
}

// Coordinator is the lobby countdown state machine. Not safe for
// concurrent use; the arena's serialized path is its only caller.
type Coordinator struct {
	cfg       Config
	countdown *int
	lastTop   []string
}

// New creates an idle coordinator.
func New(cfg Config) *Coordinator {
	return &Coordinator{cfg: cfg}
}

// Countdown returns the seconds remaining, or nil when idle.
func (c *Coordinator) Countdown() *int {
	return c.countdown
}

// Running reports whether the countdown is live.
func (c *Coordinator) Running() bool {
	return c.countdown != nil
}

// OnBetsChanged reacts to any bet mutation. Invariant: the countdown is
// running if and only if the number of distinct bidders is at least the
// fighter count.
func (c *Coordinator) OnBetsChanged(bidders []Bidder) Change {
	if c.countdown == nil {
		if len(bidders) < c.cfg.FighterCount {
			return Change{}
		}
		cd := c.cfg.BaseCountdown
		c.countdown = &cd
		c.lastTop = topIDs(rank(bidders), c.cfg.FighterCount)
		log.Info().Int("countdown", cd).Int("bidders", len(bidders)).Msg("auction countdown started")
		return Change{Started: true}
	}

	if len(bidders) < c.cfg.FighterCount {
		c.reset()
		log.Info().Msg("auction cancelled, bidders dropped below minimum")
		return Change{Cancelled: true}
	}

	top := topIDs(rank(bidders), c.cfg.FighterCount)
	if !slices.Equal(top, c.lastTop) {
		*c.countdown += c.cfg.OvertimeBonus
		c.lastTop = top
		log.Info().
			Int("countdown", *c.countdown).
			Strs("top", top).
			Msg("top bidder set changed, overtime added")
		return Change{Extended: true}
	}
	return Change{}
}

// Tick burns one countdown second. At zero with enough bidders the
// auction finalizes; at zero without them it resets (safety net, the
// OnBetsChanged guard should have cancelled already).
func (c *Coordinator) Tick(bidders []Bidder) TickResult {
	if c.countdown == nil {
		return TickResult{}
	}

	*c.countdown--
	if *c.countdown > 0 {
		return TickResult{Countdown: c.countdown}
	}

	if len(bidders) < c.cfg.FighterCount {
		c.reset()
		return TickResult{Cancelled: true}
	}

	ranked := rank(bidders)
	fin := &Finalization{
		Fighters:    ranked[:c.cfg.FighterCount],
		NonFighters: ranked[c.cfg.FighterCount:],
	}
	for _, b := range bidders {
		fin.Pot += b.Amount
	}
	c.reset()

	log.Info().
		Int64("pot", fin.Pot).
		Int("non_fighters", len(fin.NonFighters)).
		Msg("auction finalized")
	return TickResult{Finalized: fin}
}

// Reset returns the coordinator to idle (new lobby cycle).
func (c *Coordinator) Reset() {
	c.reset()
}

func (c *Coordinator) reset() {
	c.countdown = nil
	c.lastTop = nil
}

// rank orders bidders by stake descending; ties go to the earlier bet
// (first bidder wins), with conn id as a final deterministic tiebreak.
func rank(bidders []Bidder) []Bidder {
	ranked := slices.Clone(bidders)
	slices.SortFunc(ranked, func(a, b Bidder) int {
		if a.Amount != b.Amount {
			if a.Amount > b.Amount {
				return -1
			}
			return 1
		}
		if !a.LastBetAt.Equal(b.LastBetAt) {
			if a.LastBetAt.Before(b.LastBetAt) {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ConnID, b.ConnID)
	})
	return ranked
}

func topIDs(ranked []Bidder, n int) []string {
	if len(ranked) < n {
		n = len(ranked)
	}
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		ids[i] = ranked[i].ConnID
	}
	return ids
}
