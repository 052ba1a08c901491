package duel

import "github.com/mverch/highnoon/go/internal/models"

// roundVerdict is the classification of one completed round.
type roundVerdict struct {
	Outcome   models.Outcome
	WinnerIdx int // -1 unless Outcome is OutcomeWinner
	LoserIdx  int
}

// classify combines both fighters' recorded shot results. Simultaneous
// accurate shots cancel out (the "dodge" rule) rather than killing both
// or picking an arbitrary tiebreak, so the order the two shoot requests
// were processed in can never decide a round on its own.
func classify(a, b models.ShotResult) roundVerdict {
	switch {
	case a == models.ShotHit && b == models.ShotHit:
		return roundVerdict{Outcome: models.OutcomeDodge, WinnerIdx: -1, LoserIdx: -1}
	case a == models.ShotHit:
		// hit vs miss, hit vs forfeit: the accurate shot wins.
		return roundVerdict{Outcome: models.OutcomeWinner, WinnerIdx: 0, LoserIdx: 1}
	case b == models.ShotHit:
		return roundVerdict{Outcome: models.OutcomeWinner, WinnerIdx: 1, LoserIdx: 0}
	default:
		// miss/forfeit combinations: nobody shot accurately, go again.
		return roundVerdict{Outcome: models.OutcomeAdvance, WinnerIdx: -1, LoserIdx: -1}
	}
}
