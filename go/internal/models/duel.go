package models

import "time"

// GamePhase is the top-level server phase broadcast to clients.
type GamePhase string

const (
	PhaseLobby    GamePhase = "LOBBY"
	PhaseDuel     GamePhase = "DUEL"
	PhaseSettling GamePhase = "SETTLING"
)

// DuelState is the per-duel state machine position.
type DuelState string

const (
	DuelWaiting    DuelState = "WAITING"
	DuelCinematic  DuelState = "CINEMATIC"
	DuelAim        DuelState = "AIM_PHASE"
	DuelEvaluating DuelState = "EVALUATING"
	DuelFinished   DuelState = "FINISHED"
)

// ShotResult classifies one fighter's shot for a round. Empty means the
// fighter has not resolved a result yet.
type ShotResult string

const (
	ShotHit     ShotResult = "hit"
	ShotMiss    ShotResult = "miss"
	ShotForfeit ShotResult = "forfeit"
)

// FighterRound is the per-fighter, per-round mutable record. It is owned
// exclusively by the duel session and cleared on every round advance
// (drawn status persists once guns are out).
type FighterRound struct {
	HasDrawn       bool       `json:"has_drawn"`
	DrawnAt        *time.Time `json:"drawn_at,omitempty"`
	HasFired       bool       `json:"has_fired"`
	Result         ShotResult `json:"result,omitempty"`
	BarPosition    float64    `json:"bar_position"`
	IsPickingUpGun bool       `json:"is_picking_up_gun"`
	IsReady        bool       `json:"is_ready"`
	IsAI           bool       `json:"is_ai"`
}

// Outcome is the combined classification of a round once both fighters
// have a recorded result.
type Outcome string

const (
	// OutcomeAdvance means nobody died this round; escalate and go again.
	OutcomeAdvance Outcome = "advance"
	// OutcomeDodge is the hit-vs-hit special case of advance: both shots
	// were accurate and cancel out.
	OutcomeDodge Outcome = "dodge"
	// OutcomeWinner means one fighter landed the only accurate shot.
	OutcomeWinner Outcome = "winner"
	// OutcomeSplit means the duel ended with no winner (timeout).
	OutcomeSplit Outcome = "split"
)
