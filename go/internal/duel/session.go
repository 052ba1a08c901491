// Package duel implements the authoritative per-round duel state
// machine: ready handshake, gong scheduling, bar-timed shot
// adjudication, round escalation, and terminal resolution.
//
// A Session is owned by the arena's serialized event path. Timer
// callbacks re-enter that path through the injected Scheduler, and every
// armed timer carries the generation it was armed under so a stale
// callback firing after a transition is a no-op.
package duel

import (
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/internal/baroracle"
	"github.com/mverch/highnoon/go/internal/events"
	"github.com/mverch/highnoon/go/internal/models"
)

// Scheduler arms a callback after a delay and returns its cancel func.
// The arena's implementation marshals the callback back onto the
// serialized event path before it runs.
type Scheduler func(d time.Duration, fn func()) (cancel func())

// Emitter pushes outbound events to connected clients.
type Emitter interface {
	Broadcast(ev events.Event)
}

// Config tunes a duel.
type Config struct {
	GongDelayMin time.Duration
	GongDelayMax time.Duration
	RoundTimeout time.Duration
	Schedule     baroracle.Schedule
	Window       baroracle.Window
	AIAccuracy   float64
}

// DefaultConfig is the shipped duel tuning.
func DefaultConfig() Config {
	return Config{
		GongDelayMin: 5 * time.Second,
		GongDelayMax: 8 * time.Second,
		RoundTimeout: 30 * time.Second,
		Schedule:     baroracle.DefaultSchedule(),
		Window:       baroracle.DefaultWindow(),
		AIAccuracy:   0.8,
	}
}

// Resolution is the terminal outcome handed to settlement.
type Resolution struct {
	DuelID  uuid.UUID
	Winner  *models.Player // nil when IsSplit
	Loser   *models.Player
	IsSplit bool
	Rounds  int
}

// Deterministic opposing spawn points, mirrored across the arena origin.
var spawnPoses = [2]models.Pose{
	{X: -6, Y: 0, Z: 0, RotY: 90},
	{X: 6, Y: 0, Z: 0, RotY: 270},
}

// Session is the aggregate for one duel: exactly two fighters, fixed at
// creation, no mid-duel substitution.
type Session struct {
	ID  uuid.UUID
	cfg Config

	clock clockwork.Clock
	sched Scheduler
	emit  Emitter
	rng   *rand.Rand

	state models.DuelState
	round int
	gen   uint64 // bumped on every transition that invalidates timers

	fighters [2]*models.Player
	rounds   [2]*models.FighterRound
	barrier  *ReadyBarrier

	cycleStart    time.Time
	cycleDuration time.Duration

	cancelTimeout func()
	onFinish      func(Resolution)
	finished      bool
}

// NewSession creates a duel for the two given fighters. onFinish fires
// exactly once, on the serialized path, when the duel resolves.
func NewSession(cfg Config, clock clockwork.Clock, sched Scheduler, emit Emitter, fighters [2]*models.Player, onFinish func(Resolution)) *Session {
	return &Session{
		ID:       uuid.New(),
		cfg:      cfg,
		clock:    clock,
		sched:    sched,
		emit:     emit,
		rng:      rand.New(rand.NewSource(clock.Now().UnixNano())),
		state:    models.DuelWaiting,
		round:    1,
		fighters: fighters,
		rounds:   [2]*models.FighterRound{{}, {}},
		barrier:  NewReadyBarrier(fighters[0].ConnID, fighters[1].ConnID),
		onFinish: onFinish,
	}
}

// Start positions the fighters and opens the ready handshake.
func (s *Session) Start() {
	for i, f := range s.fighters {
		f.Health = 1
		f.Role = models.RoleFighter
		f.Pose = spawnPoses[i]
	}
	log.Info().
		Str("duel_id", s.ID.String()).
		Str("fighter_a", s.fighters[0].ConnID).
		Str("fighter_b", s.fighters[1].ConnID).
		Msg("duel created, waiting for ready handshake")
}

// State returns the current duel state.
func (s *Session) State() models.DuelState { return s.state }

// Round returns the current round number (starts at 1).
func (s *Session) Round() int { return s.round }

// Fighters returns the two fighters.
func (s *Session) Fighters() [2]*models.Player { return s.fighters }

// IsFighter reports whether the connection is one of the two fighters.
func (s *Session) IsFighter(connID string) bool {
	return s.fighterIdx(connID) >= 0
}

func (s *Session) fighterIdx(connID string) int {
	for i, f := range s.fighters {
		if f.ConnID == connID {
			return i
		}
	}
	return -1
}

// PlayerReady handles the client scene-load acknowledgement. When both
// fighters have signalled, the cinematic begins and the gong is
// scheduled at a randomized delay so its timing cannot be memorized.
func (s *Session) PlayerReady(connID string) {
	if s.state != models.DuelWaiting {
		return
	}
	idx := s.fighterIdx(connID)
	if idx < 0 {
		return
	}
	s.rounds[idx].IsReady = true
	if !s.barrier.Signal(connID) {
		return
	}

	s.state = models.DuelCinematic
	delay := s.cfg.GongDelayMin
	if spread := s.cfg.GongDelayMax - s.cfg.GongDelayMin; spread > 0 {
		delay += time.Duration(s.rng.Int63n(int64(spread)))
	}
	log.Info().
		Str("duel_id", s.ID.String()).
		Dur("gong_delay", delay).
		Msg("both fighters ready, gong scheduled")
	s.afterGen(delay, s.gong)
}

// RequestAI opts a fighter into AI-controlled play. An AI fighter
// auto-completes its side of the ready handshake; its shots are
// scheduled by the server once the aim phase opens.
func (s *Session) RequestAI(connID string) {
	idx := s.fighterIdx(connID)
	if idx < 0 {
		return
	}
	s.rounds[idx].IsAI = true
	log.Info().Str("duel_id", s.ID.String()).Str("conn_id", connID).Msg("fighter switched to AI mode")
	if s.state == models.DuelWaiting && !s.rounds[idx].IsReady {
		s.PlayerReady(connID)
	}
}

// gong opens the aim phase: both fighters are marked drawn, the bar
// clock starts, and the auto-miss boundary plus (first round only) the
// duel-wide timeout are armed.
func (s *Session) gong() {
	if s.state != models.DuelCinematic {
		return
	}
	s.state = models.DuelAim
	now := s.clock.Now()
	for _, fr := range s.rounds {
		fr.HasDrawn = true
		fr.DrawnAt = &now
	}
	s.startCycle(now)

	s.emit.Broadcast(events.New(events.TypeGong, events.GongPayload{
		Round:   s.round,
		CycleMs: s.cycleDuration.Milliseconds(),
	}))
	log.Info().
		Str("duel_id", s.ID.String()).
		Int("round", s.round).
		Dur("cycle", s.cycleDuration).
		Msg("gong fired, aim phase open")

	// One timeout bounds the whole duel against stalled clients; it is
	// deliberately not re-armed on round advance.
	s.cancelTimeout = s.afterState(s.cfg.RoundTimeout, s.timeoutSplit)
}

// startCycle resets the bar clock for the current round and arms the
// auto-miss timer at the instant the bar exits the target window.
func (s *Session) startCycle(now time.Time) {
	s.cycleStart = now
	s.cycleDuration = s.cfg.Schedule.CycleDuration(s.round)

	exitDelay := time.Duration(float64(s.cycleDuration) * s.cfg.Window.Upper)
	s.afterGen(exitDelay, s.autoMiss)

	for i, fr := range s.rounds {
		if fr.IsAI {
			s.scheduleAIShot(i)
		}
	}
}

// scheduleAIShot arms the AI fighter's shot for this cycle: usually
// inside the target window, occasionally an early miss.
func (s *Session) scheduleAIShot(idx int) {
	w := s.cfg.Window
	var frac float64
	if s.rng.Float64() < s.cfg.AIAccuracy {
		frac = w.Lower + s.rng.Float64()*(w.Upper-w.Lower)*0.9
	} else {
		frac = missFrac(s.rng, w)
	}
	connID := s.fighters[idx].ConnID
	s.afterGen(time.Duration(float64(s.cycleDuration)*frac), func() {
		s.Shoot(connID)
	})
}

// missFrac picks a bar fraction strictly below the target window for a
// deliberate miss. Scaled off the lower bound so a narrow window still
// yields a non-negative delay.
func missFrac(rng *rand.Rand, w baroracle.Window) float64 {
	return rng.Float64() * w.Lower * 0.9
}

// Shoot validates and adjudicates a fighter's shoot request against the
// bar position at the instant of processing (server clock, never a
// client-reported position). Invalid requests are ignored, not errors:
// they are almost always client-side races.
func (s *Session) Shoot(connID string) bool {
	if s.state != models.DuelAim {
		return false
	}
	idx := s.fighterIdx(connID)
	if idx < 0 {
		return false
	}
	fr := s.rounds[idx]
	if !fr.HasDrawn || fr.HasFired || fr.IsPickingUpGun {
		log.Debug().
			Str("duel_id", s.ID.String()).
			Str("conn_id", connID).
			Bool("drawn", fr.HasDrawn).
			Bool("fired", fr.HasFired).
			Msg("ignoring invalid shoot request")
		return false
	}

	pos := baroracle.Position(s.clock.Now(), s.cycleStart, s.cycleDuration)
	hit := s.cfg.Window.Contains(pos)

	fr.HasFired = true
	fr.BarPosition = pos
	if hit {
		fr.Result = models.ShotHit
	} else {
		fr.Result = models.ShotMiss
	}

	s.emit.Broadcast(events.New(events.TypeShot, events.ShotPayload{
		ShooterID:   connID,
		Hit:         hit,
		BarPosition: pos,
	}))
	log.Info().
		Str("duel_id", s.ID.String()).
		Str("conn_id", connID).
		Float64("bar_position", pos).
		Bool("hit", hit).
		Msg("shot adjudicated")

	s.maybeEvaluate()
	return true
}

// autoMiss fires when the bar passes the target window's upper bound:
// any fighter who has not fired is recorded as a miss. One shot
// opportunity per sweep; nobody gets to hold for a later cycle.
func (s *Session) autoMiss() {
	if s.state != models.DuelAim {
		return
	}
	for i, fr := range s.rounds {
		if fr.Result == "" {
			fr.Result = models.ShotMiss
			fr.BarPosition = s.cfg.Window.Upper
			log.Debug().
				Str("duel_id", s.ID.String()).
				Str("conn_id", s.fighters[i].ConnID).
				Msg("bar passed target window, auto-miss recorded")
		}
	}
	s.maybeEvaluate()
}

func (s *Session) maybeEvaluate() {
	if s.rounds[0].Result == "" || s.rounds[1].Result == "" {
		return
	}
	s.evaluate()
}

// evaluate classifies the combined round outcome once both fighters have
// a recorded result.
func (s *Session) evaluate() {
	s.state = models.DuelEvaluating
	v := classify(s.rounds[0].Result, s.rounds[1].Result)

	payload := events.RoundEndPayload{Outcome: v.Outcome}
	if v.Outcome == models.OutcomeWinner {
		payload.WinnerID = s.fighters[v.WinnerIdx].ConnID
		payload.LoserID = s.fighters[v.LoserIdx].ConnID
	}
	s.emit.Broadcast(events.New(events.TypeRoundEnd, payload))

	if v.Outcome == models.OutcomeWinner {
		s.fighters[v.LoserIdx].Health = 0
		s.finish(s.fighters[v.WinnerIdx], s.fighters[v.LoserIdx], false)
		return
	}
	s.advanceRound()
}

// advanceRound escalates to the next round: fire data cleared (drawn
// status persists, guns stay out), cycle shortened per the schedule,
// bar clock restarted.
func (s *Session) advanceRound() {
	s.gen++ // stale auto-miss/AI timers from the old round become no-ops
	s.round++
	for _, fr := range s.rounds {
		fr.HasFired = false
		fr.Result = ""
		fr.BarPosition = 0
	}
	s.state = models.DuelAim
	s.startCycle(s.clock.Now())

	s.emit.Broadcast(events.New(events.TypeNewRound, events.NewRoundPayload{
		Round:   s.round,
		CycleMs: s.cycleDuration.Milliseconds(),
	}))
	log.Info().
		Str("duel_id", s.ID.String()).
		Int("round", s.round).
		Dur("cycle", s.cycleDuration).
		Msg("round advanced")
}

// Disconnect resolves the duel immediately when an active fighter drops:
// the remaining fighter wins. Waiting out a timeout would serve nobody
// when only one outcome is possible.
func (s *Session) Disconnect(connID string) bool {
	if s.finished {
		return false
	}
	idx := s.fighterIdx(connID)
	if idx < 0 {
		return false
	}
	other := 1 - idx
	s.fighters[idx].Health = 0

	s.emit.Broadcast(events.New(events.TypeRoundEnd, events.RoundEndPayload{
		Outcome:  models.OutcomeWinner,
		WinnerID: s.fighters[other].ConnID,
		LoserID:  s.fighters[idx].ConnID,
	}))
	log.Info().
		Str("duel_id", s.ID.String()).
		Str("disconnected", connID).
		Msg("fighter disconnected, duel resolved")
	s.finish(s.fighters[other], s.fighters[idx], false)
	return true
}

// timeoutSplit ends the duel with no winner when no resolution happened
// inside the timeout: the pot is split rather than burned.
func (s *Session) timeoutSplit() {
	if s.finished {
		return
	}
	s.emit.Broadcast(events.New(events.TypeRoundEnd, events.RoundEndPayload{
		Outcome: models.OutcomeSplit,
	}))
	log.Info().Str("duel_id", s.ID.String()).Msg("duel timed out, splitting pot")
	s.finish(nil, nil, true)
}

func (s *Session) finish(winner, loser *models.Player, isSplit bool) {
	if s.finished {
		return
	}
	s.finished = true
	s.state = models.DuelFinished
	s.gen++
	if s.cancelTimeout != nil {
		s.cancelTimeout()
	}
	s.onFinish(Resolution{
		DuelID:  s.ID,
		Winner:  winner,
		Loser:   loser,
		IsSplit: isSplit,
		Rounds:  s.round,
	})
}

// BarPosition returns the current bar position while the aim phase is
// open; ok is false otherwise. Used by the broadcast tick loop.
func (s *Session) BarPosition() (float64, bool) {
	if s.state != models.DuelAim {
		return 0, false
	}
	return baroracle.Position(s.clock.Now(), s.cycleStart, s.cycleDuration), true
}

// afterGen arms a timer invalidated by the next generation bump (round
// advance or finish).
func (s *Session) afterGen(d time.Duration, fn func()) func() {
	gen := s.gen
	return s.sched(d, func() {
		if s.finished || s.gen != gen {
			return
		}
		fn()
	})
}

// afterState arms a timer that survives round advances but dies with the
// session.
func (s *Session) afterState(d time.Duration, fn func()) func() {
	return s.sched(d, func() {
		if s.finished {
			return
		}
		fn()
	})
}
