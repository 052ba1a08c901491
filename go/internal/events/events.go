// Package events defines the wire-level event model shared by the
// websocket transport and the domain-event relay.
package events

import (
	"encoding/json"
	"time"

	"github.com/mverch/highnoon/go/internal/models"
)

// Type tags an outbound event.
type Type string

const (
	TypeChallenge      Type = "player:challenge"
	TypeJoined         Type = "player:joined"
	TypeLeft           Type = "player:left"
	TypePlayerMoved    Type = "player:moved"
	TypeLobbyState     Type = "lobby:state"
	TypeLobbyCountdown Type = "lobby:countdown"
	TypeBetIntent      Type = "lobby:betIntent"
	TypeBetAccepted    Type = "lobby:betAccepted"
	TypePhaseChange    Type = "game:phaseChange"
	TypeGong           Type = "duel:gong"
	TypeBarUpdate      Type = "duel:barUpdate"
	TypeShot           Type = "duel:shot"
	TypeNewRound       Type = "duel:newRound"
	TypeRoundEnd       Type = "duel:roundEnd"
	TypeError          Type = "error"
)

// Inbound event types consumed by the arena.
const (
	InRequestChallenge = "player:requestChallenge"
	InJoinWithWallet   = "player:joinWithWallet"
	InSetName          = "player:setName"
	InMove             = "player:move"
	InRequestBet       = "player:requestBet"
	InSubmitSignedBet  = "player:submitSignedBet"
	InPlayerReady      = "duel:playerReady"
	InShoot            = "duel:shoot"
	InRequestAIMode    = "duel:requestAIMode"
)

// Event is one outbound message. Data is marshalled as-is.
type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data,omitempty"`
}

// New builds an event.
func New(t Type, data any) Event {
	return Event{Type: t, Data: data}
}

// Envelope is the inbound frame shape: a type tag plus a raw payload the
// handler decodes per type.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PlayerView is the client-facing projection of a player record.
type PlayerView struct {
	ID        string       `json:"id"`
	Wallet    string       `json:"wallet"`
	Name      string       `json:"name"`
	Role      models.Role  `json:"role"`
	BetAmount int64        `json:"bet_amount"`
	Health    int          `json:"health"`
	Pose      models.Pose  `json:"pose"`
	Stats     models.Stats `json:"stats"`
}

// ViewOf projects a player record for broadcast.
func ViewOf(p *models.Player) PlayerView {
	return PlayerView{
		ID:        p.ConnID,
		Wallet:    p.Wallet,
		Name:      p.Name,
		Role:      p.Role,
		BetAmount: p.BetAmount,
		Health:    p.Health,
		Pose:      p.Pose,
		Stats:     p.Stats,
	}
}

// MovePayload relays one player's pose to everyone else.
type MovePayload struct {
	ID   string      `json:"id"`
	Pose models.Pose `json:"pose"`
}

// ChallengePayload carries a fresh login challenge to one client.
type ChallengePayload struct {
	Message  string    `json:"message"`
	IssuedAt time.Time `json:"issued_at"`
}

// LobbyStatePayload is the full player map snapshot.
type LobbyStatePayload struct {
	Players []PlayerView `json:"players"`
}

// CountdownPayload carries the auction countdown; nil means not running.
type CountdownPayload struct {
	Seconds *int `json:"seconds"`
}

// BetIntentPayload is the unsigned payment instruction the client must
// sign and settle before the bet is credited.
type BetIntentPayload struct {
	Reference string `json:"reference"`
	Amount    int64  `json:"amount"`
	Escrow    string `json:"escrow"`
}

// BetAcceptedPayload confirms a verified, credited bet.
type BetAcceptedPayload struct {
	Amount int64 `json:"amount"`
	Total  int64 `json:"total"`
}

// WinnerData describes the settled outcome for display.
type WinnerData struct {
	WinnerID string `json:"winner_id,omitempty"`
	Wallet   string `json:"wallet,omitempty"`
	Payout   int64  `json:"payout"`
	IsSplit  bool   `json:"is_split"`
}

// PhaseChangePayload announces a top-level phase transition.
type PhaseChangePayload struct {
	Phase    models.GamePhase `json:"phase"`
	Fighters []PlayerView     `json:"fighters,omitempty"`
	RoundPot int64            `json:"round_pot,omitempty"`
	Winner   *WinnerData      `json:"winner_data,omitempty"`
}

// GongPayload is the "go" signal opening the aim phase.
type GongPayload struct {
	Round   int   `json:"round"`
	CycleMs int64 `json:"cycle_ms"`
}

// BarUpdatePayload is the high-rate visual bar tick.
type BarUpdatePayload struct {
	Position float64 `json:"position"`
}

// ShotPayload reports an adjudicated shot, including the server-computed
// bar position so clients can sync their animations.
type ShotPayload struct {
	ShooterID   string  `json:"shooter_id"`
	Hit         bool    `json:"hit"`
	BarPosition float64 `json:"bar_position"`
}

// NewRoundPayload announces a round escalation.
type NewRoundPayload struct {
	Round   int   `json:"round"`
	CycleMs int64 `json:"cycle_ms"`
}

// RoundEndPayload reports the combined outcome of a round.
type RoundEndPayload struct {
	Outcome  models.Outcome `json:"outcome"`
	WinnerID string         `json:"winner_id,omitempty"`
	LoserID  string         `json:"loser_id,omitempty"`
}

// ErrorPayload is a per-request, user-facing rejection.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
