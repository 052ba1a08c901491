package models

import "time"

// Role describes what a connected player is doing in the current cycle.
type Role string

const (
	RoleSpectator Role = "spectator"
	RoleContender Role = "contender"
	RoleFighter   Role = "fighter"
)

// Stats is the lifetime record for a wallet, persisted across sessions.
type Stats struct {
	Kills       int   `json:"kills"`
	Deaths      int   `json:"deaths"`
	Wins        int   `json:"wins"`
	GamesPlayed int   `json:"games_played"`
	NetWinnings int64 `json:"net_winnings"`
}

// StatsDelta is an increment applied to a wallet's lifetime stats.
type StatsDelta struct {
	Kills       int
	Deaths      int
	Wins        int
	GamesPlayed int
	Net         int64
}

// Pose is the 3D position/rotation reported by the client. The server
// relays it to other clients but never interprets it.
type Pose struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	RotY float64 `json:"rot_y"`
}

// Player is an authenticated connection. The connection ID is ephemeral;
// the wallet address is the stable identity that stats are keyed by.
type Player struct {
	ConnID string `json:"id"`
	Wallet string `json:"wallet"`
	Name   string `json:"name"`
	Role   Role   `json:"role"`

	// Auction-cycle state, zeroed at the start of every lobby phase.
	BetAmount int64      `json:"bet_amount"`
	LastBetAt *time.Time `json:"last_bet_at,omitempty"`

	// Duel state. Health is binary: 1 alive, 0 dead.
	Health int  `json:"health"`
	Pose   Pose `json:"pose"`

	Stats Stats `json:"stats"`

	JoinedAt time.Time `json:"joined_at"`
}

// HasBid reports whether the player has a live stake in the current cycle.
func (p *Player) HasBid() bool {
	return p.BetAmount > 0
}
