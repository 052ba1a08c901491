// Package registry owns the connection-to-player mapping: wallet
// authentication, display names, bet accumulation, and lifecycle.
// All mutation happens on the arena's serialized path; the registry
// itself holds no locks.
package registry

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/internal/models"
	"github.com/mverch/highnoon/go/internal/wallet"
)

// BetLimits bounds and rate-limits bet requests.
type BetLimits struct {
	Min      int64
	Max      int64
	Cooldown time.Duration
}

// authFailWindow and authFailLimit drive forced disconnects: repeated
// auth failures from one connection inside the window are abuse.
const (
	authFailWindow = time.Minute
	authFailLimit  = 3
)

// Registry maps connection ids to authenticated players.
type Registry struct {
	clock      clockwork.Clock
	challenges *wallet.ChallengeStore
	limits     BetLimits

	players map[string]*models.Player
	wallets map[string]string // wallet -> connID

	lastBetRequest map[string]time.Time
	authFailures   map[string][]time.Time
}

// New creates an empty registry.
func New(clock clockwork.Clock, challenges *wallet.ChallengeStore, limits BetLimits) *Registry {
	return &Registry{
		clock:          clock,
		challenges:     challenges,
		limits:         limits,
		players:        make(map[string]*models.Player),
		wallets:        make(map[string]string),
		lastBetRequest: make(map[string]time.Time),
		authFailures:   make(map[string][]time.Time),
	}
}

// Challenges exposes the challenge store for issuing login challenges.
func (r *Registry) Challenges() *wallet.ChallengeStore {
	return r.challenges
}

// Authenticate verifies a signed challenge and registers the player.
// The challenge is single-use: it is invalidated whether or not the
// signature checks out.
func (r *Registry) Authenticate(connID, walletHex, name, challengeMsg, sigHex string) (*models.Player, error) {
	if walletHex == "" || sigHex == "" || challengeMsg == "" {
		return nil, ErrMissingFields
	}

	if err := r.challenges.Consume(connID, challengeMsg); err != nil {
		return nil, err
	}
	if err := wallet.VerifySignature(walletHex, challengeMsg, sigHex); err != nil {
		return nil, err
	}
	if _, taken := r.wallets[walletHex]; taken {
		return nil, ErrDuplicateWallet
	}

	now := r.clock.Now()
	p := &models.Player{
		ConnID:   connID,
		Wallet:   walletHex,
		Name:     name,
		Role:     models.RoleSpectator,
		Health:   1,
		JoinedAt: now,
	}
	r.players[connID] = p
	r.wallets[walletHex] = connID
	delete(r.authFailures, connID)

	log.Info().
		Str("conn_id", connID).
		Str("wallet", walletHex).
		Str("name", name).
		Msg("player authenticated")
	return p, nil
}

// RecordAuthFailure tracks a failed attempt and reports whether the
// connection crossed the abuse threshold and should be dropped.
func (r *Registry) RecordAuthFailure(connID string) bool {
	now := r.clock.Now()
	recent := r.authFailures[connID][:0]
	for _, ts := range r.authFailures[connID] {
		if now.Sub(ts) <= authFailWindow {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	r.authFailures[connID] = recent
	return len(recent) >= authFailLimit
}

// Get returns the player for a connection, or nil.
func (r *Registry) Get(connID string) *models.Player {
	return r.players[connID]
}

// ByWallet returns the player holding the given wallet, or nil.
func (r *Registry) ByWallet(walletHex string) *models.Player {
	if connID, ok := r.wallets[walletHex]; ok {
		return r.players[connID]
	}
	return nil
}

// SetName updates a player's display name.
func (r *Registry) SetName(connID, name string) error {
	p := r.players[connID]
	if p == nil {
		return ErrUnknownPlayer
	}
	p.Name = name
	return nil
}

// SetPose records the relayed 3D pose. The server never interprets it.
func (r *Registry) SetPose(connID string, pose models.Pose) {
	if p := r.players[connID]; p != nil {
		p.Pose = pose
	}
}

// ValidateBetRequest checks bounds and the fixed-window cooldown for a
// bet request. A passing request stamps the cooldown window; nothing is
// credited here, crediting waits for payment verification.
func (r *Registry) ValidateBetRequest(connID string, amount int64) error {
	p := r.players[connID]
	if p == nil {
		return ErrUnknownPlayer
	}
	if amount < r.limits.Min || amount > r.limits.Max {
		return ErrBetOutOfBounds
	}
	now := r.clock.Now()
	if last, ok := r.lastBetRequest[connID]; ok && now.Sub(last) < r.limits.Cooldown {
		return ErrBetCooldown
	}
	r.lastBetRequest[connID] = now
	return nil
}

// CreditBet accumulates a verified bet onto the player record. Only the
// payment-verification success path calls this.
func (r *Registry) CreditBet(connID string, amount int64) (*models.Player, error) {
	p := r.players[connID]
	if p == nil {
		return nil, ErrUnknownPlayer
	}
	now := r.clock.Now()
	p.BetAmount += amount
	p.LastBetAt = &now
	p.Role = models.RoleContender
	return p, nil
}

// Remove deletes the player record and returns it (nil if unknown).
func (r *Registry) Remove(connID string) *models.Player {
	p := r.players[connID]
	if p == nil {
		r.challenges.Drop(connID)
		delete(r.authFailures, connID)
		return nil
	}
	delete(r.players, connID)
	delete(r.wallets, p.Wallet)
	delete(r.lastBetRequest, connID)
	delete(r.authFailures, connID)
	r.challenges.Drop(connID)
	return p
}

// ResetCycle zeroes all auction-cycle state for a fresh lobby phase.
func (r *Registry) ResetCycle() {
	for _, p := range r.players {
		p.BetAmount = 0
		p.LastBetAt = nil
		p.Role = models.RoleSpectator
		p.Health = 1
	}
}

// Bidders returns all players with a live stake this cycle.
func (r *Registry) Bidders() []*models.Player {
	var out []*models.Player
	for _, p := range r.players {
		if p.HasBid() {
			out = append(out, p)
		}
	}
	return out
}

// All returns every registered player.
func (r *Registry) All() []*models.Player {
	out := make([]*models.Player, 0, len(r.players))
	for _, p := range r.players {
		out = append(out, p)
	}
	return out
}

// Len returns the number of registered players.
func (r *Registry) Len() int {
	return len(r.players)
}
