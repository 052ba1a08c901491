package arena

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/internal/events"
	"github.com/mverch/highnoon/go/internal/models"
	"github.com/mverch/highnoon/go/internal/registry"
	"github.com/mverch/highnoon/go/internal/wallet"
)

// Inbound payload shapes. The hub delivers the raw envelope; each
// handler decodes its own type.
type joinPayload struct {
	Wallet    string `json:"wallet"`
	Name      string `json:"name"`
	Challenge string `json:"challenge"`
	Signature string `json:"signature"`
}

type namePayload struct {
	Name string `json:"name"`
}

type movePayload struct {
	models.Pose
}

type betRequestPayload struct {
	Amount int64 `json:"amount"`
}

type signedBetPayload struct {
	Reference string `json:"reference"`
	TxRef     string `json:"tx_ref"`
}

// HandleConnect runs when a socket is established. Identity waits for
// the challenge handshake.
func (a *Arena) HandleConnect(connID string) {
	log.Debug().Str("conn_id", connID).Msg("connection attached to arena")
}

// HandleMessage routes one inbound frame onto the serialized path.
func (a *Arena) HandleMessage(connID string, env events.Envelope) {
	a.post(func() { a.dispatch(connID, env) })
}

// HandleDisconnect runs when a socket drops, for any reason.
func (a *Arena) HandleDisconnect(connID string) {
	a.post(func() { a.disconnect(connID) })
}

func (a *Arena) dispatch(connID string, env events.Envelope) {
	switch env.Type {
	case events.InRequestChallenge:
		a.handleRequestChallenge(connID)
	case events.InJoinWithWallet:
		a.handleJoin(connID, env.Data)
	case events.InSetName:
		a.handleSetName(connID, env.Data)
	case events.InMove:
		a.handleMove(connID, env.Data)
	case events.InRequestBet:
		a.handleRequestBet(connID, env.Data)
	case events.InSubmitSignedBet:
		a.handleSignedBet(connID, env.Data)
	case events.InPlayerReady:
		if a.session != nil {
			a.session.PlayerReady(connID)
		}
	case events.InShoot:
		if a.session != nil {
			a.session.Shoot(connID)
		}
	case events.InRequestAIMode:
		if a.session != nil {
			a.session.RequestAI(connID)
		}
	default:
		log.Debug().Str("conn_id", connID).Str("type", env.Type).Msg("ignoring unknown inbound event")
	}
}

func (a *Arena) handleRequestChallenge(connID string) {
	ch := a.registry.Challenges().Issue(connID)
	a.hub.SendTo(connID, events.New(events.TypeChallenge, events.ChallengePayload{
		Message:  ch.Message,
		IssuedAt: ch.IssuedAt,
	}))
}

func (a *Arena) handleJoin(connID string, data json.RawMessage) {
	var p joinPayload
	if err := json.Unmarshal(data, &p); err != nil {
		a.sendError(connID, "bad_payload", "malformed join payload")
		return
	}

	player, err := a.registry.Authenticate(connID, p.Wallet, p.Name, p.Challenge, p.Signature)
	if err != nil {
		a.sendError(connID, authErrCode(err), err.Error())
		if a.registry.RecordAuthFailure(connID) {
			log.Warn().Str("conn_id", connID).Msg("auth failure threshold crossed, dropping connection")
			a.hub.CloseConn(connID)
		}
		return
	}

	a.hub.Broadcast(events.New(events.TypeJoined, events.ViewOf(player)))
	a.broadcastLobbyState()

	// Stats load is a DB round-trip; it re-enters with the result.
	walletAddr := player.Wallet
	go func() {
		s, err := a.stats.GetStats(a.ctx, walletAddr)
		if err != nil {
			log.Error().Err(err).Str("wallet", walletAddr).Msg("failed to load stats on join")
			return
		}
		a.post(func() {
			if pl := a.registry.ByWallet(walletAddr); pl != nil {
				pl.Stats = s
				a.hub.Broadcast(events.New(events.TypeJoined, events.ViewOf(pl)))
			}
		})
	}()
}

func (a *Arena) handleSetName(connID string, data json.RawMessage) {
	var p namePayload
	if err := json.Unmarshal(data, &p); err != nil || p.Name == "" {
		a.sendError(connID, "bad_payload", "malformed name payload")
		return
	}
	if err := a.registry.SetName(connID, p.Name); err != nil {
		a.sendError(connID, "not_joined", "join before setting a name")
		return
	}
	a.broadcastLobbyState()
}

func (a *Arena) handleMove(connID string, data json.RawMessage) {
	if a.registry.Get(connID) == nil {
		return
	}
	var p movePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return
	}
	a.registry.SetPose(connID, p.Pose)
	a.hub.Broadcast(events.New(events.TypePlayerMoved, events.MovePayload{ID: connID, Pose: p.Pose}))
}

// handleRequestBet validates a bet and answers with an unsigned payment
// intent. Nothing is credited until the payment clears verification.
func (a *Arena) handleRequestBet(connID string, data json.RawMessage) {
	if a.phase != models.PhaseLobby {
		a.sendError(connID, "not_in_lobby", registry.ErrNotInLobby.Error())
		return
	}
	var p betRequestPayload
	if err := json.Unmarshal(data, &p); err != nil {
		a.sendError(connID, "bad_payload", "malformed bet payload")
		return
	}

	player := a.registry.Get(connID)
	if player == nil {
		a.sendError(connID, "not_joined", "join before betting")
		return
	}
	if err := a.registry.ValidateBetRequest(connID, p.Amount); err != nil {
		a.sendError(connID, betErrCode(err), err.Error())
		return
	}

	ref := uuid.New().String()
	a.pendingBets[ref] = pendingBet{ConnID: connID, Wallet: player.Wallet, Amount: p.Amount}
	a.hub.SendTo(connID, events.New(events.TypeBetIntent, events.BetIntentPayload{
		Reference: ref,
		Amount:    p.Amount,
		Escrow:    a.cfg.EscrowAddress,
	}))
}

// handleSignedBet verifies the settled payment off-path, then credits
// the stake. Fail-closed: an unverifiable payment credits nothing.
func (a *Arena) handleSignedBet(connID string, data json.RawMessage) {
	var p signedBetPayload
	if err := json.Unmarshal(data, &p); err != nil {
		a.sendError(connID, "bad_payload", "malformed signed bet payload")
		return
	}

	pending, ok := a.pendingBets[p.Reference]
	if !ok || pending.ConnID != connID {
		a.sendError(connID, "unknown_reference", "no pending bet for that reference")
		return
	}
	delete(a.pendingBets, p.Reference)

	go func() {
		verified, err := a.verifier.VerifyPayment(a.ctx, p.TxRef, pending.Wallet, pending.Amount)
		a.post(func() { a.finishBet(pending, verified, err) })
	}()
}

func (a *Arena) finishBet(pending pendingBet, verified wallet.VerifiedPayment, verifyErr error) {
	if verifyErr != nil {
		log.Error().Err(verifyErr).Str("wallet", pending.Wallet).Msg("payment verification errored")
		a.sendError(pending.ConnID, "verification_unavailable", "payment could not be verified, nothing was credited")
		return
	}
	if !verified.Valid || verified.Amount != pending.Amount {
		a.sendError(pending.ConnID, "payment_rejected", "payment did not match the bet intent")
		return
	}
	if a.phase != models.PhaseLobby {
		// The auction closed while the payment settled. The verified
		// stake is held and enters the next cycle at reset; it does not
		// vanish into escrow.
		a.carriedBets = append(a.carriedBets, pending)
		a.sendError(pending.ConnID, "auction_closed", "auction closed during payment, stake carried to the next round")
		log.Info().Str("wallet", pending.Wallet).Int64("amount", pending.Amount).Msg("late verified bet carried to next cycle")
		return
	}

	player, err := a.registry.CreditBet(pending.ConnID, pending.Amount)
	if err != nil {
		// Player left between intent and settlement; return the stake.
		log.Warn().Str("wallet", pending.Wallet).Msg("verified bet for departed player, refunding")
		go a.settler.Refund(a.ctx, pending.Wallet, pending.Amount)
		return
	}

	a.hub.SendTo(pending.ConnID, events.New(events.TypeBetAccepted, events.BetAcceptedPayload{
		Amount: pending.Amount,
		Total:  player.BetAmount,
	}))
	a.broadcastLobbyState()
	a.onBetsChanged()

	a.publisher.Publish(a.ctx, "lobby.bet", map[string]any{
		"wallet": pending.Wallet,
		"amount": pending.Amount,
		"total":  player.BetAmount,
	})
}

func (a *Arena) onBetsChanged() {
	change := a.auction.OnBetsChanged(a.bidderSnapshot())
	switch {
	case change.Cancelled:
		a.hub.Broadcast(events.New(events.TypeLobbyCountdown, events.CountdownPayload{}))
	case change.Started, change.Extended:
		a.hub.Broadcast(events.New(events.TypeLobbyCountdown, events.CountdownPayload{Seconds: a.auction.Countdown()}))
	}
}

func (a *Arena) disconnect(connID string) {
	if a.session != nil && a.session.Disconnect(connID) {
		// Session resolution cascades through onDuelFinished.
		log.Info().Str("conn_id", connID).Msg("fighter disconnect resolved duel")
	}

	player := a.registry.Remove(connID)
	if player == nil {
		return
	}

	a.hub.Broadcast(events.New(events.TypeLeft, events.ViewOf(player)))
	a.broadcastLobbyState()
	if a.phase == models.PhaseLobby && player.HasBid() {
		a.onBetsChanged()
	}
}

func (a *Arena) sendError(connID, code, msg string) {
	a.hub.SendTo(connID, events.New(events.TypeError, events.ErrorPayload{Code: code, Message: msg}))
}

func authErrCode(err error) string {
	switch {
	case errors.Is(err, registry.ErrMissingFields):
		return "missing_fields"
	case errors.Is(err, registry.ErrDuplicateWallet):
		return "wallet_in_use"
	case errors.Is(err, wallet.ErrNoChallenge), errors.Is(err, wallet.ErrChallengeMismatch), errors.Is(err, wallet.ErrChallengeStale):
		return "bad_challenge"
	case errors.Is(err, wallet.ErrBadSignature):
		return "bad_signature"
	default:
		return "auth_failed"
	}
}

func betErrCode(err error) string {
	switch {
	case errors.Is(err, registry.ErrBetOutOfBounds):
		return "bet_out_of_bounds"
	case errors.Is(err, registry.ErrBetCooldown):
		return "bet_cooldown"
	case errors.Is(err, registry.ErrUnknownPlayer):
		return "not_joined"
	default:
		return "bet_rejected"
	}
}
