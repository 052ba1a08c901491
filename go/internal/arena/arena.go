// Package arena is the authoritative game loop. Every state mutation,
// whether from inbound client events, timer callbacks, auction ticks, or
// settlement results, funnels through one serialized command channel, so
// the domain packages below it (registry, auction, duel) need no locking.
package arena

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/internal/auction"
	"github.com/mverch/highnoon/go/internal/duel"
	"github.com/mverch/highnoon/go/internal/events"
	"github.com/mverch/highnoon/go/internal/models"
	"github.com/mverch/highnoon/go/internal/registry"
	"github.com/mverch/highnoon/go/internal/settlement"
	"github.com/mverch/highnoon/go/internal/wallet"
)

// Broadcaster is what the arena needs from the transport layer.
// Satisfied by *hub.Hub.
type Broadcaster interface {
	Broadcast(ev events.Event)
	SendTo(connID string, ev events.Event)
	CloseConn(connID string)
}

// StatsReader loads lifetime stats for display. Satisfied by
// *stats.Repository.
type StatsReader interface {
	GetStats(ctx context.Context, walletAddr string) (models.Stats, error)
}

// Config tunes the arena loop.
type Config struct {
	BetLimits registry.BetLimits
	Auction   auction.Config
	Duel      duel.Config

	// EscrowAddress is the gateway escrow wallet clients pay bets into.
	EscrowAddress string

	// ReadyTimeout bounds the pre-duel handshake: fighters who have not
	// readied by then are switched to AI control so the duel proceeds.
	ReadyTimeout time.Duration

	// DisplayDelay holds the settlement screen before the next lobby.
	DisplayDelay time.Duration

	// BarTickInterval paces the cosmetic bar broadcast. Adjudication
	// never reads these ticks; it samples the oracle directly.
	BarTickInterval time.Duration
}

// DefaultConfig is the shipped arena tuning.
func DefaultConfig() Config {
	return Config{
		BetLimits:       registry.BetLimits{Min: 100, Max: 1_000_000, Cooldown: 3 * time.Second},
		Auction:         auction.DefaultConfig(),
		Duel:            duel.DefaultConfig(),
		ReadyTimeout:    15 * time.Second,
		DisplayDelay:    10 * time.Second,
		BarTickInterval: 16 * time.Millisecond, // ~60Hz visual tick
	}
}

type pendingBet struct {
	ConnID string
	Wallet string
	Amount int64
}

// Arena owns the full game cycle: lobby auction, duel, settlement,
// reset.
type Arena struct {
	cfg   Config
	clock clockwork.Clock

	hub       Broadcaster
	registry  *registry.Registry
	auction   *auction.Coordinator
	settler   *settlement.Orchestrator
	verifier  wallet.PaymentVerifier
	stats     StatsReader
	publisher *events.Publisher

	phase   models.GamePhase
	session *duel.Session
	pot     int64

	// duelFighters captures stakes at finalization; settlement reads
	// them even if the players disconnect mid-duel.
	duelFighters [2]settlement.Fighter

	pendingBets map[string]pendingBet // intent reference -> bet

	// carriedBets are verified stakes whose payment settled after the
	// auction closed; they enter the next lobby cycle.
	carriedBets []pendingBet

	cmdCh chan func()
	ctx   context.Context
}

// New wires an arena. ctx bounds the loop's lifetime and every call the
// arena makes into persistence and the payment rail; it is fixed at
// construction so transport goroutines can post safely before Run
// starts. publisher may be nil.
func New(ctx context.Context, cfg Config, clock clockwork.Clock, reg *registry.Registry, settler *settlement.Orchestrator, verifier wallet.PaymentVerifier, stats StatsReader, publisher *events.Publisher) *Arena {
	return &Arena{
		cfg:         cfg,
		clock:       clock,
		registry:    reg,
		auction:     auction.New(cfg.Auction),
		settler:     settler,
		verifier:    verifier,
		stats:       stats,
		publisher:   publisher,
		phase:       models.PhaseLobby,
		pendingBets: make(map[string]pendingBet),
		cmdCh:       make(chan func(), 256),
		ctx:         ctx,
	}
}

// SetHub attaches the transport. Called once during wiring, before Run;
// the hub needs the arena as its handler and vice versa.
func (a *Arena) SetHub(hub Broadcaster) {
	a.hub = hub
}

// Run drives the serialized loop until the construction context is
// cancelled.
func (a *Arena) Run() {
	second := a.clock.NewTicker(time.Second)
	defer second.Stop()
	bar := a.clock.NewTicker(a.cfg.BarTickInterval)
	defer bar.Stop()

	log.Info().Msg("arena loop started")
	for {
		select {
		case <-a.ctx.Done():
			log.Info().Msg("arena loop shutting down")
			return
		case fn := <-a.cmdCh:
			fn()
		case <-second.Chan():
			a.tickSecond()
		case <-bar.Chan():
			a.tickBar()
		}
	}
}

// post marshals fn onto the serialized path. Callers are transport and
// timer goroutines; the loop itself calls its methods directly.
func (a *Arena) post(fn func()) {
	select {
	case a.cmdCh <- fn:
	case <-a.ctx.Done():
	}
}

// schedule is the duel.Scheduler implementation: the callback is
// re-entered through the command channel.
func (a *Arena) schedule(d time.Duration, fn func()) func() {
	timer := a.clock.AfterFunc(d, func() {
		a.post(fn)
	})
	return func() { timer.Stop() }
}

// tickSecond drives the auction countdown.
func (a *Arena) tickSecond() {
	if a.phase != models.PhaseLobby || !a.auction.Running() {
		return
	}
	res := a.auction.Tick(a.bidderSnapshot())
	switch {
	case res.Finalized != nil:
		a.startDuel(*res.Finalized)
	case res.Cancelled:
		a.hub.Broadcast(events.New(events.TypeLobbyCountdown, events.CountdownPayload{}))
	case res.Countdown != nil:
		a.hub.Broadcast(events.New(events.TypeLobbyCountdown, events.CountdownPayload{Seconds: res.Countdown}))
	}
}

// tickBar streams the cosmetic bar position while an aim phase is open.
func (a *Arena) tickBar() {
	if a.session == nil {
		return
	}
	if pos, ok := a.session.BarPosition(); ok {
		a.hub.Broadcast(events.New(events.TypeBarUpdate, events.BarUpdatePayload{Position: pos}))
	}
}

func (a *Arena) bidderSnapshot() []auction.Bidder {
	players := a.registry.Bidders()
	out := make([]auction.Bidder, 0, len(players))
	for _, p := range players {
		b := auction.Bidder{ConnID: p.ConnID, Wallet: p.Wallet, Amount: p.BetAmount}
		if p.LastBetAt != nil {
			b.LastBetAt = *p.LastBetAt
		}
		out = append(out, b)
	}
	return out
}

// startDuel is the irreversible lobby-to-duel transition.
func (a *Arena) startDuel(fin auction.Finalization) {
	f0 := a.registry.Get(fin.Fighters[0].ConnID)
	f1 := a.registry.Get(fin.Fighters[1].ConnID)
	if f0 == nil || f1 == nil {
		// A finalist vanished between the last bet event and this tick.
		log.Warn().Msg("finalized fighter missing, cancelling cycle")
		a.resetCycle()
		return
	}

	a.phase = models.PhaseDuel
	a.pot = fin.Pot
	a.duelFighters = [2]settlement.Fighter{
		{ConnID: f0.ConnID, Wallet: f0.Wallet, Stake: f0.BetAmount},
		{ConnID: f1.ConnID, Wallet: f1.Wallet, Stake: f1.BetAmount},
	}

	a.session = duel.NewSession(a.cfg.Duel, a.clock, a.schedule, a.hub, [2]*models.Player{f0, f1}, a.onDuelFinished)
	a.session.Start()

	// Unready fighters are switched to AI when the handshake stalls.
	sess := a.session
	a.schedule(a.cfg.ReadyTimeout, func() {
		if a.session != sess || sess.State() != models.DuelWaiting {
			return
		}
		for _, f := range sess.Fighters() {
			sess.RequestAI(f.ConnID)
		}
	})

	a.hub.Broadcast(events.New(events.TypePhaseChange, events.PhaseChangePayload{
		Phase:    models.PhaseDuel,
		Fighters: []events.PlayerView{events.ViewOf(f0), events.ViewOf(f1)},
		RoundPot: a.pot,
	}))

	losers := make([]settlement.Fighter, 0, len(fin.NonFighters))
	for _, b := range fin.NonFighters {
		losers = append(losers, settlement.Fighter{ConnID: b.ConnID, Wallet: b.Wallet, Stake: b.Amount})
	}
	if len(losers) > 0 {
		go a.settler.RecordForfeits(a.ctx, losers)
	}

	a.publisher.Publish(a.ctx, "duel.started", map[string]any{
		"duel_id": a.session.ID.String(),
		"pot":     a.pot,
	})
	log.Info().
		Str("duel_id", a.session.ID.String()).
		Int64("pot", a.pot).
		Int("forfeits", len(losers)).
		Msg("duel started")
}

// onDuelFinished runs on the serialized path when the session resolves.
// Settlement happens off-path; its result re-enters to drive the display
// and reset.
func (a *Arena) onDuelFinished(res duel.Resolution) {
	a.phase = models.PhaseSettling

	winnerIdx := -1
	if !res.IsSplit && res.Winner != nil {
		for i, f := range a.duelFighters {
			if f.ConnID == res.Winner.ConnID {
				winnerIdx = i
			}
		}
	}

	pot := a.pot
	fighters := a.duelFighters
	duelID := res.DuelID
	go func() {
		settled := a.settler.Settle(a.ctx, duelID, pot, fighters, winnerIdx)
		a.post(func() { a.announceSettlement(fighters, winnerIdx, settled) })
	}()
}

func (a *Arena) announceSettlement(fighters [2]settlement.Fighter, winnerIdx int, settled settlement.Result) {
	winner := &events.WinnerData{
		Payout:  settled.WinnerPayout,
		IsSplit: winnerIdx < 0,
	}
	if winnerIdx >= 0 {
		winner.WinnerID = fighters[winnerIdx].ConnID
		winner.Wallet = fighters[winnerIdx].Wallet
	}
	a.hub.Broadcast(events.New(events.TypePhaseChange, events.PhaseChangePayload{
		Phase:  models.PhaseSettling,
		Winner: winner,
	}))

	a.schedule(a.cfg.DisplayDelay, a.resetCycle)
}

// resetCycle returns everyone to a fresh lobby.
func (a *Arena) resetCycle() {
	a.session = nil
	a.pot = 0
	a.duelFighters = [2]settlement.Fighter{}
	a.pendingBets = make(map[string]pendingBet)
	a.registry.ResetCycle()
	a.auction.Reset()
	a.phase = models.PhaseLobby

	carried := a.carriedBets
	a.carriedBets = nil
	for _, cb := range carried {
		a.applyCarriedBet(cb)
	}

	a.hub.Broadcast(events.New(events.TypePhaseChange, events.PhaseChangePayload{Phase: models.PhaseLobby}))
	a.broadcastLobbyState()
	if len(carried) > 0 {
		a.onBetsChanged()
	}
	a.refreshStats()
	log.Info().Int("players", a.registry.Len()).Msg("cycle reset, lobby open")
}

// applyCarriedBet credits a stake whose payment verified after its
// auction closed. The holder may have reconnected under a new
// connection, so the lookup goes by wallet; a departed holder is
// refunded through the payment rail.
func (a *Arena) applyCarriedBet(cb pendingBet) {
	p := a.registry.ByWallet(cb.Wallet)
	if p == nil {
		log.Warn().Str("wallet", cb.Wallet).Int64("amount", cb.Amount).Msg("carried bet holder gone, refunding stake")
		go a.settler.Refund(a.ctx, cb.Wallet, cb.Amount)
		return
	}
	player, err := a.registry.CreditBet(p.ConnID, cb.Amount)
	if err != nil {
		return
	}
	log.Info().Str("wallet", cb.Wallet).Int64("amount", cb.Amount).Msg("carried bet entered new cycle")
	a.hub.SendTo(p.ConnID, events.New(events.TypeBetAccepted, events.BetAcceptedPayload{
		Amount: cb.Amount,
		Total:  player.BetAmount,
	}))
}

// refreshStats re-reads persisted stats so the new lobby shows settled
// results.
func (a *Arena) refreshStats() {
	wallets := make([]string, 0, a.registry.Len())
	for _, p := range a.registry.All() {
		wallets = append(wallets, p.Wallet)
	}
	go func() {
		for _, w := range wallets {
			s, err := a.stats.GetStats(a.ctx, w)
			if err != nil {
				log.Error().Err(err).Str("wallet", w).Msg("failed to refresh stats")
				continue
			}
			walletAddr := w
			a.post(func() {
				if p := a.registry.ByWallet(walletAddr); p != nil {
					p.Stats = s
				}
			})
		}
		a.post(a.broadcastLobbyState)
	}()
}

func (a *Arena) broadcastLobbyState() {
	players := a.registry.All()
	views := make([]events.PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, events.ViewOf(p))
	}
	a.hub.Broadcast(events.New(events.TypeLobbyState, events.LobbyStatePayload{Players: views}))
}
