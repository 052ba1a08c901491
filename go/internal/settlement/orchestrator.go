// Package settlement turns a finished duel into money movement and
// stats: pot split, payout execution through the payment rail, the
// transaction audit trail, and lifetime stat updates.
package settlement

import (
	"context"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/internal/events"
	"github.com/mverch/highnoon/go/internal/models"
	"github.com/mverch/highnoon/go/internal/wallet"
)

// StatsStore is what settlement needs from persistence.
type StatsStore interface {
	ApplyResult(ctx context.Context, walletAddr string, delta models.StatsDelta) error
	InsertPayout(ctx context.Context, tx models.PayoutTransaction) error
	MarkPayout(ctx context.Context, id uuid.UUID, status models.PayoutStatus, txRef, failReason string) error
}

// Config tunes settlement.
type Config struct {
	FeePercent int // protocol fee retained from the pot
}

// DefaultConfig is the shipped settlement tuning.
func DefaultConfig() Config {
	return Config{FeePercent: 10}
}

// Fighter is one duel participant's stake at settlement time.
type Fighter struct {
	ConnID string
	Wallet string
	Stake  int64
}

// Result summarizes a settlement for broadcast and audit.
type Result struct {
	Fee      int64
	Receipts []models.PayoutTransaction
	// WinnerPayout is the amount paid to the single winner, or the
	// per-fighter share on a split.
	WinnerPayout int64
}

// Orchestrator executes settlements. It never touches live game state:
// the arena calls it off the serialized path and re-joins with the
// result.
type Orchestrator struct {
	cfg       Config
	clock     clockwork.Clock
	payouts   wallet.PayoutExecutor
	store     StatsStore
	publisher *events.Publisher
}

// New creates a settlement orchestrator. publisher may be nil.
func New(cfg Config, clock clockwork.Clock, payouts wallet.PayoutExecutor, store StatsStore, publisher *events.Publisher) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		clock:     clock,
		payouts:   payouts,
		store:     store,
		publisher: publisher,
	}
}

// Settle distributes the pot for a finished duel. winnerIdx is the index
// into fighters, or -1 for a split (timeout draw).
//
// Lifetime stats are updated from the sporting outcome whether or not
// the payout transfer succeeds: a failed payout is flagged FAILED in the
// audit trail for reconciliation, it does not hide who won.
func (o *Orchestrator) Settle(ctx context.Context, duelID uuid.UUID, pot int64, fighters [2]Fighter, winnerIdx int) Result {
	fee := pot * int64(o.cfg.FeePercent) / 100
	remainder := pot - fee

	res := Result{Fee: fee}

	if winnerIdx >= 0 {
		winner := fighters[winnerIdx]
		loser := fighters[1-winnerIdx]
		res.WinnerPayout = remainder

		res.Receipts = append(res.Receipts, o.executePayout(ctx, duelID, winner.Wallet, remainder))

		o.applyStats(ctx, winner.Wallet, models.StatsDelta{
			Wins: 1, Kills: 1, GamesPlayed: 1, Net: remainder - winner.Stake,
		})
		o.applyStats(ctx, loser.Wallet, models.StatsDelta{
			Deaths: 1, GamesPlayed: 1, Net: -loser.Stake,
		})
	} else {
		share := remainder / 2
		res.WinnerPayout = share
		for _, f := range fighters {
			res.Receipts = append(res.Receipts, o.executePayout(ctx, duelID, f.Wallet, share))
			o.applyStats(ctx, f.Wallet, models.StatsDelta{
				GamesPlayed: 1, Net: share - f.Stake,
			})
		}
	}

	o.publisher.Publish(ctx, "duel.settled", map[string]any{
		"duel_id":  duelID.String(),
		"pot":      pot,
		"fee":      fee,
		"is_split": winnerIdx < 0,
	})

	log.Info().
		Str("duel_id", duelID.String()).
		Int64("pot", pot).
		Int64("fee", fee).
		Bool("is_split", winnerIdx < 0).
		Msg("duel settled")
	return res
}

// Refund returns a verified stake that never entered an auction, fee
// free, through the same audited payout path. Used when a bet's payment
// settles late and its holder is gone before the next lobby opens.
func (o *Orchestrator) Refund(ctx context.Context, recipient string, amount int64) models.PayoutTransaction {
	log.Info().Str("wallet", recipient).Int64("amount", amount).Msg("refunding orphaned stake")
	return o.executePayout(ctx, uuid.Nil, recipient, amount)
}

// RecordForfeits marks non-fighter bidders' stakes as lost at auction
// finalization. Their tokens are already in the pot.
func (o *Orchestrator) RecordForfeits(ctx context.Context, losers []Fighter) {
	for _, l := range losers {
		o.applyStats(ctx, l.Wallet, models.StatsDelta{GamesPlayed: 1, Net: -l.Stake})
	}
}

// executePayout writes the pending audit record, invokes the payment
// rail, and updates the record to confirmed or failed.
func (o *Orchestrator) executePayout(ctx context.Context, duelID uuid.UUID, recipient string, amount int64) models.PayoutTransaction {
	tx := models.PayoutTransaction{
		ID:        uuid.New(),
		DuelID:    duelID,
		Wallet:    recipient,
		Amount:    amount,
		Status:    models.PayoutPending,
		CreatedAt: o.clock.Now(),
	}
	if err := o.store.InsertPayout(ctx, tx); err != nil {
		log.Error().Err(err).Str("wallet", recipient).Msg("failed to record pending payout")
	}

	ref, err := o.payouts.ExecutePayout(ctx, recipient, amount)
	if err != nil {
		tx.Status = models.PayoutFailed
		tx.FailReason = err.Error()
		log.Error().
			Err(err).
			Str("duel_id", duelID.String()).
			Str("wallet", recipient).
			Int64("amount", amount).
			Msg("payout execution failed, flagged for reconciliation")
	} else {
		now := o.clock.Now()
		tx.Status = models.PayoutConfirmed
		tx.TxRef = ref
		tx.ConfirmedAt = &now
	}

	if err := o.store.MarkPayout(ctx, tx.ID, tx.Status, tx.TxRef, tx.FailReason); err != nil {
		log.Error().Err(err).Str("payout_id", tx.ID.String()).Msg("failed to update payout record")
	}

	o.publisher.Publish(ctx, "settlement.payout", tx)
	return tx
}

func (o *Orchestrator) applyStats(ctx context.Context, walletAddr string, delta models.StatsDelta) {
	if err := o.store.ApplyResult(ctx, walletAddr, delta); err != nil {
		log.Error().Err(err).Str("wallet", walletAddr).Msg("failed to apply stats delta")
	}
}
