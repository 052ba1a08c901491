// Package stats persists lifetime player records and the payout audit
// trail, keyed by stable wallet identity.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/mverch/highnoon/go/internal/models"
)

// DBTX is what the repository needs from the database layer; satisfied
// by *pgxpool.Pool and pgx.Tx alike.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository implements stat and payout persistence.
type Repository struct {
	db DBTX
}

// NewRepository creates a stats repository.
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

// GetStats fetches a wallet's lifetime stats. An unknown wallet gets a
// zero record, not an error.
func (r *Repository) GetStats(ctx context.Context, wallet string) (models.Stats, error) {
	var s models.Stats
	err := r.db.QueryRow(ctx, `
		SELECT kills, deaths, wins, games_played, net_winnings
		FROM player_stats
		WHERE wallet = $1`, wallet,
	).Scan(&s.Kills, &s.Deaths, &s.Wins, &s.GamesPlayed, &s.NetWinnings)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Stats{}, nil
	}
	if err != nil {
		return models.Stats{}, fmt.Errorf("failed to get stats for %s: %w", wallet, err)
	}
	return s, nil
}

// ApplyResult increments a wallet's lifetime stats.
func (r *Repository) ApplyResult(ctx context.Context, wallet string, d models.StatsDelta) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO player_stats (wallet, kills, deaths, wins, games_played, net_winnings)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (wallet) DO UPDATE SET
			kills        = player_stats.kills + EXCLUDED.kills,
			deaths       = player_stats.deaths + EXCLUDED.deaths,
			wins         = player_stats.wins + EXCLUDED.wins,
			games_played = player_stats.games_played + EXCLUDED.games_played,
			net_winnings = player_stats.net_winnings + EXCLUDED.net_winnings`,
		wallet, d.Kills, d.Deaths, d.Wins, d.GamesPlayed, d.Net)
	if err != nil {
		return fmt.Errorf("failed to apply stats delta for %s: %w", wallet, err)
	}
	return nil
}

// InsertPayout writes a payout audit record.
func (r *Repository) InsertPayout(ctx context.Context, tx models.PayoutTransaction) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO payout_transactions (id, duel_id, wallet, amount, status, tx_ref, fail_reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		tx.ID, tx.DuelID, tx.Wallet, tx.Amount, tx.Status, tx.TxRef, tx.FailReason, tx.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payout record: %w", err)
	}
	return nil
}

// MarkPayout updates a payout record after the payment rail returns.
func (r *Repository) MarkPayout(ctx context.Context, id uuid.UUID, status models.PayoutStatus, txRef, failReason string) error {
	_, err := r.db.Exec(ctx, `
		UPDATE payout_transactions
		SET status = $2, tx_ref = $3, fail_reason = $4,
		    confirmed_at = CASE WHEN $2 = 'CONFIRMED' THEN now() ELSE confirmed_at END
		WHERE id = $1`,
		id, status, txRef, failReason)
	if err != nil {
		return fmt.Errorf("failed to mark payout %s: %w", id, err)
	}
	return nil
}

// ListFailedPayouts returns FAILED payouts for reconciliation tooling.
func (r *Repository) ListFailedPayouts(ctx context.Context, limit int) ([]models.PayoutTransaction, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, duel_id, wallet, amount, status, tx_ref, fail_reason, created_at, confirmed_at
		FROM payout_transactions
		WHERE status = 'FAILED'
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list failed payouts: %w", err)
	}
	defer rows.Close()

	var out []models.PayoutTransaction
	for rows.Next() {
		var tx models.PayoutTransaction
		if err := rows.Scan(&tx.ID, &tx.DuelID, &tx.Wallet, &tx.Amount, &tx.Status, &tx.TxRef, &tx.FailReason, &tx.CreatedAt, &tx.ConfirmedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout row: %w", err)
		}
		out = append(out, tx)
	}
	return out, rows.Err()
}
