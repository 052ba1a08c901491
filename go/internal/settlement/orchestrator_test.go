package settlement

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mverch/highnoon/go/internal/models"
)

type fakeStore struct {
	deltas   map[string]models.StatsDelta
	inserted []models.PayoutTransaction
	marked   map[uuid.UUID]models.PayoutStatus
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		deltas: make(map[string]models.StatsDelta),
		marked: make(map[uuid.UUID]models.PayoutStatus),
	}
}

func (s *fakeStore) ApplyResult(_ context.Context, wallet string, d models.StatsDelta) error {
	cur := s.deltas[wallet]
	cur.Wins += d.Wins
	cur.Kills += d.Kills
	cur.Deaths += d.Deaths
	cur.GamesPlayed += d.GamesPlayed
	cur.Net += d.Net
	s.deltas[wallet] = cur
	return nil
}

func (s *fakeStore) InsertPayout(_ context.Context, tx models.PayoutTransaction) error {
	s.inserted = append(s.inserted, tx)
	return nil
}

func (s *fakeStore) MarkPayout(_ context.Context, id uuid.UUID, status models.PayoutStatus, _, _ string) error {
	s.marked[id] = status
	return nil
}

type fakePayouts struct {
	calls []struct {
		recipient string
		amount    int64
	}
	err error
}

func (p *fakePayouts) ExecutePayout(_ context.Context, recipient string, amount int64) (string, error) {
	p.calls = append(p.calls, struct {
		recipient string
		amount    int64
	}{recipient, amount})
	if p.err != nil {
		return "", p.err
	}
	return "tx-" + recipient, nil
}

func fightersFixture() [2]Fighter {
	return [2]Fighter{
		{ConnID: "conn-a", Wallet: "wallet-a", Stake: 1000},
		{ConnID: "conn-b", Wallet: "wallet-b", Stake: 2500},
	}
}

func TestSettleWinnerTakesPotMinusFee(t *testing.T) {
	store := newFakeStore()
	payouts := &fakePayouts{}
	o := New(DefaultConfig(), clockwork.NewFakeClock(), payouts, store, nil)

	// Pot includes a forfeited non-fighter stake: 1000+2500+500.
	res := o.Settle(context.Background(), uuid.New(), 4000, fightersFixture(), 1)

	assert.Equal(t, int64(400), res.Fee, "10%% protocol fee")
	assert.Equal(t, int64(3600), res.WinnerPayout)

	require.Len(t, payouts.calls, 1)
	assert.Equal(t, "wallet-b", payouts.calls[0].recipient)
	assert.Equal(t, int64(3600), payouts.calls[0].amount)

	require.Len(t, res.Receipts, 1)
	assert.Equal(t, models.PayoutConfirmed, res.Receipts[0].Status)
	assert.Equal(t, "tx-wallet-b", res.Receipts[0].TxRef)
	assert.Equal(t, models.PayoutConfirmed, store.marked[res.Receipts[0].ID])

	winner := store.deltas["wallet-b"]
	assert.Equal(t, 1, winner.Wins)
	assert.Equal(t, 1, winner.Kills)
	assert.Equal(t, 1, winner.GamesPlayed)
	assert.Equal(t, int64(3600-2500), winner.Net)

	loser := store.deltas["wallet-a"]
	assert.Equal(t, 1, loser.Deaths)
	assert.Equal(t, 0, loser.Wins)
	assert.Equal(t, int64(-1000), loser.Net)
}

func TestSettleSplitPaysBothFighters(t *testing.T) {
	store := newFakeStore()
	payouts := &fakePayouts{}
	o := New(DefaultConfig(), clockwork.NewFakeClock(), payouts, store, nil)

	res := o.Settle(context.Background(), uuid.New(), 4000, fightersFixture(), -1)

	assert.Equal(t, int64(400), res.Fee)
	assert.Equal(t, int64(1800), res.WinnerPayout, "45%% each")

	require.Len(t, payouts.calls, 2)
	assert.Equal(t, int64(1800), payouts.calls[0].amount)
	assert.Equal(t, int64(1800), payouts.calls[1].amount)

	a := store.deltas["wallet-a"]
	assert.Equal(t, 0, a.Wins)
	assert.Equal(t, 0, a.Deaths)
	assert.Equal(t, 1, a.GamesPlayed)
	assert.Equal(t, int64(1800-1000), a.Net)

	b := store.deltas["wallet-b"]
	assert.Equal(t, int64(1800-2500), b.Net)
}

func TestSettlePayoutFailureStillFinalizesStats(t *testing.T) {
	store := newFakeStore()
	payouts := &fakePayouts{err: errors.New("rail unavailable")}
	o := New(DefaultConfig(), clockwork.NewFakeClock(), payouts, store, nil)

	res := o.Settle(context.Background(), uuid.New(), 4000, fightersFixture(), 0)

	require.Len(t, res.Receipts, 1)
	assert.Equal(t, models.PayoutFailed, res.Receipts[0].Status)
	assert.Equal(t, "rail unavailable", res.Receipts[0].FailReason)
	assert.Equal(t, models.PayoutFailed, store.marked[res.Receipts[0].ID])

	// The sporting outcome is recorded regardless: reconciliation is a
	// back-office problem, not a reason to hide who won.
	winner := store.deltas["wallet-a"]
	assert.Equal(t, 1, winner.Wins)
	loser := store.deltas["wallet-b"]
	assert.Equal(t, 1, loser.Deaths)
}

func TestSettleRecordsPendingBeforeExecution(t *testing.T) {
	store := newFakeStore()
	payouts := &fakePayouts{}
	o := New(DefaultConfig(), clockwork.NewFakeClock(), payouts, store, nil)

	o.Settle(context.Background(), uuid.New(), 1000, fightersFixture(), 0)

	require.Len(t, store.inserted, 1)
	assert.Equal(t, models.PayoutPending, store.inserted[0].Status, "audit row exists before the rail is invoked")
}

func TestRefundExecutesAuditedPayout(t *testing.T) {
	store := newFakeStore()
	payouts := &fakePayouts{}
	o := New(DefaultConfig(), clockwork.NewFakeClock(), payouts, store, nil)

	tx := o.Refund(context.Background(), "wallet-c", 700)

	// Full amount back, no fee, through the normal audit trail.
	require.Len(t, payouts.calls, 1)
	assert.Equal(t, "wallet-c", payouts.calls[0].recipient)
	assert.Equal(t, int64(700), payouts.calls[0].amount)
	assert.Equal(t, models.PayoutConfirmed, tx.Status)
	assert.Equal(t, uuid.Nil, tx.DuelID)
	require.Len(t, store.inserted, 1)
	assert.Equal(t, models.PayoutConfirmed, store.marked[tx.ID])

	// A refund is not a game result; no stats move.
	assert.Empty(t, store.deltas)
}

func TestRecordForfeits(t *testing.T) {
	store := newFakeStore()
	o := New(DefaultConfig(), clockwork.NewFakeClock(), &fakePayouts{}, store, nil)

	o.RecordForfeits(context.Background(), []Fighter{
		{ConnID: "conn-c", Wallet: "wallet-c", Stake: 500},
	})

	d := store.deltas["wallet-c"]
	assert.Equal(t, 1, d.GamesPlayed)
	assert.Equal(t, int64(-500), d.Net)
	assert.Equal(t, 0, d.Deaths)
}
