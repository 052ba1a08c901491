package wallet

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallengeConsumeSuccess(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewChallengeStore(clock, DefaultChallengeTTL)

	c := store.Issue("conn-1")
	require.NotEmpty(t, c.Message)

	assert.NoError(t, store.Consume("conn-1", c.Message))
}

func TestChallengeSingleUse(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewChallengeStore(clock, DefaultChallengeTTL)

	c := store.Issue("conn-1")
	require.NoError(t, store.Consume("conn-1", c.Message))

	// A second attempt with the same message must fail: consumed on use.
	assert.ErrorIs(t, store.Consume("conn-1", c.Message), ErrNoChallenge)
}

func TestChallengeBurnedOnFailure(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewChallengeStore(clock, DefaultChallengeTTL)

	c := store.Issue("conn-1")
	assert.ErrorIs(t, store.Consume("conn-1", "tampered"), ErrChallengeMismatch)

	// Even the correct message is now rejected.
	assert.ErrorIs(t, store.Consume("conn-1", c.Message), ErrNoChallenge)
}

func TestChallengeStale(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewChallengeStore(clock, 5*time.Minute)

	c := store.Issue("conn-1")
	clock.Advance(5*time.Minute + time.Second)

	assert.ErrorIs(t, store.Consume("conn-1", c.Message), ErrChallengeStale)
}

func TestChallengeReplacedByReissue(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewChallengeStore(clock, DefaultChallengeTTL)

	old := store.Issue("conn-1")
	fresh := store.Issue("conn-1")
	require.NotEqual(t, old.Message, fresh.Message)

	assert.ErrorIs(t, store.Consume("conn-1", old.Message), ErrChallengeMismatch)
}

func TestChallengeDrop(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := NewChallengeStore(clock, DefaultChallengeTTL)

	c := store.Issue("conn-1")
	store.Drop("conn-1")

	assert.ErrorIs(t, store.Consume("conn-1", c.Message), ErrNoChallenge)
}
