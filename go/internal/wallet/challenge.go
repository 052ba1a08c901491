// Package wallet covers the identity and payment boundary: login
// challenges, signature verification, and the interfaces the payment
// rail sidecar implements. The server never holds private keys; it only
// validates externally-signed proofs.
package wallet

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrNoChallenge       = errors.New("no challenge issued for this connection")
	ErrChallengeMismatch = errors.New("challenge message does not match the issued challenge")
	ErrChallengeStale    = errors.New("challenge expired")
)

// DefaultChallengeTTL is the freshness window for a login challenge.
const DefaultChallengeTTL = 5 * time.Minute

// Challenge is a server-issued, single-use login message a client must
// sign to prove wallet ownership.
type Challenge struct {
	ID       uuid.UUID
	ConnID   string
	Message  string
	IssuedAt time.Time
}

// ChallengeStore issues and consumes login challenges, one live
// challenge per connection. A challenge is invalidated the moment it is
// consumed, whether verification then succeeds or fails, so it can never
// be replayed.
type ChallengeStore struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu     sync.Mutex
	byConn map[string]*Challenge
}

// NewChallengeStore creates a store with the given freshness window.
func NewChallengeStore(clock clockwork.Clock, ttl time.Duration) *ChallengeStore {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{
		clock:  clock,
		ttl:    ttl,
		byConn: make(map[string]*Challenge),
	}
}

// Issue creates a fresh challenge for the connection, replacing any
// previous one.
func (s *ChallengeStore) Issue(connID string) *Challenge {
	now := s.clock.Now()
	id := uuid.New()
	c := &Challenge{
		ID:       id,
		ConnID:   connID,
		Message:  fmt.Sprintf("highnoon:login:%s:%d", id, now.UnixMilli()),
		IssuedAt: now,
	}

	s.mu.Lock()
	s.byConn[connID] = c
	s.mu.Unlock()
	return c
}

// Consume validates and invalidates the connection's challenge. The
// challenge is removed before any check runs: a failed attempt burns it
// and the client must request a new one.
func (s *ChallengeStore) Consume(connID, message string) error {
	s.mu.Lock()
	c, ok := s.byConn[connID]
	delete(s.byConn, connID)
	s.mu.Unlock()

	if !ok {
		return ErrNoChallenge
	}
	if c.Message != message {
		return ErrChallengeMismatch
	}
	if s.clock.Now().Sub(c.IssuedAt) > s.ttl {
		return ErrChallengeStale
	}
	return nil
}

// Drop discards any live challenge for a connection (used on disconnect).
func (s *ChallengeStore) Drop(connID string) {
	s.mu.Lock()
	delete(s.byConn, connID)
	s.mu.Unlock()
}
