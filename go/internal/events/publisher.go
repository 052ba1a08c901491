package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

const (
	streamName    = "ARENA_EVENTS"
	subjectPrefix = "arena.events."

	natsMaxReconnects = 10
	natsReconnectWait = 2 * time.Second
)

// Publisher relays domain events (duel results, settlements) to a
// JetStream stream for off-process consumers: leaderboards and the
// payout reconciliation job. A nil Publisher is a no-op, so the relay
// is optional at deploy time.
type Publisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewPublisher connects to NATS and ensures the arena stream exists.
func NewPublisher(ctx context.Context, natsURL string) (*Publisher, error) {
	opts := []nats.Option{
		nats.MaxReconnects(natsMaxReconnects),
		nats.ReconnectWait(natsReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	}

	nc, err := nats.Connect(natsURL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     streamName,
		Subjects: []string{subjectPrefix + ">"},
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensure stream %s: %w", streamName, err)
	}

	return &Publisher{nc: nc, js: js}, nil
}

// Publish sends one domain event under arena.events.<subject>. Errors
// are logged, not returned: the relay must never block or fail gameplay.
func (p *Publisher) Publish(ctx context.Context, subject string, payload any) {
	if p == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to marshal domain event")
		return
	}
	if _, err := p.js.Publish(ctx, subjectPrefix+subject, data); err != nil {
		log.Error().Err(err).Str("subject", subject).Msg("failed to publish domain event")
	}
}

// Close tears down the NATS connection.
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Close()
	}
}
