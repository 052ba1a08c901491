package main

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jonboulle/clockwork"

	"github.com/mverch/highnoon/go/clients/chaingateway"
	"github.com/mverch/highnoon/go/internal/arena"
	"github.com/mverch/highnoon/go/internal/events"
	"github.com/mverch/highnoon/go/internal/hub"
	"github.com/mverch/highnoon/go/internal/registry"
	"github.com/mverch/highnoon/go/internal/settlement"
	"github.com/mverch/highnoon/go/internal/stats"
	"github.com/mverch/highnoon/go/internal/wallet"
)

type Services struct {
	Arena *arena.Arena
	Hub   *hub.Hub
	Stats *stats.Repository
}

// setupServices wires the dependency chain: persistence and the payment
// rail at the bottom, the arena loop on top, the hub attached last so
// transport and game loop can reference each other.
func setupServices(ctx context.Context, pool *pgxpool.Pool, gateway *chaingateway.Client, publisher *events.Publisher, cfg arena.Config, feePercent int) *Services {
	clock := clockwork.NewRealClock()

	statsRepo := stats.NewRepository(pool)
	challenges := wallet.NewChallengeStore(clock, wallet.DefaultChallengeTTL)
	reg := registry.New(clock, challenges, cfg.BetLimits)

	settler := settlement.New(settlement.Config{FeePercent: feePercent}, clock, gateway, statsRepo, publisher)

	a := arena.New(ctx, cfg, clock, reg, settler, gateway, statsRepo, publisher)
	h := hub.New(hub.DefaultConnectionConfig(), a)
	a.SetHub(h)

	return &Services{Arena: a, Hub: h, Stats: statsRepo}
}
