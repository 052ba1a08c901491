package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/clients/chaingateway"
	"github.com/mverch/highnoon/go/internal/dbconfig"
	"github.com/mverch/highnoon/go/internal/events"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	gatewayURL := os.Getenv("CHAIN_GATEWAY_URL")
	if gatewayURL == "" {
		log.Fatal().Msg("CHAIN_GATEWAY_URL environment variable is required")
	}

	cfg, feePercent, err := loadArenaConfig(getEnv("GAME_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load arena config")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := dbconfig.NewConfigFromEnv().Connect(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	gateway := chaingateway.NewClient(gatewayURL, os.Getenv("CHAIN_GATEWAY_API_KEY"))

	// The event relay is optional: without NATS_URL the arena runs with a
	// nil publisher and publishes nothing.
	var publisher *events.Publisher
	if natsURL := os.Getenv("NATS_URL"); natsURL != "" {
		publisher, err = events.NewPublisher(ctx, natsURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect to NATS")
		}
		defer publisher.Close()
	}

	services := setupServices(ctx, pool, gateway, publisher, cfg, feePercent)
	server := setupServer(services)

	go services.Hub.Start(ctx)
	go services.Arena.Run()

	go func() {
		log.Info().Str("addr", server.Addr).Msg("arena server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	cancel()
	time.Sleep(1 * time.Second)

	log.Info().Msg("arena shutdown complete")
}
