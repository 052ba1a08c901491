package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"

	"github.com/mverch/highnoon/go/internal/hub"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	wsHandler := hub.NewWebSocketHandler(services.Hub)
	wsHandler.RegisterRoutes(mux)

	setupHealthCheck(mux)
	setupAdminRoutes(mux, services)

	handler := c.Handler(mux)

	return &http.Server{
		Addr:         fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler:      handler,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}

// setupAdminRoutes exposes the payout reconciliation view for back-office
// tooling.
func setupAdminRoutes(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/admin/payouts/failed", func(w http.ResponseWriter, r *http.Request) {
		failed, err := services.Stats.ListFailedPayouts(r.Context(), 100)
		if err != nil {
			log.Error().Err(err).Msg("failed to list failed payouts")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(failed); err != nil {
			log.Error().Err(err).Msg("failed to encode payout list")
		}
	})
}
