package hub

import (
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for the arena.
type WebSocketHandler struct {
	hub *Hub
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(h *Hub) *WebSocketHandler {
	return &WebSocketHandler{hub: h}
}

// HandleArenaConnection upgrades a client into the arena. Identity is
// established after upgrade via the wallet challenge handshake, so the
// HTTP layer carries no auth.
func (h *WebSocketHandler) HandleArenaConnection(w http.ResponseWriter, r *http.Request) {
	if err := h.hub.ServeWS(w, r); err != nil {
		http.Error(w, "failed to upgrade connection", http.StatusInternalServerError)
		return
	}
}

// HandleConnectionStats returns statistics about active connections.
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"total_connections":` + strconv.Itoa(h.hub.ConnCount()) + `}`))
}

// RegisterRoutes registers WebSocket routes with an HTTP mux.
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.HandleArenaConnection)
	mux.HandleFunc("/ws/stats", h.HandleConnectionStats)
	log.Debug().Msg("websocket routes registered")
}
