package gateway

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles WebSocket upgrade requests for launch viewers
type WebSocketHandler struct {
	connectionManager *ConnectionManager
	router            *RoomRouter
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(cm *ConnectionManager, router *RoomRouter) *WebSocketHandler {
	return &WebSocketHandler{
		connectionManager: cm,
		router:            router,
	}
}

// HandleLaunchConnection handles GET /ws/launch. A token may be passed as the
// `token` query parameter or a bearer header; without one the viewer is a guest
// until it sends a join message.
func (h *WebSocketHandler) HandleLaunchConnection(w http.ResponseWriter, r *http.Request) {
	credential := r.URL.Query().Get("token")
	if credential == "" {
		credential = bearerToken(r.Header.Get("Authorization"))
	}

	// Upgrade the connection
	if err := h.connectionManager.UpgradeConnection(w, r, credential); err != nil {
		// The upgrader has already written an error response
		log.Error().
			Err(err).
			Str("remote_addr", r.RemoteAddr).
			Msg("failed to upgrade WebSocket connection")
		return
	}

	// Connection is now handled by the connection manager
}

// HandleConnectionStats returns the number of connections in each room
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	rooms := h.router.Stats()
	counts := make(map[string]int, len(rooms))
	for room, n := range rooms {
		counts[string(room)] = n
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rooms": counts,
	})
}

// RegisterRoutes registers WebSocket routes
func (h *WebSocketHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/launch", h.HandleLaunchConnection).Methods(http.MethodGet)
	r.HandleFunc("/ws/stats", h.HandleConnectionStats).Methods(http.MethodGet)
}
