package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/rs/zerolog/log"
)

// HealthStatus is the gateway's view of itself and its dependencies
type HealthStatus struct {
	Healthy          bool           `json:"healthy"`
	BackendConnected bool           `json:"backend_connected"`
	RelayConnected   bool           `json:"relay_connected"`
	Relay            RelayMode      `json:"relay"`
	Connections      map[string]int `json:"connections"`
	Errors           []string       `json:"errors"`
}

// relayHealth is implemented by relays that can report their connection
type relayHealth interface {
	Healthy(ctx context.Context) error
}

// HealthChecker probes the backend and relay
type HealthChecker struct {
	app    *launch.App
	router *RoomRouter
	relay  relay
	mode   RelayMode
}

// NewHealthChecker creates a checker. relay may be nil for the local relay.
func NewHealthChecker(app *launch.App, router *RoomRouter, r relay, mode RelayMode) *HealthChecker {
	return &HealthChecker{app: app, router: router, relay: r, mode: mode}
}

// Check runs every probe
func (h *HealthChecker) Check(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Healthy:        true,
		RelayConnected: true,
		Relay:          h.mode,
		Connections:    make(map[string]int),
		Errors:         []string{},
	}

	if err := h.app.Ping(ctx); err != nil {
		status.Healthy = false
		status.Errors = append(status.Errors, fmt.Sprintf("backend read failed: %v", err))
	} else {
		status.BackendConnected = true
	}

	if rh, ok := h.relay.(relayHealth); ok {
		if err := rh.Healthy(ctx); err != nil {
			status.Healthy = false
			status.RelayConnected = false
			status.Errors = append(status.Errors, fmt.Sprintf("relay unhealthy: %v", err))
		}
	}

	for room, n := range h.router.Stats() {
		status.Connections[string(room)] = n
	}
	return status
}

// ServeHTTP reports health as JSON, 503 when unhealthy
func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.Check(ctx)
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		log.Warn().Strs("errors", status.Errors).Msg("health check failed")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to write health check response")
	}
}
