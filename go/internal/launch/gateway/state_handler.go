package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/rs/zerolog/log"
)

// StateHandler serves launch state over plain HTTP for clients that need a
// snapshot before (or instead of) a WebSocket
type StateHandler struct {
	app        *launch.App
	authorizer *Authorizer
}

// NewStateHandler creates a new state handler
func NewStateHandler(app *launch.App, authorizer *Authorizer) *StateHandler {
	return &StateHandler{app: app, authorizer: authorizer}
}

// HandleGetState handles GET /api/launch/state
func (h *StateHandler) HandleGetState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.app.Snapshot(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("failed to get launch snapshot")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// HandleGetStatus handles GET /api/launch/statuses/{statusId}
func (h *StateHandler) HandleGetStatus(w http.ResponseWriter, r *http.Request) {
	statusID, err := strconv.ParseInt(mux.Vars(r)["statusId"], 10, 64)
	if err != nil || statusID < 0 {
		http.Error(w, "Invalid status ID", http.StatusBadRequest)
		return
	}

	status, err := h.app.Status(r.Context(), statusID)
	if err != nil {
		if !errors.Is(err, launch.ErrNotFound) {
			log.Error().Err(err).Int64("status_id", statusID).Msg("failed to get launch status")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

// HandleGetEvents handles GET /api/launch/events. Moderators only.
func (h *StateHandler) HandleGetEvents(w http.ResponseWriter, r *http.Request) {
	actor := h.authorizer.Classify(r.Context(), bearerToken(r.Header.Get("Authorization")))

	events, err := h.app.Events(r.Context(), actor)
	if err != nil {
		if !errors.Is(err, launch.ErrForbidden) {
			log.Error().Err(err).Msg("failed to read event log")
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// RegisterStateRoutes registers state-related HTTP routes
func (h *StateHandler) RegisterStateRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/launch").Subrouter()
	api.HandleFunc("/state", h.HandleGetState).Methods(http.MethodGet)
	api.HandleFunc("/statuses/{statusId:[0-9]+}", h.HandleGetStatus).Methods(http.MethodGet)
	api.HandleFunc("/events", h.HandleGetEvents).Methods(http.MethodGet)
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps launch errors to HTTP statuses
func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, launch.ErrInvalidArgument):
		code = http.StatusBadRequest
	case errors.Is(err, launch.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, launch.ErrForbidden):
		code = http.StatusForbidden
	}
	writeJSON(w, code, map[string]string{
		"error": err.Error(),
		"code":  launch.ErrorCode(err),
	})
}
