package gateway

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/auth"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// relay is a notifier that also consumes what other instances publish
type relay interface {
	launch.Notifier
	Start(ctx context.Context) error
	Stop() error
}

// Service is the launch gateway: WebSocket rooms, HTTP state routes, the
// Connect RPC service and countdown sync
type Service struct {
	config        Config
	router        *RoomRouter
	relay         relay
	wsHandler     *WebSocketHandler
	stateHandler  *StateHandler
	launchService *LaunchService
	timerSync     *TimerSync
	health        *HealthChecker
}

// NewService creates the gateway and points app's notifications at it. db is
// only used by the postgres relay and may be nil otherwise.
func NewService(config Config, app *launch.App, authService auth.AuthenticationService, clock clockwork.Clock, db *sql.DB) (*Service, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	authorizer := NewAuthorizer(authService)
	router := NewRoomRouter(authorizer)

	s := &Service{
		config:        config,
		router:        router,
		stateHandler:  NewStateHandler(app, authorizer),
		launchService: NewLaunchService(app, authorizer),
		timerSync:     NewTimerSync(app.State(), router, clock, config.CountdownField, config.CountdownSyncInterval),
	}

	switch config.Relay {
	case RelayNATS:
		r, err := NewNATSRelay(router, config.NATSConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create NATS relay: %w", err)
		}
		s.relay = r
		app.SetNotifier(r)
	case RelayPostgres:
		if db == nil {
			return nil, fmt.Errorf("postgres relay requires a postgres backend")
		}
		r, err := NewPGRelay(db, router, clock, config.PGRelayConfig)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres relay: %w", err)
		}
		s.relay = r
		app.SetNotifier(r)
	default:
		app.SetNotifier(router)
	}

	handler := NewMessageHandler(app, router, clock)
	cm := NewConnectionManager(config.ConnectionConfig, router, handler, clock)
	s.wsHandler = NewWebSocketHandler(cm, router)
	s.health = NewHealthChecker(app, router, s.relay, config.Relay)

	return s, nil
}

// Start runs the gateway until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Str("relay", string(s.config.Relay)).Msg("starting launch gateway service")

	go s.router.Start(ctx)

	if s.relay != nil {
		go func() {
			if err := s.relay.Start(ctx); err != nil {
				log.Error().Err(err).Msg("relay failed")
			}
		}()
	}

	s.timerSync.Start(ctx)

	// Wait for context cancellation
	<-ctx.Done()

	log.Info().Msg("launch gateway service shutting down")
	return s.Stop()
}

// Stop halts background work. The router stops with its context.
func (s *Service) Stop() error {
	s.timerSync.Stop()
	log.Info().Msg("launch gateway service stopped")
	return nil
}

// RegisterRoutes registers every gateway route on r
func (s *Service) RegisterRoutes(r *mux.Router) error {
	s.wsHandler.RegisterRoutes(r)
	s.stateHandler.RegisterStateRoutes(r)
	if err := s.launchService.RegisterRoutes(r); err != nil {
		return err
	}
	r.Handle("/health", s.health).Methods(http.MethodGet)

	log.Info().Msg("launch gateway routes registered")
	return nil
}

// Handler builds the full HTTP handler: routes, CORS and h2c so Connect
// clients can use HTTP/2 without TLS
func (s *Service) Handler() (http.Handler, error) {
	r := mux.NewRouter()
	if err := s.RegisterRoutes(r); err != nil {
		return nil, err
	}
	return h2c.NewHandler(CORSMiddleware(s.config.AllowedOrigins, r), &http2.Server{}), nil
}

// Router exposes the room router
func (s *Service) Router() *RoomRouter {
	return s.router
}
