package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/auth"
	"github.com/mcdev12/launchpad/go/internal/dbconfig"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/launch/gateway"
	"github.com/mcdev12/launchpad/go/internal/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	configPath := pflag.String("config", getEnv("LAUNCHPAD_CONFIG", ""), "path to YAML config file")
	port := pflag.String("port", getEnv("GATEWAY_PORT", "8081"), "HTTP port")
	backend := pflag.String("backend", getEnv("LAUNCHPAD_BACKEND", "memory"), "storage backend: memory, redis or postgres")
	relay := pflag.String("relay", getEnv("LAUNCHPAD_RELAY", string(gateway.RelayLocal)), "notification relay: local, nats or postgres")
	natsURL := pflag.String("nats-url", getEnv("NATS_URL", "nats://localhost:4222"), "NATS server URL for the nats relay")
	logLevel := pflag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level")
	pflag.Parse()

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	config, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	tokenKey, err := auth.DecodeKey(getEnv("TOKEN_KEY", config.TokenKey))
	if err != nil {
		log.Fatal().Err(err).Msg("TOKEN_KEY must be a 64 character hex string")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewRealClock()

	infra, err := setupInfra(ctx, *backend, config, clock)
	if err != nil {
		log.Fatal().Err(err).Str("backend", *backend).Msg("failed to set up storage")
	}
	defer infra.Close()

	usersApp := users.NewApp(infra.Users)
	if err := usersApp.Seed(ctx, config.Users); err != nil {
		log.Fatal().Err(err).Msg("failed to seed users")
	}

	tokens, err := auth.NewTokenService(tokenKey, usersApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create token service")
	}

	app := launch.NewApp(infra.Backend, nil, clock)

	// Create gateway configuration
	gatewayConfig := gateway.DefaultConfig()
	gatewayConfig.Relay = gateway.RelayMode(*relay)
	gatewayConfig.NATSConfig.URL = *natsURL
	gatewayConfig.PGRelayConfig.DatabaseURL = dbconfig.NewConfigFromEnv().DSN()
	gatewayConfig.AllowedOrigins = config.AllowedOrigins
	if config.Countdown.Field != "" {
		gatewayConfig.CountdownField = config.Countdown.Field
	}
	if config.Countdown.SyncInterval > 0 {
		gatewayConfig.CountdownSyncInterval = config.Countdown.SyncInterval
	}

	gatewayService, err := gateway.NewService(gatewayConfig, app, tokens, clock, infra.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create gateway service")
	}

	handler, err := gatewayService.Handler()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to register gateway routes")
	}

	server := &http.Server{
		Addr:        fmt.Sprintf(":%s", *port),
		Handler:     handler,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}

	log.Info().
		Str("backend", *backend).
		Str("relay", *relay).
		Str("port", *port).
		Int("seed_users", len(config.Users)).
		Msg("starting launch gateway")

	// Start gateway service (room router, relay and countdown sync)
	go func() {
		if err := gatewayService.Start(ctx); err != nil {
			log.Error().Err(err).Msg("gateway service failed")
		}
	}()

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Cancel service context to stop gateway service
	cancel()

	// Give services time to clean up
	time.Sleep(1 * time.Second)

	log.Info().Msg("launch gateway shutdown complete")
}
