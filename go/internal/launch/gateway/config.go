package gateway

import (
	"fmt"
	"time"
)

// RelayMode selects how notifications reach connected viewers
type RelayMode string

const (
	// RelayLocal delivers straight to this instance's rooms
	RelayLocal RelayMode = "local"
	// RelayNATS fans out across instances over NATS
	RelayNATS RelayMode = "nats"
	// RelayPostgres fans out across instances with LISTEN/NOTIFY
	RelayPostgres RelayMode = "postgres"
)

// Config holds configuration for the launch gateway service
type Config struct {
	ConnectionConfig ConnectionConfig
	Relay            RelayMode
	NATSConfig       NATSRelayConfig
	PGRelayConfig    PGRelayConfig
	AllowedOrigins   []string

	// CountdownField is the launch field holding the countdown target
	CountdownField        string
	CountdownSyncInterval time.Duration
}

// DefaultConfig returns default configuration for the launch gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig:      DefaultConnectionConfig(),
		Relay:                 RelayLocal,
		NATSConfig:            DefaultNATSRelayConfig(),
		PGRelayConfig:         DefaultPGRelayConfig(),
		CountdownField:        "countdown",
		CountdownSyncInterval: 5 * time.Second,
	}
}

// Validate checks the relay mode is known
func (c Config) Validate() error {
	switch c.Relay {
	case RelayLocal, RelayNATS, RelayPostgres:
		return nil
	default:
		return fmt.Errorf("unknown relay mode %q", c.Relay)
	}
}
