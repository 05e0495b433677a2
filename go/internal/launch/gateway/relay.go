package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"
)

// StatusEventSink receives notifications coming off a relay
type StatusEventSink interface {
	OnStatusEvent(ctx context.Context, n launch.Notification) error
}

// NATSRelayConfig holds configuration for the NATS relay
type NATSRelayConfig struct {
	URL           string
	SubjectPrefix string // e.g., "launch.events"
	MaxReconnects int
	ReconnectWait time.Duration
}

// DefaultNATSRelayConfig returns default NATS relay configuration
func DefaultNATSRelayConfig() NATSRelayConfig {
	return NATSRelayConfig{
		URL:           nats.DefaultURL,
		SubjectPrefix: "launch.events",
		MaxReconnects: -1, // Infinite
		ReconnectWait: 2 * time.Second,
	}
}

// NATSRelay fans notifications out across gateway instances. Every instance
// publishes its mutations and broadcasts whatever it receives, its own included.
type NATSRelay struct {
	nc     *nats.Conn
	sink   StatusEventSink
	config NATSRelayConfig
	sub    *nats.Subscription
}

// NewNATSRelay connects to NATS
func NewNATSRelay(sink StatusEventSink, config NATSRelayConfig) (*NATSRelay, error) {
	opts := []nats.Option{
		nats.Name("launchpad-gateway"),
		nats.MaxReconnects(config.MaxReconnects),
		nats.ReconnectWait(config.ReconnectWait),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			log.Error().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			log.Error().Err(err).Msg("NATS error")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}

	return NewNATSRelayFromConn(nc, sink, config), nil
}

// NewNATSRelayFromConn wraps an existing connection
func NewNATSRelayFromConn(nc *nats.Conn, sink StatusEventSink, config NATSRelayConfig) *NATSRelay {
	return &NATSRelay{nc: nc, sink: sink, config: config}
}

// subject returns the subject a notification kind is published on
func (r *NATSRelay) subject(kind launch.Kind) string {
	return r.config.SubjectPrefix + "." + string(kind)
}

// Notify publishes n to the relay subject for its kind
func (r *NATSRelay) Notify(ctx context.Context, n launch.Notification) error {
	data, err := msgpack.Marshal(&n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if err := r.nc.Publish(r.subject(n.Kind), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Start subscribes to every kind and blocks until ctx is cancelled
func (r *NATSRelay) Start(ctx context.Context) error {
	filter := r.config.SubjectPrefix + ".>"
	sub, err := r.nc.Subscribe(filter, func(msg *nats.Msg) {
		r.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", filter, err)
	}
	r.sub = sub

	log.Info().Str("subject", filter).Msg("NATS relay started")

	<-ctx.Done()
	log.Info().Msg("NATS relay shutting down")
	return r.Stop()
}

func (r *NATSRelay) handleMessage(ctx context.Context, msg *nats.Msg) {
	var n launch.Notification
	if err := msgpack.Unmarshal(msg.Data, &n); err != nil {
		log.Error().Err(err).Str("subject", msg.Subject).Msg("failed to decode relayed notification")
		return
	}
	if n.Kind == "" {
		n.Kind = launch.Kind(strings.TrimPrefix(msg.Subject, r.config.SubjectPrefix+"."))
	}

	if err := r.sink.OnStatusEvent(ctx, n); err != nil {
		log.Error().Err(err).Str("id", n.ID).Msg("failed to route relayed notification")
	}
}

// Stop unsubscribes and drains the connection
func (r *NATSRelay) Stop() error {
	if r.sub != nil {
		if err := r.sub.Unsubscribe(); err != nil && err != nats.ErrConnectionClosed {
			log.Warn().Err(err).Msg("failed to unsubscribe NATS relay")
		}
	}
	if r.nc.IsClosed() {
		return nil
	}
	return r.nc.Drain()
}

// Healthy reports an error while the NATS connection is down
func (r *NATSRelay) Healthy(ctx context.Context) error {
	if !r.nc.IsConnected() {
		return fmt.Errorf("NATS %s", r.nc.Status())
	}
	return nil
}
