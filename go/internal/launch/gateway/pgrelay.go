package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/lib/pq"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/sqlutil"
	"github.com/rs/zerolog/log"
)

// maxNotifyPayload is the largest payload Postgres accepts in NOTIFY
const maxNotifyPayload = 8000

// Notifications too large for NOTIFY are parked in this table and announced
// by id. Every instance reads them, so rows are pruned by age.
const relayPayloadSchema = `
CREATE TABLE IF NOT EXISTS launch_relay_payloads (
	id         TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// pgNotice is what goes over the channel: a whole notification, or a
// reference to a parked one
type pgNotice struct {
	Ref string `json:"ref,omitempty"`
}

// PGRelayConfig holds configuration for the Postgres LISTEN/NOTIFY relay
type PGRelayConfig struct {
	DatabaseURL   string // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel string // Channel name to LISTEN on
	PingInterval  time.Duration
	// PayloadRetention is how long parked payloads are kept
	PayloadRetention time.Duration
}

// DefaultPGRelayConfig returns default relay configuration
func DefaultPGRelayConfig() PGRelayConfig {
	return PGRelayConfig{
		NotifyChannel:    "launch_events",
		PingInterval:     90 * time.Second,
		PayloadRetention: 10 * time.Minute,
	}
}

// PGRelay fans notifications out across instances sharing a Postgres backend
type PGRelay struct {
	db       *sql.DB
	listener *pq.Listener
	sink     StatusEventSink
	clock    clockwork.Clock
	cfg      PGRelayConfig
}

// NewPGRelay creates the payload table and starts listening on the notify channel
func NewPGRelay(db *sql.DB, sink StatusEventSink, clock clockwork.Clock, cfg PGRelayConfig) (*PGRelay, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, relayPayloadSchema); err != nil {
		return nil, fmt.Errorf("failed to migrate relay payload table: %w", err)
	}

	l := pq.NewListener(
		cfg.DatabaseURL,
		10*time.Second,
		time.Minute,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for notifications")

	return &PGRelay{
		db:       db,
		listener: l,
		sink:     sink,
		clock:    clock,
		cfg:      cfg,
	}, nil
}

// Notify sends n on the notify channel. Payloads over the NOTIFY limit are
// parked in launch_relay_payloads in the same transaction and sent by id.
func (r *PGRelay) Notify(ctx context.Context, n launch.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if len(payload) <= maxNotifyPayload {
		if _, err := r.db.ExecContext(ctx, `SELECT pg_notify($1, $2)`, r.cfg.NotifyChannel, string(payload)); err != nil {
			return fmt.Errorf("pg_notify: %w", err)
		}
		return nil
	}

	ref, err := json.Marshal(pgNotice{Ref: n.ID})
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	err = sqlutil.Run(ctx, r.db, newRelayQueries, func(q *relayQueries) error {
		if _, err := q.tx.ExecContext(ctx,
			`INSERT INTO launch_relay_payloads (id, payload) VALUES ($1, $2)`, n.ID, string(payload)); err != nil {
			return fmt.Errorf("park payload: %w", err)
		}
		if _, err := q.tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, r.cfg.NotifyChannel, string(ref)); err != nil {
			return fmt.Errorf("pg_notify: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Debug().Str("id", n.ID).Int("bytes", len(payload)).Msg("parked oversized notification")
	return nil
}

// Start routes notifications to the sink until ctx is cancelled
func (r *PGRelay) Start(ctx context.Context) error {
	log.Info().
		Str("channel", r.cfg.NotifyChannel).
		Dur("ping_interval", r.cfg.PingInterval).
		Msg("pg relay started")

	pingTicker := r.clock.NewTicker(r.cfg.PingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("pg relay shutting down")
			return r.Stop()
		case note := <-r.listener.Notify:
			if note == nil {
				// nil notification means the connection was re-established
				continue
			}
			if err := r.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-pingTicker.Chan():
			if err := r.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
			if err := r.prune(ctx); err != nil {
				log.Error().Err(err).Msg("failed to prune parked payloads")
			}
		}
	}
}

func (r *PGRelay) handleNotification(ctx context.Context, extra string) error {
	var notice pgNotice
	if err := json.Unmarshal([]byte(extra), &notice); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	if notice.Ref != "" {
		err := r.db.QueryRowContext(ctx,
			`SELECT payload FROM launch_relay_payloads WHERE id = $1`, notice.Ref).Scan(&extra)
		if err != nil {
			return fmt.Errorf("load parked notification %s: %w", notice.Ref, err)
		}
	}

	var n launch.Notification
	if err := json.Unmarshal([]byte(extra), &n); err != nil {
		return fmt.Errorf("invalid notification payload: %w", err)
	}
	return r.sink.OnStatusEvent(ctx, n)
}

// prune drops parked payloads older than the retention window
func (r *PGRelay) prune(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM launch_relay_payloads WHERE created_at < now() - make_interval(secs => $1)`,
		r.cfg.PayloadRetention.Seconds())
	return err
}

type relayQueries struct {
	tx *sql.Tx
}

func newRelayQueries(tx *sql.Tx) *relayQueries {
	return &relayQueries{tx: tx}
}

// Stop closes the listener connection
func (r *PGRelay) Stop() error {
	return r.listener.Close()
}

// Healthy pings the listener connection
func (r *PGRelay) Healthy(ctx context.Context) error {
	return r.listener.Ping()
}
