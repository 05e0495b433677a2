package gateway

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/rs/zerolog/log"
)

// ConnectionManager upgrades viewer connections and runs their pumps
type ConnectionManager struct {
	router  *RoomRouter
	handler *MessageHandler
	clock   clockwork.Clock

	// Upgrader for WebSocket connections
	upgrader websocket.Upgrader

	// Connection configuration
	config ConnectionConfig
}

// Connection represents a WebSocket connection to a viewer
type Connection struct {
	ID   string
	Conn *websocket.Conn
	Send chan []byte

	// Connection metadata
	ConnectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	actor    models.Actor
	lastPing time.Time
}

// ConnectionConfig holds configuration for WebSocket connections
type ConnectionConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	SendBufferSize  int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnectionConfig returns default WebSocket configuration
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  16 * 1024, // statuses carry free-form extra fields
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		SendBufferSize:  256,
		CheckOrigin: func(r *http.Request) bool {
			// Allow all origins in development - restrict in production
			return true
		},
	}
}

// NewConnectionManager creates a new WebSocket connection manager
func NewConnectionManager(config ConnectionConfig, router *RoomRouter, handler *MessageHandler, clock clockwork.Clock) *ConnectionManager {
	return &ConnectionManager{
		router:  router,
		handler: handler,
		clock:   clock,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  config.ReadBufferSize,
			WriteBufferSize: config.WriteBufferSize,
			CheckOrigin:     config.CheckOrigin,
		},
		config: config,
	}
}

// newConnection allocates a connection with its own cancellable context
func newConnection(conn *websocket.Conn, bufferSize int, now time.Time) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		ID:          uuid.New().String(),
		Conn:        conn,
		Send:        make(chan []byte, bufferSize),
		ConnectedAt: now,
		ctx:         ctx,
		cancel:      cancel,
		actor:       models.Actor{Roles: models.NewRoleSet()},
		lastPing:    now,
	}
}

// UpgradeConnection upgrades an HTTP connection to WebSocket. The optional
// credential is classified before any client message is read.
func (cm *ConnectionManager) UpgradeConnection(w http.ResponseWriter, r *http.Request, credential string) error {
	conn, err := cm.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("failed to upgrade WebSocket connection")
		return fmt.Errorf("failed to upgrade connection: %w", err)
	}

	connection := newConnection(conn, cm.config.SendBufferSize, cm.clock.Now())

	// Start connection handlers
	go connection.writePump(cm)
	go connection.readPump(cm, credential)

	log.Info().
		Str("connection_id", connection.ID).
		Str("remote_addr", r.RemoteAddr).
		Msg("WebSocket connection established")

	return nil
}

// Actor returns the identity the connection last joined with
func (c *Connection) Actor() models.Actor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actor
}

func (c *Connection) setActor(actor models.Actor) {
	c.mu.Lock()
	c.actor = actor
	c.mu.Unlock()
}

func (c *Connection) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// trySend queues data without blocking. It reports false only when the
// buffer is full; sends to a closed connection are silently dropped.
func (c *Connection) trySend(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return true
	}
	select {
	case c.Send <- data:
		return true
	default:
		return false
	}
}

// close marks the connection closed, cancels pending work and closes the
// send queue. It reports whether this call did the closing.
func (c *Connection) close() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}
	c.closed = true
	c.cancel()
	close(c.Send)
	return true
}

// writePump handles sending messages to the WebSocket connection
func (c *Connection) writePump(cm *ConnectionManager) {
	ticker := cm.clock.NewTicker(cm.config.PingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
		cm.router.Leave(c)
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(cm.clock.Now().Add(cm.config.WriteTimeout))
			if !ok {
				// Channel was closed
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to write message to WebSocket")
				return
			}

		case <-ticker.Chan():
			c.Conn.SetWriteDeadline(cm.clock.Now().Add(cm.config.WriteTimeout))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("failed to send ping")
				return
			}
		}
	}
}

// readPump classifies the connection, then handles client messages one at a
// time in receipt order
func (c *Connection) readPump(cm *ConnectionManager, credential string) {
	defer func() {
		cm.router.Leave(c)
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(cm.config.MaxMessageSize)
	c.Conn.SetReadDeadline(cm.clock.Now().Add(cm.config.ReadTimeout))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(cm.clock.Now().Add(cm.config.ReadTimeout))
		c.mu.Lock()
		c.lastPing = cm.clock.Now()
		c.mu.Unlock()
		return nil
	})

	cm.handler.Join(c.ctx, c, "", credential)

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().
					Err(err).
					Str("connection_id", c.ID).
					Msg("unexpected WebSocket close error")
			}
			break
		}

		cm.handler.Handle(c.ctx, c, message)
		c.Conn.SetReadDeadline(cm.clock.Now().Add(cm.config.ReadTimeout))
	}
}
