package watcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/launch/gateway"
	"github.com/rs/zerolog/log"
	"google.golang.org/protobuf/types/known/structpb"
)

// Config holds watcher connection settings
type Config struct {
	// ServerURL is the gateway base URL, e.g. http://localhost:8081
	ServerURL        string
	Token            string
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

// DefaultConfig returns defaults for a local gateway
func DefaultConfig() Config {
	return Config{
		ServerURL:        "http://localhost:8081",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Client follows a launch: it fetches a snapshot over Connect and then
// streams updates over the WebSocket
type Client struct {
	cfg        Config
	httpClient *http.Client
	snapshot   *connect.Client[structpb.Struct, structpb.Struct]

	mu     sync.Mutex
	ws     *websocket.Conn
	cancel context.CancelFunc
}

// NewClient constructs a client. A nil httpClient uses http.DefaultClient.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := strings.TrimRight(cfg.ServerURL, "/")
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		snapshot: connect.NewClient[structpb.Struct, structpb.Struct](
			httpClient,
			base+gateway.LaunchServiceGetSnapshotProcedure,
			connect.WithHTTPGet(),
		),
	}
}

// Snapshot fetches the full launch state
func (c *Client) Snapshot(ctx context.Context) (*launch.Snapshot, error) {
	resp, err := c.snapshot.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		return nil, fmt.Errorf("get snapshot: %w", err)
	}
	// encoding/json keeps integral ids out of exponent form
	data, err := json.Marshal(resp.Msg.AsMap())
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	var snapshot launch.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// websocketURL maps the server URL onto the WebSocket endpoint
func (c *Client) websocketURL() (string, error) {
	u, err := url.Parse(c.cfg.ServerURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/launch"
	return u.String(), nil
}

// Connect dials the gateway and delivers every server message to onMessage
// until ctx is cancelled or the connection drops
func (c *Client) Connect(ctx context.Context, onMessage func(gateway.OutboundMessage)) error {
	c.mu.Lock()
	if c.ws != nil {
		c.mu.Unlock()
		return errors.New("already connected")
	}
	c.mu.Unlock()

	wsURL, err := c.websocketURL()
	if err != nil {
		return err
	}

	dialCtx := ctx
	if c.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
		defer cancel()
	}

	opts := &websocket.DialOptions{HTTPClient: c.httpClient}
	if c.cfg.Token != "" {
		opts.HTTPHeader = http.Header{"Authorization": []string{"Bearer " + c.cfg.Token}}
	}
	ws, _, err := websocket.Dial(dialCtx, wsURL, opts)
	if err != nil {
		return fmt.Errorf("dial %s: %w", wsURL, err)
	}
	ws.SetReadLimit(1 << 20)

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.ws = ws
	c.cancel = cancel
	c.mu.Unlock()

	go c.readLoop(runCtx, ws, onMessage)
	return nil
}

// Join re-identifies the connection with a new token
func (c *Client) Join(ctx context.Context, token string) error {
	data, err := json.Marshal(gateway.JoinPayload{Token: token})
	if err != nil {
		return err
	}
	return c.send(ctx, gateway.InboundMessage{Type: gateway.MessageTypeJoin, Data: data})
}

func (c *Client) send(ctx context.Context, msg gateway.InboundMessage) error {
	c.mu.Lock()
	ws := c.ws
	c.mu.Unlock()
	if ws == nil {
		return errors.New("not connected")
	}

	if c.cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.WriteTimeout)
		defer cancel()
	}
	return wsjson.Write(ctx, ws, msg)
}

func (c *Client) readLoop(ctx context.Context, ws *websocket.Conn, onMessage func(gateway.OutboundMessage)) {
	for {
		var msg gateway.OutboundMessage
		if err := wsjson.Read(ctx, ws, &msg); err != nil {
			if !isExpectedDisconnect(ctx, err) {
				log.Warn().Err(err).Msg("watcher read loop exit")
			}
			return
		}
		onMessage(msg)
	}
}

// Close shuts the WebSocket down
func (c *Client) Close() error {
	c.mu.Lock()
	ws := c.ws
	if c.cancel != nil {
		c.cancel()
	}
	c.ws = nil
	c.mu.Unlock()

	if ws != nil {
		return ws.Close(websocket.StatusNormalClosure, "client close")
	}
	return nil
}

func isExpectedDisconnect(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return true
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	default:
		return false
	}
}
