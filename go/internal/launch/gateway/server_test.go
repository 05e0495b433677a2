package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"google.golang.org/protobuf/types/known/structpb"
)

func newTestServer(t *testing.T) (*fixture, *httptest.Server) {
	t.Helper()
	f := newFixture(t, clockwork.NewRealClock())

	config := DefaultConfig()
	config.CountdownSyncInterval = time.Hour
	svc, err := NewService(config, f.app, f.tokens, f.clock, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	handler, err := svc.Handler()
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go svc.Start(ctx)

	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return f, srv
}

func dial(t *testing.T, srv *httptest.Server, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/launch"
	if token != "" {
		url += "?token=" + token
	}
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	readType(t, conn, "joined")
	return conn
}

// readType reads until a message of the given type arrives, failing on timeout
func readType(t *testing.T, conn *websocket.Conn, typ string) OutboundMessage {
	t.Helper()
	for {
		msg := readNext(t, conn)
		if msg.Type == typ {
			return msg
		}
	}
}

func readNext(t *testing.T, conn *websocket.Conn) OutboundMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var msg OutboundMessage
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, raw string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(raw)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestWebSocketRoomIsolation(t *testing.T) {
	f, srv := newTestServer(t)

	guest := dial(t, srv, "")
	reporter := dial(t, srv, f.reporterToken)
	moderator := dial(t, srv, "")

	// Upgrade to moderator with a join message
	send(t, moderator, `{"type":"join","requestId":"j1","data":{"token":"`+f.moderatorToken+`"}}`)
	joined := readType(t, moderator, "joined")
	if !strings.Contains(string(joined.Data), "moderator") {
		t.Fatalf("join did not grant moderator: %s", joined.Data)
	}

	send(t, guest, `{"type":"appStatus","requestId":"g1","data":{"text":"sneaky","countdown":"2030-01-01T00:00:00Z"}}`)
	ack := readType(t, guest, "ack")
	if ack.OK == nil || *ack.OK || ack.Code != "forbidden" {
		t.Fatalf("guest ack = %+v, want forbidden", ack)
	}

	send(t, reporter, `{"type":"appStatus","requestId":"r1","data":{"text":"Go for launch","countdown":"2030-01-01T00:00:00Z"}}`)
	ack = readType(t, reporter, "ack")
	if ack.OK == nil || !*ack.OK || ack.StatusID == nil || *ack.StatusID != 0 {
		t.Fatalf("reporter ack = %+v", ack)
	}

	send(t, moderator, `{"type":"appActive","requestId":"m1","data":{"active":true}}`)

	// The guest sees the public broadcasts in order and never the audit events
	if msg := readNext(t, guest); msg.Type != "launchStatus" {
		t.Fatalf("guest got %q, want launchStatus", msg.Type)
	}
	if msg := readNext(t, guest); msg.Type != "appActive" {
		t.Fatalf("guest got %q, want appActive", msg.Type)
	}

	event := readType(t, moderator, "event")
	if !strings.Contains(string(event.Data), `"appStatus"`) {
		t.Fatalf("moderator event = %s", event.Data)
	}
}

func TestStateRoutes(t *testing.T) {
	f, srv := newTestServer(t)
	ctx := context.Background()

	if _, err := f.app.PostStatus(ctx, f.authorizer.Classify(ctx, f.reporterToken), statusInput("T-10 and counting")); err != nil {
		t.Fatalf("PostStatus: %v", err)
	}

	tests := []struct {
		name  string
		path  string
		token string
		code  int
	}{
		{name: "state", path: "/api/launch/state", code: http.StatusOK},
		{name: "status", path: "/api/launch/statuses/0", code: http.StatusOK},
		{name: "missing status", path: "/api/launch/statuses/7", code: http.StatusNotFound},
		{name: "events as guest", path: "/api/launch/events", code: http.StatusForbidden},
		{name: "events as reporter", path: "/api/launch/events", token: f.reporterToken, code: http.StatusForbidden},
		{name: "events as moderator", path: "/api/launch/events", token: f.moderatorToken, code: http.StatusOK},
		{name: "health", path: "/health", code: http.StatusOK},
		{name: "stats", path: "/ws/stats", code: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := http.NewRequest(http.MethodGet, srv.URL+tt.path, nil)
			if err != nil {
				t.Fatal(err)
			}
			if tt.token != "" {
				req.Header.Set("Authorization", "Bearer "+tt.token)
			}
			resp, err := srv.Client().Do(req)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tt.code {
				t.Fatalf("GET %s = %d, want %d", tt.path, resp.StatusCode, tt.code)
			}
		})
	}

	resp, err := srv.Client().Get(srv.URL + "/api/launch/state")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snapshot struct {
		IsActive bool `json:"isActive"`
		Statuses []struct {
			StatusID int64  `json:"statusId"`
			Text     string `json:"text"`
		} `json:"statuses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snapshot.Statuses) != 1 || snapshot.Statuses[0].Text != "T-10 and counting" {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestLaunchServiceRPC(t *testing.T) {
	f, srv := newTestServer(t)
	ctx := context.Background()

	update := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+LaunchServiceUpdateLaunchProcedure)
	snapshot := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+LaunchServiceGetSnapshotProcedure)

	body, err := structpb.NewStruct(map[string]interface{}{
		"fields": map[string]interface{}{"name": "Demo-2"},
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = update.CallUnary(ctx, connect.NewRequest(body))
	if connect.CodeOf(err) != connect.CodePermissionDenied {
		t.Fatalf("guest update err = %v, want permission denied", err)
	}

	req := connect.NewRequest(body)
	req.Header().Set("Authorization", "Bearer "+f.moderatorToken)
	if _, err := update.CallUnary(ctx, req); err != nil {
		t.Fatalf("moderator update: %v", err)
	}

	resp, err := snapshot.CallUnary(ctx, connect.NewRequest(&structpb.Struct{}))
	if err != nil {
		t.Fatalf("GetSnapshot: %v", err)
	}
	launch := resp.Msg.GetFields()["launch"].GetStructValue()
	if got := launch.GetFields()["name"].GetStringValue(); got != "Demo-2" {
		t.Fatalf("launch name = %q, want Demo-2", got)
	}

	bad, err := structpb.NewStruct(map[string]interface{}{"text": "no countdown"})
	if err != nil {
		t.Fatal(err)
	}
	post := connect.NewClient[structpb.Struct, structpb.Struct](srv.Client(), srv.URL+LaunchServicePostStatusProcedure)
	badReq := connect.NewRequest(bad)
	badReq.Header().Set("Authorization", "Bearer "+f.reporterToken)
	if _, err := post.CallUnary(ctx, badReq); connect.CodeOf(err) != connect.CodeInvalidArgument {
		t.Fatalf("post without countdown err = %v, want invalid argument", err)
	}
}
