package gateway

import (
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/launch"
)

func newTestPGRelay(t *testing.T, sink StatusEventSink) *PGRelay {
	t.Helper()
	dsn := os.Getenv("LAUNCHPAD_TEST_DSN")
	if dsn == "" {
		t.Skip("LAUNCHPAD_TEST_DSN not set")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	cfg := DefaultPGRelayConfig()
	cfg.DatabaseURL = dsn
	cfg.NotifyChannel = "launch_events_test"
	r, err := NewPGRelay(db, sink, clockwork.NewRealClock(), cfg)
	if err != nil {
		t.Fatalf("NewPGRelay: %v", err)
	}
	return r
}

func TestPGRelayDeliversOversizedNotifications(t *testing.T) {
	sink := newRecordingSink()
	r := newTestPGRelay(t, sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	small := launch.Notification{
		ID:        "pg-small",
		Kind:      launch.KindLaunch,
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(`{"name":"Demo-2"}`),
	}
	text, _ := json.Marshal(strings.Repeat("x", 3*maxNotifyPayload))
	large := launch.Notification{
		ID:        "pg-large-" + time.Now().Format("150405.000000"),
		Kind:      launch.KindLaunchStatus,
		Timestamp: time.Now().UTC(),
		Payload:   json.RawMessage(`{"statusId":0,"text":` + string(text) + `}`),
	}

	for _, n := range []launch.Notification{small, large} {
		if err := r.Notify(context.Background(), n); err != nil {
			t.Fatalf("Notify %s: %v", n.ID, err)
		}
	}

	for _, want := range []launch.Notification{small, large} {
		got := sink.next(t)
		if got.ID != want.ID || got.Kind != want.Kind {
			t.Fatalf("relayed %s/%s, want %s/%s", got.ID, got.Kind, want.ID, want.Kind)
		}
		if len(got.Payload) != len(want.Payload) {
			t.Fatalf("payload for %s is %d bytes, want %d", got.ID, len(got.Payload), len(want.Payload))
		}
	}
}
