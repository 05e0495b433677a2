package gateway

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/nats-io/nats.go"
	"github.com/vmihailenco/msgpack/v5"
)

func TestNATSRelayDecodesNotifications(t *testing.T) {
	sink := newRecordingSink()
	r := NewNATSRelayFromConn(nil, sink, DefaultNATSRelayConfig())

	sent := launch.Notification{
		ID:        "n1",
		Kind:      launch.KindLaunch,
		Timestamp: fakeClock().Now(),
		Payload:   json.RawMessage(`{"name":"Demo-2"}`),
	}
	data, err := msgpack.Marshal(&sent)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	r.handleMessage(context.Background(), &nats.Msg{Subject: r.subject(sent.Kind), Data: data})

	got := sink.next(t)
	if got.ID != sent.ID || got.Kind != sent.Kind || string(got.Payload) != string(sent.Payload) {
		t.Fatalf("relayed = %+v, want %+v", got, sent)
	}
	if !got.Timestamp.Equal(sent.Timestamp) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, sent.Timestamp)
	}
}

func TestNATSRelayDropsGarbage(t *testing.T) {
	sink := newRecordingSink()
	r := NewNATSRelayFromConn(nil, sink, DefaultNATSRelayConfig())

	r.handleMessage(context.Background(), &nats.Msg{Subject: "launch.events.launch", Data: []byte("not msgpack")})

	if len(sink.items) != 0 {
		t.Fatalf("garbage produced %d notifications", len(sink.items))
	}
}

func TestNATSRelaySubject(t *testing.T) {
	r := NewNATSRelayFromConn(nil, nil, DefaultNATSRelayConfig())
	if got := r.subject(launch.KindEvent); got != "launch.events.event" {
		t.Fatalf("subject = %q", got)
	}
}

func TestPGRelayHandlesNotification(t *testing.T) {
	sink := newRecordingSink()
	r := &PGRelay{sink: sink, cfg: DefaultPGRelayConfig()}

	payload, err := json.Marshal(launch.Notification{ID: "n2", Kind: launch.KindAppActive, Payload: json.RawMessage(`{"isActive":true}`)})
	if err != nil {
		t.Fatal(err)
	}
	if err := r.handleNotification(context.Background(), string(payload)); err != nil {
		t.Fatalf("handleNotification: %v", err)
	}
	if got := sink.next(t); got.ID != "n2" || got.Kind != launch.KindAppActive {
		t.Fatalf("relayed = %+v", got)
	}

	if err := r.handleNotification(context.Background(), "{"); err == nil {
		t.Fatal("expected error for invalid payload")
	}
}

func TestPGRelayRejectsOversizedPayload(t *testing.T) {
	r := &PGRelay{cfg: DefaultPGRelayConfig()}
	big := make([]byte, maxNotifyPayload)
	for i := range big {
		big[i] = 'a'
	}
	payload, _ := json.Marshal(string(big))

	err := r.Notify(context.Background(), launch.Notification{ID: "big", Kind: launch.KindLaunch, Payload: payload})
	if err == nil {
		t.Fatal("expected error for oversized notification")
	}
}
