package gateway

import (
	"errors"
	"testing"

	"github.com/mcdev12/launchpad/go/internal/launch"
)

func TestParseInbound(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    interface{}
		wantErr bool
	}{
		{name: "not json", raw: `{`, wantErr: true},
		{name: "unknown type", raw: `{"type":"launchDelete","data":{}}`, wantErr: true},
		{name: "join without data", raw: `{"type":"join"}`, want: JoinPayload{}},
		{name: "join with token", raw: `{"type":"join","data":{"token":"abc"}}`, want: JoinPayload{Token: "abc"}},
		{name: "appStatus missing text", raw: `{"type":"appStatus","data":{"countdown":"2026-03-14T15:00:00Z"}}`, wantErr: true},
		{name: "appStatus missing countdown", raw: `{"type":"appStatus","data":{"text":"Go"}}`, wantErr: true},
		{name: "appStatus unknown field", raw: `{"type":"appStatus","data":{"text":"Go","countdown":"2026-03-14T15:00:00Z","color":"red"}}`, wantErr: true},
		{name: "appStatus without data", raw: `{"type":"appStatus"}`, wantErr: true},
		{name: "launchUpdate empty", raw: `{"type":"launchUpdate","data":{"fields":{}}}`, wantErr: true},
		{name: "appActive missing", raw: `{"type":"appActive","data":{}}`, wantErr: true},
		{name: "appActive wrong type", raw: `{"type":"appActive","data":{"active":"yes"}}`, wantErr: true},
		{name: "edit missing id", raw: `{"type":"statusEditRequest","data":{"text":"typo"}}`, wantErr: true},
		{name: "edit negative id", raw: `{"type":"statusEditRequest","data":{"statusId":-1,"text":"typo"}}`, wantErr: true},
		{name: "edit missing text", raw: `{"type":"statusEditRequest","data":{"statusId":0}}`, wantErr: true},
		{name: "delete null data", raw: `{"type":"statusDeleteRequest","data":null}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, got, err := ParseInbound([]byte(tt.raw))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got payload %#v", got)
				}
				if !errors.Is(err, launch.ErrInvalidArgument) {
					t.Fatalf("error %v does not wrap ErrInvalidArgument", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Fatalf("payload = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseInboundTypedPayloads(t *testing.T) {
	msg, payload, err := ParseInbound([]byte(`{"type":"appStatus","requestId":"r1","data":{"text":"Go for launch","countdown":"2026-03-14T15:00:00Z","extra":{"vehicle":"F9"}}}`))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	if msg.RequestID != "r1" {
		t.Errorf("requestId = %q, want r1", msg.RequestID)
	}
	status, ok := payload.(AppStatusPayload)
	if !ok {
		t.Fatalf("payload is %T, want AppStatusPayload", payload)
	}
	if status.Text != "Go for launch" || string(status.Extra["vehicle"]) != `"F9"` {
		t.Errorf("unexpected payload %+v", status)
	}

	_, payload, err = ParseInbound([]byte(`{"type":"statusDeleteRequest","data":{"statusId":3}}`))
	if err != nil {
		t.Fatalf("ParseInbound: %v", err)
	}
	del := payload.(StatusDeleteRequestPayload)
	if del.StatusID == nil || *del.StatusID != 3 {
		t.Errorf("statusId = %v, want 3", del.StatusID)
	}
}

func TestNewAck(t *testing.T) {
	ok := newAck("r1", nil, fakeClock().Now())
	if ok.OK == nil || !*ok.OK || ok.Error != "" || ok.Code != "" {
		t.Errorf("success ack = %+v", ok)
	}

	failed := newAck("r2", launch.ErrForbidden, fakeClock().Now())
	if failed.OK == nil || *failed.OK || failed.Code != "forbidden" || failed.RequestID != "r2" {
		t.Errorf("failure ack = %+v", failed)
	}
}
