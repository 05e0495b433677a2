package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mcdev12/launchpad/go/internal/launch"
)

// MessageType is the tag of a client or server message
type MessageType string

// Inbound message types
const (
	MessageTypeJoin                MessageType = "join"
	MessageTypeAppStatus           MessageType = "appStatus"
	MessageTypeLaunchUpdate        MessageType = "launchUpdate"
	MessageTypeAppActive           MessageType = "appActive"
	MessageTypeStatusEditRequest   MessageType = "statusEditRequest"
	MessageTypeStatusDeleteRequest MessageType = "statusDeleteRequest"
)

// Outbound message types not covered by a notification kind
const (
	MessageTypeAck    MessageType = "ack"
	MessageTypeJoined MessageType = "joined"
)

// InboundMessage is the envelope every client message arrives in
type InboundMessage struct {
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// OutboundMessage is the envelope for everything sent to a client
type OutboundMessage struct {
	Type      string          `json:"type"`
	ID        string          `json:"id,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
	OK        *bool           `json:"ok,omitempty"`
	Error     string          `json:"error,omitempty"`
	Code      string          `json:"code,omitempty"`
	StatusID  *int64          `json:"statusId,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// JoinPayload asks the server to (re)classify the connection
type JoinPayload struct {
	Token string `json:"token,omitempty"`
}

// AppStatusPayload posts a new launch status
type AppStatusPayload struct {
	Text      string                     `json:"text"`
	Countdown time.Time                  `json:"countdown"`
	Timestamp *time.Time                 `json:"timestamp,omitempty"`
	Extra     map[string]json.RawMessage `json:"extra,omitempty"`
}

// LaunchUpdatePayload merges fields into the launch state
type LaunchUpdatePayload struct {
	Fields map[string]json.RawMessage `json:"fields"`
}

// AppActivePayload sets the activity flag
type AppActivePayload struct {
	Active *bool `json:"active"`
}

// StatusEditRequestPayload asks moderators to edit a status
type StatusEditRequestPayload struct {
	StatusID *int64 `json:"statusId"`
	Text     string `json:"text"`
}

// StatusDeleteRequestPayload asks moderators to delete a status
type StatusDeleteRequestPayload struct {
	StatusID *int64 `json:"statusId"`
}

var errMalformed = errors.New("malformed message")

// ParseInbound decodes a raw client message into its envelope and typed
// payload. Unknown types, unknown fields and missing required fields are rejected.
func ParseInbound(raw []byte) (InboundMessage, interface{}, error) {
	var msg InboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, nil, fmt.Errorf("%w: %v: %w", errMalformed, err, launch.ErrInvalidArgument)
	}

	switch msg.Type {
	case MessageTypeJoin:
		var payload JoinPayload
		if len(msg.Data) > 0 && !isNull(msg.Data) {
			if err := decodeStrict(msg.Data, &payload); err != nil {
				return msg, nil, err
			}
		}
		return msg, payload, nil

	case MessageTypeAppStatus:
		var payload AppStatusPayload
		if err := decodeStrict(msg.Data, &payload); err != nil {
			return msg, nil, err
		}
		if payload.Text == "" {
			return msg, nil, fmt.Errorf("appStatus text is required: %w", launch.ErrInvalidArgument)
		}
		if payload.Countdown.IsZero() {
			return msg, nil, fmt.Errorf("appStatus countdown is required: %w", launch.ErrInvalidArgument)
		}
		return msg, payload, nil

	case MessageTypeLaunchUpdate:
		var payload LaunchUpdatePayload
		if err := decodeStrict(msg.Data, &payload); err != nil {
			return msg, nil, err
		}
		if len(payload.Fields) == 0 {
			return msg, nil, fmt.Errorf("launchUpdate fields are required: %w", launch.ErrInvalidArgument)
		}
		return msg, payload, nil

	case MessageTypeAppActive:
		var payload AppActivePayload
		if err := decodeStrict(msg.Data, &payload); err != nil {
			return msg, nil, err
		}
		if payload.Active == nil {
			return msg, nil, fmt.Errorf("appActive active is required: %w", launch.ErrInvalidArgument)
		}
		return msg, payload, nil

	case MessageTypeStatusEditRequest:
		var payload StatusEditRequestPayload
		if err := decodeStrict(msg.Data, &payload); err != nil {
			return msg, nil, err
		}
		if payload.StatusID == nil || *payload.StatusID < 0 {
			return msg, nil, fmt.Errorf("statusEditRequest statusId is required: %w", launch.ErrInvalidArgument)
		}
		if payload.Text == "" {
			return msg, nil, fmt.Errorf("statusEditRequest text is required: %w", launch.ErrInvalidArgument)
		}
		return msg, payload, nil

	case MessageTypeStatusDeleteRequest:
		var payload StatusDeleteRequestPayload
		if err := decodeStrict(msg.Data, &payload); err != nil {
			return msg, nil, err
		}
		if payload.StatusID == nil || *payload.StatusID < 0 {
			return msg, nil, fmt.Errorf("statusDeleteRequest statusId is required: %w", launch.ErrInvalidArgument)
		}
		return msg, payload, nil

	default:
		return msg, nil, fmt.Errorf("unknown message type %q: %w", msg.Type, launch.ErrInvalidArgument)
	}
}

func decodeStrict(data json.RawMessage, v interface{}) error {
	if len(data) == 0 || isNull(data) {
		return fmt.Errorf("message data is required: %w", launch.ErrInvalidArgument)
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v: %w", errMalformed, err, launch.ErrInvalidArgument)
	}
	return nil
}

func isNull(data json.RawMessage) bool {
	return string(bytes.TrimSpace(data)) == "null"
}

// newAck builds a request acknowledgement. A nil err means success.
func newAck(requestID string, err error, at time.Time) *OutboundMessage {
	ok := err == nil
	ack := &OutboundMessage{
		Type:      string(MessageTypeAck),
		RequestID: requestID,
		OK:        &ok,
		Timestamp: at,
	}
	if err != nil {
		ack.Error = err.Error()
		ack.Code = launch.ErrorCode(err)
	}
	return ack
}
