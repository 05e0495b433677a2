package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/rs/zerolog/log"
)

// MessageHandler executes client requests against the launch app and replies
// to the requesting connection
type MessageHandler struct {
	app    *launch.App
	router *RoomRouter
	clock  clockwork.Clock
}

// NewMessageHandler creates a handler for client messages
func NewMessageHandler(app *launch.App, router *RoomRouter, clock clockwork.Clock) *MessageHandler {
	return &MessageHandler{app: app, router: router, clock: clock}
}

// Handle parses and executes one client message. Every request gets an ack;
// failures never close the connection.
func (h *MessageHandler) Handle(ctx context.Context, conn *Connection, raw []byte) {
	msg, payload, err := ParseInbound(raw)
	if err != nil {
		log.Debug().
			Err(err).
			Str("connection_id", conn.ID).
			Msg("rejected client message")
		h.reply(conn, newAck(msg.RequestID, err, h.now()))
		return
	}

	actor := conn.Actor()
	var (
		statusID *int64
		data     interface{}
	)

	switch p := payload.(type) {
	case JoinPayload:
		h.Join(ctx, conn, msg.RequestID, p.Token)
		return

	case AppStatusPayload:
		var status models.LaunchStatus
		status, err = h.app.PostStatus(ctx, actor, launch.StatusInput{
			Text:      p.Text,
			Countdown: p.Countdown,
			Timestamp: p.Timestamp,
			Extra:     p.Extra,
		})
		if err == nil {
			statusID = &status.StatusID
		}

	case LaunchUpdatePayload:
		data, err = h.app.UpdateLaunch(ctx, actor, p.Fields)

	case AppActivePayload:
		err = h.app.SetActive(ctx, actor, *p.Active)

	case StatusEditRequestPayload:
		var res launch.AppendResult
		res, err = h.app.RequestStatusEdit(ctx, actor, *p.StatusID, p.Text)
		if err == nil {
			data = map[string]int64{"eventId": res.ID}
		}

	case StatusDeleteRequestPayload:
		var res launch.AppendResult
		res, err = h.app.RequestStatusDelete(ctx, actor, *p.StatusID)
		if err == nil {
			data = map[string]int64{"eventId": res.ID}
		}
	}

	if err != nil {
		log.Warn().
			Err(err).
			Str("connection_id", conn.ID).
			Str("type", string(msg.Type)).
			Str("code", launch.ErrorCode(err)).
			Msg("client request failed")
	}

	ack := newAck(msg.RequestID, err, h.now())
	ack.StatusID = statusID
	if err == nil && data != nil {
		if encoded, mErr := json.Marshal(data); mErr == nil {
			ack.Data = encoded
		}
	}
	h.reply(conn, ack)
}

// Join classifies credential and moves conn into the matching rooms, then
// tells the client which roles it holds
func (h *MessageHandler) Join(ctx context.Context, conn *Connection, requestID, credential string) {
	actor := h.router.OnConnect(ctx, conn, credential)

	data, err := json.Marshal(map[string]interface{}{
		"roles":    actor.Roles.Slice(),
		"rooms":    RoomsForRoles(actor.Roles),
		"username": actor.Username(),
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to encode joined message")
		return
	}
	h.reply(conn, &OutboundMessage{
		Type:      string(MessageTypeJoined),
		RequestID: requestID,
		Data:      data,
		Timestamp: h.now(),
	})
}

func (h *MessageHandler) reply(conn *Connection, msg *OutboundMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error().Err(err).Str("connection_id", conn.ID).Msg("failed to marshal reply")
		return
	}
	if !conn.trySend(data) {
		log.Warn().Str("connection_id", conn.ID).Msg("connection send buffer full, dropping reply")
	}
}

func (h *MessageHandler) now() time.Time {
	return h.clock.Now().UTC()
}
