package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/mcdev12/launchpad/go/internal/launch"
	"github.com/mcdev12/launchpad/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Room is a fixed visibility room
type Room string

const (
	RoomGuests     Room = "room:guests"
	RoomPrivileges Room = "room:privileges"
	RoomModerator  Room = "room:moderator"
)

// AllRooms is every room, used for public broadcasts
var AllRooms = []Room{RoomGuests, RoomPrivileges, RoomModerator}

// roomForRole maps each role to the room it implies
var roomForRole = map[models.Role]Room{
	models.RoleGuest:      RoomGuests,
	models.RolePrivileged: RoomPrivileges,
	models.RoleModerator:  RoomModerator,
}

// RoomsForRoles returns the union of rooms implied by roles
func RoomsForRoles(roles models.RoleSet) []Room {
	var rooms []Room
	for _, room := range AllRooms {
		for role, r := range roomForRole {
			if r == room && roles.Has(role) {
				rooms = append(rooms, room)
			}
		}
	}
	return rooms
}

// roomsForKind decides which rooms may see a notification kind
func roomsForKind(kind launch.Kind) []Room {
	switch kind {
	case launch.KindEvent:
		return []Room{RoomModerator}
	default:
		return AllRooms
	}
}

// BroadcastMessage is a message queued for delivery to a set of rooms
type BroadcastMessage struct {
	Rooms   []Room
	Message *OutboundMessage
}

// RoomRouter places connections in rooms and fans messages out to them
type RoomRouter struct {
	authorizer *Authorizer

	rooms map[Room]map[*Connection]struct{}
	mu    sync.RWMutex

	broadcastCh chan BroadcastMessage
}

// NewRoomRouter creates a router with an empty membership table
func NewRoomRouter(authorizer *Authorizer) *RoomRouter {
	rooms := make(map[Room]map[*Connection]struct{}, len(AllRooms))
	for _, room := range AllRooms {
		rooms[room] = make(map[*Connection]struct{})
	}
	return &RoomRouter{
		authorizer:  authorizer,
		rooms:       rooms,
		broadcastCh: make(chan BroadcastMessage, 1000), // Buffer for high throughput
	}
}

// Start processes queued broadcasts until ctx is cancelled
func (r *RoomRouter) Start(ctx context.Context) {
	log.Info().Msg("room router started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("room router shutting down")
			return
		case message := <-r.broadcastCh:
			r.deliver(message)
		}
	}
}

// OnConnect classifies the credential and joins conn to every room its roles
// imply, replacing any previous membership. Classification may outlive the
// connection; joining a closed connection is a no-op.
func (r *RoomRouter) OnConnect(ctx context.Context, conn *Connection, credential string) models.Actor {
	actor := r.authorizer.Classify(ctx, credential)
	if !r.join(conn, actor) {
		log.Debug().Str("connection_id", conn.ID).Msg("connection closed before join completed")
		return actor
	}

	log.Info().
		Str("connection_id", conn.ID).
		Str("user", usernameOf(actor)).
		Interface("roles", actor.Roles.Slice()).
		Msg("connection joined rooms")
	return actor
}

func (r *RoomRouter) join(conn *Connection, actor models.Actor) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conn.isClosed() {
		return false
	}
	for _, members := range r.rooms {
		delete(members, conn)
	}
	for _, room := range RoomsForRoles(actor.Roles) {
		r.rooms[room][conn] = struct{}{}
	}
	conn.setActor(actor)
	return true
}

// Leave removes conn from every room and closes its send queue
func (r *RoomRouter) Leave(conn *Connection) {
	r.mu.Lock()
	for _, members := range r.rooms {
		delete(members, conn)
	}
	r.mu.Unlock()

	if conn.close() {
		log.Info().Str("connection_id", conn.ID).Msg("connection left")
	}
}

// Broadcast queues message for every connection in any of rooms. Delivery is
// best-effort: a full queue drops the message.
func (r *RoomRouter) Broadcast(rooms []Room, message *OutboundMessage) {
	select {
	case r.broadcastCh <- BroadcastMessage{Rooms: rooms, Message: message}:
	default:
		log.Warn().Str("type", message.Type).Msg("broadcast channel full, dropping message")
	}
}

// OnStatusEvent routes a committed mutation to the rooms allowed to see it
func (r *RoomRouter) OnStatusEvent(ctx context.Context, n launch.Notification) error {
	r.Broadcast(roomsForKind(n.Kind), &OutboundMessage{
		Type:      string(n.Kind),
		ID:        n.ID,
		Data:      n.Payload,
		Timestamp: n.Timestamp,
	})
	return nil
}

// Notify lets the router act as an in-process notifier
func (r *RoomRouter) Notify(ctx context.Context, n launch.Notification) error {
	return r.OnStatusEvent(ctx, n)
}

// deliver sends a message once to each connection in the union of its rooms
func (r *RoomRouter) deliver(message BroadcastMessage) {
	r.mu.RLock()
	targets := make(map[*Connection]struct{})
	for _, room := range message.Rooms {
		for conn := range r.rooms[room] {
			targets[conn] = struct{}{}
		}
	}
	r.mu.RUnlock()

	data, err := json.Marshal(message.Message)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal message for broadcast")
		return
	}

	for conn := range targets {
		if !conn.trySend(data) {
			// Connection is slow/dead, close it
			log.Warn().
				Str("connection_id", conn.ID).
				Msg("connection send buffer full, closing connection")
			r.Leave(conn)
		}
	}

	log.Debug().
		Str("type", message.Message.Type).
		Interface("rooms", message.Rooms).
		Int("connections", len(targets)).
		Msg("message broadcasted")
}

// Stats returns the number of connections in each room
func (r *RoomRouter) Stats() map[Room]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[Room]int, len(r.rooms))
	for room, members := range r.rooms {
		out[room] = len(members)
	}
	return out
}

func usernameOf(actor models.Actor) string {
	if actor.User == nil {
		return ""
	}
	return actor.User.Username
}
