// Package router interprets inbound client events and drives the room and
// player state machines. It implements the four transport entry points
// (open, message, close, error) and owns all mutation of shared game state.
package router

import (
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hallowdale/dicetable/internal/game/protocol"
	"github.com/hallowdale/dicetable/internal/game/room"
	"github.com/hallowdale/dicetable/internal/game/session"
)

// Config holds the router's tunable behavior.
type Config struct {
	// JoinBroadcastDelay is the pause between a joining player's login
	// confirmation and the roster broadcast to the room. It lets the joining
	// client acknowledge its login before the room's member list changes
	// underneath it. The wait is scheduled, never blocking.
	JoinBroadcastDelay time.Duration
	// RoomDefaults are the settings applied to newly created rooms.
	RoomDefaults room.Settings
}

// Router dispatches inbound messages to method handlers and emits outbound
// events. A single mutex serializes the four transport entry points so every
// message is fully handled, state mutation and sends included, before the
// next one starts.
type Router struct {
	mu      sync.Mutex
	cfg     Config
	players *session.Registry
	rooms   *room.Registry
	logger  *zap.Logger
}

// New creates a Router over the given registries.
//
// Precondition: players, rooms and logger must be non-nil.
func New(cfg Config, players *session.Registry, rooms *room.Registry, logger *zap.Logger) *Router {
	return &Router{
		cfg:     cfg,
		players: players,
		rooms:   rooms,
		logger:  logger,
	}
}

// OnOpen registers a Player for the new connection and sends the connection
// its own identifier.
func (r *Router) OnOpen(conn session.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.players.Register(conn); err != nil {
		r.logger.Warn("connection already registered", zap.String("cid", conn.ID()), zap.Error(err))
	}
	_ = conn.Send(protocol.Marshal(protocol.Greeting{CID: conn.ID()}))

	r.logger.Info("client connected",
		zap.String("cid", conn.ID()),
		zap.Int("clients", r.players.Count()),
	)
}

// OnMessage parses one inbound frame and dispatches it by method. Malformed
// frames and frames without a method are dropped silently, logged only.
func (r *Router) OnMessage(conn session.Conn, data []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var msg protocol.Inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		r.logger.Debug("dropping malformed frame", zap.String("cid", conn.ID()), zap.Error(err))
		return
	}
	if msg.Method == "" {
		r.logger.Debug("dropping frame without method", zap.String("cid", conn.ID()))
		return
	}

	player, ok := r.players.Lookup(conn)
	if !ok {
		// Connection raced its own teardown; nothing to act on.
		r.logger.Warn("message from unregistered connection", zap.String("cid", conn.ID()))
		return
	}
	current, _ := r.rooms.FindByPlayer(player)

	r.logger.Debug("inbound",
		zap.String("cid", conn.ID()),
		zap.String("method", msg.Method),
	)

	switch msg.Method {
	case protocol.MethodJoin:
		r.handleJoin(conn, player, current, &msg)
	case protocol.MethodLogout:
		r.leaveRoom(player, current)
	case protocol.MethodOption:
		r.handleOption(player, current, &msg)
	case protocol.MethodChat:
		r.handleChat(player, current, &msg)
	case protocol.MethodRoll:
		r.handleRoll(player, current, &msg)
	case protocol.MethodColorset:
		player.Colorset = msg.Colorset
	case protocol.MethodTexture:
		player.Texture = msg.Texture
	case protocol.MethodMaterial:
		player.Material = msg.Material
	case protocol.MethodRoomlist:
		r.handleRoomlist(player)
	default:
		// Unknown methods fall through with no response, leaving room for
		// newer clients against older servers.
	}
}

// OnClose tears the player down exactly like a logout, then unregisters the
// connection.
func (r *Router) OnClose(conn session.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.teardown(conn)
	r.logger.Info("client disconnected",
		zap.String("cid", conn.ID()),
		zap.Int("clients", r.players.Count()),
	)
}

// OnError performs the same cleanup as OnClose; the error is diagnostic only.
func (r *Router) OnError(conn session.Conn, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.teardown(conn)
	r.logger.Warn("client connection error",
		zap.String("cid", conn.ID()),
		zap.Error(err),
		zap.Int("clients", r.players.Count()),
	)
}

// teardown removes the connection's player from their room (broadcasting the
// departure or dropping the emptied room) and unregisters the connection.
// Callers must hold r.mu.
func (r *Router) teardown(conn session.Conn) {
	if player, ok := r.players.Lookup(conn); ok {
		current, _ := r.rooms.FindByPlayer(player)
		r.leaveRoom(player, current)
	}
	r.players.Unregister(conn)
}

// leaveRoom removes the player from current, broadcasting the updated roster
// to the remaining members or removing the emptied room from the registry.
// A nil current is a no-op. Callers must hold r.mu.
func (r *Router) leaveRoom(player *session.Player, current *room.Room) {
	if current == nil {
		return
	}

	name := player.Name
	current.RemovePlayer(player)

	if current.MemberCount() > 0 {
		current.SendAll(protocol.Marshal(protocol.Userlist{
			Action: "userlist",
			Act:    "del",
			User:   name,
			TID:    current.ID(),
			List:   current.PlayerList(),
			Room:   current.Name(),
		}))
		return
	}

	r.rooms.Remove(current)
	r.logger.Info("room removed",
		zap.String("room", current.Name()),
		zap.String("tid", current.ID()),
	)
}

// scheduleRosterBroadcast arranges the userlist "add" broadcast to fire after
// the configured join delay without blocking other connections. The roster is
// computed at fire time, and the broadcast is skipped if the room was torn
// down or the player already left.
func (r *Router) scheduleRosterBroadcast(target *room.Room, player *session.Player, user string) {
	delay := r.cfg.JoinBroadcastDelay
	if delay < 0 {
		delay = 0
	}
	time.AfterFunc(delay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		if _, ok := r.rooms.Find(target.ID()); !ok {
			return
		}
		if !target.HasMember(player) {
			return
		}
		target.SendAll(protocol.Marshal(protocol.Userlist{
			Action: "userlist",
			Act:    "add",
			User:   user,
			TID:    target.ID(),
			List:   target.PlayerList(),
			Room:   target.Name(),
		}))
	})
}
