package router

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/hallowdale/dicetable/internal/game/protocol"
	"github.com/hallowdale/dicetable/internal/game/room"
	"github.com/hallowdale/dicetable/internal/game/session"
	"github.com/hallowdale/dicetable/internal/sanitize"
)

// Validation error strings are part of the wire contract; clients display
// them verbatim.
const (
	errPlayerNameInvalid = "Player Name Invalid (spaces, a-Z, 0-9, '.', '_', '-', 35 chars max)"
	errRoomNameInvalid   = "Room Name Invalid (spaces, a-Z, 0-9, '.', '_', '-', 35 chars max)"
	errPasswordInvalid   = "Password Invalid (spaces, a-Z, 0-9, '.', '_', '-', 100 chars max)"
	errRoomPassword      = "Room Password Incorrect"
	errOptionKey         = "Invalid option key."
	errOptionNumeric     = "Value must be numeric and > 0."
	errOptionBoolean     = "Value must be numeric 0 or 1."
	errOptionNotOwner    = "Only room owner can change room options."
	warnOptionNotOwner   = "Player tried to change room option."
)

// handleJoin validates the join request, resolves or creates the target room,
// attaches the player and emits the login confirmation followed by the
// delayed roster broadcast. Callers must hold r.mu.
func (r *Router) handleJoin(conn session.Conn, player *session.Player, current *room.Room, msg *protocol.Inbound) {
	originalPass := msg.Pass

	user := sanitize.Name(msg.User)
	roomName := sanitize.Name(msg.Room)
	pass := sanitize.Password(msg.Pass)

	if user == "" {
		r.sendError(player, errPlayerNameInvalid, "player name rejected")
		return
	}
	if roomName == "" {
		r.sendError(player, errRoomNameInvalid, "room name rejected")
		return
	}
	// A password that sanitization altered would silently mismatch on every
	// later join, so it is rejected outright.
	if pass != originalPass {
		r.sendError(player, errPasswordInvalid, "room password rejected")
		return
	}

	player.Name = user

	// Room ids are 36 bytes and never survive the 35-byte name cap, so id
	// joins resolve against the raw room string before the sanitized name.
	target, found := r.rooms.Find(msg.Room)
	if !found {
		target, found = r.rooms.Find(roomName)
	}
	action := "join"
	if !found {
		target = room.New(roomName, pass, r.cfg.RoomDefaults)
		target.SetOwner(player)
		r.rooms.Add(target)
		action = "create"
	} else if !target.AcceptsPassword(pass) {
		r.sendError(player, errRoomPassword, "wrong room password")
		return
	}

	// Re-joining from another room counts as leaving it; a player occupies
	// at most one room.
	if current != nil && current.ID() != target.ID() {
		r.leaveRoom(player, current)
	}

	target.AddPlayer(player)

	_ = player.Send(protocol.Marshal(protocol.LoginOK{
		Action: "login",
		Method: "join",
		User:   player.Name,
	}))
	r.scheduleRosterBroadcast(target, player, player.Name)

	r.players.Update(conn, player)

	r.logger.Info("player joined room",
		zap.String("cid", conn.ID()),
		zap.String("user", player.Name),
		zap.String("room", target.Name()),
		zap.String("tid", target.ID()),
		zap.String("action", action),
	)
}

// handleOption applies an owner-only settings change. Non-owners trigger a
// warning to the owner and an error to the requester; a missing room is a
// no-op. Callers must hold r.mu.
func (r *Router) handleOption(player *session.Player, current *room.Room, msg *protocol.Inbound) {
	if current == nil {
		r.logger.Debug("option without a room", zap.String("cid", player.Conn.ID()))
		return
	}

	if !current.IsOwner(player) {
		if owner := current.Owner(); owner != nil {
			_ = owner.Send(protocol.Marshal(protocol.Warning{Warning: warnOptionNotOwner}))
		}
		r.sendError(player, errOptionNotOwner, "option change by non-owner")
		return
	}

	settings := current.Settings()

	switch msg.Key {
	case "maxDice":
		val, numeric := numericValue(msg.Value)
		newValue := int(math.Abs(val))
		if numeric && newValue == settings.MaxDice {
			return
		}
		if !numeric || newValue <= 0 {
			r.sendError(player, errOptionNumeric, "bad maxDice value")
			return
		}
		current.SetMaxDice(newValue)
		r.notifyOwner(current, fmt.Sprintf("Room option changed [%s]: %d -> %d", msg.Key, settings.MaxDice, newValue))

	case "allowOwnerFudge":
		val, _ := numericValue(msg.Value)
		newValue := math.Abs(val) == 1
		if newValue == settings.AllowOwnerFudge {
			return
		}
		// The numeric gate runs against the boolean-derived value, which can
		// never satisfy it, so a change request always fails and the flag
		// keeps its default.
		r.sendError(player, errOptionBoolean, "bad allowOwnerFudge value")

	default:
		r.sendError(player, errOptionKey, "unknown option key")
	}
}

// handleChat fans the chat payload out to every other member and answers the
// sender with a uuid acknowledgment instead of the content. Callers must
// hold r.mu.
func (r *Router) handleChat(player *session.Player, current *room.Room, msg *protocol.Inbound) {
	if current == nil {
		return
	}

	full := protocol.Marshal(protocol.Chat{
		Action: "chat",
		User:   player.Name,
		Text:   msg.Text,
		Time:   msg.Time,
	})
	ack := protocol.Marshal(protocol.ChatAck{
		Action: "chat",
		UUID:   msg.UUID,
	})

	for _, m := range current.Members() {
		if m.Conn.ID() == player.Conn.ID() {
			_ = m.Send(ack)
		} else {
			_ = m.Send(full)
		}
	}
}

// handleRoll broadcasts the roll, sender included, with the sender's cosmetic
// state attached. The notation and vector payloads pass through unvalidated.
// Callers must hold r.mu.
func (r *Router) handleRoll(player *session.Player, current *room.Room, msg *protocol.Inbound) {
	if current == nil {
		return
	}
	current.SendAll(protocol.Marshal(protocol.Roll{
		Action:   "roll",
		User:     player.Name,
		Colorset: player.Colorset,
		Texture:  player.Texture,
		Material: player.Material,
		Notation: msg.Notation,
		Vectors:  msg.Vectors,
		Time:     msg.Time,
	}))
}

// handleRoomlist answers the requester with a snapshot of every room. The
// password itself is never included, only whether one is set. Callers must
// hold r.mu.
func (r *Router) handleRoomlist(player *session.Player) {
	all := r.rooms.All()
	list := make([]protocol.RoomInfo, 0, len(all))

	for _, rm := range all {
		password := "no"
		if rm.HasPassword() {
			password = "yes"
		}
		ownerLabel := ""
		if owner := rm.Owner(); owner != nil {
			ownerLabel = owner.Conn.ID() + ": " + owner.Name
		}
		list = append(list, protocol.RoomInfo{
			ID:                  rm.ID(),
			Name:                rm.Name(),
			Owner:               ownerLabel,
			Password:            password,
			Settings:            protocol.Settings(rm.Settings()),
			Players:             rm.PlayerList(),
			Created:             rm.Created().Unix(),
			CreatedVerbose:      humanize.Time(rm.Created()),
			LastActivity:        rm.LastActivity().Unix(),
			LastActivityVerbose: humanize.Time(rm.LastActivity()),
		})
	}

	_ = player.Send(protocol.Marshal(protocol.Roomlist{
		Action: "roomlist",
		List:   list,
	}))
}

// sendError reports a validation failure to the player and logs the reason.
func (r *Router) sendError(player *session.Player, wireMsg, logMsg string) {
	_ = player.Send(protocol.Marshal(protocol.Error{Error: wireMsg}))
	r.logger.Info(logMsg, zap.String("cid", player.Conn.ID()))
}

// notifyOwner sends an informational notice to the room owner.
func (r *Router) notifyOwner(current *room.Room, text string) {
	if owner := current.Owner(); owner != nil {
		_ = owner.Send(protocol.Marshal(protocol.Notice{Message: text}))
	}
}

// numericValue extracts a float from a raw option value. Quoted numerals
// count as numeric, anything else does not.
func numericValue(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
