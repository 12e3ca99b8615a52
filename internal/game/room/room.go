// Package room implements broadcast rooms: membership, ownership, per-room
// settings and best-effort fan-out to every member.
package room

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hallowdale/dicetable/internal/game/session"
)

// ownerMark prefixes the owner's name in player lists.
const ownerMark = "\U0001F451 " // 👑

// Settings holds the per-room options. They are stored and reported but not
// enforced by the server.
type Settings struct {
	MaxDice         int
	AllowOwnerFudge bool
}

// DefaultSettings returns the settings applied to newly created rooms.
func DefaultSettings() Settings {
	return Settings{MaxDice: 50, AllowOwnerFudge: true}
}

// Room is a named broadcast group with one owner and an insertion-ordered
// member list. All methods are safe for concurrent use.
type Room struct {
	id       string
	name     string
	password string // plaintext, in memory only; not a security boundary

	mu           sync.RWMutex
	owner        *session.Player
	members      []*session.Player // insertion order
	settings     Settings
	created      time.Time
	lastActivity time.Time
}

// New creates a room with a fresh id and the given settings.
//
// Precondition: name must already be sanitized; password may be empty.
func New(name, password string, settings Settings) *Room {
	now := time.Now()
	return &Room{
		id:           uuid.NewString(),
		name:         name,
		password:     password,
		settings:     settings,
		created:      now,
		lastActivity: now,
	}
}

// ID returns the room's stable identifier.
func (r *Room) ID() string { return r.id }

// Name returns the room's display/lookup name.
func (r *Room) Name() string { return r.name }

// HasPassword reports whether joining requires a password.
func (r *Room) HasPassword() bool { return r.password != "" }

// AcceptsPassword reports whether the supplied password grants entry.
// An open room accepts anything.
func (r *Room) AcceptsPassword(pass string) bool {
	return r.password == "" || r.password == pass
}

// AddPlayer attaches the player to the member set and points the player's
// room reference here. Ownership is never assigned implicitly; the create
// flow calls SetOwner explicitly.
//
// Precondition: player must not be a member of another room.
func (r *Room) AddPlayer(p *session.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.members {
		if m.Conn.ID() == p.Conn.ID() {
			r.lastActivity = time.Now()
			return
		}
	}
	r.members = append(r.members, p)
	p.RoomID = r.id
	r.lastActivity = time.Now()
}

// RemovePlayer detaches the player and clears their room reference. If the
// departing player owned the room, ownership passes to the first remaining
// member in insertion order; an emptied room is left ownerless and the caller
// is responsible for dropping it from the registry.
func (r *Room) RemovePlayer(p *session.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, m := range r.members {
		if m.Conn.ID() == p.Conn.ID() {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
	p.RoomID = ""

	if r.owner != nil && r.owner.Conn.ID() == p.Conn.ID() {
		if len(r.members) > 0 {
			r.owner = r.members[0]
		} else {
			r.owner = nil
		}
	}
	r.lastActivity = time.Now()
}

// SetOwner assigns the room owner.
//
// Precondition: player is a current member; not enforced here, the caller's
// responsibility.
func (r *Room) SetOwner(p *session.Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.owner = p
	r.lastActivity = time.Now()
}

// Owner returns the current owner, or nil while the room is transitioning.
func (r *Room) Owner() *session.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner
}

// IsOwner reports whether the player's connection owns the room.
func (r *Room) IsOwner(p *session.Player) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.owner != nil && p != nil && r.owner.Conn.ID() == p.Conn.ID()
}

// HasMember reports whether the player's connection is in the member set.
func (r *Room) HasMember(p *session.Player) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, m := range r.members {
		if m.Conn.ID() == p.Conn.ID() {
			return true
		}
	}
	return false
}

// Members returns a snapshot of the member set in insertion order.
func (r *Room) Members() []*session.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*session.Player, len(r.members))
	copy(out, r.members)
	return out
}

// MemberCount returns the number of current members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// SendAll delivers payload to every member in insertion order. Delivery is
// fire-and-forget: one failed send never aborts the rest. The activity
// timestamp refreshes even when the member set is empty.
func (r *Room) SendAll(payload []byte) {
	r.mu.Lock()
	members := make([]*session.Player, len(r.members))
	copy(members, r.members)
	r.lastActivity = time.Now()
	r.mu.Unlock()

	for _, m := range members {
		_ = m.Send(payload)
	}
}

// PlayerList returns each member's display name in insertion order, the
// owner's prefixed with a crown marker.
func (r *Room) PlayerList() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]string, 0, len(r.members))
	for _, m := range r.members {
		name := m.Name
		if r.owner != nil && r.owner.Conn.ID() == m.Conn.ID() {
			name = ownerMark + name
		}
		list = append(list, name)
	}
	return list
}

// Settings returns a copy of the room's current settings.
func (r *Room) Settings() Settings {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.settings
}

// SetMaxDice stores a new maxDice value. The value is advisory only.
func (r *Room) SetMaxDice(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.MaxDice = n
	r.lastActivity = time.Now()
}

// Created returns the room creation time.
func (r *Room) Created() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.created
}

// LastActivity returns the time of the last broadcast, join or leave.
func (r *Room) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}
