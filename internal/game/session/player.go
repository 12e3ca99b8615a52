// Package session tracks connected players and their per-connection state.
package session

// Conn is the transport surface the game core depends on: a stable identifier
// and best-effort text delivery. The websocket layer provides the production
// implementation.
type Conn interface {
	// ID returns a stable identifier for the lifetime of the connection.
	ID() string
	// Send delivers one text payload. Failures are scoped to the single call.
	Send(payload []byte) error
}

// Player is the mutable session state for one connection.
type Player struct {
	// Conn is the transport handle the player is reached through.
	Conn Conn
	// Name is the sanitized display name, empty until a successful join.
	Name string
	// RoomID is the id of the room the player currently occupies, or empty.
	// It is a lookup key, not ownership; the room registry stays authoritative.
	RoomID string
	// Colorset, Texture and Material are free-form cosmetic strings,
	// last write wins.
	Colorset string
	Texture  string
	Material string
}

// NewPlayer creates the session state for a freshly opened connection.
//
// Precondition: conn must be non-nil.
func NewPlayer(conn Conn) *Player {
	return &Player{Conn: conn}
}

// Send forwards a payload to the player's connection.
func (p *Player) Send(payload []byte) error {
	return p.Conn.Send(payload)
}
