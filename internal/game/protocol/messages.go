// Package protocol defines the JSON wire messages exchanged with dice clients.
//
// Inbound frames carry a "method" selector; outbound frames carry an "action"
// selector, except for the error/warning/message/cid notices which are
// single-field objects.
package protocol

import "encoding/json"

// Method names accepted by the router.
const (
	MethodJoin     = "join"
	MethodLogout   = "logout"
	MethodOption   = "option"
	MethodChat     = "chat"
	MethodRoll     = "roll"
	MethodColorset = "colorset"
	MethodTexture  = "texture"
	MethodMaterial = "material"
	MethodRoomlist = "roomlist"
)

// Inbound is the envelope for every client frame. Only Method is required;
// the remaining fields are method-specific. Time, Value, Notation and Vectors
// are passed through opaquely, so they stay raw JSON.
type Inbound struct {
	Method string `json:"method"`

	// join
	User string `json:"user"`
	Room string `json:"room"`
	Pass string `json:"pass"`

	// option
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`

	// chat
	Text string          `json:"text"`
	Time json.RawMessage `json:"time"`
	UUID string          `json:"uuid"`

	// roll
	Notation json.RawMessage `json:"notation"`
	Vectors  json.RawMessage `json:"vectors"`

	// cosmetic updates
	Colorset string `json:"colorset"`
	Texture  string `json:"texture"`
	Material string `json:"material"`
}

// Greeting is sent unilaterally when a connection opens.
type Greeting struct {
	CID string `json:"cid"`
}

// Error reports a validation or authorization failure to one connection.
type Error struct {
	Error string `json:"error"`
}

// Warning notifies the room owner of a rejected privileged action.
type Warning struct {
	Warning string `json:"warning"`
}

// Notice carries an informational message, e.g. an option change receipt.
type Notice struct {
	Message string `json:"message"`
}

// LoginOK confirms a successful join to the joining player.
type LoginOK struct {
	Action string `json:"action"` // always "login"
	Method string `json:"method"` // always "join"
	User   string `json:"user"`
}

// Userlist announces a membership change to every room member.
type Userlist struct {
	Action string   `json:"action"` // always "userlist"
	Act    string   `json:"act"`    // "add" or "del"
	User   string   `json:"user"`
	TID    string   `json:"tid"`
	List   []string `json:"list"`
	Room   string   `json:"room"`
}

// Chat is the full chat payload delivered to members other than the sender.
type Chat struct {
	Action string          `json:"action"` // always "chat"
	User   string          `json:"user"`
	Text   string          `json:"text"`
	Time   json.RawMessage `json:"time"`
}

// ChatAck echoes the sender's uuid back instead of the chat content.
type ChatAck struct {
	Action string `json:"action"` // always "chat"
	UUID   string `json:"uuid"`
}

// Roll fans a dice roll out to the whole room, sender included.
type Roll struct {
	Action   string          `json:"action"` // always "roll"
	User     string          `json:"user"`
	Colorset string          `json:"colorset"`
	Texture  string          `json:"texture"`
	Material string          `json:"material"`
	Notation json.RawMessage `json:"notation"`
	Vectors  json.RawMessage `json:"vectors"`
	Time     json.RawMessage `json:"time"`
}

// RoomInfo is one entry of a roomlist response. The stored password is never
// serialized; only its presence is.
type RoomInfo struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Owner               string   `json:"owner"`
	Password            string   `json:"password"` // "yes" or "no"
	Settings            Settings `json:"settings"`
	Players             []string `json:"players"`
	Created             int64    `json:"created"`
	CreatedVerbose      string   `json:"created_verbose"`
	LastActivity        int64    `json:"lastactivity"`
	LastActivityVerbose string   `json:"lastactivity_verbose"`
}

// Roomlist is the requester-only snapshot of all registered rooms.
type Roomlist struct {
	Action string     `json:"action"` // always "roomlist"
	List   []RoomInfo `json:"list"`
}

// Settings mirrors the per-room option map on the wire.
type Settings struct {
	MaxDice         int  `json:"maxDice"`
	AllowOwnerFudge bool `json:"allowOwnerFudge"`
}

// Marshal encodes v for the wire. Encoding these fixed shapes cannot fail, so
// the error is collapsed; callers treat a nil slice as an empty frame.
func Marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
