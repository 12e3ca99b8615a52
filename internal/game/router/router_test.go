package router

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"pgregory.net/rapid"

	"github.com/hallowdale/dicetable/internal/game/room"
	"github.com/hallowdale/dicetable/internal/game/session"
)

// fakeConn records every payload sent to it. Safe for concurrent use; the
// roster broadcast fires from a timer goroutine.
type fakeConn struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
}

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Send(payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	buf := make([]byte, len(payload))
	copy(buf, payload)
	f.sent = append(f.sent, buf)
	return nil
}

// messages decodes every recorded payload.
func (f *fakeConn) messages(t *testing.T) []map[string]any {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]map[string]any, 0, len(f.sent))
	for _, raw := range f.sent {
		var m map[string]any
		require.NoError(t, json.Unmarshal(raw, &m))
		out = append(out, m)
	}
	return out
}

// countWith returns how many recorded messages carry field=value.
func (f *fakeConn) countWith(field, value string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := 0
	for _, raw := range f.sent {
		var m map[string]any
		if json.Unmarshal(raw, &m) != nil {
			continue
		}
		if s, ok := m[field].(string); ok && s == value {
			n++
		}
	}
	return n
}

// firstWith returns the first recorded message carrying field=value.
func (f *fakeConn) firstWith(t *testing.T, field, value string) map[string]any {
	t.Helper()
	for _, m := range f.messages(t) {
		if s, ok := m[field].(string); ok && s == value {
			return m
		}
	}
	t.Fatalf("no message with %s=%q", field, value)
	return nil
}

type fixture struct {
	router  *Router
	players *session.Registry
	rooms   *room.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	players := session.NewRegistry()
	rooms := room.NewRegistry()
	rt := New(Config{
		JoinBroadcastDelay: 0,
		RoomDefaults:       room.DefaultSettings(),
	}, players, rooms, zaptest.NewLogger(t))
	return &fixture{router: rt, players: players, rooms: rooms}
}

func (fx *fixture) connect(t *testing.T, id string) *fakeConn {
	t.Helper()
	conn := &fakeConn{id: id}
	fx.router.OnOpen(conn)
	return conn
}

func (fx *fixture) send(conn *fakeConn, frame string) {
	fx.router.OnMessage(conn, []byte(frame))
}

// join performs a join and waits for the delayed roster broadcast to land on
// the joining connection.
func (fx *fixture) join(t *testing.T, conn *fakeConn, user, roomName, pass string) {
	t.Helper()
	before := conn.countWith("action", "userlist")
	fx.send(conn, fmt.Sprintf(`{"method":"join","user":%q,"room":%q,"pass":%q}`, user, roomName, pass))
	require.Eventually(t, func() bool {
		return conn.countWith("action", "userlist") > before
	}, 2*time.Second, 5*time.Millisecond, "roster broadcast never arrived")
}

func TestOnOpenSendsConnectionID(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")

	msgs := conn.messages(t)
	require.Len(t, msgs, 1)
	assert.Equal(t, "c1", msgs[0]["cid"])
	assert.Equal(t, 1, fx.players.Count())
}

func TestJoinCreatesRoomAndAssignsOwner(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	rm, ok := fx.rooms.Find("Tavern")
	require.True(t, ok)
	assert.Equal(t, 1, rm.MemberCount())

	player, ok := fx.players.Lookup(conn)
	require.True(t, ok)
	assert.Equal(t, "Alice", player.Name)
	assert.True(t, rm.IsOwner(player))

	login := conn.firstWith(t, "action", "login")
	assert.Equal(t, "join", login["method"])
	assert.Equal(t, "Alice", login["user"])

	userlist := conn.firstWith(t, "action", "userlist")
	assert.Equal(t, "add", userlist["act"])
	assert.Equal(t, "Alice", userlist["user"])
	assert.Equal(t, rm.ID(), userlist["tid"])
	assert.Equal(t, "Tavern", userlist["room"])
	assert.Equal(t, []any{"\U0001F451 Alice"}, userlist["list"])
}

func TestLoginConfirmationPrecedesRosterBroadcast(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	var actions []string
	for _, m := range conn.messages(t) {
		if a, ok := m["action"].(string); ok {
			actions = append(actions, a)
		}
	}
	assert.Equal(t, []string{"login", "userlist"}, actions)
}

func TestSecondPlayerJoinsExistingRoom(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")

	rm, ok := fx.rooms.Find("Tavern")
	require.True(t, ok)
	assert.Equal(t, 2, rm.MemberCount())
	assert.Equal(t, 1, fx.rooms.Count(), "no duplicate room created")

	// Both members see Bob's arrival with Alice still crowned.
	require.Eventually(t, func() bool {
		return c1.countWith("act", "add") >= 2
	}, 2*time.Second, 5*time.Millisecond)

	userlist := c2.firstWith(t, "act", "add")
	assert.Equal(t, "Bob", userlist["user"])
	assert.Equal(t, []any{"\U0001F451 Alice", "Bob"}, userlist["list"])
}

func TestJoinRejectsInvalidPlayerName(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.send(conn, `{"method":"join","user":"!!!","room":"Tavern","pass":""}`)

	errMsg := conn.firstWith(t, "error", errPlayerNameInvalid)
	assert.NotNil(t, errMsg)
	assert.Equal(t, 0, fx.rooms.Count())
}

func TestJoinRejectsInvalidRoomName(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.send(conn, `{"method":"join","user":"Alice","room":"???","pass":""}`)

	conn.firstWith(t, "error", errRoomNameInvalid)
	assert.Equal(t, 0, fx.rooms.Count())
}

func TestJoinRejectsPasswordWithStrippedCharacters(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.send(conn, `{"method":"join","user":"Alice","room":"Tavern","pass":"p@ss"}`)

	conn.firstWith(t, "error", errPasswordInvalid)
	assert.Equal(t, 0, fx.rooms.Count())
}

func TestJoinWrongPasswordRejected(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")
	c3 := fx.connect(t, "c3")

	fx.join(t, c1, "Alice", "Vault", "p1")

	fx.send(c2, `{"method":"join","user":"Bob","room":"Vault","pass":""}`)
	c2.firstWith(t, "error", errRoomPassword)

	fx.send(c3, `{"method":"join","user":"Cid","room":"Vault","pass":"p2"}`)
	c3.firstWith(t, "error", errRoomPassword)

	rm, ok := fx.rooms.Find("Vault")
	require.True(t, ok)
	assert.Equal(t, 1, rm.MemberCount(), "rejected joins must not be added")
	assert.Equal(t, 1, fx.rooms.Count(), "rejected joins must not create a duplicate room")
}

func TestJoinCorrectPasswordAccepted(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Vault", "p1")
	fx.join(t, c2, "Bob", "Vault", "p1")

	rm, ok := fx.rooms.Find("Vault")
	require.True(t, ok)
	assert.Equal(t, 2, rm.MemberCount())
}

func TestJoinByRoomID(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	tavern, ok := fx.rooms.Find("Tavern")
	require.True(t, ok)

	// The id is what userlist and roomlist frames advertise as "tid".
	fx.join(t, c2, "Bob", tavern.ID(), "")

	assert.Equal(t, 2, tavern.MemberCount())
	assert.Equal(t, 1, fx.rooms.Count(), "an id join must not create a truncated-name room")

	player, ok := fx.players.Lookup(c2)
	require.True(t, ok)
	assert.True(t, tavern.HasMember(player))
}

func TestJoiningAnotherRoomLeavesTheFirst(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")
	fx.join(t, c2, "Bob", "Cellar", "")

	player, ok := fx.players.Lookup(c2)
	require.True(t, ok)

	tavern, ok := fx.rooms.Find("Tavern")
	require.True(t, ok)
	cellar, ok := fx.rooms.Find("Cellar")
	require.True(t, ok)

	assert.False(t, tavern.HasMember(player))
	assert.True(t, cellar.HasMember(player))
	assert.Equal(t, cellar.ID(), player.RoomID)

	got, ok := fx.rooms.FindByPlayer(player)
	require.True(t, ok)
	assert.Same(t, cellar, got, "a player occupies at most one room")
}

func TestLogoutBroadcastsDeparture(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")

	fx.send(c2, `{"method":"logout"}`)

	userlist := c1.firstWith(t, "act", "del")
	assert.Equal(t, "Bob", userlist["user"])
	assert.Equal(t, []any{"\U0001F451 Alice"}, userlist["list"])

	rm, ok := fx.rooms.Find("Tavern")
	require.True(t, ok)
	assert.Equal(t, 1, rm.MemberCount())
}

func TestLastLogoutRemovesRoom(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	fx.send(conn, `{"method":"logout"}`)

	_, ok := fx.rooms.Find("Tavern")
	assert.False(t, ok, "an emptied room must leave the registry")
	assert.Equal(t, 0, fx.rooms.Count())

	// The connection is still registered; only the membership is gone.
	_, ok = fx.players.Lookup(conn)
	assert.True(t, ok)
}

func TestLogoutWithoutRoomIsNoOp(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	before := len(conn.messages(t))

	fx.send(conn, `{"method":"logout"}`)
	assert.Len(t, conn.messages(t), before)
}

func TestDisconnectActsLikeLogout(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")

	fx.router.OnClose(c1)

	// Ownership moved to Bob, and Bob heard about Alice leaving.
	userlist := c2.firstWith(t, "act", "del")
	assert.Equal(t, "Alice", userlist["user"])
	assert.Equal(t, []any{"\U0001F451 Bob"}, userlist["list"])

	rm, ok := fx.rooms.Find("Tavern")
	require.True(t, ok)
	player, ok := fx.players.Lookup(c2)
	require.True(t, ok)
	assert.True(t, rm.IsOwner(player))

	_, ok = fx.players.Lookup(c1)
	assert.False(t, ok, "disconnect must unregister the connection")
}

func TestErrorNotificationCleansUpLikeClose(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	fx.router.OnError(conn, fmt.Errorf("read: connection reset by peer"))

	_, ok := fx.rooms.Find("Tavern")
	assert.False(t, ok)
	_, ok = fx.players.Lookup(conn)
	assert.False(t, ok)
}

func TestChatFansOutToOthersAndAcksSender(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")
	c3 := fx.connect(t, "c3")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")
	fx.join(t, c3, "Carol", "Tavern", "")

	fx.send(c1, `{"method":"chat","text":"hello there","time":1700000000,"uuid":"u-123"}`)

	for _, other := range []*fakeConn{c2, c3} {
		chat := other.firstWith(t, "action", "chat")
		assert.Equal(t, "Alice", chat["user"])
		assert.Equal(t, "hello there", chat["text"])
		assert.Equal(t, float64(1700000000), chat["time"])
		assert.NotContains(t, chat, "uuid")
	}

	ack := c1.firstWith(t, "action", "chat")
	assert.Equal(t, "u-123", ack["uuid"])
	assert.NotContains(t, ack, "text", "the sender gets an ack, not the content")
}

func TestChatWithoutRoomIsDropped(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	before := len(conn.messages(t))

	fx.send(conn, `{"method":"chat","text":"into the void"}`)
	assert.Len(t, conn.messages(t), before)
}

func TestRollBroadcastsToWholeRoomWithCosmetics(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")

	fx.send(c1, `{"method":"colorset","colorset":"fire"}`)
	fx.send(c1, `{"method":"texture","texture":"marble"}`)
	fx.send(c1, `{"method":"material","material":"metal"}`)

	fx.send(c1, `{"method":"roll","notation":"2d20","vectors":[[0.1,0.2]],"time":42}`)

	for _, conn := range []*fakeConn{c1, c2} {
		roll := conn.firstWith(t, "action", "roll")
		assert.Equal(t, "Alice", roll["user"])
		assert.Equal(t, "fire", roll["colorset"])
		assert.Equal(t, "marble", roll["texture"])
		assert.Equal(t, "metal", roll["material"])
		assert.Equal(t, "2d20", roll["notation"])
		assert.Equal(t, []any{[]any{0.1, 0.2}}, roll["vectors"])
		assert.Equal(t, float64(42), roll["time"])
	}
}

func TestCosmeticUpdatesAreSilent(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")

	before1 := len(c1.messages(t))
	before2 := len(c2.messages(t))

	fx.send(c1, `{"method":"colorset","colorset":"fire"}`)
	fx.send(c1, `{"method":"texture","texture":"marble"}`)
	fx.send(c1, `{"method":"material","material":"wood"}`)

	assert.Len(t, c1.messages(t), before1, "cosmetic updates answer nobody")
	assert.Len(t, c2.messages(t), before2)

	player, ok := fx.players.Lookup(c1)
	require.True(t, ok)
	assert.Equal(t, "fire", player.Colorset)
	assert.Equal(t, "marble", player.Texture)
	assert.Equal(t, "wood", player.Material)
}

func TestOptionNonOwnerWarnedAndRejected(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Tavern", "")

	fx.send(c2, `{"method":"option","key":"maxDice","value":10}`)

	c2.firstWith(t, "error", errOptionNotOwner)
	c1.firstWith(t, "warning", warnOptionNotOwner)

	rm, _ := fx.rooms.Find("Tavern")
	assert.Equal(t, 50, rm.Settings().MaxDice, "settings must stay unchanged")
}

func TestOptionMaxDiceChange(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	fx.send(conn, `{"method":"option","key":"maxDice","value":-20}`)

	rm, _ := fx.rooms.Find("Tavern")
	assert.Equal(t, 20, rm.Settings().MaxDice, "the absolute value is stored")
	notice := conn.firstWith(t, "message", "Room option changed [maxDice]: 50 -> 20")
	assert.NotNil(t, notice)
}

func TestOptionMaxDiceUnchangedIsSilent(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")
	before := len(conn.messages(t))

	fx.send(conn, `{"method":"option","key":"maxDice","value":50}`)
	assert.Len(t, conn.messages(t), before)
}

func TestOptionMaxDiceQuotedNumeralAccepted(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	fx.send(conn, `{"method":"option","key":"maxDice","value":"25"}`)

	rm, _ := fx.rooms.Find("Tavern")
	assert.Equal(t, 25, rm.Settings().MaxDice)
}

func TestOptionMaxDiceRejectsNonNumericAndZero(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	fx.send(conn, `{"method":"option","key":"maxDice","value":"lots"}`)
	fx.send(conn, `{"method":"option","key":"maxDice","value":0}`)

	assert.Equal(t, 2, conn.countWith("error", errOptionNumeric))
	rm, _ := fx.rooms.Find("Tavern")
	assert.Equal(t, 50, rm.Settings().MaxDice)
}

func TestOptionUnknownKeyRejected(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	fx.send(conn, `{"method":"option","key":"theme","value":1}`)
	conn.firstWith(t, "error", errOptionKey)
}

// allowOwnerFudge is effectively frozen: a matching value is a silent no-op
// and a differing value always fails the numeric gate. Pinned deliberately.
func TestOptionAllowOwnerFudgeIsFrozen(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "Alice", "Tavern", "")

	before := len(conn.messages(t))
	fx.send(conn, `{"method":"option","key":"allowOwnerFudge","value":1}`)
	assert.Len(t, conn.messages(t), before, "matching value is a silent no-op")

	fx.send(conn, `{"method":"option","key":"allowOwnerFudge","value":0}`)
	conn.firstWith(t, "error", errOptionBoolean)

	rm, _ := fx.rooms.Find("Tavern")
	assert.True(t, rm.Settings().AllowOwnerFudge, "the flag never changes")
}

func TestOptionWithoutRoomIsNoOp(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	before := len(conn.messages(t))

	fx.send(conn, `{"method":"option","key":"maxDice","value":10}`)
	assert.Len(t, conn.messages(t), before)
}

func TestRoomlistSnapshot(t *testing.T) {
	fx := newFixture(t)
	c1 := fx.connect(t, "c1")
	c2 := fx.connect(t, "c2")
	c3 := fx.connect(t, "c3")

	fx.join(t, c1, "Alice", "Tavern", "")
	fx.join(t, c2, "Bob", "Vault", "p1")

	fx.send(c3, `{"method":"roomlist"}`)

	resp := c3.firstWith(t, "action", "roomlist")
	list, ok := resp["list"].([]any)
	require.True(t, ok)
	require.Len(t, list, 2)

	tavern := list[0].(map[string]any)
	assert.Equal(t, "Tavern", tavern["name"])
	assert.Equal(t, "no", tavern["password"])
	assert.Equal(t, "c1: Alice", tavern["owner"])
	assert.Equal(t, []any{"\U0001F451 Alice"}, tavern["players"])
	assert.NotEmpty(t, tavern["created_verbose"])
	assert.NotEmpty(t, tavern["lastactivity_verbose"])

	settings := tavern["settings"].(map[string]any)
	assert.Equal(t, float64(50), settings["maxDice"])
	assert.Equal(t, true, settings["allowOwnerFudge"])

	vault := list[1].(map[string]any)
	assert.Equal(t, "Vault", vault["name"])
	assert.Equal(t, "yes", vault["password"], "password presence only, never the password")
	assert.NotContains(t, vault, "pass")
}

func TestRoomlistEmptyIsAnEmptyList(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")

	fx.send(conn, `{"method":"roomlist"}`)

	resp := conn.firstWith(t, "action", "roomlist")
	list, ok := resp["list"].([]any)
	require.True(t, ok, "list must serialize as [] rather than null")
	assert.Empty(t, list)
}

func TestMalformedFramesAreDroppedSilently(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	before := len(conn.messages(t))

	fx.send(conn, `{not json`)
	fx.send(conn, `{"user":"Alice"}`)
	fx.send(conn, `{"method":""}`)
	fx.send(conn, `{"method":"teleport"}`)

	assert.Len(t, conn.messages(t), before, "bad or unknown frames never get a response")
	assert.Equal(t, 1, fx.players.Count(), "the connection survives its own bad input")
}

func TestRosterBroadcastSkippedWhenRoomVanishes(t *testing.T) {
	players := session.NewRegistry()
	rooms := room.NewRegistry()
	rt := New(Config{
		JoinBroadcastDelay: 50 * time.Millisecond,
		RoomDefaults:       room.DefaultSettings(),
	}, players, rooms, zaptest.NewLogger(t))

	conn := &fakeConn{id: "c1"}
	rt.OnOpen(conn)
	rt.OnMessage(conn, []byte(`{"method":"join","user":"Alice","room":"Tavern","pass":""}`))
	// Leave before the delayed broadcast fires.
	rt.OnMessage(conn, []byte(`{"method":"logout"}`))

	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, 0, conn.countWith("action", "userlist"),
		"no roster broadcast for a room that was torn down during the delay")
}

func TestPropertyPlayerOccupiesAtMostOneRoom(t *testing.T) {
	roomNames := []string{"Tavern", "Cellar", "Vault"}

	rapid.Check(t, func(rt *rapid.T) {
		fx := newFixture(t)
		conns := make([]*fakeConn, 3)
		for i := range conns {
			conns[i] = fx.connect(t, fmt.Sprintf("c%d", i))
		}

		steps := rapid.IntRange(1, 20).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			conn := conns[rapid.IntRange(0, len(conns)-1).Draw(rt, "conn")]
			if rapid.Bool().Draw(rt, "leave") {
				fx.send(conn, `{"method":"logout"}`)
				continue
			}
			name := rapid.SampledFrom(roomNames).Draw(rt, "room")
			fx.send(conn, fmt.Sprintf(`{"method":"join","user":"Player","room":%q,"pass":""}`, name))
		}

		for _, conn := range conns {
			player, ok := fx.players.Lookup(conn)
			require.True(rt, ok)
			memberships := 0
			for _, rm := range fx.rooms.All() {
				if rm.HasMember(player) {
					memberships++
				}
			}
			if memberships > 1 {
				rt.Fatalf("player %s is in %d rooms", conn.ID(), memberships)
			}
			if memberships == 0 && player.RoomID != "" {
				rt.Fatalf("player %s has a stale room back-reference %q", conn.ID(), player.RoomID)
			}
		}
		for _, rm := range fx.rooms.All() {
			if rm.MemberCount() == 0 {
				rt.Fatalf("empty room %q left in the registry", rm.Name())
			}
		}
	})
}

func TestSanitizedNamesAreUsed(t *testing.T) {
	fx := newFixture(t)
	conn := fx.connect(t, "c1")
	fx.join(t, conn, "  Alice!! ", "<Tavern>", "")

	player, ok := fx.players.Lookup(conn)
	require.True(t, ok)
	assert.Equal(t, "Alice", player.Name)

	_, ok = fx.rooms.Find("Tavern")
	assert.True(t, ok)
}
