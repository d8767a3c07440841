package signaling

import (
	"testing"

	"github.com/huddlehq/huddle/internal/protocol"
)

// newTestClient wires a client straight into the hub's state, bypassing
// the pumps; handlers run synchronously on the test goroutine, the same
// single-writer discipline Run provides.
func newTestClient(h *Hub) *Client {
	c := &Client{Hub: h, Send: make(chan *protocol.Message, 64)}
	h.clients[c] = true
	return c
}

func drain(c *Client) []*protocol.Message {
	var out []*protocol.Message
	for {
		select {
		case msg := <-c.Send:
			out = append(out, msg)
		default:
			return out
		}
	}
}

func typesOf(msgs []*protocol.Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Type
	}
	return out
}

func join(h *Hub, c *Client, id string, room int) {
	h.dispatch(c, &protocol.Message{Type: protocol.TypeJoin, ParticipantID: id, RoomID: room})
}

func TestJoinRepliesWithRoomUsersAndPresence(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	join(h, a, "alice", 1)

	msgs := drain(a)
	if len(msgs) != 2 {
		t.Fatalf("expected room_users + presence, got %v", typesOf(msgs))
	}
	if msgs[0].Type != protocol.TypeRoomUsers || len(msgs[0].Users) != 0 {
		t.Errorf("first reply should be an empty room_users, got %+v", msgs[0])
	}
	if msgs[1].Type != protocol.TypePresence || msgs[1].Counts[1] != 1 {
		t.Errorf("expected presence with count 1 for room 1, got %+v", msgs[1])
	}
}

func TestSecondJoinerNotifiesRoom(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	drain(a)

	join(h, b, "bob", 1)

	aMsgs := drain(a)
	if len(aMsgs) != 2 || aMsgs[0].Type != protocol.TypeUserJoined || aMsgs[0].ParticipantID != "bob" {
		t.Fatalf("alice should see user_joined then presence, got %v", typesOf(aMsgs))
	}

	bMsgs := drain(b)
	if bMsgs[0].Type != protocol.TypeRoomUsers {
		t.Fatalf("bob's first reply should be room_users, got %v", typesOf(bMsgs))
	}
	if len(bMsgs[0].Users) != 1 || bMsgs[0].Users[0] != "alice" {
		t.Errorf("room_users should list alice only, got %v", bMsgs[0].Users)
	}
}

func TestRejoinSameRoomIsQuiet(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", 1)
	drain(a)
	drain(b)

	join(h, a, "alice", 1)

	for _, msg := range drain(b) {
		if msg.Type == protocol.TypeUserJoined || msg.Type == protocol.TypeUserLeft {
			t.Fatalf("rejoin to the same room must not broadcast %s", msg.Type)
		}
	}

	aMsgs := drain(a)
	if aMsgs[0].Type != protocol.TypeRoomUsers {
		t.Fatalf("rejoin should still return room_users, got %v", typesOf(aMsgs))
	}
	if len(aMsgs[0].Users) != 1 || aMsgs[0].Users[0] != "bob" {
		t.Errorf("room_users must exclude the joiner, got %v", aMsgs[0].Users)
	}
}

func TestMoveRoomsIsLeaveThenJoin(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", 1)
	drain(a)
	drain(b)

	join(h, a, "alice", 2)

	if room := h.where["alice"]; room != 2 {
		t.Fatalf("alice should be in room 2, got %d", room)
	}
	if _, ok := h.rooms[1].members["alice"]; ok {
		t.Fatal("alice must not remain in room 1")
	}

	bMsgs := drain(b)
	if bMsgs[0].Type != protocol.TypeUserLeft || bMsgs[0].ParticipantID != "alice" || bMsgs[0].RoomID != 1 {
		t.Fatalf("bob should see user_left for room 1, got %+v", bMsgs[0])
	}
}

func TestNeverInTwoRooms(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)

	moves := []int{1, 2, 1, 3, 4, 4, 2}
	for _, room := range moves {
		join(h, a, "alice", room)
		occupied := 0
		for _, r := range h.rooms {
			if _, ok := r.members["alice"]; ok {
				occupied++
			}
		}
		if occupied != 1 {
			t.Fatalf("alice in %d rooms after join(%d)", occupied, room)
		}
	}
}

func TestPresenceCountsMatchMembership(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	c := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", 1)
	join(h, c, "carol", 3)
	drain(a)
	drain(b)

	h.dispatch(b, &protocol.Message{Type: protocol.TypeLeave})

	msgs := drain(c)
	last := msgs[len(msgs)-1]
	if last.Type != protocol.TypePresence {
		t.Fatalf("expected presence after leave, got %v", typesOf(msgs))
	}
	want := map[int]int{1: 1, 2: 0, 3: 1, 4: 0}
	for room, count := range want {
		if last.Counts[room] != count {
			t.Errorf("room %d count = %d, want %d", room, last.Counts[room], count)
		}
	}
}

func TestLeaveIsIdempotent(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	join(h, a, "alice", 1)
	drain(a)

	h.dispatch(a, &protocol.Message{Type: protocol.TypeLeave})
	h.dispatch(a, &protocol.Message{Type: protocol.TypeLeave})

	if len(h.where) != 0 {
		t.Fatal("registry should be empty after leave")
	}
}

func TestSupersededSocketCannotEvict(t *testing.T) {
	h := NewHub(nil)
	old := newTestClient(h)
	fresh := newTestClient(h)
	join(h, old, "alice", 1)

	// Same ID arrives on a new socket: membership record superseded.
	join(h, fresh, "alice", 1)
	if h.rooms[1].members["alice"].client != fresh {
		t.Fatal("membership should belong to the newer socket")
	}

	// The stale socket disconnecting must not evict the new occupant.
	h.unregister(old)
	if _, ok := h.rooms[1].members["alice"]; !ok {
		t.Fatal("stale socket close evicted the superseding membership")
	}
}

func TestNewIdentityReleasesOldMembership(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	observer := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, observer, "olga", 1)
	drain(a)
	drain(observer)

	// The same socket joins again under a different participant ID: its
	// previous identity must leave, not linger as a ghost member.
	join(h, a, "bob", 2)

	if _, ok := h.where["alice"]; ok {
		t.Fatal("old identity still registered after the socket switched IDs")
	}
	if h.occupancy()[1] != 1 {
		t.Errorf("room 1 occupancy = %d, want 1", h.occupancy()[1])
	}

	msgs := drain(observer)
	if len(msgs) == 0 || msgs[0].Type != protocol.TypeUserLeft || msgs[0].ParticipantID != "alice" {
		t.Fatalf("room 1 should see user_left for alice, got %v", typesOf(msgs))
	}

	// Socket close now releases only the current identity.
	h.unregister(a)
	if h.occupancy()[2] != 0 {
		t.Errorf("room 2 occupancy after socket close = %d, want 0", h.occupancy()[2])
	}
	if h.occupancy()[1] != 1 {
		t.Errorf("room 1 occupancy after socket close = %d, want 1", h.occupancy()[1])
	}
}

func TestChatExcludesSender(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", protocol.TalkRoomID)
	join(h, b, "bob", protocol.TalkRoomID)
	drain(a)
	drain(b)

	h.dispatch(a, &protocol.Message{Type: protocol.TypeChat, MessageID: "m1", Text: "hi"})

	for _, msg := range drain(a) {
		if msg.Type == protocol.TypeChat {
			t.Fatal("sender must not receive its own chat broadcast")
		}
	}
	bMsgs := drain(b)
	if len(bMsgs) != 1 || bMsgs[0].Type != protocol.TypeChat {
		t.Fatalf("bob should receive exactly the chat message, got %v", typesOf(bMsgs))
	}
	if bMsgs[0].ParticipantID != "alice" || bMsgs[0].Text != "hi" || bMsgs[0].Timestamp == 0 {
		t.Errorf("chat broadcast malformed: %+v", bMsgs[0])
	}
}

func TestChatOutsideTalkRoomIgnored(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", protocol.TalkRoomID)
	drain(b)

	h.dispatch(a, &protocol.Message{Type: protocol.TypeChat, Text: "hi"})

	if msgs := drain(b); len(msgs) != 0 {
		t.Fatalf("chat from outside the Talk room must be dropped, got %v", typesOf(msgs))
	}
}

func TestDrawStrokeIncludesSender(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", protocol.BoardRoomID)
	join(h, b, "bob", protocol.BoardRoomID)
	drain(a)
	drain(b)

	h.dispatch(a, &protocol.Message{
		Type:     protocol.TypeDrawStroke,
		StrokeID: "s1",
		Points:   []protocol.Point{{X: 1, Y: 2}},
		Color:    "#ff0000",
		Width:    2,
		Tool:     protocol.ToolPen,
	})

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		if len(msgs) != 1 || msgs[0].Type != protocol.TypeDrawStroke {
			t.Fatalf("every member including the author gets the echo, got %v", typesOf(msgs))
		}
		if msgs[0].ParticipantID != "alice" || msgs[0].StrokeID != "s1" {
			t.Errorf("stroke broadcast malformed: %+v", msgs[0])
		}
	}

	if h.rooms[protocol.BoardRoomID].history.Len() != 1 {
		t.Error("stroke should be recorded in history")
	}
}

func TestDrawingHistoryReplayToJoiner(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	join(h, a, "alice", protocol.BoardRoomID)
	drain(a)

	h.dispatch(a, &protocol.Message{
		Type:     protocol.TypeDrawStroke,
		StrokeID: "s1",
		Points:   []protocol.Point{{X: 0, Y: 0}, {X: 5, Y: 5}},
		Color:    "#ffffff",
		Width:    1,
		Tool:     protocol.ToolPen,
	})

	b := newTestClient(h)
	join(h, b, "bob", protocol.BoardRoomID)

	msgs := drain(b)
	if msgs[0].Type != protocol.TypeRoomUsers {
		t.Fatalf("expected room_users first, got %v", typesOf(msgs))
	}
	if msgs[1].Type != protocol.TypeDrawingHistory {
		t.Fatalf("expected drawing_history before anything else, got %v", typesOf(msgs))
	}
	strokes := msgs[1].Strokes
	if len(strokes) != 1 || strokes[0].ID != "s1" || strokes[0].Color != "#ffffff" || len(strokes[0].Points) != 2 {
		t.Errorf("history replay malformed: %+v", strokes)
	}
}

func TestClearDrawingEmptiesHistory(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", protocol.BoardRoomID)
	join(h, b, "bob", protocol.BoardRoomID)
	h.dispatch(a, &protocol.Message{Type: protocol.TypeDrawStroke, StrokeID: "s1", Tool: protocol.ToolPen})
	drain(a)
	drain(b)

	h.dispatch(b, &protocol.Message{Type: protocol.TypeClearDrawing})

	if h.rooms[protocol.BoardRoomID].history.Len() != 0 {
		t.Fatal("history should be empty after clear")
	}
	msgs := drain(a)
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeClearDrawing || msgs[0].ParticipantID != "bob" {
		t.Fatalf("clear notification should carry only the actor, got %v", typesOf(msgs))
	}
}

func TestRelayTargetedSignal(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", 1)
	drain(a)
	drain(b)

	offer := []byte(`{"type":"offer","sdp":"v=0"}`)
	h.dispatch(a, &protocol.Message{Type: protocol.TypeRTCOffer, TargetID: "bob", Offer: offer})

	msgs := drain(b)
	if len(msgs) != 1 || msgs[0].Type != protocol.TypeRTCOffer {
		t.Fatalf("bob should receive the relayed offer, got %v", typesOf(msgs))
	}
	if msgs[0].FromID != "alice" || msgs[0].TargetID != "" {
		t.Errorf("relay must rewrite targetId to fromId, got %+v", msgs[0])
	}
	if string(msgs[0].Offer) != string(offer) {
		t.Error("offer payload must be forwarded verbatim")
	}
}

func TestRelayToAbsentTargetIsNoop(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	join(h, a, "alice", 1)
	drain(a)

	h.dispatch(a, &protocol.Message{Type: protocol.TypeRTCAnswer, TargetID: "ghost", Answer: []byte(`{}`)})

	if msgs := drain(a); len(msgs) != 0 {
		t.Fatalf("no error reply expected, got %v", typesOf(msgs))
	}
}

func TestRelayCannotCrossRooms(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", 2)
	drain(a)
	drain(b)

	h.dispatch(a, &protocol.Message{Type: protocol.TypeRTCOffer, TargetID: "bob", Offer: []byte(`{}`)})

	if msgs := drain(b); len(msgs) != 0 {
		t.Fatalf("signals must not cross rooms, got %v", typesOf(msgs))
	}
}

func TestPingPong(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)

	h.dispatch(a, &protocol.Message{Type: protocol.TypePing})

	msgs := drain(a)
	if len(msgs) != 1 || msgs[0].Type != protocol.TypePong {
		t.Fatalf("ping should echo pong with no room semantics, got %v", typesOf(msgs))
	}
}

func TestUnregisterBroadcastsLeft(t *testing.T) {
	h := NewHub(nil)
	a := newTestClient(h)
	b := newTestClient(h)
	join(h, a, "alice", 1)
	join(h, b, "bob", 1)
	drain(a)
	drain(b)

	h.unregister(b)

	msgs := drain(a)
	if msgs[0].Type != protocol.TypeUserLeft || msgs[0].ParticipantID != "bob" {
		t.Fatalf("disconnect should behave as an implicit leave, got %v", typesOf(msgs))
	}
	if h.occupancy()[1] != 1 {
		t.Errorf("occupancy should drop to 1, got %d", h.occupancy()[1])
	}
}
