package signaling

import (
	"log/slog"
	"time"

	"github.com/huddlehq/huddle/internal/protocol"
	"github.com/huddlehq/huddle/internal/session"
)

// inbound pairs a decoded message with the socket it arrived on.
type inbound struct {
	sender *Client
	msg    *protocol.Message
}

// Hub is the room registry and relay dispatcher. A single Run goroutine
// owns all membership state; sockets talk to it exclusively through the
// Register/Unregister/Inbound channels, so no locking happens anywhere in
// this package.
type Hub struct {
	Register   chan *Client
	Unregister chan *Client
	Inbound    chan *inbound

	rooms   map[int]*Room
	clients map[*Client]bool

	// where maps a participant ID to its current room. A participant is in
	// at most one room at any instant.
	where map[string]int

	occupancyReq chan chan map[int]int
	done         chan struct{}

	recorder session.Recorder
}

// NewHub creates a hub with one Room per entry of the protocol room table.
// A nil recorder disables session reporting.
func NewHub(rec session.Recorder) *Hub {
	if rec == nil {
		rec = session.Nop{}
	}
	h := &Hub{
		Register:     make(chan *Client),
		Unregister:   make(chan *Client),
		Inbound:      make(chan *inbound),
		rooms:        make(map[int]*Room),
		clients:      make(map[*Client]bool),
		where:        make(map[string]int),
		occupancyReq: make(chan chan map[int]int),
		done:         make(chan struct{}),
		recorder:     rec,
	}
	for _, info := range protocol.Rooms {
		h.rooms[info.ID] = newRoom(info)
	}
	return h
}

// Run is the hub's event loop. Every membership edit and every relay
// decision happens here, one inbound event at a time.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client] = true
			slog.Debug("client registered", "addr", client.Conn.RemoteAddr())

		case client := <-h.Unregister:
			h.unregister(client)

		case in := <-h.Inbound:
			h.dispatch(in.sender, in.msg)

		case reply := <-h.occupancyReq:
			reply <- h.occupancy()

		case <-h.done:
			return
		}
	}
}

// Close stops the Run loop. Connected sockets are left to their pumps.
func (h *Hub) Close() {
	close(h.done)
}

// Occupancy returns the live per-room member counts. Safe to call from any
// goroutine; the snapshot is taken on the hub loop.
func (h *Hub) Occupancy() map[int]int {
	reply := make(chan map[int]int, 1)
	select {
	case h.occupancyReq <- reply:
		return <-reply
	case <-h.done:
		return map[int]int{}
	}
}

// dispatch routes one inbound client message. Unknown types and any form
// of protocol misuse are dropped without a reply; an error response would
// leak room state to clients that never joined.
func (h *Hub) dispatch(c *Client, msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeJoin:
		h.handleJoin(c, msg.ParticipantID, msg.RoomID)

	case protocol.TypeLeave:
		if h.removeOwned(c) {
			h.broadcastPresence()
		}

	case protocol.TypeRTCOffer, protocol.TypeRTCAnswer, protocol.TypeRTCICECandidate:
		h.relaySignal(c, msg)

	case protocol.TypeChat:
		h.handleChat(c, msg)

	case protocol.TypeDrawStroke:
		h.handleDrawStroke(c, msg)

	case protocol.TypeClearDrawing:
		h.handleClearDrawing(c)

	case protocol.TypePing:
		c.trySend(&protocol.Message{Type: protocol.TypePong})

	default:
		slog.Debug("ignoring unknown message type", "type", msg.Type)
	}
}

// handleJoin implements the join flow: move out of any previous room,
// record the new occupancy, notify the room, reply with the member list
// (and drawing history where applicable), and refresh global presence.
func (h *Hub) handleJoin(c *Client, id string, roomID int) {
	room, ok := h.rooms[roomID]
	if ok && id == "" {
		ok = false
	}
	if !ok {
		slog.Debug("ignoring join for unknown room", "room", roomID)
		return
	}

	// A socket switching to a new participant ID releases the identity it
	// held; otherwise the old membership outlives every leave path, since
	// removeOwned keys on the socket's current ID.
	if c.ID != "" && c.ID != id {
		h.removeOwned(c)
	}

	if cur, in := h.where[id]; in && cur == roomID {
		// Already recorded at this key: a redundant re-join (or the same ID
		// arriving on a fresh socket). Supersede the membership record
		// without a user_joined/user_left pair.
		m := room.members[id]
		m.client = c
		c.ID = id
		c.RoomID = roomID
		h.replyToJoiner(c, room)
		h.broadcastPresence()
		return
	}

	// Leaving a previous room is broadcast before the new join, so every
	// observer sees the move as leave-then-join.
	h.removeByID(id)

	c.ID = id
	c.RoomID = roomID
	room.members[id] = &member{client: c, joinedAt: time.Now()}
	h.where[id] = roomID

	room.broadcast(&protocol.Message{
		Type:          protocol.TypeUserJoined,
		ParticipantID: id,
		RoomID:        roomID,
	}, id)

	h.replyToJoiner(c, room)
	h.broadcastPresence()
	h.recorder.RoomJoined(id, roomID)
}

// replyToJoiner sends room_users and, for a non-empty drawing room, the
// stroke history. The history goes out after room_users and before any
// subsequent draw_stroke broadcast, which is exactly the ordering a new
// joiner needs to reconstruct the canvas.
func (h *Hub) replyToJoiner(c *Client, room *Room) {
	c.trySend(&protocol.Message{
		Type:   protocol.TypeRoomUsers,
		RoomID: room.Info.ID,
		Users:  room.userIDs(c.ID),
	})
	if room.history != nil && room.history.Len() > 0 {
		c.trySend(&protocol.Message{
			Type:    protocol.TypeDrawingHistory,
			Strokes: room.history.Snapshot(),
		})
	}
}

// removeByID removes a participant's membership record wherever it is,
// broadcasting user_left to that room. Idempotent: returns false if the
// participant wasn't in any room.
func (h *Hub) removeByID(id string) bool {
	roomID, ok := h.where[id]
	if !ok {
		return false
	}
	room := h.rooms[roomID]
	m := room.members[id]
	delete(room.members, id)
	delete(h.where, id)
	if m.client.ID == id {
		m.client.RoomID = 0
	}

	room.broadcast(&protocol.Message{
		Type:          protocol.TypeUserLeft,
		ParticipantID: id,
		RoomID:        roomID,
	}, "")
	h.recorder.RoomLeft(id, roomID)
	return true
}

// removeOwned removes c's membership only if c still owns it. A socket
// whose ID was superseded by a later join must not evict the newer
// occupant when it leaves or disconnects.
func (h *Hub) removeOwned(c *Client) bool {
	if c.ID == "" {
		return false
	}
	roomID, ok := h.where[c.ID]
	if !ok {
		return false
	}
	if h.rooms[roomID].members[c.ID].client != c {
		return false
	}
	return h.removeByID(c.ID)
}

// unregister handles socket close: an implicit leave plus teardown of the
// outbound queue.
func (h *Hub) unregister(c *Client) {
	if !h.clients[c] {
		return
	}
	if h.removeOwned(c) {
		h.broadcastPresence()
	}
	delete(h.clients, c)
	close(c.Send)
	slog.Debug("client unregistered", "participant", c.ID)
}

// isMember reports whether c currently owns a membership in the given
// room.
func (h *Hub) isMember(c *Client, roomID int) bool {
	if c.ID == "" || c.RoomID != roomID {
		return false
	}
	room, ok := h.rooms[roomID]
	if !ok {
		return false
	}
	m, ok := room.members[c.ID]
	return ok && m.client == c
}

// relaySignal forwards rtc_offer/rtc_answer/rtc_ice_candidate to the
// target within the sender's room, rewriting the envelope so the recipient
// sees fromId. Absent targets are a no-op: they may have just left.
func (h *Hub) relaySignal(c *Client, msg *protocol.Message) {
	if msg.TargetID == "" || !h.isMember(c, c.RoomID) {
		return
	}
	target, ok := h.rooms[c.RoomID].members[msg.TargetID]
	if !ok {
		return
	}
	target.client.trySend(&protocol.Message{
		Type:      msg.Type,
		FromID:    c.ID,
		Offer:     msg.Offer,
		Answer:    msg.Answer,
		Candidate: msg.Candidate,
	})
}

// handleChat broadcasts a text message to the Talk room, excluding the
// sender: the author already rendered its own text locally.
func (h *Hub) handleChat(c *Client, msg *protocol.Message) {
	if !h.isMember(c, protocol.TalkRoomID) {
		return
	}
	room := h.rooms[protocol.TalkRoomID]
	room.broadcast(&protocol.Message{
		Type:          protocol.TypeChat,
		MessageID:     msg.MessageID,
		ParticipantID: c.ID,
		Text:          msg.Text,
		Timestamp:     time.Now().UnixMilli(),
	}, c.ID)
	h.recorder.MessageSent(c.ID, protocol.TalkRoomID)
}

// handleDrawStroke records a stroke and broadcasts it to the Board room
// including the sender, so every client renders from the one authoritative
// echo.
func (h *Hub) handleDrawStroke(c *Client, msg *protocol.Message) {
	if !h.isMember(c, protocol.BoardRoomID) {
		return
	}
	room := h.rooms[protocol.BoardRoomID]
	stroke := protocol.Stroke{
		ID:            msg.StrokeID,
		ParticipantID: c.ID,
		Points:        msg.Points,
		Color:         msg.Color,
		Width:         msg.Width,
		Tool:          msg.Tool,
		Timestamp:     time.Now().UnixMilli(),
	}
	room.history.Append(stroke)
	room.broadcast(&protocol.Message{
		Type:          protocol.TypeDrawStroke,
		StrokeID:      stroke.ID,
		ParticipantID: stroke.ParticipantID,
		Points:        stroke.Points,
		Color:         stroke.Color,
		Width:         stroke.Width,
		Tool:          stroke.Tool,
		Timestamp:     stroke.Timestamp,
	}, "")
	h.recorder.StrokeDrawn(c.ID, protocol.BoardRoomID)
}

// handleClearDrawing empties the stroke history, then tells the room who
// cleared it.
func (h *Hub) handleClearDrawing(c *Client) {
	if !h.isMember(c, protocol.BoardRoomID) {
		return
	}
	room := h.rooms[protocol.BoardRoomID]
	room.history.Clear()
	room.broadcast(&protocol.Message{
		Type:          protocol.TypeClearDrawing,
		ParticipantID: c.ID,
	}, "")
	h.recorder.DrawingCleared(c.ID, protocol.BoardRoomID)
}

// occupancy computes live per-room member counts, including empty rooms.
func (h *Hub) occupancy() map[int]int {
	counts := make(map[int]int, len(h.rooms))
	for id, room := range h.rooms {
		counts[id] = len(room.members)
	}
	return counts
}

// broadcastPresence pushes the global counts to every connected socket,
// not just room members: the lobby view shows all rooms.
func (h *Hub) broadcastPresence() {
	msg := &protocol.Message{
		Type:   protocol.TypePresence,
		Counts: h.occupancy(),
	}
	for c := range h.clients {
		c.trySend(msg)
	}
}
