package signaling

import (
	"sort"
	"time"

	"github.com/huddlehq/huddle/internal/protocol"
)

// member is one participant's occupancy record in a room.
type member struct {
	client   *Client
	joinedAt time.Time
}

// Room owns the membership map for one entry of the room table, plus the
// stroke history if the room is drawing-capable. Rooms are only ever
// touched from the hub goroutine.
type Room struct {
	Info    protocol.RoomInfo
	members map[string]*member
	history *StrokeHistory
}

func newRoom(info protocol.RoomInfo) *Room {
	r := &Room{
		Info:    info,
		members: make(map[string]*member),
	}
	if info.Drawing {
		r.history = NewStrokeHistory(protocol.StrokeHistoryCap)
	}
	return r
}

// userIDs returns the member IDs excluding the given participant, ordered
// by join time (ties broken by ID) so room_users responses are
// deterministic.
func (r *Room) userIDs(exclude string) []string {
	ids := make([]string, 0, len(r.members))
	for id := range r.members {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := r.members[ids[i]], r.members[ids[j]]
		if !a.joinedAt.Equal(b.joinedAt) {
			return a.joinedAt.Before(b.joinedAt)
		}
		return ids[i] < ids[j]
	})
	return ids
}

// broadcast queues msg to every member except the one named by exclude
// (empty string means nobody is excluded). Delivery is fire-and-forget; a
// member whose send buffer is full misses the message rather than stalling
// the room.
func (r *Room) broadcast(msg *protocol.Message, exclude string) {
	for id, m := range r.members {
		if id == exclude {
			continue
		}
		m.client.trySend(msg)
	}
}
