package protocol

import "errors"

// ErrMissingType is returned by Decode for frames without a type field.
var ErrMissingType = errors.New("message has no type")

// Media is the device permission a room requires before local tracks are
// published. The relay never validates it; clients use it to decide what to
// acquire before connecting to peers.
type Media string

const (
	MediaNone       Media = "none"
	MediaCamera     Media = "camera"
	MediaMicrophone Media = "microphone"
)

// RoomInfo describes one entry of the fixed room table.
type RoomInfo struct {
	ID      int
	Name    string
	Media   Media
	Drawing bool
}

const (
	// TalkRoomID is the only room that accepts chat messages.
	TalkRoomID = 3

	// BoardRoomID is the only room that retains a stroke history.
	BoardRoomID = 4

	// StrokeHistoryCap bounds the Board room's replay buffer.
	StrokeHistoryCap = 100
)

// Rooms is the fixed room table. Room IDs are stable and part of the wire
// protocol; clients hardcode them in their lobby UI.
var Rooms = []RoomInfo{
	{ID: 1, Name: "Stage", Media: MediaCamera},
	{ID: 2, Name: "Voice", Media: MediaMicrophone},
	{ID: 3, Name: "Talk", Media: MediaNone},
	{ID: 4, Name: "Board", Media: MediaNone, Drawing: true},
}

// RoomByID looks up a room table entry.
func RoomByID(id int) (RoomInfo, bool) {
	for _, r := range Rooms {
		if r.ID == id {
			return r, true
		}
	}
	return RoomInfo{}, false
}
