// Package protocol defines the JSON wire vocabulary exchanged between
// clients and the relay over a single persistent WebSocket.
package protocol

import "encoding/json"

// Message type constants. Everything on the wire is a Message with one of
// these in its Type field; unknown types are ignored by both sides.
const (
	// client -> server
	TypeJoin         = "join"
	TypeLeave        = "leave"
	TypePing         = "ping"
	TypeChat         = "message"
	TypeDrawStroke   = "draw_stroke"
	TypeClearDrawing = "clear_drawing"

	// client -> server -> client (targeted relay)
	TypeRTCOffer        = "rtc_offer"
	TypeRTCAnswer       = "rtc_answer"
	TypeRTCICECandidate = "rtc_ice_candidate"

	// server -> client
	TypePong           = "pong"
	TypePresence       = "presence"
	TypeRoomUsers      = "room_users"
	TypeUserJoined     = "user_joined"
	TypeUserLeft       = "user_left"
	TypeDrawingHistory = "drawing_history"
)

// Message is the single envelope for all relay traffic. Fields are a union
// across message types; unused ones are omitted from the JSON.
type Message struct {
	Type string `json:"type"`

	// Membership and presence.
	ParticipantID string      `json:"participantId,omitempty"`
	RoomID        int         `json:"roomId,omitempty"`
	Users         []string    `json:"users,omitempty"`
	Counts        map[int]int `json:"counts,omitempty"`

	// Targeted RTC relay. A client addresses the target; the relay rewrites
	// the envelope so the recipient sees who it came from. The SDP/candidate
	// payloads are opaque to the server and forwarded verbatim.
	TargetID  string          `json:"targetId,omitempty"`
	FromID    string          `json:"fromId,omitempty"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// Chat (Talk room only).
	MessageID string `json:"messageId,omitempty"`
	Text      string `json:"text,omitempty"`

	// Drawing (Board room only).
	StrokeID string   `json:"strokeId,omitempty"`
	Points   []Point  `json:"points,omitempty"`
	Color    string   `json:"color,omitempty"`
	Width    float64  `json:"width,omitempty"`
	Tool     string   `json:"tool,omitempty"`
	Strokes  []Stroke `json:"strokes,omitempty"`

	// Server-stamped, milliseconds since epoch.
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Decode parses a raw frame into a Message. A frame that is not a JSON
// object or has no type is rejected; callers log and drop it, the
// connection stays open.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, ErrMissingType
	}
	return &msg, nil
}
