package peer

import "github.com/vmihailenco/msgpack/v5"

// Control channel frame types. The "huddle" data channel carries a small
// msgpack protocol beside the media: an identity hello on open, then
// periodic heartbeats so a link notices a silently dead peer even while
// ICE still reports connected.
const (
	FrameTypeHello     = "hello"
	FrameTypeHeartbeat = "heartbeat"
)

// Frame is the envelope for all control channel traffic.
type Frame struct {
	Type    string             `msgpack:"type"`
	Payload msgpack.RawMessage `msgpack:"payload"`
}

// HelloPayload identifies the sending participant.
type HelloPayload struct {
	ParticipantID string `msgpack:"participantId"`
	Agent         string `msgpack:"agent"`
}

// NewFrame creates a Frame with the given type and payload.
func NewFrame(t string, payload any) (Frame, error) {
	b, err := msgpack.Marshal(payload)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Type: t, Payload: b}, nil
}

// DecodePayload decodes the frame payload into the provided struct.
func (f Frame) DecodePayload(v any) error {
	return msgpack.Unmarshal(f.Payload, v)
}

func encodeFrame(f Frame) ([]byte, error) {
	return msgpack.Marshal(f)
}

func decodeFrame(data []byte, f *Frame) error {
	return msgpack.Unmarshal(data, f)
}
