package peer

import (
	"encoding/json"

	"github.com/pion/webrtc/v4"
)

// TransportState is the orchestrator's view of the underlying connection's
// health, decoupled from pion's ICE state vocabulary so the state machine
// can be driven by fakes in tests.
type TransportState int

const (
	TransportNew TransportState = iota
	TransportConnecting
	TransportConnected
	TransportDisconnected
	TransportFailed
	TransportClosed
)

func (s TransportState) String() string {
	switch s {
	case TransportNew:
		return "new"
	case TransportConnecting:
		return "connecting"
	case TransportConnected:
		return "connected"
	case TransportDisconnected:
		return "disconnected"
	case TransportFailed:
		return "failed"
	case TransportClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// TransportObserver receives transport callbacks. Both callbacks may fire
// on arbitrary goroutines; implementations must be safe for that.
type TransportObserver struct {
	// OnCandidate delivers a locally gathered ICE candidate, already
	// encoded for the wire.
	OnCandidate func(candidate json.RawMessage)

	// OnState delivers connection health transitions.
	OnState func(state TransportState)
}

// Transport is one underlying peer connection. SDP payloads cross this
// boundary as opaque JSON, the same bytes the relay forwards verbatim.
type Transport interface {
	// Offer produces a local offer. With iceRestart set, the offer
	// renegotiates network paths on the existing connection.
	Offer(iceRestart bool) (json.RawMessage, error)

	// Answer applies a remote offer and produces the local answer.
	Answer(offer json.RawMessage) (json.RawMessage, error)

	// ApplyAnswer applies the remote answer to a previously sent offer.
	ApplyAnswer(answer json.RawMessage) error

	// AddCandidate applies a remote ICE candidate.
	AddCandidate(candidate json.RawMessage) error

	// Close releases the connection. Idempotent.
	Close() error
}

// TransportFactory creates the transport for one remote participant,
// publishing the given local tracks.
type TransportFactory func(remoteID string, tracks []webrtc.TrackLocal, obs TransportObserver) (Transport, error)
