package peer

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	pion "github.com/pion/webrtc/v4"

	"github.com/huddlehq/huddle/internal/config"
)

const (
	controlChannelLabel = "huddle"
	heartbeatPeriod     = 15 * time.Second
)

// NewPionFactory returns the production TransportFactory, backed by pion
// peer connections configured with the STUN/TURN servers from cfg.
func NewPionFactory(cfg *config.Config, self string) TransportFactory {
	return func(remoteID string, tracks []pion.TrackLocal, obs TransportObserver) (Transport, error) {
		pc, err := newPeerConnection(cfg)
		if err != nil {
			return nil, NewError("create peer connection", remoteID, err)
		}

		for _, track := range tracks {
			if _, err := pc.AddTrack(track); err != nil {
				pc.Close()
				return nil, NewError("add track", remoteID, err)
			}
		}

		t := &pionTransport{
			pc:     pc,
			self:   self,
			remote: remoteID,
			stop:   make(chan struct{}),
		}

		pc.OnICECandidate(func(c *pion.ICECandidate) {
			if c == nil {
				return
			}
			data, err := json.Marshal(c.ToJSON())
			if err != nil {
				return
			}
			obs.OnCandidate(data)
		})

		pc.OnICEConnectionStateChange(func(s pion.ICEConnectionState) {
			obs.OnState(mapICEState(s))
		})

		// The answering side receives the control channel from the offerer.
		pc.OnDataChannel(func(dc *pion.DataChannel) {
			if dc.Label() == controlChannelLabel {
				t.bindControl(dc)
			}
		})

		return t, nil
	}
}

// newPeerConnection builds a pion connection from the configured ICE
// servers.
func newPeerConnection(cfg *config.Config) (*pion.PeerConnection, error) {
	iceServers := []pion.ICEServer{{URLs: cfg.GetSTUNServers()}}

	if turnServers := cfg.GetTURNServers(); turnServers != nil {
		username, password := cfg.GetTURNCredentials()
		iceServers = append(iceServers, pion.ICEServer{
			URLs:       turnServers,
			Username:   username,
			Credential: password,
		})
	}

	return pion.NewPeerConnection(pion.Configuration{
		ICEServers: iceServers,
	})
}

func mapICEState(s pion.ICEConnectionState) TransportState {
	switch s {
	case pion.ICEConnectionStateChecking:
		return TransportConnecting
	case pion.ICEConnectionStateConnected, pion.ICEConnectionStateCompleted:
		return TransportConnected
	case pion.ICEConnectionStateDisconnected:
		return TransportDisconnected
	case pion.ICEConnectionStateFailed:
		return TransportFailed
	case pion.ICEConnectionStateClosed:
		return TransportClosed
	default:
		return TransportNew
	}
}

// pionTransport adapts a pion peer connection to the Transport interface
// and owns the msgpack control channel.
type pionTransport struct {
	pc     *pion.PeerConnection
	self   string
	remote string

	mu      sync.Mutex
	control *pion.DataChannel

	stop      chan struct{}
	closeOnce sync.Once
}

// Offer creates a local offer. The offering side also owns creating the
// control channel; it is created once, before the first offer, so a
// restart offer renegotiates the existing channel instead of adding one.
func (t *pionTransport) Offer(iceRestart bool) (json.RawMessage, error) {
	if !iceRestart {
		t.mu.Lock()
		needChannel := t.control == nil
		t.mu.Unlock()
		if needChannel {
			ordered := true
			dc, err := t.pc.CreateDataChannel(controlChannelLabel, &pion.DataChannelInit{
				Ordered: &ordered,
			})
			if err != nil {
				return nil, NewError("create control channel", t.remote, err)
			}
			t.bindControl(dc)
		}
	}

	var opts *pion.OfferOptions
	if iceRestart {
		opts = &pion.OfferOptions{ICERestart: true}
	}
	offer, err := t.pc.CreateOffer(opts)
	if err != nil {
		return nil, NewError("create offer", t.remote, err)
	}
	if err := t.pc.SetLocalDescription(offer); err != nil {
		return nil, NewError("set local description", t.remote, err)
	}
	return json.Marshal(t.pc.LocalDescription())
}

// Answer applies a remote offer and produces the local answer.
func (t *pionTransport) Answer(offer json.RawMessage) (json.RawMessage, error) {
	var desc pion.SessionDescription
	if err := json.Unmarshal(offer, &desc); err != nil {
		return nil, NewError("parse offer", t.remote, err)
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return nil, NewError("set remote description", t.remote, err)
	}
	answer, err := t.pc.CreateAnswer(nil)
	if err != nil {
		return nil, NewError("create answer", t.remote, err)
	}
	if err := t.pc.SetLocalDescription(answer); err != nil {
		return nil, NewError("set local description", t.remote, err)
	}
	return json.Marshal(t.pc.LocalDescription())
}

// ApplyAnswer applies the remote answer to a previously sent offer.
func (t *pionTransport) ApplyAnswer(answer json.RawMessage) error {
	var desc pion.SessionDescription
	if err := json.Unmarshal(answer, &desc); err != nil {
		return NewError("parse answer", t.remote, err)
	}
	if err := t.pc.SetRemoteDescription(desc); err != nil {
		return NewError("set remote description", t.remote, err)
	}
	return nil
}

// AddCandidate applies a remote ICE candidate.
func (t *pionTransport) AddCandidate(candidate json.RawMessage) error {
	var init pion.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return NewError("parse ICE candidate", t.remote, err)
	}
	if err := t.pc.AddICECandidate(init); err != nil {
		return NewError("add ICE candidate", t.remote, err)
	}
	return nil
}

// Close stops the heartbeat and releases the connection.
func (t *pionTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.stop)
	})
	return t.pc.Close()
}

// bindControl attaches the control channel handlers: hello on open, then
// heartbeats until Close.
func (t *pionTransport) bindControl(dc *pion.DataChannel) {
	t.mu.Lock()
	t.control = dc
	t.mu.Unlock()

	dc.OnOpen(func() {
		t.sendFrame(FrameTypeHello, HelloPayload{
			ParticipantID: t.self,
			Agent:         "huddle-cli",
		})
		go t.heartbeatLoop()
	})

	dc.OnMessage(func(msg pion.DataChannelMessage) {
		var frame Frame
		if err := decodeFrame(msg.Data, &frame); err != nil {
			slog.Debug("ignoring malformed control frame", "peer", t.remote, "err", err)
			return
		}
		if frame.Type == FrameTypeHello {
			var hello HelloPayload
			if err := frame.DecodePayload(&hello); err == nil {
				slog.Debug("peer hello", "peer", hello.ParticipantID, "agent", hello.Agent)
			}
		}
	})
}

func (t *pionTransport) heartbeatLoop() {
	ticker := time.NewTicker(heartbeatPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.sendFrame(FrameTypeHeartbeat, nil)
		case <-t.stop:
			return
		}
	}
}

func (t *pionTransport) sendFrame(frameType string, payload any) {
	frame, err := NewFrame(frameType, payload)
	if err != nil {
		return
	}
	data, err := encodeFrame(frame)
	if err != nil {
		return
	}
	t.mu.Lock()
	dc := t.control
	t.mu.Unlock()
	if dc == nil {
		return
	}
	if err := dc.Send(data); err != nil {
		slog.Debug("control frame send failed", "peer", t.remote, "err", err)
	}
}
