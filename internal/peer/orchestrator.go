// Package peer drives one WebRTC connection per remote participant: the
// offer/answer/ICE handshake, queuing of signaling that arrives before
// local media is ready, glare resolution, and bounded recovery from
// transient ICE failures.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/huddlehq/huddle/internal/protocol"
	"github.com/huddlehq/huddle/internal/session"
)

// Timing bounds the orchestrator's timers. Zero fields take the defaults;
// tests shrink them.
type Timing struct {
	// FailedWindow bounds recovery after the transport reports failed.
	FailedWindow time.Duration

	// DisconnectedWindow bounds recovery after the transport reports
	// disconnected. Longer than FailedWindow: disconnects often heal on
	// their own.
	DisconnectedWindow time.Duration

	// LeaveGrace delays teardown when user_left races an unfinished
	// handshake.
	LeaveGrace time.Duration
}

func (t Timing) withDefaults() Timing {
	if t.FailedWindow == 0 {
		t.FailedWindow = 20 * time.Second
	}
	if t.DisconnectedWindow == 0 {
		t.DisconnectedWindow = 30 * time.Second
	}
	if t.LeaveGrace == 0 {
		t.LeaveGrace = 5 * time.Second
	}
	return t
}

// Options configures an Orchestrator.
type Options struct {
	// Self is the local participant ID.
	Self string

	// Send delivers a message to the relay. Must be safe for concurrent
	// use; candidates are sent from transport goroutines.
	Send func(*protocol.Message)

	// Factory creates transports. Production uses NewPionFactory.
	Factory TransportFactory

	// Media acquires local tracks. NullSource for media-free rooms.
	Media MediaSource

	// OnMediaError is invoked when acquisition fails; the caller owns the
	// retry affordance. Optional.
	OnMediaError func(error)

	// Recorder receives link lifecycle events. Optional.
	Recorder session.Recorder

	Timing Timing
}

// event kinds consumed by the orchestrator loop. Everything that can
// change link state arrives here, including timer firings, so state is
// never mutated re-entrantly.
type eventKind int

const (
	evPeerSeen eventKind = iota
	evPeerLeft
	evOffer
	evAnswer
	evCandidate
	evMediaReady
	evMediaFailed
	evTransport
	evTimer
)

type event struct {
	kind    eventKind
	peer    string
	payload json.RawMessage
	state   TransportState
	tracks  []webrtc.TrackLocal
	err     error
	gen     int
}

// pendingOffer is a queued inbound offer awaiting local media.
type pendingOffer struct {
	from  string
	offer json.RawMessage
}

// Orchestrator owns the peer table for one joined room. One Run goroutine
// consumes the single ingress event queue; pending work is drained exactly
// once when media becomes ready.
type Orchestrator struct {
	self     string
	send     func(*protocol.Message)
	factory  TransportFactory
	media    MediaSource
	onMedia  func(error)
	recorder session.Recorder
	timing   Timing

	events    chan event
	done      chan struct{}
	closeOnce sync.Once

	// Everything below is owned by the Run goroutine.
	links         map[string]*Link
	pendingPeers  []string
	pendingOffers []pendingOffer
	mediaReady    bool
	tracks        []webrtc.TrackLocal
}

// New creates an Orchestrator. Call Run in its own goroutine, then Start
// to begin media acquisition.
func New(opts Options) *Orchestrator {
	rec := opts.Recorder
	if rec == nil {
		rec = session.Nop{}
	}
	onMedia := opts.OnMediaError
	if onMedia == nil {
		onMedia = func(error) {}
	}
	return &Orchestrator{
		self:     opts.Self,
		send:     opts.Send,
		factory:  opts.Factory,
		media:    opts.Media,
		onMedia:  onMedia,
		recorder: rec,
		timing:   opts.Timing.withDefaults(),
		events:   make(chan event, 128),
		done:     make(chan struct{}),
		links:    make(map[string]*Link),
	}
}

// Run consumes the event queue until Close.
func (o *Orchestrator) Run() {
	for {
		select {
		case ev := <-o.events:
			o.handle(ev)
		case <-o.done:
			o.shutdown()
			return
		}
	}
}

// Start begins asynchronous media acquisition. If the context is
// cancelled before acquisition resolves, the result is discarded: queued
// work must not be acted on after leaving the room.
func (o *Orchestrator) Start(ctx context.Context) {
	go func() {
		tracks, err := o.media.Acquire(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			o.post(event{kind: evMediaFailed, err: err})
			return
		}
		o.post(event{kind: evMediaReady, tracks: tracks})
	}()
}

// Retry re-runs media acquisition after a denial.
func (o *Orchestrator) Retry(ctx context.Context) {
	o.Start(ctx)
}

// Close tears down every link, cancels all timers, and discards queued
// work. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.done)
	})
}

// Dispatch translates an inbound relay message into orchestrator events.
// Messages with no signaling meaning are ignored here; the caller keeps
// handling them for its own UI.
func (o *Orchestrator) Dispatch(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeRoomUsers:
		for _, id := range msg.Users {
			o.post(event{kind: evPeerSeen, peer: id})
		}
	case protocol.TypeUserJoined:
		o.post(event{kind: evPeerSeen, peer: msg.ParticipantID})
	case protocol.TypeUserLeft:
		o.post(event{kind: evPeerLeft, peer: msg.ParticipantID})
	case protocol.TypeRTCOffer:
		o.post(event{kind: evOffer, peer: msg.FromID, payload: msg.Offer})
	case protocol.TypeRTCAnswer:
		o.post(event{kind: evAnswer, peer: msg.FromID, payload: msg.Answer})
	case protocol.TypeRTCICECandidate:
		o.post(event{kind: evCandidate, peer: msg.FromID, payload: msg.Candidate})
	}
}

func (o *Orchestrator) post(ev event) {
	select {
	case o.events <- ev:
	case <-o.done:
	}
}

func (o *Orchestrator) handle(ev event) {
	switch ev.kind {
	case evPeerSeen:
		o.handlePeerSeen(ev.peer)
	case evPeerLeft:
		o.handlePeerLeft(ev.peer)
	case evOffer:
		o.handleOffer(ev.peer, ev.payload)
	case evAnswer:
		o.handleAnswer(ev.peer, ev.payload)
	case evCandidate:
		o.handleCandidate(ev.peer, ev.payload)
	case evMediaReady:
		o.handleMediaReady(ev.tracks)
	case evMediaFailed:
		o.onMedia(NewError("acquire media", "", fmt.Errorf("%w: %v", ErrMediaUnavailable, ev.err)))
	case evTransport:
		o.handleTransport(ev.peer, ev.state)
	case evTimer:
		o.handleTimer(ev.peer, ev.gen)
	}
}

// handlePeerSeen reacts to room_users/user_joined. Known peers are
// skipped; before media is ready the peer is queued instead of called.
func (o *Orchestrator) handlePeerSeen(id string) {
	if id == "" || id == o.self {
		return
	}
	if _, ok := o.links[id]; ok {
		return
	}
	if !o.mediaReady {
		o.queuePeer(id)
		return
	}
	o.call(id)
}

func (o *Orchestrator) queuePeer(id string) {
	for _, p := range o.pendingPeers {
		if p == id {
			return
		}
	}
	o.pendingPeers = append(o.pendingPeers, id)
}

// call creates a link and sends the initial offer.
func (o *Orchestrator) call(id string) {
	l, err := o.newLink(id, StateOfferSent)
	if err != nil {
		slog.Warn("failed to create peer link", "peer", id, "err", err)
		return
	}
	sdp, err := l.transport.Offer(false)
	if err != nil {
		slog.Warn("failed to create offer", "peer", id, "err", err)
		o.drop(l)
		return
	}
	o.send(&protocol.Message{
		Type:     protocol.TypeRTCOffer,
		TargetID: id,
		Offer:    sdp,
	})
}

// handleOffer answers an inbound offer. An offer for an existing link is
// renegotiation or glare; either way the old link is discarded and the
// newest offer wins.
func (o *Orchestrator) handleOffer(from string, offer json.RawMessage) {
	if from == "" || len(offer) == 0 {
		return
	}
	if !o.mediaReady {
		o.queueOffer(from, offer)
		return
	}
	o.answer(from, offer)
}

// queueOffer retains the latest offer per sender, consistent with
// last-offer-wins once media is ready.
func (o *Orchestrator) queueOffer(from string, offer json.RawMessage) {
	for i := range o.pendingOffers {
		if o.pendingOffers[i].from == from {
			o.pendingOffers[i].offer = offer
			return
		}
	}
	o.pendingOffers = append(o.pendingOffers, pendingOffer{from: from, offer: offer})
}

func (o *Orchestrator) answer(from string, offer json.RawMessage) {
	if old, ok := o.links[from]; ok {
		o.drop(old)
	}
	l, err := o.newLink(from, StateOfferReceived)
	if err != nil {
		slog.Warn("failed to create peer link", "peer", from, "err", err)
		return
	}
	answer, err := l.transport.Answer(offer)
	if err != nil {
		slog.Warn("failed to answer offer", "peer", from, "err", err)
		o.drop(l)
		return
	}
	o.send(&protocol.Message{
		Type:     protocol.TypeRTCAnswer,
		TargetID: from,
		Answer:   answer,
	})
}

// handleAnswer applies a remote answer. Valid after we sent an offer,
// including the restart offer sent while recovering; anything else is a
// stale answer for a link already torn down or replaced, and is dropped.
func (o *Orchestrator) handleAnswer(from string, answer json.RawMessage) {
	l, ok := o.links[from]
	if !ok {
		return
	}
	switch l.state {
	case StateOfferSent:
		if err := l.transport.ApplyAnswer(answer); err != nil {
			slog.Warn("failed to apply answer", "peer", from, "err", err)
			o.drop(l)
			return
		}
		o.setConnected(l)
	case StateRecovering:
		if err := l.transport.ApplyAnswer(answer); err != nil {
			slog.Warn("failed to apply restart answer", "peer", from, "err", err)
			o.drop(l)
		}
		// Stay in Recovering: the window runs until the transport reports
		// connected again.
	default:
		slog.Debug("dropping stale answer", "peer", from, "state", l.state.String())
	}
}

// handleCandidate applies a candidate to the link if one exists;
// candidates racing ahead of link creation are dropped, best-effort.
func (o *Orchestrator) handleCandidate(from string, candidate json.RawMessage) {
	l, ok := o.links[from]
	if !ok {
		return
	}
	if err := l.transport.AddCandidate(candidate); err != nil {
		slog.Debug("failed to add candidate", "peer", from, "err", err)
	}
}

// handleMediaReady drains both pending queues exactly once. Offers drain
// first so a peer with a queued offer gets an answer rather than a
// competing offer.
func (o *Orchestrator) handleMediaReady(tracks []webrtc.TrackLocal) {
	if o.mediaReady {
		return
	}
	o.mediaReady = true
	o.tracks = tracks

	offers := o.pendingOffers
	peers := o.pendingPeers
	o.pendingOffers = nil
	o.pendingPeers = nil

	for _, po := range offers {
		o.answer(po.from, po.offer)
	}
	for _, id := range peers {
		if _, ok := o.links[id]; ok {
			continue
		}
		o.call(id)
	}
}

// handlePeerLeft removes any queued work for the peer, then tears the
// link down, with a grace window if the handshake hasn't completed:
// user_left can race ahead of a handshake that is about to succeed.
func (o *Orchestrator) handlePeerLeft(id string) {
	o.unqueue(id)
	l, ok := o.links[id]
	if !ok {
		return
	}
	if l.state.connecting() {
		l.armTimer(timerGrace, o.timing.LeaveGrace, func(gen int) {
			o.post(event{kind: evTimer, peer: id, gen: gen})
		})
		return
	}
	o.drop(l)
}

func (o *Orchestrator) unqueue(id string) {
	for i, p := range o.pendingPeers {
		if p == id {
			o.pendingPeers = append(o.pendingPeers[:i], o.pendingPeers[i+1:]...)
			break
		}
	}
	for i := range o.pendingOffers {
		if o.pendingOffers[i].from == id {
			o.pendingOffers = append(o.pendingOffers[:i], o.pendingOffers[i+1:]...)
			break
		}
	}
}

// handleTransport advances a link on connection health changes.
func (o *Orchestrator) handleTransport(id string, state TransportState) {
	l, ok := o.links[id]
	if !ok {
		return
	}
	switch state {
	case TransportConnected:
		l.cancelTimer()
		o.setConnected(l)

	case TransportFailed:
		o.recover(l, o.timing.FailedWindow)

	case TransportDisconnected:
		o.recover(l, o.timing.DisconnectedWindow)

	case TransportClosed:
		o.drop(l)
	}
}

func (o *Orchestrator) setConnected(l *Link) {
	if l.state == StateConnected {
		return
	}
	l.state = StateConnected
	o.recorder.PeerConnected(o.self, l.remote)
	slog.Debug("peer link connected", "peer", l.remote)
}

// recover restarts ICE in place and arms the recovery window. The link
// object and transport survive; only the network path renegotiates.
func (o *Orchestrator) recover(l *Link, window time.Duration) {
	l.state = StateRecovering
	sdp, err := l.transport.Offer(true)
	if err != nil {
		slog.Warn("ICE restart failed", "peer", l.remote, "err", err)
		o.drop(l)
		return
	}
	o.send(&protocol.Message{
		Type:     protocol.TypeRTCOffer,
		TargetID: l.remote,
		Offer:    sdp,
	})
	id := l.remote
	l.armTimer(timerRecovery, window, func(gen int) {
		o.post(event{kind: evTimer, peer: id, gen: gen})
	})
}

// handleTimer fires a link's pending timer. A stale generation means the
// timer was cancelled by a later transition; ignore it.
func (o *Orchestrator) handleTimer(id string, gen int) {
	l, ok := o.links[id]
	if !ok || gen != l.timerGen {
		return
	}
	switch l.timerKind {
	case timerRecovery:
		slog.Debug("recovery window expired", "peer", id)
		o.drop(l)
	case timerGrace:
		if l.state != StateConnected {
			o.drop(l)
		}
	}
}

// newLink creates the transport for a remote peer and registers the link.
func (o *Orchestrator) newLink(id string, state LinkState) (*Link, error) {
	obs := TransportObserver{
		OnCandidate: func(candidate json.RawMessage) {
			o.send(&protocol.Message{
				Type:      protocol.TypeRTCICECandidate,
				TargetID:  id,
				Candidate: candidate,
			})
		},
		OnState: func(s TransportState) {
			o.post(event{kind: evTransport, peer: id, state: s})
		},
	}
	tr, err := o.factory(id, o.tracks, obs)
	if err != nil {
		return nil, NewError("create transport", id, err)
	}
	l := &Link{remote: id, state: state, transport: tr}
	o.links[id] = l
	return l, nil
}

// drop tears a link down: cancel its timer, close its transport, remove
// it from the peer table.
func (o *Orchestrator) drop(l *Link) {
	l.cancelTimer()
	l.state = StateClosed
	l.transport.Close()
	delete(o.links, l.remote)
	o.recorder.PeerClosed(o.self, l.remote)
	slog.Debug("peer link closed", "peer", l.remote)
}

// shutdown is the local-leave path: every link torn down, both queues
// discarded.
func (o *Orchestrator) shutdown() {
	for _, l := range o.links {
		o.drop(l)
	}
	o.pendingPeers = nil
	o.pendingOffers = nil
}
