package peer

import "time"

// timerKind distinguishes what a link's pending timer means when it fires.
type timerKind int

const (
	timerNone timerKind = iota

	// timerRecovery bounds an in-place ICE restart; expiry tears the link
	// down.
	timerRecovery

	// timerGrace delays teardown after user_left arrives mid-handshake;
	// expiry tears down only if the link never connected.
	timerGrace
)

// Link is the orchestrator's record for one remote participant. All
// fields are owned by the orchestrator goroutine; timers re-enter through
// the event queue, never by touching the link directly.
type Link struct {
	remote    string
	state     LinkState
	transport Transport

	// timerGen invalidates stale timer callbacks: a fired timer whose
	// generation no longer matches is a no-op. Bumping the generation is
	// the cancellation token.
	timerGen  int
	timer     *time.Timer
	timerKind timerKind
}

// armTimer replaces any pending timer. The callback posts back into the
// orchestrator queue carrying the generation it was armed with.
func (l *Link) armTimer(kind timerKind, d time.Duration, post func(gen int)) {
	l.cancelTimer()
	l.timerKind = kind
	gen := l.timerGen
	l.timer = time.AfterFunc(d, func() {
		post(gen)
	})
}

// cancelTimer invalidates the pending timer, if any. Stop is best-effort;
// the generation bump is what guarantees a late firing is ignored.
func (l *Link) cancelTimer() {
	l.timerGen++
	l.timerKind = timerNone
	if l.timer != nil {
		l.timer.Stop()
		l.timer = nil
	}
}
