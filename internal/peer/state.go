package peer

// LinkState is the lifecycle position of one peer link.
//
//	Idle -> OfferSent | OfferReceived -> Connected -> {Recovering -> Connected | Closed}
//
// Idle is only the zero value: a peer known but not yet linked lives in
// the pending queues, not in the peer table.
type LinkState int

const (
	StateIdle LinkState = iota
	StateOfferSent
	StateOfferReceived
	StateConnected
	StateRecovering
	StateClosed
)

func (s LinkState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOfferSent:
		return "offer-sent"
	case StateOfferReceived:
		return "offer-received"
	case StateConnected:
		return "connected"
	case StateRecovering:
		return "recovering"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// connecting reports whether the link is mid-handshake: past Idle, not yet
// Connected. user_left during this phase gets a grace window instead of an
// immediate teardown.
func (s LinkState) connecting() bool {
	return s == StateOfferSent || s == StateOfferReceived
}
