package peer

import (
	"errors"
	"fmt"
)

// ErrMediaUnavailable wraps media acquisition failures so callers can
// distinguish a denied device from a signaling failure.
var ErrMediaUnavailable = errors.New("local media unavailable")

// PeerError annotates a failure with the operation and the remote
// participant it concerned.
type PeerError struct {
	Op   string
	Peer string
	Err  error
}

func (e *PeerError) Error() string {
	if e.Peer != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Peer, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *PeerError) Unwrap() error {
	return e.Err
}

func NewError(op, peer string, err error) *PeerError {
	return &PeerError{Op: op, Peer: peer, Err: err}
}
