package peer

import (
	"context"

	"github.com/pion/webrtc/v4"
)

// MediaSource acquires the local tracks to publish to every peer. Actual
// device capture lives outside this repository; the orchestrator only
// cares that acquisition is asynchronous, can fail (permission denied),
// and can be cancelled by leaving the room before it resolves.
type MediaSource interface {
	Acquire(ctx context.Context) ([]webrtc.TrackLocal, error)
}

// NullSource publishes no tracks. Used for rooms that require no media
// permission, where links carry only the control data channel.
type NullSource struct{}

func (NullSource) Acquire(ctx context.Context) ([]webrtc.TrackLocal, error) {
	return nil, ctx.Err()
}
