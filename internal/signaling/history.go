package signaling

import "github.com/huddlehq/huddle/internal/protocol"

// StrokeHistory is the bounded replay buffer for a drawing room. It keeps
// the most recent strokes in arrival order so late joiners can reconstruct
// the canvas. All access happens on the hub goroutine; no locking.
type StrokeHistory struct {
	capacity int
	strokes  []protocol.Stroke
}

// NewStrokeHistory creates a buffer that retains at most capacity strokes.
func NewStrokeHistory(capacity int) *StrokeHistory {
	return &StrokeHistory{capacity: capacity}
}

// Append records a stroke, evicting the oldest one beyond capacity.
func (h *StrokeHistory) Append(s protocol.Stroke) {
	h.strokes = append(h.strokes, s)
	if len(h.strokes) > h.capacity {
		h.strokes = h.strokes[len(h.strokes)-h.capacity:]
	}
}

// Clear drops the entire history.
func (h *StrokeHistory) Clear() {
	h.strokes = nil
}

// Len reports the number of retained strokes.
func (h *StrokeHistory) Len() int {
	return len(h.strokes)
}

// Snapshot returns a copy of the retained strokes, oldest first. The copy
// is what gets marshalled to a joiner, so later appends never mutate an
// in-flight drawing_history message.
func (h *StrokeHistory) Snapshot() []protocol.Stroke {
	if len(h.strokes) == 0 {
		return nil
	}
	out := make([]protocol.Stroke, len(h.strokes))
	copy(out, h.strokes)
	return out
}
