package protocol

// Drawing tools.
const (
	ToolPen    = "pen"
	ToolEraser = "eraser"
)

// Point is one sample of a stroke path, in canvas coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Stroke is one completed drawing gesture. Strokes are immutable once
// recorded; the relay stamps ParticipantID and Timestamp so every client
// renders from the same authoritative record.
type Stroke struct {
	ID            string  `json:"id"`
	ParticipantID string  `json:"participantId"`
	Points        []Point `json:"points"`
	Color         string  `json:"color"`
	Width         float64 `json:"width"`
	Tool          string  `json:"tool"`
	Timestamp     int64   `json:"timestamp"`
}
