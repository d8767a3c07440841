// Package session is the boundary to behavioral analytics. The relay and
// the peer orchestrator report membership and interaction events through a
// Recorder; what happens to them (aggregation, export) lives outside this
// repository.
package session

import "log/slog"

// Recorder receives session events. Implementations must not block; they
// are called from the hub and orchestrator loops.
type Recorder interface {
	RoomJoined(participantID string, roomID int)
	RoomLeft(participantID string, roomID int)
	MessageSent(participantID string, roomID int)
	StrokeDrawn(participantID string, roomID int)
	DrawingCleared(participantID string, roomID int)
	PeerConnected(localID, remoteID string)
	PeerClosed(localID, remoteID string)
}

// Nop discards every event.
type Nop struct{}

func (Nop) RoomJoined(string, int) {}
func (Nop) RoomLeft(string, int) {}
func (Nop) MessageSent(string, int) {}
func (Nop) StrokeDrawn(string, int) {}
func (Nop) DrawingCleared(string, int) {}
func (Nop) PeerConnected(string, string) {}
func (Nop) PeerClosed(string, string) {}

// Log writes events to a slog logger at debug level.
type Log struct {
	Logger *slog.Logger
}

func (l Log) RoomJoined(id string, room int) {
	l.Logger.Debug("session: room joined", "participant", id, "room", room)
}

func (l Log) RoomLeft(id string, room int) {
	l.Logger.Debug("session: room left", "participant", id, "room", room)
}

func (l Log) MessageSent(id string, room int) {
	l.Logger.Debug("session: message sent", "participant", id, "room", room)
}

func (l Log) StrokeDrawn(id string, room int) {
	l.Logger.Debug("session: stroke drawn", "participant", id, "room", room)
}

func (l Log) DrawingCleared(id string, room int) {
	l.Logger.Debug("session: drawing cleared", "participant", id, "room", room)
}

func (l Log) PeerConnected(local, remote string) {
	l.Logger.Debug("session: peer connected", "local", local, "remote", remote)
}

func (l Log) PeerClosed(local, remote string) {
	l.Logger.Debug("session: peer closed", "local", local, "remote", remote)
}
