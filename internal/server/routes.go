// Package server wires the relay's HTTP surface: the websocket endpoint
// and the unauthenticated health probe.
package server

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/huddlehq/huddle/internal/signaling"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,

	// The relay performs no authentication; room membership is the only
	// access model, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeWs returns the handler for websocket upgrade requests.
func ServeWs(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("failed to upgrade connection", "err", err)
			return
		}

		client := signaling.NewClient(hub, conn)
		client.Hub.Register <- client

		go client.WritePump()
		go client.ReadPump()
	}
}

// healthResponse is what the probe returns: process liveness plus the live
// per-room occupancy, keyed by room ID.
type healthResponse struct {
	Status string      `json:"status"`
	Rooms  map[int]int `json:"rooms"`
}

// Health returns the handler for the occupancy probe.
func Health(hub *signaling.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(healthResponse{
			Status: "ok",
			Rooms:  hub.Occupancy(),
		})
	}
}

// New assembles the relay's HTTP server.
func New(addr string, hub *signaling.Hub) *http.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ServeWs(hub))
	mux.HandleFunc("/health", Health(hub))
	return &http.Server{Addr: addr, Handler: mux}
}
