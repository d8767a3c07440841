package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/huddlehq/huddle/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP offers and full-canvas
	// strokes both fit comfortably.
	maxMessageSize = 64 * 1024

	// Outbound buffer per client. A client that can't drain this fast
	// starts missing broadcasts instead of blocking the hub.
	sendBuffer = 256
)

// Client wraps a single websocket connection. The participant identity and
// room occupancy fields are owned by the hub goroutine and must not be
// touched from the pumps.
type Client struct {
	Hub  *Hub
	Conn *websocket.Conn

	// ID is the participant ID this socket last joined as. Empty until the
	// first join.
	ID string

	// RoomID is the current room, 0 when not in any room.
	RoomID int

	// Send is the outbound queue drained by WritePump. The hub closes it
	// on unregister.
	Send chan *protocol.Message
}

// NewClient wraps an accepted websocket connection. The caller registers
// it with the hub and starts both pumps.
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		Hub:  hub,
		Conn: conn,
		Send: make(chan *protocol.Message, sendBuffer),
	}
}

// trySend queues a message without ever blocking. Only the hub goroutine
// may call this; it is the hub that closes Send, so the send-after-close
// race cannot occur.
func (c *Client) trySend(msg *protocol.Message) {
	select {
	case c.Send <- msg:
	default:
		slog.Debug("dropping message for slow client", "participant", c.ID, "type", msg.Type)
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine, which
// guarantees at most one reader per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Debug("websocket read error", "err", err)
			}
			break
		}

		// A frame that doesn't parse is logged and skipped; the connection
		// stays open.
		msg, err := protocol.Decode(data)
		if err != nil {
			slog.Warn("ignoring malformed frame", "err", err)
			continue
		}

		c.Hub.Inbound <- &inbound{sender: c, msg: msg}
	}
}

// WritePump pumps messages from the hub to the websocket connection and
// keeps the connection alive with periodic pings. One goroutine per
// connection guarantees at most one writer.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteJSON(message); err != nil {
				slog.Debug("websocket write error", "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
