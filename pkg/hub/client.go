package hub

import (
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	// writeWait is how long to wait for a write to complete.
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds client frames; subscribers only send pongs.
	maxMessageSize = 4 * 1024
)

// ErrHubStopped is returned by Serve when the hub is no longer running.
var ErrHubStopped = errors.New("hub: stopped")

// Conn is the subset of a websocket connection a client uses.
type Conn interface {
	ReadMessage() (int, []byte, error)
	WriteMessage(messageType int, data []byte) error
	SetReadLimit(limit int64)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(string) error)
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// Client is a single subscriber connection.
type Client struct {
	hub  *Hub
	conn Conn
	send chan Message
}

func newClient(h *Hub, conn Conn) *Client {
	return &Client{hub: h, conn: conn, send: make(chan Message, sendBuffer)}
}

// Serve registers conn with the hub and pumps messages to it until the
// connection closes or the hub stops. It should be called from the
// websocket handler.
func (h *Hub) Serve(conn Conn) error {
	c := newClient(h, conn)
	if !h.join(c) {
		conn.Close()
		return ErrHubStopped
	}
	go c.writePump()
	c.readPump()
	return nil
}

// readPump reads until the connection fails, which is how disconnection
// and pongs are detected.
func (c *Client) readPump() {
	defer func() {
		c.hub.leave(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only goroutine that writes to the connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(msg.Frame, msg.Data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
