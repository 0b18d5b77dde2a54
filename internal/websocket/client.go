package websocket

import (
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Client is one admin's live audit feed connection. The send buffer is
// sized so a briefly stalled reader does not block the hub.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	UserID int64
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		UserID: userID,
	}
}

// ReadPump drains inbound frames until the peer goes away. The feed is
// one-directional, so anything the client sends is discarded.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister <- c
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("audit feed read error", zap.Int64("user_id", c.UserID), zap.Error(err))
			}
			return
		}
	}
}

// WritePump ships queued audit events to the peer. A closed send channel
// means the hub unregistered us, so say goodbye cleanly.
func (c *Client) WritePump() {
	defer c.conn.Close()
	for message := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			c.hub.logger.Debug("audit feed write error", zap.Int64("user_id", c.UserID), zap.Error(err))
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
