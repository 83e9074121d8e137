package websocket

import (
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one live transport session and its protocol state.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	// id is the connection handle identity, distinct from any bound user.
	id string

	// mu guards the bound identity, empty until a connect frame arrives.
	// The read pump writes it; the hub loop reads it when it drops or
	// sweeps the connection, which can happen while the pump still runs.
	mu       sync.Mutex
	userID   string
	userName string

	// lastPong is a unix-nano timestamp updated by the pong handler and
	// compared by the liveness sweep.
	lastPong atomic.Int64
}

// setIdentity binds a user identity to this connection.
func (c *Client) setIdentity(userID, userName string) {
	c.mu.Lock()
	c.userID = userID
	c.userName = userName
	c.mu.Unlock()
}

// identity returns the bound user identity, empty strings while unbound.
func (c *Client) identity() (userID, userName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.userName
}

// readPump pumps frames from the connection into the protocol handler.
// It owns teardown: on any read error the connection is unregistered.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.lastPong.Store(time.Now().UnixNano())
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("connection %s read error: %v", c.id, err)
			}
			return
		}
		c.handleFrame(data)
	}
}

// writePump drains the send buffer onto the wire, one websocket text
// message per payload so clients can parse each frame independently.
func (c *Client) writePump() {
	defer c.conn.Close()

	for message := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
			return
		}
	}

	// The hub closed the channel.
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

// reply sends a payload to this connection only. Delivery is routed
// through the hub loop so it cannot race teardown of the send buffer.
func (c *Client) reply(payload interface{}) {
	data, ok := encode(payload)
	if !ok {
		return
	}
	select {
	case c.hub.direct <- direct{client: c, data: data}:
	case <-c.hub.done:
	}
}
