package websocket

import (
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/trafficdeck/syncserver/history"
	"github.com/trafficdeck/syncserver/presence"
	"github.com/trafficdeck/syncserver/traffic"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Interval between liveness sweeps. A connection that has not ponged
	// since the previous sweep is terminated.
	sweepInterval = 30 * time.Second

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per connection; a recipient that falls this far
	// behind is dropped rather than allowed to stall the broadcaster.
	sendBufferSize = 256

	// Number of history messages delivered in init and connected payloads.
	historyOnJoin = 50
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The dashboard is served from a different origin in development.
		return true
	},
}

// direct is a payload addressed to a single connection, routed through the
// event loop so private replies never race connection teardown.
type direct struct {
	client *Client
	data   []byte
}

// Hub owns the set of live connections and fans events out to them. The
// clients map is touched only by the Run loop, so every broadcast iterates
// a set that cannot be mutated mid-flight.
type Hub struct {
	registry *presence.Registry
	messages *history.Log
	bridge   *traffic.Bridge

	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	direct     chan direct

	shutdown chan struct{}
	done     chan struct{}
}

// NewHub creates a hub over the shared presence registry, message log, and
// traffic bridge.
func NewHub(registry *presence.Registry, messages *history.Log, bridge *traffic.Bridge) *Hub {
	return &Hub{
		registry:   registry,
		messages:   messages,
		bridge:     bridge,
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		direct:     make(chan direct),
		shutdown:   make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run drives the hub's event loop and the liveness sweep until Shutdown is
// called.
func (h *Hub) Run() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case data := <-h.broadcast:
			h.broadcastData(data)

		case m := <-h.direct:
			h.sendTo(m.client, m.data)

		case <-ticker.C:
			h.sweepDead()

		case <-h.shutdown:
			h.closeAll()
			close(h.done)
			return
		}
	}
}

// Shutdown stops the liveness sweep and closes every connection. It blocks
// until the event loop has exited, so no timer fires after teardown.
func (h *Hub) Shutdown() {
	close(h.shutdown)
	<-h.done
}

// ServeWS upgrades an HTTP request and admits the connection to the hub.
// The client receives the init payload before any other traffic.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBufferSize),
		id:   uuid.NewString(),
	}
	client.lastPong.Store(time.Now().UnixNano())

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

// Broadcast serializes the payload once and fans it out to every live
// connection. Per-recipient failures never surface to the caller.
func (h *Hub) Broadcast(payload interface{}) {
	data, ok := encode(payload)
	if !ok {
		return
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	}
}

// registerClient admits a connection and pushes the init payload so the
// client can render before it explicitly joins.
func (h *Hub) registerClient(c *Client) {
	h.clients[c] = true
	log.Printf("connection %s open (total: %d)", c.id, len(h.clients))

	if data, ok := encode(initPayload{
		Type:           "init",
		MessageHistory: h.messages.Tail(historyOnJoin),
		Users:          h.registry.Snapshot(),
		Traffic:        h.bridge.Current(),
	}); ok {
		h.sendTo(c, data)
	}
}

// unregisterClient removes a connection and, if it still owned a bound
// identity, announces the departure. Calling it for an already-removed
// client is a no-op, which absorbs disconnect races.
func (h *Hub) unregisterClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	log.Printf("connection %s closed (remaining: %d)", c.id, len(h.clients))

	userID, _ := c.identity()
	if userID == "" {
		return
	}

	user, removed := h.registry.Unbind(userID, c.id)
	if !removed {
		// A newer connection took over this identity; nothing to announce.
		return
	}

	if data, ok := encode(userLeftPayload{
		Type:     "userLeft",
		UserID:   user.ID,
		UserName: user.Name,
		Users:    h.registry.Snapshot(),
	}); ok {
		h.broadcastData(data)
	}
}

// broadcastData attempts delivery to every connection live right now. A
// recipient whose buffer is full is dropped and logged without aborting
// the rest of the batch.
func (h *Hub) broadcastData(data []byte) {
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Printf("connection %s send buffer full, dropping client", client.id)
			h.unregisterClient(client)
		}
	}
}

// sendTo delivers a payload to a single connection if it is still
// registered.
func (h *Hub) sendTo(c *Client, data []byte) {
	if !h.clients[c] {
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("connection %s send buffer full, dropping client", c.id)
		h.unregisterClient(c)
	}
}

// sweepDead terminates connections that missed a full sweep interval
// without a pong, and reissues the probe to everyone else.
func (h *Hub) sweepDead() {
	deadline := time.Now().Add(-sweepInterval).UnixNano()

	for client := range h.clients {
		if client.lastPong.Load() < deadline {
			log.Printf("connection %s failed liveness check, terminating", client.id)
			client.conn.Close()
			h.unregisterClient(client)
			continue
		}

		// WriteControl is safe to call concurrently with the write pump.
		if err := client.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
			log.Printf("connection %s ping failed: %v", client.id, err)
			client.conn.Close()
			h.unregisterClient(client)
		}
	}
}

// closeAll tears down every connection during shutdown.
func (h *Hub) closeAll() {
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		client.conn.Close()
	}
}
