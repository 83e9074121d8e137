package websocket

import (
	"encoding/json"
	"log"

	"github.com/trafficdeck/syncserver/history"
	"github.com/trafficdeck/syncserver/presence"
)

// handleFrame interprets one inbound frame and drives the shared state.
// Malformed and unknown frames are logged and dropped; the connection
// stays open either way. Every broadcast below is issued only after the
// corresponding state mutation has committed.
func (c *Client) handleFrame(data []byte) {
	var frame inboundFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		log.Printf("connection %s sent unparseable frame: %v", c.id, err)
		return
	}

	switch frame.Type {
	case frameConnect:
		c.handleConnect(frame)
	case frameChat:
		c.handleChat(frame)
	case frameEmergency:
		c.handleEmergency()
	case frameLocation:
		c.handleLocation(frame)
	case frameTyping:
		c.handleTyping(frame)
	default:
		log.Printf("connection %s sent unknown frame type %q", c.id, frame.Type)
	}
}

// requireBound enforces the bound-identity precondition shared by every
// frame except connect. Unbound senders get a private error reply and no
// broadcast.
func (c *Client) requireBound(kind string) bool {
	if userID, _ := c.identity(); userID != "" {
		return true
	}
	log.Printf("connection %s sent %s frame before connect", c.id, kind)
	c.reply(errorPayload{Type: "error", Message: "Not connected. Please reconnect."})
	return false
}

// handleConnect binds an identity to this connection. A connect frame on
// an already-bound connection rebinds, replacing the prior mapping.
func (c *Client) handleConnect(frame inboundFrame) {
	user := c.hub.registry.Bind(frame.UserID, frame.UserName, c.id)
	c.setIdentity(user.ID, user.Name)

	log.Printf("user %s (%s) joined on connection %s", user.Name, user.ID, c.id)

	c.reply(connectedPayload{
		Type:           "connected",
		UserID:         user.ID,
		MessageHistory: c.hub.messages.Tail(historyOnJoin),
		Users:          c.hub.registry.Snapshot(),
	})

	c.hub.Broadcast(userJoinedPayload{
		Type:     "userJoined",
		UserID:   user.ID,
		UserName: user.Name,
		Users:    c.hub.registry.Snapshot(),
	})
}

func (c *Client) handleChat(frame inboundFrame) {
	if !c.requireBound(frameChat) {
		return
	}

	userID, userName := c.identity()
	msg := c.hub.messages.Append(history.KindChat, userID, userName, frame.Content)

	c.hub.Broadcast(chatMessagePayload{
		Type:    "chatMessage",
		Message: msg,
	})
}

// handleEmergency records the alert and refreshes the traffic snapshot so
// every client receives the state the alert was raised against.
func (c *Client) handleEmergency() {
	if !c.requireBound(frameEmergency) {
		return
	}

	userID, userName := c.identity()
	msg := c.hub.messages.Append(history.KindEmergency, userID, userName, emergencyContent)
	snapshot := c.hub.bridge.Refresh()

	log.Printf("emergency alert from %s", userName)

	c.hub.Broadcast(emergencyPayload{
		Type:    "emergency",
		Message: msg,
		Traffic: snapshot,
	})
}

func (c *Client) handleLocation(frame inboundFrame) {
	if !c.requireBound(frameLocation) {
		return
	}

	userID, _ := c.identity()
	user, ok := c.hub.registry.UpdateLocation(userID, presence.Location{
		Latitude:  frame.Latitude,
		Longitude: frame.Longitude,
		Accuracy:  frame.Accuracy,
		AreaName:  frame.AreaName,
	})
	if !ok {
		return
	}

	c.hub.Broadcast(locationUpdatePayload{
		Type:     "locationUpdate",
		UserID:   user.ID,
		UserName: user.Name,
		Location: user.Location,
	})
}

func (c *Client) handleTyping(frame inboundFrame) {
	if !c.requireBound(frameTyping) {
		return
	}

	userID, userName := c.identity()
	c.hub.Broadcast(userTypingPayload{
		Type:     "userTyping",
		UserID:   userID,
		UserName: userName,
		IsTyping: frame.IsTyping,
	})
}
