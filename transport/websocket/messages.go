package websocket

import (
	"encoding/json"
	"log"

	"github.com/trafficdeck/syncserver/history"
	"github.com/trafficdeck/syncserver/presence"
	"github.com/trafficdeck/syncserver/traffic"
)

// Inbound frame kinds. The kind travels in the JSON body, not in the
// websocket framing.
const (
	frameConnect   = "connect"
	frameChat      = "chat"
	frameEmergency = "emergency"
	frameLocation  = "location"
	frameTyping    = "typing"
)

// emergencyContent is the fixed text attached to every emergency alert.
const emergencyContent = "EMERGENCY ALERT: Traffic stopped for emergency vehicle"

// inboundFrame is the superset of fields a client may send; Type selects
// which of them are meaningful.
type inboundFrame struct {
	Type      string  `json:"type"`
	UserID    string  `json:"userId,omitempty"`
	UserName  string  `json:"userName,omitempty"`
	Content   string  `json:"content,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Accuracy  float64 `json:"accuracy,omitempty"`
	AreaName  string  `json:"areaName,omitempty"`
	IsTyping  bool    `json:"isTyping,omitempty"`
}

// initPayload is pushed as soon as the transport opens, before any connect
// frame, so a client can render immediately.
type initPayload struct {
	Type           string                 `json:"type"`
	MessageHistory []history.Message      `json:"messageHistory"`
	Users          []presence.RosterEntry `json:"users"`
	Traffic        traffic.Snapshot       `json:"traffic"`
}

// connectedPayload is the private reply to a connect frame.
type connectedPayload struct {
	Type           string                 `json:"type"`
	UserID         string                 `json:"userId"`
	MessageHistory []history.Message      `json:"messageHistory"`
	Users          []presence.RosterEntry `json:"users"`
}

type userJoinedPayload struct {
	Type     string                 `json:"type"`
	UserID   string                 `json:"userId"`
	UserName string                 `json:"userName"`
	Users    []presence.RosterEntry `json:"users"`
}

type chatMessagePayload struct {
	Type    string          `json:"type"`
	Message history.Message `json:"message"`
}

type emergencyPayload struct {
	Type    string           `json:"type"`
	Message history.Message  `json:"message"`
	Traffic traffic.Snapshot `json:"traffic"`
}

type locationUpdatePayload struct {
	Type     string             `json:"type"`
	UserID   string             `json:"userId"`
	UserName string             `json:"userName"`
	Location *presence.Location `json:"location"`
}

type userTypingPayload struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type userLeftPayload struct {
	Type     string                 `json:"type"`
	UserID   string                 `json:"userId"`
	UserName string                 `json:"userName"`
	Users    []presence.RosterEntry `json:"users"`
}

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// encode marshals an outbound payload, logging instead of failing: a
// payload that cannot be serialized is dropped, never fatal.
func encode(v interface{}) ([]byte, bool) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("failed to marshal payload: %v", err)
		return nil, false
	}
	return data, true
}
