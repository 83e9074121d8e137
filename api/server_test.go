package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	gorilla "github.com/gorilla/websocket"

	"github.com/trafficdeck/syncserver/history"
	"github.com/trafficdeck/syncserver/presence"
	"github.com/trafficdeck/syncserver/traffic"
	"github.com/trafficdeck/syncserver/transport/websocket"
)

type testEnv struct {
	server   *Server
	messages *history.Log
	registry *presence.Registry
	bridge   *traffic.Bridge
}

func newTestEnv() *testEnv {
	messages := history.NewLog(history.DefaultCapacity)
	registry := presence.NewRegistry()
	bridge := traffic.NewBridge(traffic.NewSimulator())
	hub := websocket.NewHub(registry, messages, bridge)

	return &testEnv{
		server:   NewServer(messages, registry, bridge, hub),
		messages: messages,
		registry: registry,
		bridge:   bridge,
	}
}

func doRequest(t *testing.T, server *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("Failed to marshal request body: %v", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	server.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("Failed to unmarshal response body: %v\n%s", err, rec.Body.String())
	}
	return out
}

func TestGetMessages(t *testing.T) {
	env := newTestEnv()
	env.messages.Append(history.KindChat, "user_1", "Alice", "first")
	env.messages.Append(history.KindChat, "user_1", "Alice", "second")

	rec := doRequest(t, env.server, "GET", "/api/messages", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["success"] != true {
		t.Error("Expected success true")
	}
	if body["count"] != float64(2) {
		t.Errorf("Expected count 2, got %v", body["count"])
	}
	messages := body["messages"].([]interface{})
	if len(messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(messages))
	}
	first := messages[0].(map[string]interface{})
	if first["content"] != "first" {
		t.Errorf("Messages out of order: %v", first)
	}
}

func TestGetMessagesPullLimit(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < historyPullLimit+20; i++ {
		env.messages.Append(history.KindChat, "user_1", "Alice", fmt.Sprintf("message %d", i))
	}

	rec := doRequest(t, env.server, "GET", "/api/messages", nil)
	body := decodeBody(t, rec)

	messages := body["messages"].([]interface{})
	if len(messages) != historyPullLimit {
		t.Errorf("Expected %d messages, got %d", historyPullLimit, len(messages))
	}
	if body["count"] != float64(historyPullLimit+20) {
		t.Errorf("Count should report total retained, got %v", body["count"])
	}
}

func TestGetUsers(t *testing.T) {
	env := newTestEnv()
	env.registry.Bind("user_1", "Alice", "conn-1")
	env.registry.Bind("user_2", "Bob", "conn-2")

	rec := doRequest(t, env.server, "GET", "/api/users", nil)
	body := decodeBody(t, rec)

	if body["count"] != float64(2) {
		t.Errorf("Expected count 2, got %v", body["count"])
	}
	users := body["users"].([]interface{})
	firstUser := users[0].(map[string]interface{})
	if firstUser["userName"] != "Alice" {
		t.Errorf("Expected Alice first (insertion order), got %v", firstUser)
	}
}

func TestGetLocations(t *testing.T) {
	env := newTestEnv()
	env.registry.Bind("user_1", "Alice", "conn-1")
	env.registry.Bind("user_2", "Bob", "conn-2")
	env.registry.UpdateLocation("user_2", presence.Location{Latitude: 37.77, Longitude: -122.41})

	rec := doRequest(t, env.server, "GET", "/api/locations", nil)
	body := decodeBody(t, rec)

	if body["count"] != float64(1) {
		t.Errorf("Only users with a location should be listed, got count %v", body["count"])
	}
	locations := body["locations"].([]interface{})
	entry := locations[0].(map[string]interface{})
	if entry["userName"] != "Bob" {
		t.Errorf("Expected Bob, got %v", entry)
	}
}

func TestGetTraffic(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.server, "GET", "/api/traffic", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	// The snapshot is the whole body, no envelope around it.
	var snapshot traffic.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snapshot); err != nil {
		t.Fatalf("Failed to unmarshal snapshot: %v\n%s", err, rec.Body.String())
	}

	if len(snapshot) != 4 {
		t.Errorf("Expected 4 directions, got %d", len(snapshot))
	}
	for _, dir := range traffic.Directions {
		status, ok := snapshot[dir]
		if !ok {
			t.Errorf("Missing direction %s", dir)
			continue
		}
		if status.MaxSpeed <= 0 {
			t.Errorf("%s: max speed should be positive", dir)
		}
	}
}

func TestSetDensity(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.server, "POST", "/api/density/north", map[string]float64{"density": 55})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeBody(t, rec)
	if body["success"] != true || body["direction"] != "north" || body["density"] != float64(55) {
		t.Errorf("Unexpected response: %v", body)
	}

	if env.bridge.Current()["north"].Density != 55 {
		t.Error("Override should be visible in the cached snapshot")
	}
}

func TestSetDensityInvalidDirection(t *testing.T) {
	env := newTestEnv()
	before := env.bridge.Current()

	rec := doRequest(t, env.server, "POST", "/api/density/diagonal", map[string]float64{"density": 55})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["success"] != false || body["message"] != "Invalid direction" {
		t.Errorf("Unexpected response: %v", body)
	}

	after := env.bridge.Current()
	for _, dir := range traffic.Directions {
		if before[dir].Density != after[dir].Density {
			t.Errorf("Rejected override must not mutate state (%s changed)", dir)
		}
	}
}

func TestSetDensityBadBody(t *testing.T) {
	env := newTestEnv()

	req := httptest.NewRequest("POST", "/api/density/north", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	env.server.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}

func TestAssistant(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.server, "POST", "/api/assistant", map[string]string{"prompt": "any congestion?"})
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	reply := body["reply"].(string)
	if !strings.HasPrefix(reply, "Congestion Alert:") {
		t.Errorf("Congestion prompt should trigger the alert preamble:\n%s", reply)
	}
	if _, ok := body["traffic"]; !ok {
		t.Error("Response should carry the traffic snapshot")
	}
}

func TestAssistantFaultIsolated(t *testing.T) {
	env := newTestEnv()
	// A nil bridge makes the handler panic; the recover path must turn that
	// into a 500 instead of crashing the server.
	env.server.bridge = nil

	rec := doRequest(t, env.server, "POST", "/api/assistant", map[string]string{"prompt": "hi"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["success"] != false {
		t.Errorf("Fault response should carry success false, got %v", body)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.server, "GET", "/api/health", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	body := decodeBody(t, rec)
	if body["status"] != "ok" {
		t.Errorf("Expected status ok, got %v", body["status"])
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.server, "OPTIONS", "/api/messages", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204 for preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Preflight response missing CORS origin header")
	}
}

func TestCORSOnMethodMismatch(t *testing.T) {
	env := newTestEnv()

	rec := doRequest(t, env.server, "GET", "/api/assistant", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("Expected 405, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Error("Method-mismatch response should still carry CORS headers")
	}
}

func TestWebSocketRouteUpgrades(t *testing.T) {
	messages := history.NewLog(history.DefaultCapacity)
	registry := presence.NewRegistry()
	bridge := traffic.NewBridge(traffic.NewSimulator())
	hub := websocket.NewHub(registry, messages, bridge)
	go hub.Run()
	defer hub.Shutdown()

	server := httptest.NewServer(NewServer(messages, registry, bridge, hub))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := gorilla.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to upgrade at /ws: %v", err)
	}
	conn.Close()
}
