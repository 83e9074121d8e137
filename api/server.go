package api

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/trafficdeck/syncserver/assistant"
	"github.com/trafficdeck/syncserver/history"
	"github.com/trafficdeck/syncserver/presence"
	"github.com/trafficdeck/syncserver/traffic"
	"github.com/trafficdeck/syncserver/transport/websocket"
)

// historyPullLimit is the number of messages served by GET /api/messages.
const historyPullLimit = 100

// Server represents the REST API server
type Server struct {
	messages *history.Log
	registry *presence.Registry
	bridge   *traffic.Bridge
	hub      *websocket.Hub
	router   *mux.Router
	handler  http.Handler
	started  time.Time
}

// NewServer creates a new API server over the shared services.
func NewServer(messages *history.Log, registry *presence.Registry, bridge *traffic.Bridge, hub *websocket.Hub) *Server {
	s := &Server{
		messages: messages,
		registry: registry,
		bridge:   bridge,
		hub:      hub,
		router:   mux.NewRouter(),
		started:  time.Now(),
	}

	s.setupRoutes()
	s.handler = corsMiddleware(s.router)
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/messages", s.handleGetMessages).Methods("GET")
	api.HandleFunc("/users", s.handleGetUsers).Methods("GET")
	api.HandleFunc("/locations", s.handleGetLocations).Methods("GET")
	api.HandleFunc("/traffic", s.handleGetTraffic).Methods("GET")
	api.HandleFunc("/density/{direction}", s.handleSetDensity).Methods("POST")
	api.HandleFunc("/assistant", s.handleAssistant).Methods("POST")
	api.HandleFunc("/health", s.handleHealth).Methods("GET")

	// WebSocket
	s.router.HandleFunc("/ws", s.hub.ServeWS)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// corsMiddleware answers preflight requests and stamps CORS headers on every
// response. It wraps the whole router so method-mismatch responses carry the
// headers too; the dashboard is served from a different origin.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{
		"success": false,
		"message": message,
	})
}

func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"messages": s.messages.Tail(historyPullLimit),
		"count":    s.messages.Len(),
	})
}

func (s *Server) handleGetUsers(w http.ResponseWriter, r *http.Request) {
	users := s.registry.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"users":   users,
		"count":   len(users),
	})
}

func (s *Server) handleGetLocations(w http.ResponseWriter, r *http.Request) {
	locations := s.registry.Locations()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"locations": locations,
		"count":     len(locations),
	})
}

// handleGetTraffic returns the bare snapshot, not the success envelope;
// the dashboard consumes it directly.
func (s *Server) handleGetTraffic(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.bridge.Current())
}

func (s *Server) handleSetDensity(w http.ResponseWriter, r *http.Request) {
	direction := mux.Vars(r)["direction"]

	var req struct {
		Density float64 `json:"density"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !s.bridge.SetDensity(direction, req.Density) {
		respondError(w, http.StatusBadRequest, "Invalid direction")
		return
	}

	log.Printf("density override: %s = %.1f", direction, req.Density)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"direction": direction,
		"density":   req.Density,
		"traffic":   s.bridge.Current(),
	})
}

// handleAssistant isolates assistant faults: a panic inside the heuristic
// becomes a 500 on this request, never a process crash or a dropped
// websocket connection.
func (s *Server) handleAssistant(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("assistant fault: %v", rec)
			respondError(w, http.StatusInternalServerError, "Assistant unavailable")
		}
	}()

	var req struct {
		Prompt string `json:"prompt"`
	}
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&req)
	}

	resp := assistant.Respond(req.Prompt, s.bridge.Current())
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"users":    s.registry.Count(),
		"messages": s.messages.Len(),
	})
}
