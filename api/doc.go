// Package api provides the HTTP REST surface of the traffic dashboard sync
// server.
//
// The api package implements:
//   - Read-only queries over the shared message log, presence roster, and
//     traffic snapshot
//   - Density overrides per road direction
//   - The heuristic traffic assistant endpoint
//   - WebSocket upgrade handling
//   - CORS handling for the browser dashboard
//
// Endpoints:
//
// Queries:
//   - GET /api/messages - Last 100 messages plus total retained count
//   - GET /api/users - Connected user roster
//   - GET /api/locations - Users that have reported a location
//   - GET /api/traffic - Cached traffic snapshot
//   - GET /api/health - Liveness probe
//
// Mutations:
//   - POST /api/density/{direction} - Override density, body {"density": n}
//   - POST /api/assistant - Free-form traffic query, body {"prompt": "..."}
//
// Realtime:
//   - GET /ws - WebSocket upgrade into the broadcast hub
//
// All endpoints accept and return JSON. Mutating endpoints respond with
// {"success": true, ...} or {"success": false, "message": "..."}; the REST
// surface never mutates presence or chat state, those flow exclusively
// through the WebSocket protocol.
//
// Usage:
//
//	server := api.NewServer(messages, registry, bridge, hub)
//	http.ListenAndServe(":8080", server)
package api
