// Package websocket provides the realtime transport for the traffic
// dashboard sync server.
//
// The websocket package implements:
//   - Real-time bidirectional communication
//   - Identity binding via the connect frame
//   - Chat, emergency, location, and typing event fan-out
//   - Connection lifecycle management and liveness probing
//   - Message routing and handling
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub manages all
// WebSocket connections. Each connection is served by a read pump and a
// write pump goroutine; all shared state transitions flow through the
// hub's single event loop.
//
// Message Protocol:
//
// Frames are JSON-encoded with a type field selecting the handler:
//   - Incoming: {type: "chat", content: "heavy traffic on north"}
//   - Outgoing: typed payloads such as init, connected, chatMessage,
//     emergency, locationUpdate, userTyping, userJoined, userLeft
//
// Connection Lifecycle:
//
// 1. Client connects and immediately receives the init payload
// 2. Client sends a connect frame to bind a user identity
// 3. Bound clients exchange chat, emergency, location, and typing events
// 4. A liveness sweep pings every connection and terminates silent ones
// 5. Disconnection unbinds the identity and announces the departure
//
// Concurrency:
//
// Only the hub's Run loop touches the connection set, so broadcasts
// iterate a stable set and private replies cannot race teardown. A slow
// recipient is dropped rather than allowed to stall the broadcaster.
package websocket
