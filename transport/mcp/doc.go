// Package mcp provides the Model Context Protocol surface of the traffic
// dashboard sync server.
//
// The mcp package implements:
//   - MCP server for AI agent integration
//   - Tool definitions over the REST API
//   - Stdio and HTTP transport modes
//
// MCP Tools:
//
// The package exposes the following tools for AI agents:
//   - traffic_status: Current per-direction traffic snapshot
//   - recent_messages: Recent chat and emergency messages
//   - connected_users: Users currently connected to the dashboard
//   - user_locations: Last reported locations of connected users
//   - set_density: Override vehicle density for one direction
//   - traffic_assistant: Ask the heuristic assistant about conditions
//
// Architecture:
//
// The client is a thin proxy: every tool call becomes a REST request
// against the HTTP server, so MCP agents and dashboard users always see
// the same state, and the MCP layer carries no state of its own.
//
// Transport Modes:
//
// The server supports two transport modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: POST /mcp endpoint on the main HTTP server
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	response := client.GetMCPServer().HandleMessage(ctx, body)
package mcp
