package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/trafficdeck/syncserver/assistant"
	"github.com/trafficdeck/syncserver/history"
	"github.com/trafficdeck/syncserver/presence"
	"github.com/trafficdeck/syncserver/traffic"
)

// Client is a thin MCP client that proxies to the REST API
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// initMCPServer initializes the MCP server with all tools
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"Traffic Sync Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Traffic Dashboard Sync Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The server tracks a four-direction road intersection: per-direction vehicle
density, two vehicle platoons per direction, and the chat/emergency feed of
the operators watching the dashboard.

AVAILABLE TOOLS:
- traffic_status: Current per-direction traffic snapshot
- recent_messages: Recent chat and emergency messages
- connected_users: Who is watching the dashboard right now
- user_locations: Last reported locations of connected users
- set_density: Override vehicle density for one direction
- traffic_assistant: Ask the heuristic assistant about current conditions`),
	)

	// Register all tools
	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "traffic_status",
		Description: "Get the current traffic snapshot for all directions",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleTrafficStatus)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "recent_messages",
		Description: "Get recent chat and emergency messages",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleRecentMessages)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "connected_users",
		Description: "List the users currently connected to the dashboard",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleConnectedUsers)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "user_locations",
		Description: "List the last reported locations of connected users",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleUserLocations)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "set_density",
		Description: "Override the vehicle density for one road direction",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"direction": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"north", "south", "east", "west"},
					"description": "Road direction to override",
				},
				"density": map[string]interface{}{
					"type":        "number",
					"description": "New density in vehicles per km",
				},
			},
			Required: []string{"direction", "density"},
		},
	}, c.handleSetDensity)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "traffic_assistant",
		Description: "Ask the traffic assistant about current conditions",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"prompt": map[string]interface{}{
					"type":        "string",
					"description": "Free-form question about traffic",
				},
			},
			Required: []string{"prompt"},
		},
	}, c.handleTrafficAssistant)
}

// GetMCPServer returns the underlying MCP server for HTTP or stdio serving.
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// Helper methods for API calls

func (c *Client) apiCall(method, path string, body interface{}, result interface{}) error {
	url := c.baseURL + path

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		if msg, ok := errResp["message"].(string); ok && msg != "" {
			return fmt.Errorf("%s", msg)
		}
		return fmt.Errorf("API error: %d", resp.StatusCode)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

// Tool handlers

func (c *Client) handleTrafficStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	// /api/traffic serves the bare snapshot without an envelope.
	var snapshot traffic.Snapshot
	err := c.apiCall("GET", "/api/traffic", nil, &snapshot)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatTraffic(snapshot)), nil
}

func (c *Client) handleRecentMessages(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Messages []history.Message `json:"messages"`
		Count    int               `json:"count"`
	}
	err := c.apiCall("GET", "/api/messages", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(response.Messages) == 0 {
		return mcp.NewToolResultText("No messages yet."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Messages (%d total retained):\n", response.Count)
	for _, msg := range response.Messages {
		marker := ""
		if msg.Kind == history.KindEmergency {
			marker = "[EMERGENCY] "
		}
		fmt.Fprintf(&sb, "%s %s%s: %s\n",
			msg.Timestamp.Format("15:04:05"), marker, msg.UserName, msg.Content)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleConnectedUsers(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Users []presence.RosterEntry `json:"users"`
		Count int                    `json:"count"`
	}
	err := c.apiCall("GET", "/api/users", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No users connected."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Connected users (%d):\n", response.Count)
	for _, user := range response.Users {
		fmt.Fprintf(&sb, "- %s (joined %s)\n", user.UserName, user.ConnectedAt.Format("15:04:05"))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleUserLocations(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var response struct {
		Locations []presence.UserLocation `json:"locations"`
		Count     int                     `json:"count"`
	}
	err := c.apiCall("GET", "/api/locations", nil, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if response.Count == 0 {
		return mcp.NewToolResultText("No locations reported."), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User locations (%d):\n", response.Count)
	for _, entry := range response.Locations {
		line := fmt.Sprintf("- %s: %.4f, %.4f", entry.UserName, entry.Location.Latitude, entry.Location.Longitude)
		if entry.Location.AreaName != "" {
			line += " (" + entry.Location.AreaName + ")"
		}
		sb.WriteString(line + "\n")
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleSetDensity(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	direction, _ := args["direction"].(string)
	density, _ := args["density"].(float64)

	body := map[string]float64{"density": density}

	var response struct {
		Traffic traffic.Snapshot `json:"traffic"`
	}
	err := c.apiCall("POST", fmt.Sprintf("/api/density/%s", direction), body, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result := fmt.Sprintf("Density for %s set to %.1f veh/km.\n\n%s",
		direction, density, formatTraffic(response.Traffic))
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleTrafficAssistant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.Params.Arguments.(map[string]interface{})
	prompt, _ := args["prompt"].(string)

	var response assistant.Response
	err := c.apiCall("POST", "/api/assistant", map[string]string{"prompt": prompt}, &response)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(response.Reply), nil
}

// formatTraffic renders a snapshot as a per-direction text block.
func formatTraffic(snap traffic.Snapshot) string {
	dirs := make([]string, 0, len(snap))
	for dir := range snap {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var sb strings.Builder
	sb.WriteString("Traffic status:\n")
	for _, dir := range dirs {
		info := snap[dir]
		fmt.Fprintf(&sb, "- %s: density %.1f veh/km, %d vehicles (%d + %d)\n",
			dir, info.Density, info.Volumes.Total, info.Volumes.FirstGroup, info.Volumes.SecondGroup)
		fmt.Fprintf(&sb, "    first group: %.1f km/h, %.0fs to intersection\n",
			info.FirstGroup.CurrentSpeed, info.FirstGroup.EstimatedTimeToReach)
		fmt.Fprintf(&sb, "    second group: %.1f km/h, %.0fs to intersection\n",
			info.SecondGroup.CurrentSpeed, info.SecondGroup.EstimatedTimeToReach)
	}
	return sb.String()
}
