package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/protocol"
	"github.com/wricardo/connectfour/game/service"
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
		baseURL: strings.TrimSuffix(baseURL, "/"),
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
		"Connect Four Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`Connect Four Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.
It observes the server; games themselves are played over the line protocol
(TCP or /ws/play).

AVAILABLE TOOLS:
- server_status: Counters for online players, queue and active matches
- list_online: Authenticated players
- queue_status: Players waiting for an opponent, in pairing order
- list_matches: Active matches with their boards
- get_match: One active match
- player_stats: Lifetime wins, losses and draws of a player
- match_history: Archived games, newest first
- protocol_reference: The client line protocol`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools
func (c *Client) registerTools() {
	noArgs := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}

	// Server
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "server_status",
		Description: "Get server status: online players, queued players, active matches and uptime",
		InputSchema: noArgs,
	}, c.handleServerStatus)

	// Lobby
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_online",
		Description: "List authenticated players",
		InputSchema: noArgs,
	}, c.handleListOnline)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "queue_status",
		Description: "List players waiting for an opponent, oldest first",
		InputSchema: noArgs,
	}, c.handleQueueStatus)

	// Matches
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_matches",
		Description: "List active matches",
		InputSchema: noArgs,
	}, c.handleListMatches)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "get_match",
		Description: "Get one active match with its board",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"match_id": map[string]interface{}{
					"type":        "string",
					"description": "Match ID",
				},
			},
			Required: []string{"match_id"},
		},
	}, c.handleGetMatch)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "match_history",
		Description: "List archived games, newest first",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"player": map[string]interface{}{
					"type":        "string",
					"description": "Only games involving this player (optional)",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of games (default 20)",
				},
			},
		},
	}, c.handleMatchHistory)

	// Players
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "player_stats",
		Description: "Get a player's lifetime wins, losses and draws",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"username": map[string]interface{}{
					"type":        "string",
					"description": "Player username",
				},
			},
			Required: []string{"username"},
		},
	}, c.handlePlayerStats)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "protocol_reference",
		Description: "Describe the line protocol spoken by game clients",
		InputSchema: noArgs,
	}, c.handleProtocolReference)
}

// GetMCPServer returns the underlying MCP server
func (c *Client) GetMCPServer() *server.MCPServer {
	return c.mcpServer
}

// ServeHTTP answers single JSON-RPC messages posted to the /mcp endpoint
func (c *Client) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "Failed to read request", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	response := c.mcpServer.HandleMessage(r.Context(), body)

	w.Header().Set("Content-Type", "application/json")
	responseData, err := json.Marshal(response)
	if err != nil {
		http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
		return
	}
	w.Write(responseData)
}

// Helper methods for API calls

func (c *Client) apiCall(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewBuffer(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
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
		if msg, ok := errResp["error"].(string); ok {
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

func (c *Client) handleServerStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var status service.ServerStatus
	if err := c.apiCall(ctx, "GET", "/api/health", nil, &status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatStatus(&status)), nil
}

type playerList struct {
	Count   int      `json:"count"`
	Players []string `json:"players"`
}

func (c *Client) handleListOnline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var list playerList
	if err := c.apiCall(ctx, "GET", "/api/online", nil, &list); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPlayers("Online", list.Players)), nil
}

func (c *Client) handleQueueStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var list playerList
	if err := c.apiCall(ctx, "GET", "/api/queue", nil, &list); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatPlayers("Queued", list.Players)), nil
}

func (c *Client) handleListMatches(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var resp struct {
		Matches []service.MatchInfo `json:"matches"`
	}
	if err := c.apiCall(ctx, "GET", "/api/matches", nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	if len(resp.Matches) == 0 {
		return mcp.NewToolResultText("No active matches"), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Active matches: %d\n", len(resp.Matches))
	for _, m := range resp.Matches {
		fmt.Fprintf(&sb, "- %s: %s vs %s, game %d, %s, %d moves\n", m.ID, m.PlayerA, m.PlayerB, m.Game, m.State, m.Moves)
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (c *Client) handleGetMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	matchID, _ := args["match_id"].(string)
	if matchID == "" {
		return mcp.NewToolResultError("match_id is required"), nil
	}

	var info service.MatchInfo
	if err := c.apiCall(ctx, "GET", "/api/matches/"+url.PathEscape(matchID), nil, &info); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatMatch(&info)), nil
}

func (c *Client) handleMatchHistory(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	player, _ := args["player"].(string)

	query := url.Values{}
	if player != "" {
		query.Set("player", player)
	}
	// JSON numbers arrive as float64
	if limit, ok := args["limit"].(float64); ok && limit > 0 {
		query.Set("limit", strconv.Itoa(int(limit)))
	}

	path := "/api/history"
	if len(query) > 0 {
		path += "?" + query.Encode()
	}

	var resp struct {
		Games []history.Record `json:"games"`
	}
	if err := c.apiCall(ctx, "GET", path, nil, &resp); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	return mcp.NewToolResultText(formatHistory(resp.Games)), nil
}

func (c *Client) handlePlayerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	username, _ := args["username"].(string)
	if username == "" {
		return mcp.NewToolResultError("username is required"), nil
	}

	var stats service.PlayerStats
	if err := c.apiCall(ctx, "GET", "/api/players/"+url.PathEscape(username)+"/stats", nil, &stats); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	online := "offline"
	if stats.Online {
		online = "online"
	}
	result := fmt.Sprintf("%s (%s)\nWins: %d\nLosses: %d\nDraws: %d\nGames: %d\n",
		stats.Username, online, stats.Wins, stats.Losses, stats.Draws, stats.Games)
	return mcp.NewToolResultText(result), nil
}

func (c *Client) handleProtocolReference(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(protocolReference), nil
}

var protocolReference = fmt.Sprintf(`CONNECT FOUR LINE PROTOCOL

One frame per line: TAG or TAG:payload. Tags are case-insensitive.

Authentication:
  %[1]s:<user>:<password>       -> %[2]s or %[3]s:<reason>
  %[4]s:<user>:<password>          -> %[5]s[:<token>] or ERROR:<reason>

Lobby:
  %[6]s                    -> %[7]s:<name>,on|off;...
  %[8]s                          -> %[9]s:<wins>,<losses>,<draws>
  %[10]s:<user>                        -> %[11]s:<user> or %[12]s:<reason>
  %[13]s                             -> %[14]s, then GAME_START when paired

Match:
  MOVE:<column 0-6>      play a column when YOUR_TURN was received
  CHAT:<text>            relayed to both players as CHAT:<user>: <text>
  LEAVE                  forfeit the match

Server frames during a match:
  GAME_START, YOUR_TURN, STATUS, BOARD, GAMEOVER, CHAT, END

BOARD payload: six rows top to bottom separated by ';', seven cells per
row separated by ',', 0 empty, 1 Player 1 (Red), 2 Player 2 (Yellow).

After GAMEOVER both players are asked "%[15]s". Two yes answers start a
new game with the same colors; anything else ends the match and both
players return to the lobby.
`,
	protocol.Register, protocol.RegisterSuccess, protocol.RegisterError,
	protocol.Login, protocol.LoginSuccess,
	protocol.FriendListRequest, protocol.FriendListResponse,
	protocol.StatsRequest, protocol.StatsResponse,
	protocol.FriendAdd, protocol.FriendAddSuccess, protocol.FriendAddError,
	protocol.JoinQueue, protocol.QueueJoined,
	protocol.ReplayPrompt,
)

// Formatting helpers

func formatStatus(status *service.ServerStatus) string {
	return fmt.Sprintf("Status: %s\nOnline: %d\nQueued: %d\nActive matches: %d\nUptime: %s\n",
		status.Status, status.Online, status.Queued, status.ActiveMatches, status.Uptime)
}

func formatPlayers(label string, players []string) string {
	if len(players) == 0 {
		return fmt.Sprintf("%s: none", label)
	}
	return fmt.Sprintf("%s (%d): %s", label, len(players), strings.Join(players, ", "))
}

func formatMatch(m *service.MatchInfo) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Match %s\n", m.ID)
	fmt.Fprintf(&sb, "Player 1 (Red): %s\n", m.PlayerA)
	fmt.Fprintf(&sb, "Player 2 (Yellow): %s\n", m.PlayerB)
	fmt.Fprintf(&sb, "Game: %d  State: %s  Moves: %d\n", m.Game, m.State, m.Moves)
	if m.ToMove != "" {
		fmt.Fprintf(&sb, "To move: %s\n", m.ToMove)
	}
	if m.Board != "" {
		sb.WriteString("\n")
		sb.WriteString(renderBoard(m.Board))
	}
	return sb.String()
}

// renderBoard draws a serialized board as text, R for Player 1 and Y for
// Player 2
func renderBoard(serialized string) string {
	var sb strings.Builder
	for _, row := range strings.Split(serialized, ";") {
		sb.WriteString("|")
		for _, cell := range strings.Split(row, ",") {
			switch cell {
			case "1":
				sb.WriteString("R")
			case "2":
				sb.WriteString("Y")
			default:
				sb.WriteString(".")
			}
		}
		sb.WriteString("|\n")
	}
	sb.WriteString(" 0123456\n")
	return sb.String()
}

func formatHistory(games []history.Record) string {
	if len(games) == 0 {
		return "No games recorded"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Games: %d\n", len(games))
	for _, g := range games {
		outcome := g.Result
		switch g.Result {
		case history.ResultWin:
			outcome = g.Winner + " won"
		case history.ResultAbandoned:
			outcome = "abandoned, " + g.Winner + " won"
		}
		fmt.Fprintf(&sb, "- %s  %s vs %s (game %d): %s in %d moves\n",
			g.FinishedAt.Format(time.RFC3339), g.PlayerA, g.PlayerB, g.Game, outcome, len(g.Moves))
	}
	return sb.String()
}
