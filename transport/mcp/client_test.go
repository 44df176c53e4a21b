package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/service"
)

func TestNewClient(t *testing.T) {
	baseURL := "http://localhost:8080/"
	client := NewClient(baseURL)

	if client == nil {
		t.Fatal("Expected client to be created")
	}

	if client.baseURL != "http://localhost:8080" {
		t.Errorf("Expected trailing slash to be trimmed, got %s", client.baseURL)
	}

	if client.httpClient == nil {
		t.Error("Expected HTTP client to be initialized")
	}

	if client.GetMCPServer() == nil {
		t.Error("Expected MCP server to be initialized")
	}
}

// fakeAPI serves canned JSON per path
func fakeAPI(t *testing.T, routes map[string]interface{}) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]interface{}{"error": "not found: " + r.URL.Path, "code": 404})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func callTool(t *testing.T, handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error), args map[string]interface{}) (string, bool) {
	t.Helper()
	request := mcp.CallToolRequest{
		Params: mcp.CallToolParams{Arguments: args},
	}
	result, err := handler(context.Background(), request)
	if err != nil {
		t.Fatalf("tool returned error: %v", err)
	}
	if result == nil || len(result.Content) == 0 {
		t.Fatal("Expected result content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatal("Expected text content in result")
	}
	return text.Text, result.IsError
}

func TestClient_apiCall(t *testing.T) {
	server := fakeAPI(t, map[string]interface{}{
		"/api/health": service.ServerStatus{Status: "ok", Online: 2},
	})
	client := NewClient(server.URL)

	var status service.ServerStatus
	if err := client.apiCall(context.Background(), "GET", "/api/health", nil, &status); err != nil {
		t.Fatalf("apiCall failed: %v", err)
	}
	if status.Online != 2 {
		t.Errorf("Expected 2 online, got %d", status.Online)
	}
}

func TestClient_apiCall_Error(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")

	if err := client.apiCall(context.Background(), "GET", "/api/health", nil, nil); err == nil {
		t.Error("Expected error for unreachable server")
	}
}

func TestClient_apiCall_HTTPError(t *testing.T) {
	t.Run("plain body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("Internal Server Error"))
		}))
		defer server.Close()

		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api/health", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "API error") {
			t.Errorf("Expected 'API error', got: %v", err)
		}
	})

	t.Run("json error", func(t *testing.T) {
		server := fakeAPI(t, nil)
		err := NewClient(server.URL).apiCall(context.Background(), "GET", "/api/nope", nil, nil)
		if err == nil || !strings.Contains(err.Error(), "not found") {
			t.Errorf("Expected API error message, got: %v", err)
		}
	})
}

func TestLobbyTools(t *testing.T) {
	server := fakeAPI(t, map[string]interface{}{
		"/api/health": service.ServerStatus{Status: "ok", Online: 3, Queued: 1, ActiveMatches: 1, Uptime: "5m0s"},
		"/api/online": map[string]interface{}{"count": 2, "players": []string{"alice", "bob"}},
		"/api/queue":  map[string]interface{}{"count": 0, "players": []string{}},
	})
	client := NewClient(server.URL)

	tests := []struct {
		name    string
		handler func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error)
		want    []string
	}{
		{"server_status", client.handleServerStatus, []string{"Online: 3", "Queued: 1", "Active matches: 1", "Uptime: 5m0s"}},
		{"list_online", client.handleListOnline, []string{"Online (2): alice, bob"}},
		{"queue_status", client.handleQueueStatus, []string{"Queued: none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			text, isErr := callTool(t, tt.handler, nil)
			if isErr {
				t.Fatalf("unexpected tool error: %s", text)
			}
			for _, want := range tt.want {
				if !strings.Contains(text, want) {
					t.Errorf("Expected %q in output, got: %s", want, text)
				}
			}
		})
	}
}

func TestMatchTools(t *testing.T) {
	board := "0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,0,0,0,0;0,0,0,2,0,0,0;0,0,0,1,0,0,0"
	info := service.MatchInfo{ID: "m1", PlayerA: "alice", PlayerB: "bob", State: "playing", ToMove: "alice", Game: 1, Moves: 2, Board: board}
	server := fakeAPI(t, map[string]interface{}{
		"/api/matches":    map[string]interface{}{"count": 1, "matches": []service.MatchInfo{info}},
		"/api/matches/m1": info,
	})
	client := NewClient(server.URL)

	t.Run("list_matches", func(t *testing.T) {
		text, _ := callTool(t, client.handleListMatches, nil)
		if !strings.Contains(text, "m1: alice vs bob") {
			t.Errorf("unexpected output: %s", text)
		}
	})

	t.Run("get_match", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetMatch, map[string]interface{}{"match_id": "m1"})
		if isErr {
			t.Fatalf("unexpected tool error: %s", text)
		}
		for _, want := range []string{"Player 1 (Red): alice", "To move: alice", "|...Y...|", "|...R...|"} {
			if !strings.Contains(text, want) {
				t.Errorf("Expected %q in output, got:\n%s", want, text)
			}
		}
	})

	t.Run("get_match missing id", func(t *testing.T) {
		_, isErr := callTool(t, client.handleGetMatch, map[string]interface{}{})
		if !isErr {
			t.Error("Expected tool error without match_id")
		}
	})

	t.Run("get_match unknown", func(t *testing.T) {
		text, isErr := callTool(t, client.handleGetMatch, map[string]interface{}{"match_id": "zzz"})
		if !isErr || !strings.Contains(text, "not found") {
			t.Errorf("Expected not found error, got: %s", text)
		}
	})
}

func TestMatchHistoryTool(t *testing.T) {
	var gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(map[string]interface{}{
			"games": []history.Record{{
				MatchID: "m1", Game: 1, PlayerA: "alice", PlayerB: "bob",
				Result: history.ResultWin, Winner: "alice", Moves: []int{0, 6, 1, 6, 2, 6, 3},
				FinishedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
			}},
		})
	}))
	defer server.Close()
	client := NewClient(server.URL)

	text, _ := callTool(t, client.handleMatchHistory, map[string]interface{}{"player": "alice", "limit": float64(5)})
	if gotQuery != "limit=5&player=alice" {
		t.Errorf("unexpected query %q", gotQuery)
	}
	if !strings.Contains(text, "alice vs bob (game 1): alice won in 7 moves") {
		t.Errorf("unexpected output: %s", text)
	}
}

func TestPlayerStatsTool(t *testing.T) {
	server := fakeAPI(t, map[string]interface{}{
		"/api/players/alice/stats": service.PlayerStats{Username: "alice", Online: true, Stats: service.Stats{Wins: 3, Draws: 1}, Games: 4},
	})
	client := NewClient(server.URL)

	text, _ := callTool(t, client.handlePlayerStats, map[string]interface{}{"username": "alice"})
	for _, want := range []string{"alice (online)", "Wins: 3", "Draws: 1", "Games: 4"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in output, got: %s", want, text)
		}
	}
}

func TestProtocolReference(t *testing.T) {
	text, _ := callTool(t, NewClient("http://unused").handleProtocolReference, nil)
	for _, want := range []string{"REGISTER:<user>:<password>", "JOIN_QUEUE", "Play again? (yes/no)"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in reference", want)
		}
	}
}

func TestServeHTTP(t *testing.T) {
	client := NewClient("http://unused")

	t.Run("rejects GET", func(t *testing.T) {
		w := httptest.NewRecorder()
		client.ServeHTTP(w, httptest.NewRequest("GET", "/mcp", nil))
		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("Expected 405, got %d", w.Code)
		}
	})

	t.Run("lists tools", func(t *testing.T) {
		body := `{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`
		w := httptest.NewRecorder()
		client.ServeHTTP(w, httptest.NewRequest("POST", "/mcp", strings.NewReader(body)))
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", w.Code)
		}
		for _, tool := range []string{"server_status", "list_matches", "player_stats", "match_history"} {
			if !strings.Contains(w.Body.String(), tool) {
				t.Errorf("Expected tool %s in tools/list response", tool)
			}
		}
	})
}
