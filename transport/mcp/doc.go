// Package mcp provides the Model Context Protocol interface of the Connect
// Four server.
//
// The mcp package implements:
//   - an MCP server whose tools proxy to the REST API
//   - a single-message HTTP endpoint for remote MCP integration
//
// MCP Tools:
//   - server_status: Online, queued and active match counters
//   - list_online: Authenticated players
//   - queue_status: Players waiting for an opponent
//   - list_matches: Active matches
//   - get_match: One active match with a rendered board
//   - match_history: Archived games, optionally filtered by player
//   - player_stats: Lifetime wins, losses and draws
//   - protocol_reference: The client line protocol
//
// Transport Modes:
//   - Stdio: Direct stdio communication for local MCP clients
//   - HTTP: POST /mcp on the API server
//
// Usage:
//
//	// Stdio mode
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.GetMCPServer())
//
//	// HTTP mode
//	apiServer.Handle("/mcp", mcp.NewClient(baseURL))
package mcp
