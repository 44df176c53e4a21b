// Package api provides the read-only HTTP REST API of the Connect Four
// server.
//
// The api package implements:
//   - lobby endpoints (who is online, who is queued)
//   - match endpoints (active matches, archived games)
//   - player statistics, including the caller's own via a bearer token
//   - mounting of the WebSocket transports
//
// Endpoints:
//
// Server:
//   - GET /api/health - Server status and counters
//
// Lobby:
//   - GET /api/online - Authenticated players
//   - GET /api/queue - Players waiting for an opponent, in pairing order
//
// Matches:
//   - GET /api/matches - Active matches
//   - GET /api/matches/{id} - One active match
//   - GET /api/history?limit=&player= - Archived games, newest first
//
// Players:
//   - GET /api/players/{name}/stats - Lifetime wins, losses and draws
//   - GET /api/me - Same, for the holder of the Authorization: Bearer token
//
// WebSocket:
//   - /ws/events - Lobby event feed
//   - /ws/play - Line protocol over WebSocket
//
// Usage:
//
//	server := api.NewServer(gameService, hub, playHandler, issuer)
//	http.ListenAndServe(":8080", server)
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message",
//	  "code": 404
//	}
package api
