// Package service defines the collaborator ports used by the Connect Four
// server and the read-only GameService behind the HTTP API and MCP tools.
//
// The service package implements:
//   - Authentication, friends, stats and result-recording ports
//   - Lobby events published to subscribers
//   - Server status, match listings and player statistics for observers
//
// Core Interfaces:
//
// Authenticator registers and verifies players. FriendStore and StatsStore
// back the lobby commands. ResultSink receives one result per player for
// every completed game. Store bundles the four for implementations in the
// store package.
//
// GameService is the observer-facing facade. It reads from a Lobby (the
// session registry), a MatchLister (the match manager), a StatsStore and a
// history archive, and never mutates game state.
//
// Usage:
//
//	svc := service.NewGameService(registry, matches, store, archive)
//	status, err := svc.Status(ctx)
//	stats, err := svc.PlayerStats(ctx, "alice")
package service
