// Package history archives completed Connect Four games.
//
// Every game that ends in a win, a draw or an abandonment produces one
// Record: the players, the sequence of columns played, the final board and
// timing. Records are written by the match goroutine and read by the HTTP
// API and MCP tools.
//
// Implementations:
//
//   - MemoryArchive keeps the most recent records in a bounded ring
//   - MongoArchive stores records in a MongoDB collection
//
// Usage:
//
//	archive := history.NewMemoryArchive(500)
//	defer archive.Close(ctx)
//
//	err := archive.Save(ctx, history.Record{MatchID: id, PlayerA: "alice", ...})
//	recent, err := archive.Recent(ctx, 20)
package history
