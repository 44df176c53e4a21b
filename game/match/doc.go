// Package match runs a Connect Four match between two paired players.
//
// A Match owns one board and two players for its whole lifetime. Its Run
// method is the only goroutine that touches the board: it consumes both
// players' inbound lines through a single select, so chat from either side
// is relayed while the current player thinks, and a move is accepted only
// from the player to move.
//
// Lifecycle:
//
//	Starting -> PlayerTurn(A) <-> PlayerTurn(B) -> GameOver -> ReplayVote
//	ReplayVote -> PlayerTurn(A)   both players answered yes; fresh board
//	ReplayVote -> Terminated      any other answer, LEAVE or disconnect
//
// A disconnect or LEAVE during a game ends the match at once: the other
// player is awarded the win and no replay vote is held.
//
// Every completed game is reported to the ResultSink (one result per
// player), archived and published as a game_over event. When Run returns
// both players have been released back to their lobby loops exactly once.
//
// Manager tracks the matches in progress and exposes read-only snapshots
// for the HTTP API.
package match
