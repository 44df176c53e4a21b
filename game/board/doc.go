// Package board provides the Connect Four grid used by every match.
//
// The board package implements:
//   - A 6x7 grid with gravity-fill token drops
//   - Four-in-a-row detection in all four directions
//   - Draw detection when every column is full
//   - A deterministic text encoding shared with clients
//
// Core Types:
//
// Board holds the grid and is mutated only through Drop. Cell is the value
// of a single grid position: Empty, PlayerA or PlayerB.
//
// Usage:
//
//	b := board.New()
//	row := b.Drop(3, board.PlayerA)
//	if row == board.Invalid {
//		// column full or out of range
//	}
//	if b.CheckWin(board.PlayerA) {
//		// game over
//	}
//
// Encoding:
//
// Serialize writes rows top to bottom separated by ';', with the cells of a
// row separated by ','. Empty cells are 0, PlayerA is 1 and PlayerB is 2.
// Parse is the exact inverse and rejects grids that violate gravity.
//
// Concurrency:
//
// A Board is not safe for concurrent use. Each match owns its board and is
// the only goroutine that reads or writes it.
package board
