package board

import (
	"fmt"
	"strings"
)

// Board is a Connect Four grid. Row 0 is the top row.
type Board struct {
	grid  [Rows][Cols]Cell
	moves int
}

// New creates an empty board
func New() *Board {
	return &Board{}
}

// Drop places a token for player in the lowest empty row of col and returns
// that row. It returns Invalid if the column is out of range, the column is
// full, or player is not a valid player.
func (b *Board) Drop(col int, player Cell) int {
	if !player.Valid() || !b.CanDrop(col) {
		return Invalid
	}

	for row := Rows - 1; row >= 0; row-- {
		if b.grid[row][col] == Empty {
			b.grid[row][col] = player
			b.moves++
			return row
		}
	}

	return Invalid
}

// CanDrop reports whether col is in range and its top cell is empty
func (b *Board) CanDrop(col int) bool {
	if col < 0 || col >= Cols {
		return false
	}
	return b.grid[0][col] == Empty
}

// CheckWin reports whether player owns four consecutive cells in any
// direction. Every window of ConnectN cells is visited at most once.
func (b *Board) CheckWin(player Cell) bool {
	if !player.Valid() {
		return false
	}

	for _, d := range scanDirections {
		for row := 0; row < Rows; row++ {
			for col := 0; col < Cols; col++ {
				if b.windowOwnedBy(row, col, d, player) {
					return true
				}
			}
		}
	}

	return false
}

// windowOwnedBy checks the ConnectN window starting at (row, col) along d.
// Windows that leave the grid are rejected before any cell is read.
func (b *Board) windowOwnedBy(row, col int, d direction, player Cell) bool {
	endRow := row + d.dRow*(ConnectN-1)
	endCol := col + d.dCol*(ConnectN-1)
	if endRow < 0 || endRow >= Rows || endCol < 0 || endCol >= Cols {
		return false
	}

	for i := 0; i < ConnectN; i++ {
		if b.grid[row+d.dRow*i][col+d.dCol*i] != player {
			return false
		}
	}
	return true
}

// IsFull reports whether the top row of every column is occupied
func (b *Board) IsFull() bool {
	for col := 0; col < Cols; col++ {
		if b.grid[0][col] == Empty {
			return false
		}
	}
	return true
}

// Cell returns the value at (row, col). Out of range positions are Empty.
func (b *Board) Cell(row, col int) Cell {
	if row < 0 || row >= Rows || col < 0 || col >= Cols {
		return Empty
	}
	return b.grid[row][col]
}

// Moves returns the number of tokens on the board
func (b *Board) Moves() int {
	return b.moves
}

// Equal reports whether both boards hold the same grid
func (b *Board) Equal(other *Board) bool {
	if other == nil {
		return false
	}
	return b.grid == other.grid
}

// Serialize encodes the grid as rows separated by ';' and cells separated by ','
func (b *Board) Serialize() string {
	var sb strings.Builder
	sb.Grow(Rows * Cols * 2)

	for row := 0; row < Rows; row++ {
		if row > 0 {
			sb.WriteByte(';')
		}
		for col := 0; col < Cols; col++ {
			if col > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte(byte('0' + b.grid[row][col]))
		}
	}

	return sb.String()
}

// Parse decodes a grid produced by Serialize
func Parse(s string) (*Board, error) {
	rows := strings.Split(s, ";")
	if len(rows) != Rows {
		return nil, fmt.Errorf("%w: expected %d rows, got %d", ErrMalformed, Rows, len(rows))
	}

	b := New()
	for row, line := range rows {
		cells := strings.Split(line, ",")
		if len(cells) != Cols {
			return nil, fmt.Errorf("%w: row %d has %d cells", ErrMalformed, row, len(cells))
		}

		for col, cell := range cells {
			switch cell {
			case "0":
				b.grid[row][col] = Empty
			case "1":
				b.grid[row][col] = PlayerA
				b.moves++
			case "2":
				b.grid[row][col] = PlayerB
				b.moves++
			default:
				return nil, fmt.Errorf("%w: invalid cell %q at %d,%d", ErrMalformed, cell, row, col)
			}
		}
	}

	// Gravity: nothing may sit above an empty cell.
	for col := 0; col < Cols; col++ {
		for row := 0; row < Rows-1; row++ {
			if b.grid[row][col] != Empty && b.grid[row+1][col] == Empty {
				return nil, fmt.Errorf("%w: column %d row %d", ErrFloatingToken, col, row)
			}
		}
	}

	return b, nil
}
