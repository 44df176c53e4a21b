package board

import "errors"

// Cell represents the state of a single grid position
type Cell int

const (
	Empty Cell = iota
	PlayerA
	PlayerB
)

const (
	Rows     = 6
	Cols     = 7
	ConnectN = 4

	// Invalid is returned by Drop when a move cannot be played.
	Invalid = -1
)

var (
	ErrMalformed     = errors.New("malformed board encoding")
	ErrFloatingToken = errors.New("token above an empty cell")
)

// Opponent returns the other player. Empty maps to Empty.
func (c Cell) Opponent() Cell {
	switch c {
	case PlayerA:
		return PlayerB
	case PlayerB:
		return PlayerA
	default:
		return Empty
	}
}

// Valid reports whether c identifies a player
func (c Cell) Valid() bool {
	return c == PlayerA || c == PlayerB
}

// String returns the player label used in status messages
func (c Cell) String() string {
	switch c {
	case PlayerA:
		return "Player 1"
	case PlayerB:
		return "Player 2"
	default:
		return "Empty"
	}
}

// direction is a step across the grid used for window scanning
type direction struct {
	dRow, dCol int
}

// scanDirections covers horizontal, vertical, diagonal down-right and
// diagonal up-right windows.
var scanDirections = []direction{
	{0, 1},
	{1, 0},
	{1, 1},
	{-1, 1},
}
