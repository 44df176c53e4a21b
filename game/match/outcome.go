package match

import (
	"github.com/wricardo/connectfour/game/board"
	"github.com/wricardo/connectfour/game/history"
	"github.com/wricardo/connectfour/game/service"
)

// Kind classifies how a game ended
type Kind int

const (
	Win Kind = iota
	Draw
	Abandoned
	// Aborted games were cut short by server shutdown and are not reported
	Aborted
)

func (k Kind) String() string {
	switch k {
	case Win:
		return history.ResultWin
	case Draw:
		return history.ResultDraw
	case Abandoned:
		return history.ResultAbandoned
	default:
		return "aborted"
	}
}

// Outcome is the result of one game. For Win, Player is the winner; for
// Abandoned, Player is the one who left.
type Outcome struct {
	Kind   Kind
	Player board.Cell
}

// Winner returns the player credited with the win, or Empty
func (o Outcome) Winner() board.Cell {
	switch o.Kind {
	case Win:
		return o.Player
	case Abandoned:
		return o.Player.Opponent()
	default:
		return board.Empty
	}
}

// Results returns the per-player results for PlayerA and PlayerB. ok is
// false when the game is not reported.
func (o Outcome) Results() (a, b service.Result, ok bool) {
	switch o.Kind {
	case Draw:
		return service.Draw, service.Draw, true
	case Win, Abandoned:
		if o.Winner() == board.PlayerA {
			return service.Win, service.Loss, true
		}
		return service.Loss, service.Win, true
	default:
		return "", "", false
	}
}
