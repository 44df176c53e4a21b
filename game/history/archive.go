package history

import (
	"context"
	"errors"
	"time"
)

// Result values stored in Record.Result
const (
	ResultWin       = "win"
	ResultDraw      = "draw"
	ResultAbandoned = "abandoned"
)

const DefaultLimit = 20

var ErrArchiveClosed = errors.New("archive closed")

// Record describes one completed game. A match that is replayed produces
// one record per game, numbered from 1.
type Record struct {
	MatchID    string    `json:"match_id" bson:"match_id"`
	Game       int       `json:"game" bson:"game"`
	PlayerA    string    `json:"player_a" bson:"player_a"`
	PlayerB    string    `json:"player_b" bson:"player_b"`
	Result     string    `json:"result" bson:"result"`
	Winner     string    `json:"winner,omitempty" bson:"winner,omitempty"`
	Moves      []int     `json:"moves" bson:"moves"`
	Board      string    `json:"board" bson:"board"`
	StartedAt  time.Time `json:"started_at" bson:"started_at"`
	FinishedAt time.Time `json:"finished_at" bson:"finished_at"`
}

// Involves reports whether username played in the game
func (r Record) Involves(username string) bool {
	return r.PlayerA == username || r.PlayerB == username
}

// Archive stores completed games
type Archive interface {
	// Save appends a record
	Save(ctx context.Context, rec Record) error

	// Recent returns up to limit records, newest first
	Recent(ctx context.Context, limit int) ([]Record, error)

	// ByPlayer returns up to limit records involving username, newest first
	ByPlayer(ctx context.Context, username string, limit int) ([]Record, error)

	// Close releases any underlying connection
	Close(ctx context.Context) error
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
