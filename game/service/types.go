package service

import (
	"errors"
	"time"
)

var (
	ErrUserExists         = errors.New("username already taken")
	ErrUnknownUser        = errors.New("user does not exist")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidUsername    = errors.New("invalid username")
	ErrSelfFriend         = errors.New("cannot add yourself as a friend")
	ErrAlreadyFriends     = errors.New("already friends")
)

// Result is a per-player game result
type Result string

const (
	Win  Result = "win"
	Loss Result = "loss"
	Draw Result = "draw"
)

// Valid reports whether r is one of Win, Loss or Draw
func (r Result) Valid() bool {
	return r == Win || r == Loss || r == Draw
}

// Stats holds a player's lifetime record
type Stats struct {
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
	Draws  int `json:"draws"`
}

// Apply returns s with r counted
func (s Stats) Apply(r Result) Stats {
	switch r {
	case Win:
		s.Wins++
	case Loss:
		s.Losses++
	case Draw:
		s.Draws++
	}
	return s
}

// Games returns the number of games played
func (s Stats) Games() int {
	return s.Wins + s.Losses + s.Draws
}

// Event types published to lobby subscribers
const (
	EventQueueChanged = "queue_changed"
	EventMatchStarted = "match_started"
	EventGameOver     = "game_over"
	EventMatchEnded   = "match_ended"
)

// Event is a lobby notification
type Event struct {
	Type      string    `json:"type"`
	MatchID   string    `json:"match_id,omitempty"`
	Players   []string  `json:"players,omitempty"`
	Result    string    `json:"result,omitempty"`
	Winner    string    `json:"winner,omitempty"`
	Queued    int       `json:"queued"`
	Timestamp time.Time `json:"timestamp"`
}

// MatchInfo is a snapshot of an active match
type MatchInfo struct {
	ID        string    `json:"id"`
	PlayerA   string    `json:"player_a"`
	PlayerB   string    `json:"player_b"`
	State     string    `json:"state"`
	ToMove    string    `json:"to_move,omitempty"`
	Game      int       `json:"game"`
	Moves     int       `json:"moves"`
	Board     string    `json:"board"`
	StartedAt time.Time `json:"started_at"`
}

// ServerStatus summarizes the running server
type ServerStatus struct {
	Status        string `json:"status"`
	Online        int    `json:"online"`
	Queued        int    `json:"queued"`
	ActiveMatches int    `json:"active_matches"`
	Uptime        string `json:"uptime"`
}

// PlayerStats is a player's record as reported by the API
type PlayerStats struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
	Stats
	Games int `json:"games"`
}
