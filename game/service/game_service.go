package service

import (
	"context"

	"github.com/wricardo/connectfour/game/history"
)

// Authenticator registers and verifies players
type Authenticator interface {
	// Register creates an account. Returns ErrUserExists if taken.
	Register(ctx context.Context, username, password string) error

	// Authenticate checks credentials. Returns ErrInvalidCredentials on mismatch.
	Authenticate(ctx context.Context, username, password string) error

	// Exists reports whether the account exists
	Exists(ctx context.Context, username string) (bool, error)
}

// FriendStore backs the friend list commands
type FriendStore interface {
	Friends(ctx context.Context, username string) ([]string, error)
	AddFriend(ctx context.Context, username, friend string) error
}

// StatsStore reads lifetime statistics
type StatsStore interface {
	Stats(ctx context.Context, username string) (Stats, error)
}

// ResultSink receives the result of every completed game, once per player
type ResultSink interface {
	RecordResult(ctx context.Context, username string, result Result) error
}

// Store is the full persistence port
type Store interface {
	Authenticator
	FriendStore
	StatsStore
	ResultSink
	Close() error
}

// EventPublisher receives lobby events. Publish must not block.
type EventPublisher interface {
	Publish(event Event)
}

// Lobby exposes who is connected and who is waiting
type Lobby interface {
	Online() []string
	IsOnline(username string) bool
	Queued() []string
}

// MatchLister exposes active matches
type MatchLister interface {
	Active() []MatchInfo
}

// GameService defines the observer-facing operations
type GameService interface {
	Status(ctx context.Context) (*ServerStatus, error)
	OnlinePlayers(ctx context.Context) ([]string, error)
	Queue(ctx context.Context) ([]string, error)
	ActiveMatches(ctx context.Context) ([]MatchInfo, error)
	PlayerStats(ctx context.Context, username string) (*PlayerStats, error)
	RecentGames(ctx context.Context, username string, limit int) ([]history.Record, error)
}
