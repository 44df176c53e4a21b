package service

import (
	"context"
	"fmt"
	"time"

	"github.com/wricardo/connectfour/game/history"
)

// gameServiceImpl implements the GameService interface
type gameServiceImpl struct {
	lobby   Lobby
	matches MatchLister
	store   Store
	archive history.Archive
	started time.Time
}

// NewGameService creates a new game service instance
func NewGameService(lobby Lobby, matches MatchLister, store Store, archive history.Archive) GameService {
	return &gameServiceImpl{
		lobby:   lobby,
		matches: matches,
		store:   store,
		archive: archive,
		started: time.Now(),
	}
}

// Status summarizes the server
func (s *gameServiceImpl) Status(ctx context.Context) (*ServerStatus, error) {
	return &ServerStatus{
		Status:        "ok",
		Online:        len(s.lobby.Online()),
		Queued:        len(s.lobby.Queued()),
		ActiveMatches: len(s.matches.Active()),
		Uptime:        time.Since(s.started).Truncate(time.Second).String(),
	}, nil
}

// OnlinePlayers lists authenticated usernames
func (s *gameServiceImpl) OnlinePlayers(ctx context.Context) ([]string, error) {
	return s.lobby.Online(), nil
}

// Queue lists waiting usernames in pairing order
func (s *gameServiceImpl) Queue(ctx context.Context) ([]string, error) {
	return s.lobby.Queued(), nil
}

// ActiveMatches lists matches in progress
func (s *gameServiceImpl) ActiveMatches(ctx context.Context) ([]MatchInfo, error) {
	return s.matches.Active(), nil
}

// PlayerStats returns a player's lifetime record
func (s *gameServiceImpl) PlayerStats(ctx context.Context, username string) (*PlayerStats, error) {
	exists, err := s.store.Exists(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", username, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownUser, username)
	}

	stats, err := s.store.Stats(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("failed to load stats for %s: %w", username, err)
	}

	return &PlayerStats{
		Username: username,
		Online:   s.lobby.IsOnline(username),
		Stats:    stats,
		Games:    stats.Games(),
	}, nil
}

// RecentGames returns archived games, optionally filtered by player
func (s *gameServiceImpl) RecentGames(ctx context.Context, username string, limit int) ([]history.Record, error) {
	var (
		records []history.Record
		err     error
	)
	if username != "" {
		records, err = s.archive.ByPlayer(ctx, username, limit)
	} else {
		records, err = s.archive.Recent(ctx, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	return records, nil
}
