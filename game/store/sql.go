package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/wricardo/connectfour/game/service"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		username VARCHAR(64) NOT NULL PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		wins INTEGER NOT NULL DEFAULT 0,
		losses INTEGER NOT NULL DEFAULT 0,
		draws INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS friends (
		username VARCHAR(64) NOT NULL,
		friend VARCHAR(64) NOT NULL,
		PRIMARY KEY (username, friend)
	)`,
}

// resultColumns maps results to the counter they increment
var resultColumns = map[service.Result]string{
	service.Win:  "wins",
	service.Loss: "losses",
	service.Draw: "draws",
}

// SQLStore implements service.Store on database/sql
type SQLStore struct {
	db     *sql.DB
	driver string
}

// NewSQLStore opens the database and creates the schema. An empty sqlite3
// dsn places connectfour.db under dataDir.
func NewSQLStore(ctx context.Context, driver, dsn, dataDir string) (*SQLStore, error) {
	if driver == DriverSQLite && dsn == "" {
		if dataDir == "" {
			dataDir = "userdata"
		}
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "connectfour.db")
	}
	if dsn == "" {
		return nil, fmt.Errorf("%s store requires a dsn", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if driver == DriverSQLite {
		// one connection so ":memory:" stays a single database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// rebind rewrites '?' placeholders as $1, $2... for postgres
func (s *SQLStore) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}

	var sb strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(n))
			continue
		}
		sb.WriteRune(r)
	}
	return sb.String()
}

func (s *SQLStore) Register(ctx context.Context, username, password string) error {
	if err := ValidateUsername(username); err != nil {
		return err
	}
	hash, err := hashPassword(password)
	if err != nil {
		return err
	}

	exists, err := s.Exists(ctx, username)
	if err != nil {
		return err
	}
	if exists {
		return service.ErrUserExists
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO users (username, password_hash) VALUES (?, ?)"),
		username, hash)
	if err != nil {
		// Lost a race with a concurrent registration.
		if exists, _ := s.Exists(ctx, username); exists {
			return service.ErrUserExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *SQLStore) Authenticate(ctx context.Context, username, password string) error {
	var hash string
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT password_hash FROM users WHERE username = ?"),
		username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return service.ErrInvalidCredentials
	}
	if err != nil {
		return fmt.Errorf("failed to load user: %w", err)
	}
	return checkPassword(hash, password)
}

func (s *SQLStore) Exists(ctx context.Context, username string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM users WHERE username = ?"),
		username).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up user: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) Friends(ctx context.Context, username string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		s.rebind("SELECT friend FROM friends WHERE username = ? ORDER BY friend"),
		username)
	if err != nil {
		return nil, fmt.Errorf("failed to query friends: %w", err)
	}
	defer rows.Close()

	friends := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, name)
	}
	return friends, rows.Err()
}

func (s *SQLStore) AddFriend(ctx context.Context, username, friend string) error {
	if username == friend {
		return service.ErrSelfFriend
	}

	for _, name := range []string{username, friend} {
		exists, err := s.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("%w: %s", service.ErrUnknownUser, name)
		}
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT COUNT(*) FROM friends WHERE username = ? AND friend = ?"),
		username, friend).Scan(&n)
	if err != nil {
		return fmt.Errorf("failed to query friends: %w", err)
	}
	if n > 0 {
		return service.ErrAlreadyFriends
	}

	_, err = s.db.ExecContext(ctx,
		s.rebind("INSERT INTO friends (username, friend) VALUES (?, ?)"),
		username, friend)
	if err != nil {
		return fmt.Errorf("failed to insert friend: %w", err)
	}
	return nil
}

func (s *SQLStore) Stats(ctx context.Context, username string) (service.Stats, error) {
	var stats service.Stats
	err := s.db.QueryRowContext(ctx,
		s.rebind("SELECT wins, losses, draws FROM users WHERE username = ?"),
		username).Scan(&stats.Wins, &stats.Losses, &stats.Draws)
	if errors.Is(err, sql.ErrNoRows) {
		return service.Stats{}, nil
	}
	if err != nil {
		return service.Stats{}, fmt.Errorf("failed to load stats: %w", err)
	}
	return stats, nil
}

func (s *SQLStore) RecordResult(ctx context.Context, username string, result service.Result) error {
	column, ok := resultColumns[result]
	if !ok {
		return fmt.Errorf("invalid result %q", result)
	}

	res, err := s.db.ExecContext(ctx,
		s.rebind(fmt.Sprintf("UPDATE users SET %s = %s + 1 WHERE username = ?", column, column)),
		username)
	if err != nil {
		return fmt.Errorf("failed to record result: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", service.ErrUnknownUser, username)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}
