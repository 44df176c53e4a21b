package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/wricardo/connectfour/game/service"
)

const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite3"
	DriverMySQL    = "mysql"
	DriverPostgres = "postgres"

	MaxUsernameLength = 32
)

// HashCost is the bcrypt cost used for new passwords
var HashCost = bcrypt.DefaultCost

var ErrUnknownDriver = errors.New("unknown store driver")

// Drivers lists every accepted driver name
func Drivers() []string {
	return []string{DriverMemory, DriverFile, DriverSQLite, DriverMySQL, DriverPostgres}
}

// Open creates the store selected by driver. dataDir is used by the file
// store and as the default location of the sqlite database.
func Open(ctx context.Context, driver, dsn, dataDir string) (service.Store, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverFile, "":
		return NewFileStore(dataDir)
	case DriverSQLite, DriverMySQL, DriverPostgres:
		return NewSQLStore(ctx, driver, dsn, dataDir)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// ValidateUsername rejects names that would break the line protocol
func ValidateUsername(username string) error {
	if username == "" || len(username) > MaxUsernameLength {
		return fmt.Errorf("%w: must be 1-%d characters", service.ErrInvalidUsername, MaxUsernameLength)
	}
	for _, r := range username {
		if unicode.IsSpace(r) || !unicode.IsPrint(r) || strings.ContainsRune(":;,", r) {
			return fmt.Errorf("%w: %q contains a reserved character", service.ErrInvalidUsername, username)
		}
	}
	return nil
}

func hashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("%w: empty password", service.ErrInvalidCredentials)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), HashCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

func checkPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return service.ErrInvalidCredentials
	}
	return nil
}
