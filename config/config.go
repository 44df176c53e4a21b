// Package config holds the server configuration: built-in defaults, an
// optional JSON file and validation. CLI flags and C4_* environment
// variables are layered on top by main.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"slices"
	"time"

	"github.com/wricardo/connectfour/game/store"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const (
	DefaultTCPAddr    = ":12345"
	DefaultHTTPAddr   = ":8080"
	DefaultDataDir    = "userdata"
	DefaultSendBuffer = 64
	DefaultJWTTTL     = 24 * time.Hour
	DefaultMongoDB    = "connectfour"
)

// Duration is a time.Duration that reads "90s" style strings from JSON.
// Plain numbers are taken as seconds.
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch value := v.(type) {
	case float64:
		*d = Duration(time.Duration(value * float64(time.Second)))
	case string:
		parsed, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", value, err)
		}
		*d = Duration(parsed)
	default:
		return fmt.Errorf("invalid duration %s", string(data))
	}
	return nil
}

// Std returns d as a time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the complete server configuration
type Config struct {
	// Listeners
	TCPAddr  string `json:"tcp_addr"`
	HTTPAddr string `json:"http_addr"`
	MaxConns int    `json:"max_conns"`

	// Persistence
	StoreDriver string `json:"store_driver"`
	StoreDSN    string `json:"store_dsn"`
	DataDir     string `json:"data_dir"`
	MongoURI    string `json:"mongo_uri"`
	MongoDB     string `json:"mongo_db"`

	// Login tokens
	JWTSecret string   `json:"jwt_secret"`
	JWTTTL    Duration `json:"jwt_ttl"`

	// Sessions and matches
	SendBuffer    int      `json:"send_buffer"`
	ReplayTimeout Duration `json:"replay_timeout"`

	// Tunnel
	Ngrok       bool   `json:"ngrok"`
	NgrokDomain string `json:"ngrok_domain"`

	Debug bool `json:"debug"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		TCPAddr:     DefaultTCPAddr,
		HTTPAddr:    DefaultHTTPAddr,
		StoreDriver: store.DriverFile,
		DataDir:     DefaultDataDir,
		MongoDB:     DefaultMongoDB,
		JWTTTL:      Duration(DefaultJWTTTL),
		SendBuffer:  DefaultSendBuffer,
	}
}

// LoadFile overlays the JSON file at path onto the defaults. Keys absent
// from the file keep their default value.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig
func (c *Config) Validate() error {
	if err := validateAddr("tcp_addr", c.TCPAddr); err != nil {
		return err
	}
	if err := validateAddr("http_addr", c.HTTPAddr); err != nil {
		return err
	}
	if c.MaxConns < 0 {
		return fmt.Errorf("%w: max_conns must not be negative", ErrInvalidConfig)
	}
	if c.StoreDriver != "" && !slices.Contains(store.Drivers(), c.StoreDriver) {
		return fmt.Errorf("%w: store_driver %q (want one of %v)", ErrInvalidConfig, c.StoreDriver, store.Drivers())
	}
	if (c.StoreDriver == store.DriverMySQL || c.StoreDriver == store.DriverPostgres) && c.StoreDSN == "" {
		return fmt.Errorf("%w: store_dsn is required for %s", ErrInvalidConfig, c.StoreDriver)
	}
	if c.SendBuffer <= 0 {
		return fmt.Errorf("%w: send_buffer must be positive", ErrInvalidConfig)
	}
	if c.JWTTTL < 0 {
		return fmt.Errorf("%w: jwt_ttl must not be negative", ErrInvalidConfig)
	}
	if c.ReplayTimeout < 0 {
		return fmt.Errorf("%w: replay_timeout must not be negative", ErrInvalidConfig)
	}
	return nil
}

func validateAddr(key, addr string) error {
	if addr == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidConfig, key)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("%w: %s %q: %v", ErrInvalidConfig, key, addr, err)
	}
	return nil
}
