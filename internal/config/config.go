// FILE: repertoire/internal/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"repertoire/internal/server/scheduler"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Winrate   WinrateConfig   `toml:"winrate"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Graph     GraphConfig     `toml:"graph"`
	Session   SessionConfig   `toml:"session"`
	LogLevel  string          `toml:"log_level"` // REPERTOIRE_LOG_LEVEL
}

type ServerConfig struct {
	Host      string `toml:"host"`       // REPERTOIRE_HOST (default "localhost")
	Port      int    `toml:"port"`       // REPERTOIRE_PORT (default 8080)
	Dev       bool   `toml:"dev"`        // REPERTOIRE_DEV
	RateLimit int    `toml:"rate_limit"` // requests per second per client
}

type StorageConfig struct {
	Path string `toml:"path"` // REPERTOIRE_DB (default "repertoire.db")
	WAL  bool   `toml:"wal"`
}

type WinrateConfig struct {
	Source        string        `toml:"source"`         // REPERTOIRE_WINRATE_SOURCE: "corpus" or "explorer"
	ExplorerURL   string        `toml:"explorer_url"`   // REPERTOIRE_EXPLORER_URL
	ExplorerToken string        `toml:"explorer_token"` // REPERTOIRE_EXPLORER_TOKEN
	Speeds        string        `toml:"speeds"`
	Timeout       time.Duration `toml:"timeout"` // REPERTOIRE_WINRATE_TIMEOUT
	MinGames      int           `toml:"min_games"`
}

type SchedulerConfig struct {
	Curve        string        `toml:"curve"` // "leitner" or "exponential"
	Base         time.Duration `toml:"base"`
	Factor       float64       `toml:"factor"`
	MaxStage     int           `toml:"max_stage"`
	OwnMovesOnly bool          `toml:"own_moves_only"`
}

type GraphConfig struct {
	CascadeDelete bool `toml:"cascade_delete"` // REPERTOIRE_CASCADE_DELETE
}

type SessionConfig struct {
	TTL             time.Duration `toml:"ttl"`
	CleanupInterval time.Duration `toml:"cleanup_interval"`
}

// Default returns a configuration that runs with a local SQLite file and
// corpus-backed winrates.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:      "localhost",
			Port:      8080,
			RateLimit: 20,
		},
		Storage: StorageConfig{
			Path: "repertoire.db",
			WAL:  true,
		},
		Winrate: WinrateConfig{
			Source:      "corpus",
			ExplorerURL: "https://explorer.lichess.ovh/lichess",
			Speeds:      "rapid",
			Timeout:     10 * time.Second,
			MinGames:    1,
		},
		Scheduler: SchedulerConfig{
			Curve:    "leitner",
			Base:     24 * time.Hour,
			Factor:   2.5,
			MaxStage: 6,
		},
		Session: SessionConfig{
			TTL:             24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		LogLevel: "info",
	}
}

// Load reads the optional TOML file at path on top of the defaults, then
// applies REPERTOIRE_* environment overrides.
func Load(path string) (*Config, error) {
	c := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, c); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", path, err)
		}
	}

	if err := c.applyEnv(); err != nil {
		return nil, err
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) applyEnv() error {
	c.Server.Host = envOrDefault("REPERTOIRE_HOST", c.Server.Host)
	c.Storage.Path = envOrDefault("REPERTOIRE_DB", c.Storage.Path)
	c.Winrate.Source = envOrDefault("REPERTOIRE_WINRATE_SOURCE", c.Winrate.Source)
	c.Winrate.ExplorerURL = envOrDefault("REPERTOIRE_EXPLORER_URL", c.Winrate.ExplorerURL)
	c.Winrate.ExplorerToken = envOrDefault("REPERTOIRE_EXPLORER_TOKEN", c.Winrate.ExplorerToken)
	c.LogLevel = envOrDefault("REPERTOIRE_LOG_LEVEL", c.LogLevel)

	if v := os.Getenv("REPERTOIRE_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("REPERTOIRE_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("REPERTOIRE_DEV"); v != "" {
		dev, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REPERTOIRE_DEV: %w", err)
		}
		c.Server.Dev = dev
	}
	if v := os.Getenv("REPERTOIRE_CASCADE_DELETE"); v != "" {
		cascade, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("REPERTOIRE_CASCADE_DELETE: %w", err)
		}
		c.Graph.CascadeDelete = cascade
	}
	if v := os.Getenv("REPERTOIRE_WINRATE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REPERTOIRE_WINRATE_TIMEOUT: %w", err)
		}
		c.Winrate.Timeout = d
	}
	return nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Server.Port)
	}
	switch c.Winrate.Source {
	case "corpus", "explorer":
	default:
		return fmt.Errorf("unknown winrate source %q", c.Winrate.Source)
	}
	if c.Winrate.Timeout <= 0 {
		return fmt.Errorf("winrate timeout must be positive")
	}
	switch c.Scheduler.Curve {
	case "leitner", "exponential":
	default:
		return fmt.Errorf("unknown scheduler curve %q", c.Scheduler.Curve)
	}
	if c.Scheduler.MaxStage < 1 {
		return fmt.Errorf("scheduler max_stage must be at least 1")
	}
	if c.Scheduler.Curve == "exponential" {
		if _, err := scheduler.Exponential(c.Scheduler.Base, c.Scheduler.Factor, c.Scheduler.MaxStage); err != nil {
			return err
		}
	}
	if c.Session.TTL <= 0 || c.Session.CleanupInterval <= 0 {
		return fmt.Errorf("session ttl and cleanup_interval must be positive")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
