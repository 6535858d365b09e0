package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DefaultSessionSecret is a development-only signing key.
const DefaultSessionSecret = "dev-secret-key"

type Config struct {
	Server struct {
		Port          string `yaml:"port"`
		SessionSecret string `yaml:"session_secret"`
		SessionTTL    string `yaml:"session_ttl"`
		SecureCookies bool   `yaml:"secure_cookies"`
	} `yaml:"server"`
	Database struct {
		Driver     string `yaml:"driver"`
		SQLitePath string `yaml:"sqlite_path"`
		URL        string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Leaderboard struct {
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"leaderboard"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Default returns the settings used when neither a file nor the environment
// provides a value.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Server.SessionSecret = DefaultSessionSecret
	cfg.Server.SessionTTL = "24h"
	cfg.Database.Driver = DriverSQLite
	cfg.Database.SQLitePath = "quiz.db"
	cfg.Redis.TTL = "10s"
	cfg.Leaderboard.CacheTTL = "30s"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies a
// .env file and environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, err
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// .env is optional; real environment variables win over it
	_ = godotenv.Load()
	cfg.applyEnv(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("PORT"); v != "" {
		c.Server.Port = v
	}
	if v := getenv("SECRET_KEY"); v != "" {
		c.Server.SessionSecret = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.applyDatabaseURL(v)
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// applyDatabaseURL selects the driver from the URL scheme.
func (c *Config) applyDatabaseURL(raw string) {
	switch {
	case strings.HasPrefix(raw, "postgres://"), strings.HasPrefix(raw, "postgresql://"):
		c.Database.Driver = DriverPostgres
		c.Database.URL = raw
	case strings.HasPrefix(raw, "sqlite:///"):
		c.Database.Driver = DriverSQLite
		c.Database.SQLitePath = strings.TrimPrefix(raw, "sqlite:///")
	case raw == "memory://":
		c.Database.Driver = DriverMemory
	}
}

// Validate rejects settings the service cannot start with.
func (c Config) Validate() error {
	switch c.Database.Driver {
	case DriverMemory, DriverSQLite:
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("database.url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if strings.TrimSpace(c.Server.SessionSecret) == "" {
		return fmt.Errorf("server.session_secret must not be empty")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", c.Log.Format)
	}
	return nil
}

// UsesDefaultSecret reports whether sessions would be signed with the
// publicly known development key.
func (c Config) UsesDefaultSecret() bool {
	return c.Server.SessionSecret == DefaultSessionSecret
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
