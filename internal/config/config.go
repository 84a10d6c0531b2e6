// Package config loads client settings from the environment and an optional .env file.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"
)

// Config holds every knob of the client.
type Config struct {
	APIBaseURL   string        `env:"BW_API_BASE_URL,   default=http://localhost:8080"`
	MediaBaseURL string        `env:"BW_MEDIA_BASE_URL"` // falls back to APIBaseURL
	Timeout      time.Duration `env:"BW_TIMEOUT,        default=15s"`
	LogLevel     string        `env:"BW_LOG_LEVEL,      default=info"`
	LogDev       bool          `env:"BW_LOG_DEV,        default=false"`
	ConfigDir    string        `env:"BW_CONFIG_DIR"` // falls back to DefaultDir()
	CachePath    string        `env:"BW_CACHE_PATH"` // empty keeps the cache in memory
	CacheTTL     time.Duration `env:"BW_CACHE_TTL,      default=2m"`
}

// Load reads an optional .env file from the working directory, then the environment.
// Variables already set in the environment win over the file.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, ".env", envconfig.OsLookuper())
}

// LoadFrom is Load with an explicit dotenv path and lookuper.
func LoadFrom(ctx context.Context, dotenv string, l envconfig.Lookuper) (*Config, error) {
	if dotenv != "" {
		file, err := godotenv.Read(dotenv)
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading %s: %w", dotenv, err)
		}
		if len(file) > 0 {
			l = envconfig.MultiLookuper(l, envconfig.MapLookuper(file))
		}
	}
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.MediaBaseURL == "" {
		cfg.MediaBaseURL = cfg.APIBaseURL
	}
	if cfg.ConfigDir == "" {
		cfg.ConfigDir = DefaultDir()
	}
	if cfg.Timeout <= 0 {
		return nil, fmt.Errorf("config: BW_TIMEOUT must be positive, got %s", cfg.Timeout)
	}
	return &cfg, nil
}

// DefaultDir is $XDG_CONFIG_HOME/birdwatch, or ~/.config/birdwatch.
func DefaultDir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, "birdwatch")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "birdwatch")
}
