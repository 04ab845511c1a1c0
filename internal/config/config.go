package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config represents the global ~/.feira/config.toml.
type Config struct {
	DefaultProfile string       `toml:"default_profile"`
	API            APIConfig    `toml:"api"`
	Feed           FeedConfig   `toml:"feed"`
	Search         SearchConfig `toml:"search"`
}

// APIConfig configures the REST gateway.
type APIConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// FeedConfig configures paginated list loading.
type FeedConfig struct {
	PageSize int `toml:"page_size"`
}

// SearchConfig configures search-as-you-type.
type SearchConfig struct {
	DebounceMs int `toml:"debounce_ms"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API:    APIConfig{BaseURL: "https://api.feira.app", TimeoutSeconds: 15},
		Feed:   FeedConfig{PageSize: 20},
		Search: SearchConfig{DebounceMs: 350},
	}
}

// Load reads config from the given path. Returns an error if the file
// is missing; callers that tolerate a missing file use LoadOrDefault.
func Load(path string) (*Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault reads config from the given path, falling back to the
// built-in defaults when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes config to the given path, creating parent dirs as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	encErr := toml.NewEncoder(f).Encode(cfg)
	if closeErr := f.Close(); closeErr != nil && encErr == nil {
		return closeErr
	}
	return encErr
}

// ApplyEnv overlays environment variables onto the config. A .env file
// in the working directory is honored for local development.
func (c *Config) ApplyEnv() {
	_ = godotenv.Load()

	if v := os.Getenv("FEIRA_DEFAULT_PROFILE"); v != "" {
		c.DefaultProfile = v
	}
	if v := os.Getenv("FEIRA_API_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("FEIRA_API_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.API.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("FEIRA_FEED_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Feed.PageSize = n
		}
	}
	if v := os.Getenv("FEIRA_SEARCH_DEBOUNCE_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DebounceMs = n
		}
	}
}

// Timeout returns the gateway request timeout.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// Debounce returns the search quiet period.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Search.DebounceMs) * time.Millisecond
}
