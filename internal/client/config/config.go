package config

import (
	"fmt"
	"net/url"
	"time"
)

// Store backends for the persisted session.
const (
	StoreSQLite = "sqlite"
	StoreFile   = "file"
	StoreRedis  = "redis"
)

// Config holds runtime settings for the crew CLI.
//
// Units: all intervals are time.Duration values.
type Config struct {
	// ServerBaseURL is the REST API root, e.g. "https://crew.example.com/api".
	ServerBaseURL string
	// OnlineCheckInterval is how often the connectivity gate re-checks.
	OnlineCheckInterval time.Duration
	RequestTimeout      time.Duration
	// ResendCooldown is the wait between verification code requests.
	ResendCooldown time.Duration

	// StoreBackend selects where the session is persisted: sqlite, file or redis.
	StoreBackend    string
	DatabasePath    string
	SessionFilePath string
	RedisAddr       string
	RedisPassword   string

	LogLevel  string
	LogFormat string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000/api"
	c.OnlineCheckInterval = 10 * time.Second
	c.RequestTimeout = 30 * time.Second
	c.ResendCooldown = 60 * time.Second
	c.StoreBackend = StoreSQLite
	c.DatabasePath = "crew.db"
	c.SessionFilePath = ""
	c.RedisAddr = "127.0.0.1:6379"
	c.RedisPassword = ""
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	u, err := url.Parse(c.ServerBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid server base url %q", c.ServerBaseURL)
	}
	switch c.StoreBackend {
	case StoreSQLite, StoreFile, StoreRedis:
	default:
		return fmt.Errorf("unknown store backend %q", c.StoreBackend)
	}
	if c.OnlineCheckInterval <= 0 {
		return fmt.Errorf("online check interval must be positive")
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.ResendCooldown <= 0 {
		return fmt.Errorf("resend cooldown must be positive")
	}
	return nil
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// the environment (including a .env file), JSON (if present) and
// command-line flags (if present). Later sources take precedence over
// earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
