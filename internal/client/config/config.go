package config

import "time"

// Config holds runtime settings for the profilehub CLI.
//
// Fields:
//   - ServerBaseURL: scheme://host:port of the HTTP API.
//   - RequestTimeout: per-request timeout of the HTTP client.
//   - SessionDBPath: SQLite file that keeps the session between runs.
type Config struct {
	ServerBaseURL  string
	RequestTimeout time.Duration
	SessionDBPath  string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerBaseURL = "http://127.0.0.1:8000"
	c.RequestTimeout = 10 * time.Second
	c.SessionDBPath = "profilehub.db"
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
