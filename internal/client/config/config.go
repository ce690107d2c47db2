// Package config handles configuration for the MatrixFlow client: defaults,
// optional JSON overlay, and command-line flags, in that order of precedence.
package config

import "time"

// Config holds runtime settings for the MatrixFlow CLI.
//
// Fields:
//   - RemoteURL: base URL of the authoritative store endpoint. Empty disables
//     remote calls entirely (pure local mode).
//   - RemoteTimeout: hard per-call timeout for remote requests.
//   - CacheDSN: SQLite DSN of the durable local cache.
//   - GenAIKey: API key for the document-extraction/network-analysis
//     collaborators. Empty disables them.
type Config struct {
	RemoteURL     string
	RemoteTimeout time.Duration
	CacheDSN      string
	GenAIKey      string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.RemoteURL = ""
	c.RemoteTimeout = 20 * time.Second
	c.CacheDSN = "matrixflow.db"
	c.GenAIKey = ""
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags. Later sources take precedence.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
