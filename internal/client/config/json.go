package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/avetrano/matrixflow/internal/flagx"
	"github.com/avetrano/matrixflow/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so intervals can be given either as strings like "20s" or as
// integer nanoseconds.
type JsonConfig struct {
	RemoteURL     string         `json:"remote_url"`
	RemoteTimeout timex.Duration `json:"remote_timeout"`
	CacheDSN      string         `json:"cache_dsn"`
	GenAIKey      string         `json:"genai_key"`
}

// parseJson overlays cfg with values from the JSON file named by -c/-config.
// Absent file path means no overlay. Zero-valued JSON fields are skipped so a
// partial file only overrides what it names.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.RemoteURL != "" {
		cfg.RemoteURL = jc.RemoteURL
	}
	if jc.RemoteTimeout.Duration != 0 {
		cfg.RemoteTimeout = time.Duration(jc.RemoteTimeout.Duration)
	}
	if jc.CacheDSN != "" {
		cfg.CacheDSN = jc.CacheDSN
	}
	if jc.GenAIKey != "" {
		cfg.GenAIKey = jc.GenAIKey
	}
}
