package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.LoadDefaults()

	assert.Empty(t, cfg.RemoteURL)
	assert.Equal(t, 20*time.Second, cfg.RemoteTimeout)
	assert.Equal(t, "matrixflow.db", cfg.CacheDSN)
}

func TestParseJson_PartialOverlay(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "conf.json")
	body := `{"remote_url":"https://store.example/exec","remote_timeout":"5s"}`
	require.NoError(t, os.WriteFile(file, []byte(body), 0o600))

	oldArgs := os.Args
	os.Args = []string{"cli", "-c", file}
	t.Cleanup(func() { os.Args = oldArgs })

	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)

	assert.Equal(t, "https://store.example/exec", cfg.RemoteURL)
	assert.Equal(t, 5*time.Second, cfg.RemoteTimeout)
	// untouched by the partial file
	assert.Equal(t, "matrixflow.db", cfg.CacheDSN)
}

func TestJsonConfig_NumericDuration(t *testing.T) {
	var jc JsonConfig
	require.NoError(t, json.Unmarshal([]byte(`{"remote_timeout":1000000000}`), &jc))
	assert.Equal(t, time.Second, time.Duration(jc.RemoteTimeout.Duration))
}
