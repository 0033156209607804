package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadExpandsEnvAndParses(t *testing.T) {
	t.Setenv("TEST_BOT_TOKEN", "123:abc")

	path := writeConfig(t, `
server:
  addr: ":9999"
telegram:
  token: "${TEST_BOT_TOKEN}"
dispatch:
  check_interval: 15s
  rate_per_second: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, 15*time.Second, cfg.Dispatch.CheckInterval)
	assert.Equal(t, 10.0, cfg.Dispatch.RatePerSecond)
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "{}\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "data/hydromate.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 30*time.Second, cfg.Dispatch.CheckInterval)
	assert.Equal(t, 3, cfg.Dispatch.MaxRetries)
	assert.Equal(t, ":9090", cfg.Monitoring.MetricsAddr)
	assert.Equal(t, "UTC", cfg.Timezone)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "server: [not: a: map\n")
	_, err := Load(path)
	assert.Error(t, err)
}
