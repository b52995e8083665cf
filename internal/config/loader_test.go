package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("ROLEPLAY_TEST_HOST", "db.internal")

	assert.Equal(t, "host: db.internal", expandEnv("host: ${ROLEPLAY_TEST_HOST:localhost}"))
	assert.Equal(t, "port: 5432", expandEnv("port: ${ROLEPLAY_TEST_UNSET_PORT:5432}"))
	assert.Equal(t, "key: ", expandEnv("key: ${ROLEPLAY_TEST_UNSET_KEY:}"))
	assert.Equal(t, "raw: ${ROLEPLAY_TEST_UNSET_RAW}", expandEnv("raw: ${ROLEPLAY_TEST_UNSET_RAW}"))
}

func TestLoadFrom_MergesEnvFileAndDefaults(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "config.yaml", `
app:
  name: roleplay-coach-api
roleplay:
  default_max_turns: 8
client:
  poll_interval: 15s
`)
	writeFile(t, dir, "config.test.yaml", `
roleplay:
  default_max_turns: 4
`)
	t.Setenv("APP_ENV", "test")

	cfg, err := LoadFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "roleplay-coach-api", cfg.App.Name)
	assert.Equal(t, 4, cfg.Roleplay.DefaultMaxTurns)
	assert.Equal(t, 15*time.Second, cfg.Client.PollInterval)
	assert.Equal(t, time.Duration(0), cfg.Roleplay.FeedbackCacheTTL)
	assert.Equal(t, 8080, cfg.Server.HTTP.Port)
	assert.Equal(t, "roleplay-coach", cfg.Security.JWT.Issuer)
}

func TestLoadFrom_MissingBaseFile(t *testing.T) {
	_, err := LoadFrom(t.TempDir())
	assert.Error(t, err)
}
