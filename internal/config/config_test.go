package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadConfigFrom_Defaults(t *testing.T) {
	dir := writeConfig(t, `
platforms:
  custom_directory:
    base_url: http://localhost:9000
    priority: medium
    industries: [wellness]
`)
	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Sync.MaxAttempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, cfg.Sync.BackoffLadder)
	assert.Equal(t, 5*time.Minute, cfg.Sync.BatchTimeout)
	assert.Greater(t, cfg.Redis.LockTTL, cfg.Sync.BatchTimeout)
	assert.Equal(t, 8, cfg.Sync.MaxConcurrencyPerPlatform)
	assert.Equal(t, "default", cfg.Sync.DefaultTenant)

	p := cfg.Platforms["custom_directory"]
	assert.Equal(t, "http://localhost:9000", p.BaseURL)
	assert.Equal(t, []string{"wellness"}, p.Industries)
	assert.True(t, cfg.IsEnabled("custom_directory"))
}

func TestLoadConfigFrom_EnvOverridesSecrets(t *testing.T) {
	dir := writeConfig(t, `
sync:
  enabled_platforms: [custom_directory]
platforms:
  custom_directory:
    base_url: http://localhost:9000
    auth_token: from-yaml
`)
	t.Setenv("CUSTOM_DIRECTORY_AUTH_TOKEN", "from-env")
	t.Setenv("DATABASE_DSN", "postgres://env/db")

	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Platforms["custom_directory"].AuthToken)
	assert.Equal(t, "postgres://env/db", cfg.Database.DSN)
	assert.True(t, cfg.IsEnabled("CUSTOM_DIRECTORY"))
	assert.False(t, cfg.IsEnabled("maps"))
}

func TestLoadConfigFrom_Invalid(t *testing.T) {
	dir := writeConfig(t, `
sync:
  max_attempts: 0
`)
	_, err := LoadConfigFrom(dir)
	assert.Error(t, err)
}

func TestLoadConfigFrom_LockTTLMustOutliveBatch(t *testing.T) {
	dir := writeConfig(t, `
redis:
  lock_ttl: 5m
sync:
  batch_timeout: 5m
`)
	_, err := LoadConfigFrom(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis.lock_ttl")

	dir = writeConfig(t, `
redis:
  lock_ttl: 6m
sync:
  batch_timeout: 5m
`)
	cfg, err := LoadConfigFrom(dir)
	require.NoError(t, err)
	assert.Equal(t, 6*time.Minute, cfg.Redis.LockTTL)
}

func TestEnvPrefix(t *testing.T) {
	assert.Equal(t, "BING_PLACES", EnvPrefix("bing-places"))
	assert.Equal(t, "REVIEWS_SITE", EnvPrefix("reviews_site"))
}
