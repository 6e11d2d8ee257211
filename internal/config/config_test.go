package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("WATCH_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/judowatch")
	t.Setenv("WATCH_CONFIG_FILE", filepath.Join(t.TempDir(), "absent.yaml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8000, cfg.APIPort)
	assert.Equal(t, "data", cfg.SnapshotDir)
	assert.Equal(t, 15*time.Minute, cfg.CardCacheTTL)
	assert.Equal(t, 10*time.Minute, cfg.MainInterval)
	assert.Equal(t, 5*time.Second, cfg.ActiveInterval)
	assert.Equal(t, 24*time.Hour, cfg.AdminRetention)
	assert.Equal(t, DefaultATMRetry(), cfg.ATMRetry)
	assert.Empty(t, cfg.WatchURLs)
}

func TestLoadWatchFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
urls:
  - https://example.org/a/
  - https://example.org/b/
proxies:
  - url: https://proxy.example/fetch
    auth: secret
    usage_ratio: 0.75
atm_retry:
  - pause: 0s
    policy: retry
  - pause: 5s
    policy: retry
  - pause: 5m
    policy: force
`), 0o644))

	t.Setenv("DATABASE_URL", "postgres://localhost/judowatch")
	t.Setenv("WATCH_CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.org/a/", "https://example.org/b/"}, cfg.WatchURLs)
	require.Len(t, cfg.Proxies, 1)
	assert.Equal(t, 0.75, cfg.Proxies[0].UsageRatio)
	require.Len(t, cfg.ATMRetry, 3)
	assert.Equal(t, 5*time.Minute, cfg.ATMRetry[2].Pause)
	assert.Equal(t, "force", cfg.ATMRetry[2].Policy)
}

func TestWatchURLsEnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("urls:\n  - https://file.example/\n"), 0o644))

	t.Setenv("DATABASE_URL", "postgres://localhost/judowatch")
	t.Setenv("WATCH_CONFIG_FILE", path)
	t.Setenv("WATCH_URLS", "https://env1.example/, https://env2.example/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://env1.example/", "https://env2.example/"}, cfg.WatchURLs)
}
