package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Run from a directory with no config file so only defaults apply.
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 5, cfg.Enrich.MaxConcurrentRuns)
	assert.Equal(t, 3, cfg.Enrich.StepRetries)
	assert.Equal(t, 25, cfg.Search.PageSizeCap)
	assert.Equal(t, 500, cfg.Search.MaxPages)
	assert.Equal(t, 24*time.Hour, cfg.Search.CacheTTL())
	assert.Equal(t, 60*time.Second, cfg.Breaker.WindowDuration())
	assert.Equal(t, 30*time.Second, cfg.Breaker.ResetDuration())
	assert.Equal(t, 10*time.Second, cfg.Breaker.CallTimeout())
	assert.Equal(t, 5, cfg.Breaker.MinVolume)
	assert.InDelta(t, 0.5, cfg.Breaker.FailureRatio, 1e-9)
	assert.InDelta(t, 6.7, cfg.Edgar.RequestsPerSec, 1e-9)
	assert.Equal(t, 10, cfg.Edgar.MaxFilings)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	content := `
store:
  driver: postgres
  database_url: postgres://localhost/prospects
search:
  page_size_cap: 10
breaker:
  min_volume: 8
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(cwd) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/prospects", cfg.Store.DatabaseURL)
	assert.Equal(t, 10, cfg.Search.PageSizeCap)
	assert.Equal(t, 8, cfg.Breaker.MinVolume)
	// Untouched keys keep defaults.
	assert.Equal(t, 500, cfg.Search.MaxPages)
}

func TestInitLogger_InvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger_Console(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
