package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "https://router.project-osrm.org", cfg.Routing.BaseURL)
	assert.Equal(t, "driving", cfg.Routing.Profile)
	assert.InDelta(t, 1.0, cfg.Routing.RatePerSecond, 0.001)
	assert.Equal(t, 30, cfg.Routing.TimeoutSecs)
	assert.InDelta(t, 0.01, cfg.Grid.CellDeg, 1e-9)
	assert.Equal(t, 1, cfg.Analyze.Workers)
	assert.Equal(t, "results", cfg.Export.Dir)
	assert.Equal(t, "csv", cfg.Export.Format)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: moverisk.db
grid:
  min_lon: 5.5
  min_lat: 47.2
  max_lon: 15.5
  max_lat: 55.1
  cell_deg: 0.02
analyze:
  workers: 4
export:
  format: xlsx
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "moverisk.db", cfg.Store.DatabaseURL)
	assert.InDelta(t, 5.5, cfg.Grid.MinLon, 1e-9)
	assert.InDelta(t, 0.02, cfg.Grid.CellDeg, 1e-9)
	assert.Equal(t, 4, cfg.Analyze.Workers)
	assert.Equal(t, "xlsx", cfg.Export.Format)
	// Unset keys keep their defaults.
	assert.Equal(t, "driving", cfg.Routing.Profile)
}

func TestLoadEnvOverride(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("MOVERISK_STORE_DRIVER", "sqlite")
	t.Setenv("MOVERISK_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger(t *testing.T) {
	require.NoError(t, InitLogger(LogConfig{Level: "debug", Format: "console"}))
	assert.True(t, zap.L().Core().Enabled(zap.DebugLevel))

	require.NoError(t, InitLogger(LogConfig{Level: "warn", Format: "json"}))
	assert.False(t, zap.L().Core().Enabled(zap.InfoLevel))

	assert.Error(t, InitLogger(LogConfig{Level: "nope", Format: "json"}))
}
