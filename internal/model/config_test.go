package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, 30, cfg.Sync.ETARefreshSec)
	assert.Equal(t, 30, cfg.Sync.NotificationMinIntervalSec)
	assert.Equal(t, "info", cfg.Display.LogLevel)
	assert.False(t, cfg.Display.Mute)
}

func TestSaveConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	cfg.API.BaseURL = "https://bus.example.com/api"
	cfg.Sync.ETARefreshSec = 15
	cfg.Display.Mute = true
	cfg.Display.LogLevel = "debug"

	require.NoError(t, SaveConfig(path, cfg))

	_, err = os.Stat(path)
	require.NoError(t, err, "save must create parent directories")

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "https://bus.example.com/api", loaded.API.BaseURL)
	assert.Equal(t, 15, loaded.Sync.ETARefreshSec)
	assert.True(t, loaded.Display.Mute)
	assert.Equal(t, "debug", loaded.Display.LogLevel)
}

func TestLoadConfigRepairsNonPositiveIntervals(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "sync:\n  eta_refresh_sec: -5\n  notification_min_interval_sec: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.Sync.ETARefreshSec)
	assert.Equal(t, 30, cfg.Sync.NotificationMinIntervalSec)
}
