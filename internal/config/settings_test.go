package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFile_SaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.yaml")

	cfg := Default()
	cfg.Store.Type = "sqlite"
	cfg.Store.SQLitePath = "/data/stepwise.db"

	require.NoError(t, SaveSettings(path, cfg))

	loaded, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", loaded.Store.Type)
	assert.Equal(t, "/data/stepwise.db", loaded.Store.SQLitePath)
}

func TestLoadSettings_MissingFileReturnsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")

	cfg, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Type)
}
