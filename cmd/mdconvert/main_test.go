package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/mdconvert/config"
)

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file uses defaults", func(t *testing.T) {
		cfg, fromFile, err := loadConfig(filepath.Join(dir, "absent.yaml"))
		require.NoError(t, err)
		assert.False(t, fromFile)
		assert.Equal(t, config.DefaultConfig().Server.Port, cfg.Server.Port)
	})

	t.Run("file overrides defaults", func(t *testing.T) {
		path := filepath.Join(dir, "mdconvert.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9090\n"), 0o644))

		cfg, fromFile, err := loadConfig(path)
		require.NoError(t, err)
		assert.True(t, fromFile)
		assert.Equal(t, 9090, cfg.Server.Port)
	})

	t.Run("invalid file", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: -1\n"), 0o644))

		_, _, err := loadConfig(path)
		assert.Error(t, err)
	})
}
