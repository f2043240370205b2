package xdg_test

import (
	"path/filepath"
	"testing"

	"github.com/programme-lv/forkbench/internal/xdg"
	"github.com/stretchr/testify/assert"
)

func TestAppConfigFileFromEnv(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/etc/cfg")

	d := xdg.NewXDGDirs()
	assert.Equal(t, filepath.Join("/etc/cfg", "forkbench", "config.toml"), d.AppConfigFile("forkbench", "config.toml"))
}

func TestAppConfigFileFallback(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("HOME", "/home/bench")

	d := xdg.NewXDGDirs()
	assert.Equal(t, filepath.Join("/home/bench", ".config", "forkbench", "config.toml"), d.AppConfigFile("forkbench", "config.toml"))
}
