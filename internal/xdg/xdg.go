package xdg

import (
	"os"
	"path/filepath"
)

// XDGDirs resolves the XDG base directories forkbench reads from
type XDGDirs struct {
	configHome string
}

// NewXDGDirs reads XDG_CONFIG_HOME, falling back to the default under $HOME
func NewXDGDirs() *XDGDirs {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = os.Getenv("HOME")
		if homeDir == "" {
			homeDir = "/tmp" // Last resort fallback
		}
	}

	xdg := &XDGDirs{}

	xdg.configHome = os.Getenv("XDG_CONFIG_HOME")
	if xdg.configHome == "" {
		xdg.configHome = filepath.Join(homeDir, ".config")
	}

	return xdg
}

// AppConfigFile returns the path of a file in the application's config directory
func (x *XDGDirs) AppConfigFile(appName, name string) string {
	return filepath.Join(x.configHome, appName, name)
}
