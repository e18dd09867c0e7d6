// Package config loads spendguard configuration through viper and expands
// user paths.
package config

import (
	"os"
	"path/filepath"
	"strings"
)

const appDir = "spendguard"

// DefaultConfigDir returns the directory searched for config.yaml:
// $XDG_CONFIG_HOME/spendguard, or ~/.config/spendguard.
func DefaultConfigDir() string {
	return xdgDir("XDG_CONFIG_HOME", filepath.Join("~", ".config"))
}

// DefaultDataDir holds the database and bridge certificates:
// $XDG_DATA_HOME/spendguard, or ~/.local/share/spendguard.
func DefaultDataDir() string {
	return xdgDir("XDG_DATA_HOME", filepath.Join("~", ".local", "share"))
}

func xdgDir(env, fallback string) string {
	if base := os.Getenv(env); filepath.IsAbs(base) {
		return filepath.Join(base, appDir)
	}
	return ExpandPath(filepath.Join(fallback, appDir))
}

// ExpandPath expands a leading ~ and any $VAR references in path. The home
// directory is left unexpanded when it cannot be determined.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = home + path[1:]
		}
	}
	return os.ExpandEnv(path)
}
