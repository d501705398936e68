// Package config provides configuration management for the nasty-data CLI.
package config

import (
	"os"
	"path/filepath"
)

// AppName is the directory name used below the XDG base directories.
const AppName = "nasty-data"

// FileName is the name of the configuration file.
const FileName = "nasty.toml"

// Dir returns the nasty-data config directory.
// Uses XDG_CONFIG_HOME/nasty-data, defaulting to ~/.config/nasty-data.
func Dir() (string, error) {
	return xdgDir("XDG_CONFIG_HOME", ".config")
}

// StateDir returns the nasty-data state directory.
// Uses XDG_STATE_HOME/nasty-data, defaulting to ~/.local/state/nasty-data.
func StateDir() (string, error) {
	return xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state"))
}

// File returns the default config file path.
func File() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, FileName), nil
}

func xdgDir(env, fallback string) (string, error) {
	base := os.Getenv(env)
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, fallback)
	}
	return filepath.Join(base, AppName), nil
}
