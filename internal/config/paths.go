// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ConfigDir returns ~/.streamchat.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".streamchat"), nil
}

func inConfigDir(name string) (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// ConfigPathTOML returns the path of the preferred config file.
func ConfigPathTOML() (string, error) { return inConfigDir("config.toml") }

// ConfigPathJSON returns the path of the JSON alternative.
func ConfigPathJSON() (string, error) { return inConfigDir("config.json") }

// EnsureConfigDir creates the config directory owner-only.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0700)
}

// tightenPermissions resets a config file to 0600. It holds the pass and
// the site key.
func tightenPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if mode := info.Mode().Perm(); mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("chmod 0600 (was %o): %w", mode, err)
		}
	}
	return nil
}
