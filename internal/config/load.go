// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/jeranaias/streamchat/internal/util"
)

// source is one candidate config file.
type source struct {
	kind   string
	locate func() (string, error)
	decode func(*Config, string) error
}

var sources = []source{
	{"TOML", ConfigPathTOML, LoadTOML},
	{"JSON", ConfigPathJSON, LoadJSON},
}

// Load reads the first config file that exists, then applies .env files,
// STREAMCHAT_* variables and defaults.
//
// A file that fails to parse does not stop the search. When nothing
// usable is found the defaults are returned together with the parse
// error, so the caller can warn and keep running.
func Load() (*Config, error) {
	loadDotEnv()

	var loadErr error
	for _, src := range sources {
		path, err := src.locate()
		if err != nil {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			continue
		}
		cfg := Default()
		if err := src.decode(cfg, path); err != nil {
			loadErr = fmt.Errorf("failed to load %s config: %w", src.kind, err)
			continue
		}
		return finalize(cfg)
	}

	cfg, err := finalize(Default())
	if err != nil {
		return nil, err
	}
	return cfg, loadErr
}

// LoadFromPath reads exactly one file, chosen by extension, and fails on
// any problem.
func LoadFromPath(path string) (*Config, error) {
	loadDotEnv()

	src := sources[0]
	if strings.EqualFold(filepath.Ext(path), ".json") {
		src = sources[1]
	}
	cfg := Default()
	if err := src.decode(cfg, path); err != nil {
		return nil, fmt.Errorf("failed to load %s config from %s: %w", src.kind, path, err)
	}
	return finalize(cfg)
}

// LoadTOML decodes path over cfg.
func LoadTOML(cfg *Config, path string) error {
	if err := tightenPermissions(path); err != nil {
		log.Printf("[config] could not secure %s: %v", path, err)
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes path over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := tightenPermissions(path); err != nil {
		log.Printf("[config] could not secure %s: %v", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

func finalize(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv reads ./.env and ~/.streamchat/.env. godotenv never
// overwrites a variable that is already set.
func loadDotEnv() {
	paths := []string{".env"}
	if p, err := inConfigDir(".env"); err == nil {
		paths = append(paths, p)
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			log.Printf("[config] ignoring %s: %v", p, err)
		}
	}
}

// envOverrides maps STREAMCHAT_* variables onto config keys.
var envOverrides = []struct {
	env, key string
}{
	{"STREAMCHAT_ENDPOINT", "endpoint.url"},
	{"STREAMCHAT_PASS", "auth.pass"},
	{"STREAMCHAT_SITE_KEY", "auth.site_key"},
	{"STREAMCHAT_STORAGE", "storage.backend"},
	{"STREAMCHAT_STATE_DIR", "storage.dir"},
	{"STREAMCHAT_REDIS_ADDR", "storage.redis_addr"},
}

// ApplyEnvOverrides copies every non-empty STREAMCHAT_* variable into
// the config.
func (c *Config) ApplyEnvOverrides() {
	for _, o := range envOverrides {
		if v := os.Getenv(o.env); v != "" {
			if err := c.Set(o.key, v); err != nil {
				log.Printf("[config] ignoring %s: %v", o.env, err)
			}
		}
	}
}

// Save writes cfg to ~/.streamchat/config.toml.
func Save(cfg *Config) error {
	path, err := ConfigPathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

const tomlHeader = "# streamchat configuration file\n# Generated by streamchat - edit with care\n\n"

// SaveTOML atomically writes cfg as TOML, owner read/write only.
func SaveTOML(cfg *Config, path string) error {
	buf := bytes.NewBufferString(tomlHeader)
	if err := toml.NewEncoder(buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, buf.Bytes())
}

// SaveJSON atomically writes cfg as indented JSON, owner read/write only.
func SaveJSON(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return writeConfig(path, data)
}

func writeConfig(path string, data []byte) error {
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
