// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"encoding/json"
	"time"
)

// CurrentVersion is written into newly created config files.
const CurrentVersion = "1"

// Config is the whole streamchat configuration. The toml tags double as
// the dotted keys accepted by Get and Set; fields tagged secret are
// redacted whenever the config is printed.
type Config struct {
	Version string `toml:"version" json:"version"`

	Endpoint EndpointConfig `toml:"endpoint" json:"endpoint"`
	Auth     AuthConfig     `toml:"auth" json:"auth"`
	Storage  StorageConfig  `toml:"storage" json:"storage"`
	UI       UIConfig       `toml:"ui" json:"ui"`
}

// EndpointConfig locates the generate endpoint.
type EndpointConfig struct {
	// Origin such as https://chat.example.com
	URL  string `toml:"url" json:"url"`
	Path string `toml:"path" json:"path"`

	// Bounds dialing only. A stream may run as long as the server keeps
	// writing.
	ConnectTimeoutSecs int `toml:"connect_timeout_secs" json:"connect_timeout_secs"`
}

// AuthConfig holds the credential sent with every request.
type AuthConfig struct {
	// Sent as "pass"; empty is sent as null
	Pass string `toml:"pass" json:"pass" secret:"true"`

	// Mixed into the request signature. Empty disables signing.
	SiteKey string `toml:"site_key" json:"site_key" secret:"true"`
}

// StorageConfig selects where the conversation is persisted.
type StorageConfig struct {
	// file, sqlite, redis or memory
	Backend string `toml:"backend" json:"backend"`

	// Holds state.json or state.db, and the archive directory
	Dir string `toml:"dir" json:"dir"`

	RedisAddr   string `toml:"redis_addr" json:"redis_addr"`
	RedisDB     int    `toml:"redis_db" json:"redis_db"`
	RedisPrefix string `toml:"redis_prefix" json:"redis_prefix"`
}

// UIConfig contains front end settings.
type UIConfig struct {
	// Minimum gap between scroll-to-bottom renders while streaming
	ScrollThrottleMs int    `toml:"scroll_throttle_ms" json:"scroll_throttle_ms"`
	Markdown         bool   `toml:"markdown" json:"markdown"`
	Theme            string `toml:"theme" json:"theme"`
}

// ConnectTimeout returns the dial timeout as a duration.
func (e EndpointConfig) ConnectTimeout() time.Duration {
	return time.Duration(e.ConnectTimeoutSecs) * time.Second
}

// ScrollThrottle returns the render throttle interval as a duration.
func (u UIConfig) ScrollThrottle() time.Duration {
	return time.Duration(u.ScrollThrottleMs) * time.Millisecond
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Version: CurrentVersion,
		Endpoint: EndpointConfig{
			URL:                "http://127.0.0.1:3000",
			Path:               "/api/generate",
			ConnectTimeoutSecs: 10,
		},
		Storage: StorageConfig{
			Backend:     "file",
			RedisAddr:   "127.0.0.1:6379",
			RedisPrefix: "streamchat:",
		},
		UI: UIConfig{
			ScrollThrottleMs: 300,
			Markdown:         true,
			Theme:            "auto",
		},
	}
}

// SetDefaults fills the zero values a partial config file leaves behind.
// Booleans are left alone since false is a legitimate setting.
func (c *Config) SetDefaults() {
	d := Default()
	fillString(&c.Version, d.Version)
	fillString(&c.Endpoint.URL, d.Endpoint.URL)
	fillString(&c.Endpoint.Path, d.Endpoint.Path)
	fillInt(&c.Endpoint.ConnectTimeoutSecs, d.Endpoint.ConnectTimeoutSecs)
	fillString(&c.Storage.Backend, d.Storage.Backend)
	fillString(&c.Storage.RedisPrefix, d.Storage.RedisPrefix)
	fillInt(&c.UI.ScrollThrottleMs, d.UI.ScrollThrottleMs)
	fillString(&c.UI.Theme, d.UI.Theme)
}

func fillString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func fillInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

// Clone returns a copy. Config holds only value types.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// String renders the config as JSON with every secret replaced.
func (c *Config) String() string {
	safe := c.Clone()
	for _, key := range GetAllKeys() {
		if !IsSecretKey(key) {
			continue
		}
		if v, err := safe.Get(key); err == nil && v != "" {
			_ = safe.Set(key, "[REDACTED]")
		}
	}
	data, _ := json.MarshalIndent(safe, "", "  ")
	return string(data)
}
