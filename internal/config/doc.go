// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for streamchat.
//
// # Key Types
//
//   - Config: main configuration structure
//   - EndpointConfig: generate endpoint URL, path and dial timeout
//   - AuthConfig: stored pass and signing site key
//   - StorageConfig: persistence backend selection
//   - UIConfig: scroll throttle, markdown and theme
//   - Watcher: reloads the file on change
//
// # Configuration Precedence
//
//   - Environment variables (STREAMCHAT_*), including ones read from .env
//   - ~/.streamchat/config.toml
//   - ~/.streamchat/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Printf("[config] %v", err) // cfg still holds defaults
//	}
//	w, _ := config.Watch(path, 0, func(c *config.Config) {
//	    client.SetPass(c.Auth.Pass)
//	})
//	defer w.Close()
package config
