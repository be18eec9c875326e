// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"log"
	"sync"
)

var (
	globalMu   sync.RWMutex
	globalOnce sync.Once
	global     *Config
)

// Global returns the process-wide config, loading it on first use.
func Global() *Config {
	globalOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			log.Printf("[config] %v (using defaults)", err)
		}
		if cfg == nil {
			cfg = Default()
		}
		globalMu.Lock()
		if global == nil {
			global = cfg
		}
		globalMu.Unlock()
	})

	globalMu.RLock()
	defer globalMu.RUnlock()
	return global
}

// SetGlobal replaces the process-wide config.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	global = cfg
	globalMu.Unlock()
}

// ReloadGlobal re-reads the config files into the process-wide config.
func ReloadGlobal() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	SetGlobal(cfg)
	return nil
}

// ResetGlobalForTesting forgets the process-wide config.
func ResetGlobalForTesting() {
	globalMu.Lock()
	defer globalMu.Unlock()
	global = nil
	globalOnce = sync.Once{}
}
