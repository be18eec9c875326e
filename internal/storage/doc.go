// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides key-value persistence for streamchat.
//
// The conversation survives restarts through a small key-value contract:
// the message list, the system directive and the stored credential each
// live under one key. Any Store backend can hold them.
//
// # Backends
//
//   - FileStore: one JSON object at ~/.streamchat/state.json (default)
//   - SQLiteStore: kv table in ~/.streamchat/state.db (modernc.org/sqlite)
//   - RedisStore: prefixed string keys (github.com/redis/go-redis/v9)
//   - MemoryStore: process memory, for tests and ephemeral sessions
//
// # Usage
//
//	store, err := storage.Open(ctx, storage.Options{Backend: "sqlite"})
//	conv, err := storage.LoadState(ctx, store)
//	...
//	err = storage.SaveState(ctx, store, eng.Snapshot())
//
// Archive keeps whole conversations as separate files for /save, /load and
// the history command.
package storage
