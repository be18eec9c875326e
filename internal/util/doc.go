// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the streamchat application.
//
// # Key Functions
//
// Rendering:
//   - Throttle: leading-edge rate limiter for render side effects
//
// String Utilities:
//   - TruncateRunes: UTF-8 safe truncation with ellipsis
//   - TruncateWidth: display-width truncation for terminal columns
//
// File Operations:
//   - AtomicWriteFile: crash-safe file writing with fsync
//
// # Usage
//
//	scroll := util.NewThrottle(300*time.Millisecond, viewport.GotoBottom)
//	scroll.Trigger()
//
//	err := util.AtomicWriteFile(path, data, 0600)
package util
