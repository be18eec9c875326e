// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes conversations to Markdown or JSON files.
//
// # Supported Formats
//
//   - Markdown: front matter, directive as a quote, one section per message
//   - JSON: the archive document shape, loadable by storage.Archive
//
// # Usage
//
//	path, err := export.Conversation(engine.Snapshot(), "md", "", nil)
package export
