// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types shared by the engine, the
// transport and the persistence layer.
//
// # Key Types
//
//   - Conversation: ordered message log plus the optional system directive
//   - Message: single message with role and content
//   - Role: message role enumeration (system, user, assistant)
//   - Statistics: per-stream timing and fragment counts
//
// # Usage
//
// Build the history sent to the endpoint:
//
//	conv := model.NewConversation()
//	conv.Directive = "be concise"
//	conv.Append(model.NewUserMessage("Hello!"))
//	req := conv.RequestMessages() // system message first
package model
