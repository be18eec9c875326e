// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package transport issues generation requests and streams the reply.
//
// The endpoint receives a JSON body with the full message history, a
// millisecond timestamp, the stored credential and a request signature, and
// answers with a plain text body streamed in arbitrary chunks.
//
// # Key Types
//
//   - Client: posts requests, returns a Stream
//   - Stream: cancellable handle yielding decoded fragments
//   - Decoder: UTF-8 safe chunk decoder (multi-byte sequences may span reads)
//   - ClientError: typed failure; every one matches ErrTransport
//
// # Cancellation
//
// Stream.Cancel cancels the request context and closes the body, so a
// blocked Next returns promptly with context.Canceled. Cancel is idempotent.
package transport
