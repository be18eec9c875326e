// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is a local generate endpoint for development and tests.
//
// It speaks the same protocol the transport client uses: a JSON POST with
// messages, time, pass and sign, answered by a chunked plain-text body that
// is flushed piece by piece. Replies come from a Responder; the default
// echoes the last user message.
//
// Endpoints:
//   - POST <path>   Stream a reply (default path /api/generate)
//   - GET  /health  Liveness
//   - GET  /stats   Request counters
//
// Security checks mirror a real deployment: the pass is compared in
// constant time, the signature is recomputed from the site key and the
// timestamp must be recent.
package server
