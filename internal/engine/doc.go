// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package engine implements the conversation state machine.
//
// The Engine owns the message log, the system directive, the in-progress
// reply buffer and the single active stream session. Front ends drive it
// through transitions (Submit, Retry, ForceAssistant, Cancel, Clear,
// SetDirective) and observe it through Subscribe.
//
// # States
//
//	Idle --Submit--> AwaitingStream --endpoint answered--> Streaming
//	Streaming --fragment--> Streaming
//	Streaming --end or Cancel--> Archiving --> Idle
//	Streaming --transport error--> Idle (buffer discarded)
//
// Only one session streams at a time. Every step of the reader goroutine
// checks, under the engine lock, that its session is still the current one,
// so a superseded or cancelled session can never touch the buffer.
//
// # Events
//
// Listeners are called outside the engine lock, one event at a time, in the
// order the transitions happened. They may run on the reader goroutine.
// Front ends that own a UI thread should forward events into it (for a
// Bubble Tea program, via Program.Send).
package engine
