// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

/*
Package chat is the full-screen Bubble Tea front end of streamchat.

# Key Components

## Model (model.go)

Model owns the viewport, the input box and the spinner. It never holds
conversation state of its own: every change comes from the engine as an
event and the model re-reads what it needs.

## Event Pump (pump.go)

Engine listeners may run on the Update goroutine, so they cannot call
tea.Program.Send. EventPump queues events without blocking and a tea.Cmd
drains them into an EngineBatchMsg. The throttled render hook sets the
batch's Render flag, which is what scrolls the viewport during a stream.

## Commands (commands.go)

Slash commands typed into the input: /clear, /retry, /force, /system,
/save, /load, /list, /export, /help and /quit.
*/
package chat
