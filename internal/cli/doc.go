// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the streamchat command line and runs the
// non-TUI commands.
//
// # Commands
//
//   - ask: stream one reply to stdout, optionally rendered as markdown
//   - chat: line-edited interactive chat with slash commands
//   - config: show, get, set and locate the configuration
//   - history: inspect or clear the stored conversation and archives
//   - version / help
//
// All commands share one wiring path, NewApp, which loads the
// configuration, opens the conversation store, restores the persisted
// conversation and builds the streaming engine.
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdAsk:
//	    err = cli.HandleAsk(args)
//	case cli.CmdChat:
//	    err = cli.HandleChat(args)
//	}
package cli
