// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"io"
	"log"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/config"
)

// LogFileName is the TUI log inside the config directory.
const LogFileName = "streamchat.log"

// SetupLogging routes the standard logger for the command being run.
// The TUI always logs to ~/.streamchat/streamchat.log since stderr is
// part of the screen. Line commands log to stderr with --verbose and are
// silent otherwise. The returned func closes the log file, if any.
func SetupLogging(cmd Command, args Args) func() {
	if cmd == CmdTUI {
		if err := config.EnsureConfigDir(); err == nil {
			dir, _ := config.ConfigDir()
			f, err := tea.LogToFile(filepath.Join(dir, LogFileName), "")
			if err == nil {
				return func() { f.Close() }
			}
		}
		log.SetOutput(io.Discard)
		return func() {}
	}

	if args.Verbose {
		log.SetOutput(os.Stderr)
		log.SetFlags(log.Ltime | log.Lmicroseconds)
	} else {
		log.SetOutput(io.Discard)
	}
	return func() {}
}
