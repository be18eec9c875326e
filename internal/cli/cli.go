// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command routing for streamchat.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"time"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdConfig
	CmdHistory
	CmdServe
	CmdVersion
	CmdHelp
)

// String returns the command name as typed on the command line.
func (c Command) String() string {
	switch c {
	case CmdTUI:
		return "tui"
	case CmdAsk:
		return "ask"
	case CmdChat:
		return "chat"
	case CmdConfig:
		return "config"
	case CmdHistory:
		return "history"
	case CmdServe:
		return "serve"
	case CmdVersion:
		return "version"
	case CmdHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Verbose    bool
	Quiet      bool
	JSON       bool
	ConfigPath string // --config: explicit config file
	System     string // --system: one-shot directive for a fresh conversation
	Storage    string // --storage: backend override

	// Command-specific
	Query      string
	File       string
	NoMarkdown bool
	Subcommand string
	ConfigKey  string
	ConfigVal  string

	// serve
	Addr       string
	ChunkDelay time.Duration
	ChunkSize  int
	NoAuth     bool

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `streamchat - streaming chat client for the terminal

Usage:
  streamchat                       Start the TUI (default)
  streamchat ask "question"        Stream one reply to stdout
  streamchat chat                  Line-based interactive chat
  streamchat config [show|get|set|path]
                                   Configuration
  streamchat history [show|clear|archives|delete|export]
                                   Stored conversation and archives
  streamchat serve                 Local echo endpoint for development
  streamchat version               Version information

Ask Flags:
  -f, --file FILE     Append a file to the question
  --no-markdown       Stream raw text instead of rendering markdown

Serve Flags:
  --addr HOST:PORT    Listen address (default: host of endpoint.url)
  --delay MS          Pause between streamed chunks (default 30)
  --chunk N           Split replies every N bytes instead of per word
  --no-auth           Ignore auth.pass and auth.site_key

Chat Commands (during chat):
  /help               Show available commands
  /clear              Clear conversation and directive
  /retry              Regenerate the last reply
  /force              Toggle forced-assistant mode
  /system [text|-]    Show, set or clear the directive (empty conversation only)
  /save               Archive the conversation
  /load <id|#>        Load an archived conversation
  /list               List archived conversations
  /export md|json [path]
                      Export the conversation
  /quit               Exit
  Ctrl+C              Cancel the reply in progress

Global Flags:
  --config PATH       Use this config file instead of ~/.streamchat/config.toml
  --system TEXT       Directive for a new conversation
  --storage BACKEND   file, sqlite, redis or memory
  -q, --quiet         Minimal output
  -v, --verbose       Debug logging
  --json              JSON output (ask, config, history)

Environment:
  STREAMCHAT_ENDPOINT, STREAMCHAT_PASS, STREAMCHAT_SITE_KEY,
  STREAMCHAT_STORAGE, STREAMCHAT_STATE_DIR, STREAMCHAT_REDIS_ADDR
  (also read from ./.env and ~/.streamchat/.env)

Examples:
  streamchat --system "Answer briefly"
  streamchat ask "Explain channels" --file main.go
  streamchat config set endpoint.url https://chat.example.com
  streamchat history archives

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("streamchat version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args and returns the command and args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses argv (without the program name).
func ParseArgs(argv []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(argv)

	if len(remaining) == 0 {
		return CmdTUI, parsedArgs
	}

	word := remaining[0]
	cmd := strings.ToLower(word)
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "tui":
		return CmdTUI, parsedArgs

	case "ask":
		parseAskArgs(&parsedArgs, remaining)
		return CmdAsk, parsedArgs

	case "chat":
		return CmdChat, parsedArgs

	case "config":
		parseConfigArgs(&parsedArgs, remaining)
		return CmdConfig, parsedArgs

	case "history", "h":
		if len(remaining) > 0 {
			parsedArgs.Subcommand = strings.ToLower(remaining[0])
		}
		return CmdHistory, parsedArgs

	case "serve":
		parseServeArgs(&parsedArgs, remaining)
		return CmdServe, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		// Anything else is an opening prompt for the TUI
		parsedArgs.Raw = append([]string{word}, remaining...)
		return CmdTUI, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	var parsed Args

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch arg {
		case "-q", "--quiet":
			parsed.Quiet = true
		case "-v", "--verbose":
			parsed.Verbose = true
		case "--json":
			parsed.JSON = true
		case "--config", "--system", "--storage":
			if i+1 < len(args) {
				i++
				setGlobalValue(&parsed, arg, args[i])
			}
		default:
			if name, value, ok := strings.Cut(arg, "="); ok && isGlobalValueFlag(name) {
				setGlobalValue(&parsed, name, value)
			} else {
				remaining = append(remaining, arg)
			}
		}
	}
	return remaining, parsed
}

func isGlobalValueFlag(name string) bool {
	return name == "--config" || name == "--system" || name == "--storage"
}

func setGlobalValue(parsed *Args, name, value string) {
	switch name {
	case "--config":
		parsed.ConfigPath = value
	case "--system":
		parsed.System = value
	case "--storage":
		parsed.Storage = value
	}
}

// parseAskArgs parses ask command specific arguments.
func parseAskArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "no-markdown")
	args.File = p.Flag("file")
	if args.File == "" {
		args.File = p.Flag("f")
	}
	args.NoMarkdown = p.BoolFlag("no-markdown")
	args.Query = JoinPositionalArgs(p, 0)
}

// parseConfigArgs parses config command arguments.
func parseConfigArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining)
	args.Subcommand = strings.ToLower(p.Subcommand())
	args.ConfigKey = p.Positional(1)
	args.ConfigVal = JoinPositionalArgs(p, 2)
}

// parseServeArgs parses serve command arguments.
func parseServeArgs(args *Args, remaining []string) {
	p := NewArgParser(remaining, "no-auth")
	args.Addr = p.Flag("addr")
	args.ChunkDelay = 30 * time.Millisecond
	if ms, ok := p.IntFlag("delay"); ok && ms >= 0 {
		args.ChunkDelay = time.Duration(ms) * time.Millisecond
	}
	if n, ok := p.IntFlag("chunk"); ok && n > 0 {
		args.ChunkSize = n
	}
	args.NoAuth = p.BoolFlag("no-auth")
}
