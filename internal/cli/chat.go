// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Line-based interactive chat.
//
// Replies stream straight to stdout through a buffered writer that the
// engine's render throttle flushes, so a fast endpoint does not turn into
// one write syscall per fragment.

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a ChatCLI and loads ~/.streamchat/chat_history.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	c := &ChatCLI{
		line:        line,
		historyFile: filepath.Join(configDir, "chat_history"),
	}
	c.LoadHistory()
	return c
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line with the given prompt. Non-empty lines go into
// the history.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}
	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	c.line.WriteHistory(f)
}

// Close saves history and restores the terminal.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// CHAT SESSION
// =============================================================================

// chatSession is the REPL state around one App.
type chatSession struct {
	app   *App
	quiet bool

	outMu sync.Mutex
	out   *bufio.Writer

	mu       sync.Mutex
	turnDone chan struct{}

	// forced makes the next input a user/assistant pair typed by hand
	forced bool
	turns  int
}

func newChatSession(w io.Writer, quiet bool) *chatSession {
	return &chatSession{
		out:   bufio.NewWriterSize(w, 8192),
		quiet: quiet,
	}
}

// HandleChat runs the interactive chat loop.
func HandleChat(args Args) error {
	if err := RequiresTTY("chat"); err != nil {
		return err
	}

	s := newChatSession(os.Stdout, args.Quiet)
	app, err := NewApp(context.Background(), args, AppOptions{
		OnRender: s.flush,
		Watch:    true,
	})
	if err != nil {
		return err
	}
	defer app.Close()
	s.app = app

	unsub := app.Engine.Subscribe(s.onEvent)
	defer unsub()

	input := NewChatCLI()
	defer input.Close()

	// Ctrl+C during a reply cancels it; at the prompt liner handles it
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			app.Engine.Cancel()
		}
	}()

	if !s.quiet {
		s.printWelcome()
	}

	for {
		prompt := UserPromptStyle.Render("you> ")
		if s.forced {
			prompt = AssistantPromptStyle.Render("you (forced)> ")
		}
		line, err := input.ReadInput(prompt)
		if err != nil {
			// Ctrl+C at the prompt or Ctrl+D
			fmt.Println()
			s.printExitSummary()
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			keepGoing, err := s.handleSlashCommand(line)
			if err != nil {
				fmt.Fprintln(os.Stderr, RenderError(err.Error()))
			}
			if !keepGoing {
				s.printExitSummary()
				return nil
			}
			continue
		}

		if s.forced {
			reply, err := input.ReadInput(AssistantPromptStyle.Render("assistant> "))
			if err != nil {
				fmt.Println()
				continue
			}
			if err := app.Engine.ForceAssistant(line, strings.TrimSpace(reply)); err != nil {
				fmt.Fprintln(os.Stderr, RenderError(err.Error()))
			}
			continue
		}

		if err := s.send(func(ctx context.Context) error {
			return app.Engine.Submit(ctx, line)
		}); err != nil {
			fmt.Fprintln(os.Stderr, RenderError(err.Error()))
		}
	}
}

// send starts a reply with start and blocks until it ended.
func (s *chatSession) send(start func(ctx context.Context) error) error {
	done := make(chan struct{})
	s.mu.Lock()
	s.turnDone = done
	s.mu.Unlock()

	if !s.quiet {
		fmt.Print(AssistantPromptStyle.Render("assistant> "))
	}
	if err := start(context.Background()); err != nil {
		s.mu.Lock()
		s.turnDone = nil
		s.mu.Unlock()
		fmt.Println()
		return err
	}
	<-done
	s.turns++
	return nil
}

// onEvent prints the reply as it streams. It runs on the engine's
// goroutine.
func (s *chatSession) onEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventFragment:
		s.outMu.Lock()
		s.out.WriteString(ev.Fragment)
		s.outMu.Unlock()

	case engine.EventStreamEnded:
		s.flush()
		fmt.Println()
		if ev.Status == engine.StatusCancelled {
			fmt.Println(WarningStyle.Render("[Cancelled]"))
		}
		if !s.quiet {
			fmt.Println(DimStyle.Render(ev.Stats.Format()))
		}

	case engine.EventError:
		s.flush()
		fmt.Println()
		fmt.Fprintln(os.Stderr, RenderError(ev.Err.Error()))

	case engine.EventLoadingChanged:
		if ev.Loading {
			return
		}
		s.mu.Lock()
		if s.turnDone != nil {
			close(s.turnDone)
			s.turnDone = nil
		}
		s.mu.Unlock()
	}
}

// flush writes buffered reply text. Used as the engine's render hook.
func (s *chatSession) flush() {
	s.outMu.Lock()
	s.out.Flush()
	s.outMu.Unlock()
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand runs one slash command. keepGoing is false for /quit.
func (s *chatSession) handleSlashCommand(line string) (keepGoing bool, err error) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))
	eng := s.app.Engine

	switch cmd {
	case "/quit", "/exit", "/q":
		return false, nil

	case "/help", "/?":
		printChatHelp()

	case "/clear":
		id := s.app.Clear()
		s.forced = false
		if id != "" {
			fmt.Printf("%s %s\n", SuccessStyle.Render("Conversation cleared, archived as"), id)
		} else {
			fmt.Println(SuccessStyle.Render("Conversation cleared."))
		}

	case "/retry", "/r":
		if eng.Snapshot().LastRole() != model.RoleAssistant {
			return true, fmt.Errorf("nothing to retry: the last message is not a reply")
		}
		return true, s.send(eng.Retry)

	case "/force":
		s.forced = !s.forced
		if s.forced {
			fmt.Println(DimStyle.Render("Forced-assistant mode on: type a message, then the reply to record."))
		} else {
			fmt.Println(DimStyle.Render("Forced-assistant mode off."))
		}

	case "/system":
		if rest == "" {
			if d := eng.Directive(); d != "" {
				fmt.Println(d)
			} else {
				fmt.Println(DimStyle.Render("(no directive)"))
			}
			return true, nil
		}
		if rest == "-" {
			rest = ""
		}
		if !eng.EditDirective(rest) {
			return true, fmt.Errorf("the directive can only be changed before the first message")
		}
		fmt.Println(SuccessStyle.Render("Directive updated."))

	case "/save":
		id, err := s.app.ArchiveCurrent()
		if err != nil {
			return true, err
		}
		if id == "" {
			return true, fmt.Errorf("nothing to save")
		}
		fmt.Printf("%s %s\n", SuccessStyle.Render("Saved as"), id)

	case "/load":
		if rest == "" {
			return true, usageErrorf("/load", "usage: /load <id|#>")
		}
		archived, err := s.app.LoadArchived(rest)
		if err != nil {
			return true, err
		}
		fmt.Printf("%s %s (%d messages)\n", SuccessStyle.Render("Loaded"), archived.Summary, len(archived.Messages))
		if !s.quiet {
			printTranscript(eng.Messages())
		}

	case "/list":
		if s.app.Archive == nil {
			return true, fmt.Errorf("archive is not available")
		}
		metas, err := s.app.Archive.List()
		if err != nil {
			return true, err
		}
		fmt.Print(storage.FormatArchiveList(metas))

	case "/export":
		if len(fields) < 2 {
			return true, usageErrorf("/export", "usage: /export md|json [path]")
		}
		path := ""
		if len(fields) > 2 {
			path = fields[2]
		}
		written, err := s.app.Export(fields[1], path)
		if err != nil {
			return true, err
		}
		fmt.Printf("%s %s\n", SuccessStyle.Render("Exported to"), written)

	default:
		return true, usageErrorf("", "unknown command %s (try /help)", cmd)
	}
	return true, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printWelcome() {
	cfg := s.app.Config
	fmt.Println(TitleStyle.Render("streamchat"))
	fmt.Println(RenderLabel("Endpoint") + ValueStyle.Render(s.app.Client.Config().Endpoint()))
	fmt.Println(RenderLabel("Storage") + ValueStyle.Render(cfg.Storage.Backend))
	if d := s.app.Engine.Directive(); d != "" {
		fmt.Println(RenderLabel("Directive") + ValueStyle.Render(model.NewSystemMessage(d).Preview(60)))
	}
	if msgs := s.app.Engine.Messages(); len(msgs) > 0 {
		fmt.Println(DimStyle.Render(fmt.Sprintf("Restored %d messages:", len(msgs))))
		printTranscript(msgs)
	}
	fmt.Println(DimStyle.Render("Type /help for commands, Ctrl+C cancels a reply."))
	fmt.Println()
}

// printTranscript prints one preview line per message.
func printTranscript(msgs []model.Message) {
	for _, m := range msgs {
		label := UserPromptStyle
		if m.Role == model.RoleAssistant {
			label = AssistantPromptStyle
		}
		fmt.Printf("  %s %s\n", label.Render(m.Role.DisplayName()+":"), m.Preview(72))
	}
}

func printChatHelp() {
	fmt.Println(TitleStyle.Render("Commands"))
	rows := [][2]string{
		{"/help", "Show this help"},
		{"/clear", "Clear conversation and directive"},
		{"/retry", "Regenerate the last reply"},
		{"/force", "Toggle forced-assistant mode"},
		{"/system [text|-]", "Show, set or clear the directive"},
		{"/save", "Archive the conversation"},
		{"/load <id|#>", "Load an archived conversation"},
		{"/list", "List archived conversations"},
		{"/export md|json [path]", "Export the conversation"},
		{"/quit", "Exit"},
	}
	for _, r := range rows {
		fmt.Println("  " + RenderLabel(r[0]) + r[1])
	}
}

func (s *chatSession) printExitSummary() {
	if s.quiet {
		return
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf("%d replies this session. Conversation saved.", s.turns)))
}
