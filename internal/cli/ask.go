// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question from the command line.
//
// The stored conversation is left alone: ask runs on an ephemeral
// conversation and only borrows the configured endpoint and credential.

package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/model"
)

// MaxFileSize caps --file and piped stdin.
const MaxFileSize = 1 << 20

// =============================================================================
// MARKDOWN RENDERING
// =============================================================================

// newMarkdownRenderer returns a glamour renderer for theme ("auto",
// "dark" or "light"), or nil if one cannot be built.
func newMarkdownRenderer(theme string, width int) *glamour.TermRenderer {
	style := glamour.WithAutoStyle()
	switch theme {
	case "dark", "light":
		style = glamour.WithStandardStyle(theme)
	}
	r, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(width))
	if err != nil {
		return nil
	}
	return r
}

// renderMarkdown renders content, or returns it unchanged on failure.
func renderMarkdown(r *glamour.TermRenderer, content string) string {
	if r == nil {
		return content
	}
	rendered, err := r.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// =============================================================================
// FILE READING
// =============================================================================

// readFileForContext reads a file and frames it for inclusion in a prompt.
func readFileForContext(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("file not found: %s", path)
		}
		return "", fmt.Errorf("cannot access file: %w", err)
	}
	if info.Size() > MaxFileSize {
		return "", fmt.Errorf("file too large: %d bytes (max %d bytes)", info.Size(), MaxFileSize)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n--- File: %s ---\n", path)
	b.Write(content)
	b.WriteString("\n--- End of file ---\n")
	return b.String(), nil
}

// =============================================================================
// ASK HANDLER
// =============================================================================

// AskResult is the --json output of ask.
type AskResult struct {
	Reply  string    `json:"reply"`
	Status string    `json:"status"`
	Stats  AskTiming `json:"stats"`
}

// AskTiming is the stats block of AskResult.
type AskTiming struct {
	Fragments  int   `json:"fragments"`
	Bytes      int   `json:"bytes"`
	TTFTMs     int64 `json:"ttft_ms"`
	DurationMs int64 `json:"duration_ms"`
}

// askRun collects the outcome of one streamed reply.
type askRun struct {
	raw bool

	outMu sync.Mutex
	out   *bufio.Writer

	done   chan struct{}
	status engine.Status
	stats  model.Statistics
	err    error
}

func (r *askRun) onEvent(ev engine.Event) {
	switch ev.Type {
	case engine.EventFragment:
		if r.raw {
			r.outMu.Lock()
			r.out.WriteString(ev.Fragment)
			r.outMu.Unlock()
		}
	case engine.EventStreamEnded:
		r.status = ev.Status
		r.stats = ev.Stats
	case engine.EventError:
		r.status = engine.StatusErrored
		r.err = ev.Err
	case engine.EventLoadingChanged:
		if !ev.Loading {
			close(r.done)
		}
	}
}

func (r *askRun) flush() {
	r.outMu.Lock()
	r.out.Flush()
	r.outMu.Unlock()
}

// HandleAsk streams one reply to stdout.
func HandleAsk(args Args) error {
	return runAsk(context.Background(), args, os.Stdin, os.Stdout, os.Stderr)
}

func runAsk(ctx context.Context, args Args, stdin io.Reader, stdout, stderr io.Writer) error {
	question := strings.TrimSpace(args.Query)
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(io.LimitReader(stdin, MaxFileSize))
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return usageErrorf("ask", "no question given\nUsage: streamchat ask \"question\" [--file FILE]")
	}
	if args.File != "" {
		content, err := readFileForContext(args.File)
		if err != nil {
			return err
		}
		question += content
	}

	run := &askRun{out: bufio.NewWriter(stdout), done: make(chan struct{})}
	app, err := NewApp(ctx, args, AppOptions{Ephemeral: true, OnRender: run.flush})
	if err != nil {
		return err
	}
	defer app.Close()

	markdown := app.Config.UI.Markdown && !args.NoMarkdown && !args.JSON && stdout == io.Writer(os.Stdout) && IsStdoutTTY()
	run.raw = !args.JSON && !markdown

	unsub := app.Engine.Subscribe(run.onEvent)
	defer unsub()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		for range sigChan {
			app.Engine.Cancel()
		}
	}()

	if markdown && !args.Quiet {
		fmt.Fprintln(stderr, DimStyle.Render("Waiting for reply... (Ctrl+C to stop)"))
	}
	if err := app.Engine.Submit(ctx, question); err != nil {
		return err
	}
	<-run.done
	run.flush()

	if run.err != nil {
		return run.err
	}

	reply := ""
	if msgs := app.Engine.Messages(); len(msgs) > 0 && msgs[len(msgs)-1].Role == model.RoleAssistant {
		reply = msgs[len(msgs)-1].Content
	}

	switch {
	case args.JSON:
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(AskResult{
			Reply:  reply,
			Status: string(run.status),
			Stats: AskTiming{
				Fragments:  run.stats.Fragments,
				Bytes:      run.stats.Bytes,
				TTFTMs:     run.stats.TTFT.Milliseconds(),
				DurationMs: run.stats.TotalDuration.Round(time.Millisecond).Milliseconds(),
			},
		}); err != nil {
			return err
		}
	case markdown:
		fmt.Fprint(stdout, renderMarkdown(newMarkdownRenderer(app.Config.UI.Theme, GetTerminalWidth()-4), reply))
	default:
		if reply != "" && !strings.HasSuffix(reply, "\n") {
			fmt.Fprintln(stdout)
		}
	}

	if !args.Quiet && !args.JSON {
		fmt.Fprintln(stderr, DimStyle.Render(run.stats.Format()))
	}
	if run.status == engine.StatusCancelled {
		return ErrCancelled
	}
	return nil
}
