// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/config"
	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/transport"
)

// =============================================================================
// HELPERS
// =============================================================================

// isolate points HOME at a temp dir and clears STREAMCHAT_* variables.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, k := range []string{
		"STREAMCHAT_ENDPOINT", "STREAMCHAT_PASS", "STREAMCHAT_SITE_KEY",
		"STREAMCHAT_STORAGE", "STREAMCHAT_STATE_DIR", "STREAMCHAT_REDIS_ADDR",
	} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
	config.ResetGlobalForTesting()
	return home
}

// writeConfig writes a TOML config pointing at endpoint with file storage
// under dir and returns its path.
func writeConfig(t *testing.T, dir, endpoint string) string {
	t.Helper()
	path := filepath.Join(dir, "config.toml")
	body := fmt.Sprintf(`[endpoint]
url = %q

[storage]
backend = "file"
dir = %q

[ui]
markdown = false
`, endpoint, filepath.Join(dir, "state"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	return path
}

// replyServer streams chunks for every request and records the last body.
type replyServer struct {
	*httptest.Server
	chunks []string
	last   chan transport.GenerateRequest
}

func newReplyServer(t *testing.T, chunks ...string) *replyServer {
	t.Helper()
	rs := &replyServer{chunks: chunks, last: make(chan transport.GenerateRequest, 8)}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req transport.GenerateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err == nil {
			rs.last <- req
		}
		flusher, _ := w.(http.Flusher)
		for _, c := range rs.chunks {
			w.Write([]byte(c))
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(rs.Close)
	return rs
}

// =============================================================================
// ARGUMENT PARSING
// =============================================================================

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name  string
		argv  []string
		cmd   Command
		check func(t *testing.T, a Args)
	}{
		{"no args is tui", nil, CmdTUI, nil},
		{"ask query", []string{"ask", "what", "is", "go"}, CmdAsk, func(t *testing.T, a Args) {
			require.Equal(t, "what is go", a.Query)
		}},
		{"ask file and no-markdown", []string{"ask", "--no-markdown", "explain", "-f", "main.go"}, CmdAsk, func(t *testing.T, a Args) {
			require.Equal(t, "explain", a.Query)
			require.Equal(t, "main.go", a.File)
			require.True(t, a.NoMarkdown)
		}},
		{"global flags anywhere", []string{"ask", "hi", "--json", "-q"}, CmdAsk, func(t *testing.T, a Args) {
			require.True(t, a.JSON)
			require.True(t, a.Quiet)
			require.Equal(t, "hi", a.Query)
		}},
		{"value flags", []string{"--system=Be brief", "--storage", "sqlite", "--config", "/tmp/c.toml", "chat"}, CmdChat, func(t *testing.T, a Args) {
			require.Equal(t, "Be brief", a.System)
			require.Equal(t, "sqlite", a.Storage)
			require.Equal(t, "/tmp/c.toml", a.ConfigPath)
		}},
		{"config set joins value", []string{"config", "set", "endpoint.url", "http://x"}, CmdConfig, func(t *testing.T, a Args) {
			require.Equal(t, "set", a.Subcommand)
			require.Equal(t, "endpoint.url", a.ConfigKey)
			require.Equal(t, "http://x", a.ConfigVal)
		}},
		{"history subcommand", []string{"history", "Archives"}, CmdHistory, func(t *testing.T, a Args) {
			require.Equal(t, "archives", a.Subcommand)
		}},
		{"version", []string{"--version"}, CmdVersion, nil},
		{"help", []string{"-h"}, CmdHelp, nil},
		{"unknown word opens tui with prompt", []string{"Hello", "there"}, CmdTUI, func(t *testing.T, a Args) {
			require.Equal(t, []string{"Hello", "there"}, a.Raw)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, args := ParseArgs(tt.argv)
			require.Equal(t, tt.cmd, cmd, "command %s", cmd)
			if tt.check != nil {
				tt.check(t, args)
			}
		})
	}
}

func TestArgParser(t *testing.T) {
	p := NewArgParser([]string{"set", "--dry", "key", "--level=3", "-n", "-5", "--", "--literal"}, "dry")

	require.Equal(t, "set", p.Subcommand())
	require.True(t, p.BoolFlag("dry"))
	require.Equal(t, "3", p.Flag("level"))
	require.Equal(t, "", p.Flag("n"))
	require.True(t, p.HasFlag("n"))
	require.Equal(t, "-5", p.Positional(2))
	require.Equal(t, "", p.Positional(9))
	require.Equal(t, "key -5 --literal", JoinPositionalArgs(p, 1))

	n, ok := p.IntFlag("level")
	require.True(t, ok)
	require.Equal(t, 3, n)
	_, ok = p.IntFlag("missing")
	require.False(t, ok)
}

func TestParseBoolString(t *testing.T) {
	for _, s := range []string{"true", "YES", "y", "1", "on"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		require.True(t, v, s)
	}
	for _, s := range []string{"false", "No", "n", "0", "off"} {
		v, err := ParseBoolString(s)
		require.NoError(t, err)
		require.False(t, v, s)
	}
	_, err := ParseBoolString("maybe")
	require.Error(t, err)
}

func TestWrapText(t *testing.T) {
	require.Equal(t, "short", WrapText("short", 20))
	require.Equal(t, "aaa bbb\nccc", WrapText("aaa bbb ccc", 7))
	require.Equal(t, "keep\n\nlines", WrapText("keep\n\nlines", 20))
	// Wide runes count as two cells each
	require.Equal(t, "日本\n語", WrapText("日本 語", 5))
}

func TestGetExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"cancelled", ErrCancelled, ExitCancelled},
		{"usage", usageErrorf("ask", "no question"), ExitUsageError},
		{"busy", engine.ErrBusy, ExitUsageError},
		{"validation", fmt.Errorf("invalid config: %w", config.ValidateErrors{{Field: "ui.theme", Message: "bad"}}), ExitConfigError},
		{"backend", storage.ErrUnknownBackend, ExitConfigError},
		{"archive", storage.ErrArchiveNotFound, ExitNotFoundError},
		{"transport", fmt.Errorf("send: %w", transport.ErrTransport), ExitNetworkError},
		{"other", errors.New("boom"), ExitGeneralError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

// =============================================================================
// CONFIG COMMAND
// =============================================================================

func TestConfigCommand_SetGetShow(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "custom.toml")
	base := Args{ConfigPath: path, Quiet: true}

	set := func(key, val string) error {
		a := base
		a.Subcommand, a.ConfigKey, a.ConfigVal = "set", key, val
		return runConfig(a, &bytes.Buffer{})
	}
	require.NoError(t, set("endpoint.url", "https://chat.example.com"))
	require.NoError(t, set("ui.markdown", "off"))
	require.NoError(t, set("auth.pass", "hunter2-long-secret"))

	// Invalid values never reach the file
	require.Error(t, set("ui.theme", "neon"))
	require.Error(t, set("ui.markdown", "maybe"))
	require.Error(t, set("no.such_key", "x"))

	cfg, err := config.LoadFromPath(path)
	require.NoError(t, err)
	require.Equal(t, "https://chat.example.com", cfg.Endpoint.URL)
	require.False(t, cfg.UI.Markdown)
	require.Equal(t, "auto", cfg.UI.Theme)

	var out bytes.Buffer
	get := base
	get.Subcommand, get.ConfigKey = "get", "auth.pass"
	require.NoError(t, runConfig(get, &out))
	require.Equal(t, "****cret\n", out.String())

	out.Reset()
	show := base
	show.Subcommand, show.JSON = "show", true
	require.NoError(t, runConfig(show, &out))
	var shown map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &shown))
	require.Equal(t, "https://chat.example.com", shown["endpoint.url"])
	require.Equal(t, true, shown["auth.pass"])
	require.Equal(t, false, shown["auth.site_key"])
}

func TestConfigCommand_UnknownSubcommand(t *testing.T) {
	isolate(t)
	err := runConfig(Args{Subcommand: "reset"}, &bytes.Buffer{})
	require.Equal(t, ExitUsageError, GetExitCode(err))
}

// =============================================================================
// APP WIRING
// =============================================================================

// submitAndWait sends text and blocks until the reply ended.
func submitAndWait(t *testing.T, app *App, text string) {
	t.Helper()
	done := make(chan struct{})
	unsub := app.Engine.Subscribe(func(ev engine.Event) {
		if ev.Type == engine.EventLoadingChanged && !ev.Loading {
			close(done)
		}
	})
	defer unsub()

	require.NoError(t, app.Engine.Submit(context.Background(), text))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("reply did not finish")
	}
}

func TestApp_PersistsAcrossRestarts(t *testing.T) {
	home := isolate(t)
	srv := newReplyServer(t, "Hello", ", world")
	cfgPath := writeConfig(t, home, srv.URL)

	app, err := NewApp(context.Background(), Args{ConfigPath: cfgPath, System: "Be brief"}, AppOptions{})
	require.NoError(t, err)
	submitAndWait(t, app, "hi")
	require.NoError(t, app.Close())

	req := <-srv.last
	require.Equal(t, []model.Message{
		model.NewSystemMessage("Be brief"),
		model.NewUserMessage("hi"),
	}, req.Messages)
	require.Nil(t, req.Pass)

	reopened, err := NewApp(context.Background(), Args{ConfigPath: cfgPath, System: "ignored"}, AppOptions{})
	require.NoError(t, err)
	defer reopened.Close()

	require.Equal(t, []model.Message{
		model.NewUserMessage("hi"),
		model.NewAssistantMessage("Hello, world"),
	}, reopened.Engine.Messages())
	// The one-shot directive does not override a restored conversation
	require.Equal(t, "Be brief", reopened.Engine.Directive())
}

func TestApp_ClearArchivesAndLoads(t *testing.T) {
	home := isolate(t)
	srv := newReplyServer(t, "Go is a language.")
	cfgPath := writeConfig(t, home, srv.URL)

	app, err := NewApp(context.Background(), Args{ConfigPath: cfgPath}, AppOptions{})
	require.NoError(t, err)
	defer app.Close()

	submitAndWait(t, app, "What is Go?")
	id := app.Clear()
	require.NotEmpty(t, id)
	require.Empty(t, app.Engine.Messages())

	archived, err := app.LoadArchived("0")
	require.NoError(t, err)
	require.Equal(t, id, archived.ID)
	require.Len(t, app.Engine.Messages(), 2)

	written, err := app.Export("json", filepath.Join(home, "out.json"))
	require.NoError(t, err)
	data, err := os.ReadFile(written)
	require.NoError(t, err)
	require.Contains(t, string(data), "Go is a language.")
}

func TestApp_StoredPassIsSent(t *testing.T) {
	home := isolate(t)
	srv := newReplyServer(t, "ok")
	cfgPath := writeConfig(t, home, srv.URL)

	app, err := NewApp(context.Background(), Args{ConfigPath: cfgPath}, AppOptions{})
	require.NoError(t, err)
	require.NoError(t, app.SetPass(context.Background(), "s3cret"))
	require.NoError(t, app.Close())

	// A fresh process picks the pass up from storage
	app, err = NewApp(context.Background(), Args{ConfigPath: cfgPath}, AppOptions{Ephemeral: true})
	require.NoError(t, err)
	defer app.Close()
	submitAndWait(t, app, "ping")

	req := <-srv.last
	require.NotNil(t, req.Pass)
	require.Equal(t, "s3cret", *req.Pass)
}

func TestApp_StorageOverrideValidated(t *testing.T) {
	home := isolate(t)
	cfgPath := writeConfig(t, home, "http://127.0.0.1:1")

	_, err := NewApp(context.Background(), Args{ConfigPath: cfgPath, Storage: "etcd"}, AppOptions{})
	require.Error(t, err)
	require.Equal(t, ExitConfigError, GetExitCode(err))
}

// =============================================================================
// ASK AND HISTORY
// =============================================================================

func TestRunAsk_JSON(t *testing.T) {
	home := isolate(t)
	srv := newReplyServer(t, "four", "\n")
	cfgPath := writeConfig(t, home, srv.URL)

	var stdout, stderr bytes.Buffer
	err := runAsk(context.Background(), Args{ConfigPath: cfgPath, Query: "2+2?", JSON: true}, strings.NewReader(""), &stdout, &stderr)
	require.NoError(t, err)

	var res AskResult
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &res))
	require.Equal(t, "four\n", res.Reply)
	require.Equal(t, string(engine.StatusCompleted), res.Status)
	require.Equal(t, 5, res.Stats.Bytes)

	// ask never touches the stored conversation
	conv, err := storage.LoadState(context.Background(), mustFileStore(t, home))
	require.NoError(t, err)
	require.True(t, conv.IsEmpty())
}

func TestRunAsk_RawStreamAndFile(t *testing.T) {
	home := isolate(t)
	srv := newReplyServer(t, "line one", "\n", "line two")
	cfgPath := writeConfig(t, home, srv.URL)
	attachment := filepath.Join(home, "notes.txt")
	require.NoError(t, os.WriteFile(attachment, []byte("remember this"), 0600))

	var stdout, stderr bytes.Buffer
	args := Args{ConfigPath: cfgPath, Query: "summarize", File: attachment, Quiet: true}
	require.NoError(t, runAsk(context.Background(), args, strings.NewReader(""), &stdout, &stderr))
	require.Equal(t, "line one\nline two\n", stdout.String())

	req := <-srv.last
	require.Len(t, req.Messages, 1)
	require.Contains(t, req.Messages[0].Content, "summarize")
	require.Contains(t, req.Messages[0].Content, "--- File: "+attachment+" ---")
	require.Contains(t, req.Messages[0].Content, "remember this")
}

func TestRunAsk_HTTPError(t *testing.T) {
	home := isolate(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()
	cfgPath := writeConfig(t, home, srv.URL)

	err := runAsk(context.Background(), Args{ConfigPath: cfgPath, Query: "hi"}, strings.NewReader(""), &bytes.Buffer{}, &bytes.Buffer{})
	require.Error(t, err)
	require.True(t, transport.IsStatus(err))
	require.Equal(t, ExitAuthError, GetExitCode(err))
}

func TestRunAsk_NoQuestion(t *testing.T) {
	isolate(t)
	err := runAsk(context.Background(), Args{}, strings.NewReader("   "), &bytes.Buffer{}, &bytes.Buffer{})
	require.Equal(t, ExitUsageError, GetExitCode(err))
}

func TestRunHistory(t *testing.T) {
	home := isolate(t)
	srv := newReplyServer(t, "pong")
	cfgPath := writeConfig(t, home, srv.URL)

	app, err := NewApp(context.Background(), Args{ConfigPath: cfgPath}, AppOptions{})
	require.NoError(t, err)
	submitAndWait(t, app, "ping")
	require.NoError(t, app.Close())

	var out bytes.Buffer
	require.NoError(t, runHistory(context.Background(), Args{ConfigPath: cfgPath, JSON: true}, &out))
	var conv model.Conversation
	require.NoError(t, json.Unmarshal(out.Bytes(), &conv))
	require.Len(t, conv.Messages, 2)

	out.Reset()
	require.NoError(t, runHistory(context.Background(), Args{ConfigPath: cfgPath, Subcommand: "clear", Quiet: true}, &out))

	out.Reset()
	require.NoError(t, runHistory(context.Background(), Args{ConfigPath: cfgPath, Subcommand: "archives", JSON: true}, &out))
	var metas []storage.ArchiveMeta
	require.NoError(t, json.Unmarshal(out.Bytes(), &metas))
	require.Len(t, metas, 1)
	require.Equal(t, 2, metas[0].MessageCount)

	out.Reset()
	require.NoError(t, runHistory(context.Background(), Args{ConfigPath: cfgPath, JSON: true}, &out))
	require.NoError(t, json.Unmarshal(out.Bytes(), &conv))
	require.Empty(t, conv.Messages)
}

func mustFileStore(t *testing.T, home string) storage.Store {
	t.Helper()
	s, err := storage.NewFileStore(filepath.Join(home, "state", "state.json"))
	require.NoError(t, err)
	return s
}
