// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/server"
)

func TestParseServeArgs(t *testing.T) {
	cmd, args := ParseArgs([]string{"serve", "--addr", ":9000", "--delay", "5", "--chunk", "3", "--no-auth"})
	require.Equal(t, CmdServe, cmd)
	require.Equal(t, ":9000", args.Addr)
	require.Equal(t, 5*time.Millisecond, args.ChunkDelay)
	require.Equal(t, 3, args.ChunkSize)
	require.True(t, args.NoAuth)

	_, args = ParseArgs([]string{"serve", "--delay", "-4"})
	require.Equal(t, 30*time.Millisecond, args.ChunkDelay)
	require.Zero(t, args.ChunkSize)
}

func TestServerConfig_AddrFromEndpoint(t *testing.T) {
	cfg := serverConfig("http://127.0.0.1:4100", "/gen", Args{})
	require.Equal(t, "127.0.0.1:4100", cfg.Addr)
	require.Equal(t, "/gen", cfg.Path)

	// No explicit port: fall back to the server default
	cfg = serverConfig("https://chat.example.com", "", Args{})
	require.Empty(t, cfg.Addr)

	cfg = serverConfig("http://127.0.0.1:4100", "", Args{Addr: "127.0.0.1:5000"})
	require.Equal(t, "127.0.0.1:5000", cfg.Addr)
}

// TestApp_AgainstDevServer runs a full turn through the configured pass
// and signature against the dev endpoint.
func TestApp_AgainstDevServer(t *testing.T) {
	home := isolate(t)

	srv := server.New(server.Config{Pass: "s3cret", SiteKey: "site", ChunkSize: 2})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	cfgPath := writeConfig(t, home, ts.URL)
	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0600)
	require.NoError(t, err)
	_, err = f.WriteString("\n[auth]\npass = \"s3cret\"\nsite_key = \"site\"\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	app, err := NewApp(context.Background(), Args{ConfigPath: cfgPath}, AppOptions{Ephemeral: true})
	require.NoError(t, err)
	defer app.Close()

	submitAndWait(t, app, "naïve café")
	require.Equal(t, []model.Message{
		model.NewUserMessage("naïve café"),
		model.NewAssistantMessage("You said: naïve café\n"),
	}, app.Engine.Messages())
	require.Equal(t, int64(1), srv.Stats().Completed)
}

func TestRunServe_StopsOnCancel(t *testing.T) {
	home := isolate(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cfgPath := writeConfig(t, home, "http://"+addr)
	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- runServe(ctx, Args{ConfigPath: cfgPath, Quiet: true}, &out) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not stop")
	}
}
