// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// serve.go - Local echo endpoint for trying the client without a backend.

package cli

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeranaias/streamchat/internal/server"
)

// HandleServe runs the dev endpoint until interrupted.
func HandleServe(args Args) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return runServe(ctx, args, os.Stdout)
}

func runServe(ctx context.Context, args Args, w io.Writer) error {
	cfg, _, err := loadConfig(args)
	if err != nil {
		return err
	}

	scfg := serverConfig(cfg.Endpoint.URL, cfg.Endpoint.Path, args)
	if !args.NoAuth {
		scfg.Pass = cfg.Auth.Pass
		scfg.SiteKey = cfg.Auth.SiteKey
	}

	srv := server.New(scfg)
	if !args.Quiet {
		fmt.Fprintln(w, TitleStyle.Render("streamchat dev endpoint"))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Endpoint"), ValueStyle.Render(srv.Endpoint()))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Pass required"), ValueStyle.Render(fmt.Sprint(scfg.Pass != "")))
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Signature required"), ValueStyle.Render(fmt.Sprint(scfg.SiteKey != "")))
		fmt.Fprintln(w, DimStyle.Render("Ctrl+C to stop"))
	}
	return srv.ListenAndServe(ctx)
}

// serverConfig derives the listen address from --addr or the configured
// endpoint URL, so a default client talks to a default server.
func serverConfig(endpointURL, path string, args Args) server.Config {
	addr := args.Addr
	if addr == "" {
		if u, err := url.Parse(endpointURL); err == nil && u.Host != "" && u.Port() != "" {
			addr = u.Host
		}
	}
	return server.Config{
		Addr:       addr,
		Path:       path,
		ChunkDelay: args.ChunkDelay,
		ChunkSize:  args.ChunkSize,
	}
}
