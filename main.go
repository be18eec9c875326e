// streamchat - streaming chat client for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/cli"
	"github.com/jeranaias/streamchat/internal/storage"
	"github.com/jeranaias/streamchat/internal/ui/chat"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	closeLog := cli.SetupLogging(cmd, args)
	err := dispatch(cmd, args)
	closeLog()

	// HandleErrorAndExit calls os.Exit, so nothing may be deferred past here
	cli.HandleErrorAndExit(err, args.JSON)
}

func dispatch(cmd cli.Command, args cli.Args) error {
	switch cmd {
	case cli.CmdAsk:
		return cli.HandleAsk(args)
	case cli.CmdChat:
		return cli.HandleChat(args)
	case cli.CmdConfig:
		return cli.HandleConfig(args)
	case cli.CmdHistory:
		return cli.HandleHistory(args)
	case cli.CmdServe:
		return cli.HandleServe(args)
	case cli.CmdVersion:
		cli.PrintVersion()
		return nil
	case cli.CmdHelp:
		cli.PrintUsage()
		return nil
	default:
		return runTUI(args)
	}
}

// runTUI starts the full-screen chat.
func runTUI(args cli.Args) error {
	if err := cli.RequiresTTY("the TUI"); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Engine events reach the program through the pump; a listener must
	// never call program.Send since Update itself drives the engine.
	pump := chat.NewEventPump()
	defer pump.Close()

	app, err := cli.NewApp(ctx, args, cli.AppOptions{
		OnRender: pump.RenderNow,
		Watch:    true,
	})
	if err != nil {
		return err
	}
	defer app.Close()

	unsub := app.Engine.Subscribe(pump.Push)
	defer unsub()

	model := chat.New(chat.Options{
		Engine:        app.Engine,
		Pump:          pump,
		Theme:         styles.NewTheme(app.Config.UI.Theme),
		Context:       ctx,
		Title:         app.Client.Config().Endpoint(),
		Markdown:      app.Config.UI.Markdown && !args.NoMarkdown,
		InitialPrompt: strings.Join(args.Raw, " "),
		Clear:         app.Clear,
		Save:          app.ArchiveCurrent,
		Load: func(ref string) (string, error) {
			archived, err := app.LoadArchived(ref)
			if err != nil {
				return "", err
			}
			return archived.Summary, nil
		},
		List: func() (string, error) {
			if app.Archive == nil {
				return "", errors.New("archive is not available")
			}
			metas, err := app.Archive.List()
			if err != nil {
				return "", err
			}
			return storage.FormatArchiveList(metas), nil
		},
		Export: app.Export,
	})

	program := tea.NewProgram(model, tea.WithAltScreen())
	_, err = program.Run()
	return err
}
