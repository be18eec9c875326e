// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - The "history" command: the stored conversation and
// the archive.

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/storage"
)

// HandleHistory runs "history show|clear|archives|delete|export".
func HandleHistory(args Args) error {
	return runHistory(context.Background(), args, os.Stdout)
}

func runHistory(ctx context.Context, args Args, w io.Writer) error {
	app, err := NewApp(ctx, args, AppOptions{})
	if err != nil {
		return err
	}
	defer app.Close()

	switch args.Subcommand {
	case "", "show":
		return historyShow(app, args, w)

	case "clear":
		id := app.Clear()
		if !args.Quiet {
			fmt.Fprintln(w, SuccessStyle.Render("Stored conversation cleared."))
			if id != "" {
				fmt.Fprintln(w, DimStyle.Render("Archived as "+id))
			}
		}
		return nil

	case "archives", "list":
		if app.Archive == nil {
			return fmt.Errorf("archive is not available")
		}
		metas, err := app.Archive.List()
		if err != nil {
			return err
		}
		if args.JSON {
			if metas == nil {
				metas = []storage.ArchiveMeta{}
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(metas)
		}
		fmt.Fprint(w, storage.FormatArchiveList(metas))
		return nil

	case "delete":
		id := argAt(args.Raw, 1)
		if id == "" {
			return usageErrorf("history delete", "usage: streamchat history delete <id>")
		}
		if app.Archive == nil {
			return fmt.Errorf("archive is not available")
		}
		if err := app.Archive.Delete(id); err != nil {
			return err
		}
		if !args.Quiet {
			fmt.Fprintf(w, "%s %s\n", SuccessStyle.Render("Deleted"), id)
		}
		return nil

	case "export":
		format := argAt(args.Raw, 1)
		if format == "" {
			return usageErrorf("history export", "usage: streamchat history export md|json [path]")
		}
		path, err := app.Export(format, argAt(args.Raw, 2))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, path)
		return nil

	default:
		return usageErrorf("history", "unknown subcommand %q (use show, clear, archives, delete or export)", args.Subcommand)
	}
}

func historyShow(app *App, args Args, w io.Writer) error {
	conv := app.Snapshot()
	if args.JSON {
		if conv.Messages == nil {
			conv.Messages = []model.Message{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(conv)
	}

	if conv.Directive != "" {
		fmt.Fprintln(w, RenderLabel("System")+conv.Directive)
	}
	if conv.IsEmpty() {
		fmt.Fprintln(w, DimStyle.Render("No stored conversation."))
		return nil
	}
	for _, m := range conv.Messages {
		fmt.Fprintln(w, RenderLabel(m.Role.DisplayName())+m.Preview(100))
	}
	return nil
}

func argAt(raw []string, i int) string {
	if i < 0 || i >= len(raw) {
		return ""
	}
	return raw[i]
}
