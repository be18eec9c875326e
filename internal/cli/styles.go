// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - lipgloss styles for the line-based commands, drawn from the
// same palette as the TUI.
//
// Colors are dropped for piped output and NO_COLOR. CLICOLOR_FORCE
// turns them back on.

package cli

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/ui/styles"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

func fg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c)
}

var (
	TitleStyle   = fg(styles.ColorUser).Bold(true)
	ValueStyle   = fg(styles.ColorText)
	SuccessStyle = fg(styles.ColorSuccess).Bold(true)
	ErrorStyle   = fg(styles.ColorError).Bold(true)
	WarningStyle = fg(styles.ColorWarning)
	DimStyle     = fg(styles.ColorHint)

	// Prompts in "streamchat chat"
	UserPromptStyle      = fg(styles.ColorUser).Bold(true)
	AssistantPromptStyle = fg(styles.ColorAssistant).Bold(true)

	// Left column of key/value listings
	labelStyle = fg(styles.ColorLabel).Width(24)
)

// RenderLabel pads label to the key column.
func RenderLabel(label string) string {
	return labelStyle.Render(label)
}

// RenderError renders "[Error] msg" for stderr.
func RenderError(msg string) string {
	return ErrorStyle.Render("[Error]") + " " + msg
}
