// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme holds the styled components of the chat screen.
type Theme struct {
	// Name is "auto", "dark" or "light" as configured
	Name   string
	IsDark bool

	Width  int
	Height int

	Header      lipgloss.Style
	HeaderTitle lipgloss.Style

	UserLabel      lipgloss.Style
	AssistantLabel lipgloss.Style
	SystemBox      lipgloss.Style
	MessageBody    lipgloss.Style
	Streaming      lipgloss.Style

	InputBorder       lipgloss.Style
	InputBorderLocked lipgloss.Style

	StatusBar  lipgloss.Style
	StatusMode lipgloss.Style

	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Muted   lipgloss.Style
	Spinner lipgloss.Style
}

// NewTheme builds a theme for name ("auto", "dark" or "light"). "auto"
// asks the terminal for its background.
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	var isDark bool
	switch name {
	case "dark":
		isDark = true
	case "light":
		isDark = false
	default:
		name = "auto"
		isDark = termenv.HasDarkBackground()
	}
	// AdaptiveColor follows this flag
	lipgloss.SetHasDarkBackground(isDark)

	t := &Theme{Name: name, IsDark: isDark}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	t.Header = lipgloss.NewStyle().
		Foreground(ColorLabel).
		Background(ColorSurface).
		Padding(0, 1)

	t.HeaderTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorUser).
		Background(ColorSurface)

	t.UserLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorUser)

	t.AssistantLabel = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorAssistant)

	t.SystemBox = lipgloss.NewStyle().
		Foreground(ColorWarning).
		BorderStyle(lipgloss.NormalBorder()).
		BorderLeft(true).
		BorderForeground(ColorWarning).
		PaddingLeft(1)

	t.MessageBody = lipgloss.NewStyle().
		Foreground(ColorText).
		PaddingLeft(2)

	t.Streaming = t.MessageBody.Copy().
		Foreground(ColorText)

	t.InputBorder = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(ColorUser).
		Padding(0, 1)

	t.InputBorderLocked = t.InputBorder.Copy().
		BorderForeground(ColorBorder)

	t.StatusBar = lipgloss.NewStyle().
		Foreground(ColorHint).
		Background(ColorSurface).
		Padding(0, 1)

	t.StatusMode = lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorWarning).
		Background(ColorSurface)

	t.Error = lipgloss.NewStyle().Foreground(ColorError)
	t.Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	t.Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	t.Muted = lipgloss.NewStyle().Foreground(ColorHint)
	t.Spinner = lipgloss.NewStyle().Foreground(ColorAssistant)
}

// SetSize updates the theme dimensions.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// ContentWidth is the width available to message bodies.
func (t *Theme) ContentWidth() int {
	w := t.Width - 4
	if w < 20 {
		w = 20
	}
	return w
}
