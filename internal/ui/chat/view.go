// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/streamchat/internal/model"
)

// View renders the complete chat screen.
func (m Model) View() string {
	if !m.ready {
		return "\n  Starting..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.viewport.View(),
		m.renderStatus(),
		m.renderInput(),
	)
}

// =============================================================================
// HEADER, STATUS, INPUT
// =============================================================================

func (m Model) renderHeader() string {
	title := m.theme.HeaderTitle.Render("streamchat")
	right := m.opts.Title
	if m.directive != "" {
		right = "system set  " + right
	}
	gap := m.width - lipgloss.Width(title) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return m.theme.Header.Width(m.width).Render(title + strings.Repeat(" ", gap) + right)
}

func (m Model) renderStatus() string {
	var mode string
	switch {
	case m.editingDirective:
		mode = m.theme.StatusMode.Render("SYSTEM ")
	case m.forced:
		mode = m.theme.StatusMode.Render("FORCED ")
	}

	var body string
	switch {
	case m.streaming:
		body = m.spinner.View() + " Streaming... (esc to stop)"
	case m.notice != "":
		body = m.noticeStyle().Render(m.notice)
	case m.lastStats != "":
		body = m.lastStats
	default:
		body = m.help.ShortHelpView(m.keys.ShortHelp())
	}
	return m.theme.StatusBar.Width(m.width).Render(mode + body)
}

func (m Model) noticeStyle() lipgloss.Style {
	switch m.noticeKind {
	case noticeError:
		return m.theme.Error
	case noticeWarn:
		return m.theme.Warning
	default:
		return m.theme.Success
	}
}

func (m Model) renderInput() string {
	box := m.theme.InputBorder
	if m.streaming {
		box = m.theme.InputBorderLocked
	}
	return box.Render(m.input.View())
}

// =============================================================================
// CONVERSATION
// =============================================================================

// renderConversation renders the directive, the committed messages, the
// in-progress buffer and any command output.
func (m *Model) renderConversation() string {
	var b strings.Builder
	width := m.theme.ContentWidth()

	if m.directive != "" {
		b.WriteString(m.theme.SystemBox.Width(width).Render("System: " + m.directive))
		b.WriteString("\n\n")
	}

	if len(m.messages) == 0 && !m.streaming && m.panel == "" {
		b.WriteString(m.theme.Muted.Render("  Start typing to begin. /help lists commands."))
		b.WriteString("\n")
	}

	for _, msg := range m.messages {
		b.WriteString(m.renderMessage(msg, width))
		b.WriteString("\n")
	}

	if m.streaming {
		b.WriteString(m.theme.AssistantLabel.Render(model.RoleAssistant.DisplayName()))
		b.WriteString("\n")
		b.WriteString(m.theme.Streaming.Width(width).Render(m.buffer + "▌"))
		b.WriteString("\n")
	}

	if m.panel != "" {
		b.WriteString("\n")
		b.WriteString(m.theme.Muted.Render(m.panel))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *Model) renderMessage(msg model.Message, width int) string {
	var label string
	switch msg.Role {
	case model.RoleUser:
		label = m.theme.UserLabel.Render(msg.Role.DisplayName())
	default:
		label = m.theme.AssistantLabel.Render(msg.Role.DisplayName())
	}

	body := m.theme.MessageBody.Width(width).Render(msg.Content)
	if msg.Role == model.RoleAssistant && m.opts.Markdown {
		body = m.renderMarkdown(msg.Content, width)
	}
	return label + "\n" + body + "\n"
}

// renderMarkdown renders finished replies through glamour. Results are
// cached per content until the next resize.
func (m *Model) renderMarkdown(content string, width int) string {
	if cached, ok := m.renderCache[content]; ok {
		return cached
	}
	if m.renderer == nil {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.theme.GlamourStyle()),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return m.theme.MessageBody.Width(width).Render(content)
		}
		m.renderer = r
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return m.theme.MessageBody.Width(width).Render(content)
	}
	out = strings.Trim(out, "\n")
	m.renderCache[content] = out
	return out
}
