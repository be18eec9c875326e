// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/transport"
)

// =============================================================================
// SLASH COMMANDS
// =============================================================================

const helpText = `Commands:
  /clear              Archive and clear the conversation
  /retry, /r          Drop the last reply and ask again
  /force              Toggle forced mode (store replies you type yourself)
  /system [text|-]    Edit, set or clear the directive (empty conversation only)
  /save               Archive the conversation, keep chatting
  /load <id|#>        Replace the conversation with an archived one
  /list               List archived conversations
  /export md|json [p] Export the conversation
  /help, /?           Show this help
  /quit, /q           Leave`

// handleCommand runs one slash command typed into the input.
func (m Model) handleCommand(line string) (tea.Model, tea.Cmd) {
	fields := strings.Fields(line)
	cmd := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch cmd {
	case "/quit", "/exit", "/q":
		m.engine.Cancel()
		return m, tea.Quit

	case "/help", "/?":
		m.showPanel(helpText + "\n\n" + m.help.FullHelpView(m.keys.FullHelp()))

	case "/clear":
		m.clearConversation()

	case "/retry", "/r":
		return m.retry()

	case "/force":
		m.forced = !m.forced
		m.forcedUser = ""
		m.input.Placeholder = forcedPlaceholder(false)
		if !m.forced {
			m.input.Placeholder = "Type a message, or /help"
			m.setNotice(noticeInfo, "Forced mode off")
		} else {
			m.setNotice(noticeWarn, "Forced mode on: messages are stored, not sent")
		}

	case "/system":
		m.systemCommand(rest)

	case "/save":
		if m.opts.Save == nil {
			m.setNotice(noticeWarn, "Archive is not available")
			break
		}
		id, err := m.opts.Save()
		if err != nil {
			m.setError(err)
			break
		}
		m.setNotice(noticeInfo, "Saved as "+id)

	case "/load":
		if rest == "" {
			m.setNotice(noticeWarn, "Usage: /load <id|#>")
			break
		}
		if m.opts.Load == nil {
			m.setNotice(noticeWarn, "Archive is not available")
			break
		}
		summary, err := m.opts.Load(rest)
		if err != nil {
			m.setError(err)
			break
		}
		m.setNotice(noticeInfo, "Loaded: "+summary)

	case "/list":
		if m.opts.List == nil {
			m.setNotice(noticeWarn, "Archive is not available")
			break
		}
		out, err := m.opts.List()
		if err != nil {
			m.setError(err)
			break
		}
		m.showPanel(out)

	case "/export":
		if len(fields) < 2 {
			m.setNotice(noticeWarn, "Usage: /export md|json [path]")
			break
		}
		if m.opts.Export == nil {
			m.setNotice(noticeWarn, "Export is not available")
			break
		}
		path := ""
		if len(fields) > 2 {
			path = fields[2]
		}
		written, err := m.opts.Export(fields[1], path)
		if err != nil {
			m.setError(err)
			break
		}
		m.setNotice(noticeInfo, "Exported to "+written)

	default:
		m.setNotice(noticeWarn, fmt.Sprintf("Unknown command %s (try /help)", cmd))
	}
	return m, nil
}

func (m *Model) clearConversation() {
	if m.opts.Clear == nil {
		m.engine.Clear()
		m.setNotice(noticeInfo, "Conversation cleared")
		return
	}
	if id := m.opts.Clear(); id != "" {
		m.setNotice(noticeInfo, "Conversation archived as "+id)
		return
	}
	m.setNotice(noticeInfo, "Conversation cleared")
}

// =============================================================================
// DIRECTIVE EDITOR
// =============================================================================

// systemCommand opens the editor with no argument, clears with "-" and
// sets the directive otherwise.
func (m *Model) systemCommand(arg string) {
	if !m.engine.CanEditDirective() {
		m.setNotice(noticeWarn, "The directive can only change before the first message")
		return
	}
	switch arg {
	case "":
		m.openDirectiveEditor()
	case "-":
		m.engine.EditDirective("")
		m.setNotice(noticeInfo, "Directive cleared")
	default:
		m.engine.EditDirective(arg)
		m.setNotice(noticeInfo, "Directive set")
	}
}

func (m *Model) openDirectiveEditor() {
	m.editingDirective = true
	m.engine.SetEditingDirective(true)
	m.input.SetValue(m.directive)
	m.input.Placeholder = "System directive (enter to save, esc to cancel)"
	m.setNotice(noticeWarn, "Editing the system directive")
}

func (m *Model) closeDirectiveEditor() {
	m.editingDirective = false
	m.engine.SetEditingDirective(false)
	m.input.Reset()
	m.input.Placeholder = "Type a message, or /help"
	if m.forced {
		m.input.Placeholder = forcedPlaceholder(false)
	}
}

func (m *Model) commitDirective(text string) {
	m.closeDirectiveEditor()
	if !m.engine.EditDirective(text) {
		m.setNotice(noticeWarn, "The directive can only change before the first message")
		return
	}
	if text == "" {
		m.setNotice(noticeInfo, "Directive cleared")
		return
	}
	m.setNotice(noticeInfo, "Directive set")
}

// =============================================================================
// ERROR TEXT
// =============================================================================

// describeError turns engine and transport failures into a status line.
func describeError(err error) string {
	switch {
	case errors.Is(err, engine.ErrBusy):
		return "A reply is still streaming (esc to stop it)"
	case transport.IsStatus(err):
		code := transport.StatusCode(err)
		if code == 401 || code == 403 {
			return fmt.Sprintf("Endpoint refused the request (HTTP %d): check auth.pass", code)
		}
		return fmt.Sprintf("Endpoint returned HTTP %d", code)
	case transport.IsStreamRead(err):
		return "Connection lost while reading the reply"
	case errors.Is(err, transport.ErrTransport):
		return "Cannot reach the endpoint: " + err.Error()
	default:
		return err.Error()
	}
}
