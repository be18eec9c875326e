// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/streamchat/internal/engine"
	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/ui/styles"
)

// =============================================================================
// OPTIONS
// =============================================================================

// Options wires the model to the rest of the application. The archive
// callbacks are optional; a nil callback disables its command.
type Options struct {
	Engine *engine.Engine
	Pump   *EventPump
	Theme  *styles.Theme

	// Context bounds every stream started from the UI.
	Context context.Context

	// Title is shown in the header, usually the endpoint URL.
	Title string

	// Markdown renders finished assistant replies with glamour.
	Markdown bool

	// Clear archives and clears the conversation, returning the archive
	// id ("" when nothing was archived).
	Clear func() string

	Save   func() (string, error)
	Load   func(ref string) (string, error)
	List   func() (string, error)
	Export func(format, path string) (string, error)

	// InitialPrompt is submitted as soon as the screen starts.
	InitialPrompt string
}

// initialPromptMsg submits Options.InitialPrompt from inside the loop.
type initialPromptMsg struct{ text string }

// =============================================================================
// MODEL
// =============================================================================

type noticeKind int

const (
	noticeInfo noticeKind = iota
	noticeWarn
	noticeError
)

// Model is the chat screen.
type Model struct {
	opts   Options
	engine *engine.Engine
	pump   *EventPump
	theme  *styles.Theme
	keys   KeyMap
	ctx    context.Context

	viewport viewport.Model
	input    textarea.Model
	spinner  spinner.Model
	help     help.Model

	// Mirrors of engine state, refreshed from events
	messages  []model.Message
	directive string
	buffer    string
	streaming bool

	renderer    *glamour.TermRenderer
	renderCache map[string]string

	// Forced mode collects a user line, then the reply to store for it
	forced     bool
	forcedUser string

	editingDirective bool

	notice     string
	noticeKind noticeKind
	panel      string
	lastStats  string

	width  int
	height int
	ready  bool
}

// New creates the chat model. The engine must already be subscribed to
// the pump.
func New(opts Options) Model {
	theme := opts.Theme
	if theme == nil {
		theme = styles.NewTheme("auto")
	}
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	keys := DefaultKeyMap()

	input := textarea.New()
	input.Placeholder = "Type a message, or /help"
	input.ShowLineNumbers = false
	input.CharLimit = 0
	input.SetHeight(3)
	input.KeyMap.InsertNewline = keys.Newline
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	m := Model{
		opts:        opts,
		engine:      opts.Engine,
		pump:        opts.Pump,
		theme:       theme,
		keys:        keys,
		ctx:         ctx,
		viewport:    viewport.New(80, 20),
		input:       input,
		spinner:     sp,
		help:        help.New(),
		renderCache: make(map[string]string),
	}
	m.syncFromEngine()
	m.streaming = m.engine.Loading()
	m.buffer = m.engine.Buffer()
	return m
}

// Init starts the cursor blink and the event pump.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textarea.Blink, m.pump.Wait()}
	if text := strings.TrimSpace(m.opts.InitialPrompt); text != "" {
		cmds = append(cmds, func() tea.Msg { return initialPromptMsg{text: text} })
	}
	return tea.Batch(cmds...)
}

// =============================================================================
// UPDATE
// =============================================================================

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleResize(msg)

	case tea.KeyMsg:
		return m.handleKey(msg)

	case EngineBatchMsg:
		return m.handleBatch(msg)

	case initialPromptMsg:
		if err := m.engine.Submit(m.ctx, msg.text); err != nil {
			m.setError(err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.streaming {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// handleResize lays out header, viewport, status bar and input box.
func (m Model) handleResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height
	m.theme.SetSize(msg.Width, msg.Height)

	headerHeight := 1
	statusHeight := 1
	inputHeight := m.input.Height() + 2

	vpHeight := msg.Height - headerHeight - statusHeight - inputHeight
	if vpHeight < 3 {
		vpHeight = 3
	}
	m.viewport.Width = msg.Width
	m.viewport.Height = vpHeight
	m.input.SetWidth(msg.Width - 4)

	// Wrapping depends on width, so cached renders are stale
	m.renderer = nil
	m.renderCache = make(map[string]string)
	m.ready = true

	m.refreshViewport(true)
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.streaming {
			m.engine.Cancel()
			return m, nil
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Cancel):
		switch {
		case m.editingDirective:
			m.closeDirectiveEditor()
			m.setNotice(noticeInfo, "Directive unchanged")
		case m.forced && m.forcedUser != "":
			m.forcedUser = ""
			m.input.Placeholder = forcedPlaceholder(false)
			m.setNotice(noticeInfo, "Forced reply discarded")
		case m.streaming:
			m.engine.Cancel()
		case m.panel != "":
			m.panel = ""
			m.refreshViewport(false)
		}
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		return m.submitInput()

	case key.Matches(msg, m.keys.Retry):
		return m.retry()

	case key.Matches(msg, m.keys.PageUp):
		m.viewport.HalfViewUp()
		return m, nil
	case key.Matches(msg, m.keys.PageDown):
		m.viewport.HalfViewDown()
		return m, nil
	case key.Matches(msg, m.keys.Top):
		m.viewport.GotoTop()
		return m, nil
	case key.Matches(msg, m.keys.Bottom):
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submitInput routes the input box to the directive editor, a slash
// command, forced mode or the engine.
func (m Model) submitInput() (tea.Model, tea.Cmd) {
	raw := m.input.Value()
	text := strings.TrimSpace(raw)

	if m.editingDirective {
		m.input.Reset()
		m.commitDirective(text)
		return m, nil
	}
	if text == "" {
		return m, nil
	}
	m.input.Reset()
	m.panel = ""

	if strings.HasPrefix(text, "/") && m.forcedUser == "" {
		return m.handleCommand(text)
	}

	if m.forced {
		if m.forcedUser == "" {
			m.forcedUser = text
			m.input.Placeholder = forcedPlaceholder(true)
			m.setNotice(noticeWarn, "Now type the reply to store for that message")
			return m, nil
		}
		user := m.forcedUser
		m.forcedUser = ""
		m.input.Placeholder = forcedPlaceholder(false)
		if err := m.engine.ForceAssistant(user, text); err != nil {
			m.setError(err)
		}
		return m, nil
	}

	m.notice = ""
	if err := m.engine.Submit(m.ctx, text); err != nil {
		m.setError(err)
	}
	return m, nil
}

func (m Model) retry() (tea.Model, tea.Cmd) {
	if n := len(m.messages); n == 0 || m.messages[n-1].Role != model.RoleAssistant {
		m.setNotice(noticeWarn, "Nothing to retry: the last message is not a reply")
		return m, nil
	}
	m.notice = ""
	if err := m.engine.Retry(m.ctx); err != nil {
		m.setError(err)
	}
	return m, nil
}

// =============================================================================
// ENGINE EVENTS
// =============================================================================

// handleBatch applies engine events and re-arms the pump. The viewport
// only follows the stream when the throttled render hook fired, or when
// the conversation itself changed.
func (m Model) handleBatch(msg EngineBatchMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.pump.Wait()}
	follow := msg.Render

	for _, ev := range msg.Events {
		switch ev.Type {
		case engine.EventMessageAppended, engine.EventMessageRemoved,
			engine.EventDirectiveChanged, engine.EventRestored:
			m.syncFromEngine()
			follow = true

		case engine.EventCleared:
			m.syncFromEngine()
			m.buffer = ""
			m.lastStats = ""
			follow = true

		case engine.EventLoadingChanged:
			wasStreaming := m.streaming
			m.streaming = ev.Loading
			if ev.Loading && !wasStreaming {
				m.buffer = ""
				cmds = append(cmds, m.spinner.Tick)
			}
			if !ev.Loading {
				m.buffer = ""
			}

		case engine.EventStreamStarted:
			m.buffer = ""

		case engine.EventFragment:
			m.buffer = ev.Buffer

		case engine.EventStreamEnded:
			m.lastStats = ev.Stats.Format()
			if ev.Status == engine.StatusCancelled {
				m.setNotice(noticeWarn, "Reply cancelled")
			}
			follow = true

		case engine.EventError:
			m.setError(ev.Err)
			follow = true
		}
	}

	m.refreshViewport(follow)
	return m, tea.Batch(cmds...)
}

// syncFromEngine re-reads the committed conversation.
func (m *Model) syncFromEngine() {
	m.messages = m.engine.Messages()
	m.directive = m.engine.Directive()
}

// refreshViewport re-renders the conversation into the viewport.
func (m *Model) refreshViewport(follow bool) {
	if !m.ready {
		return
	}
	m.viewport.SetContent(m.renderConversation())
	if follow {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// NOTICES
// =============================================================================

func (m *Model) setNotice(kind noticeKind, text string) {
	m.notice = text
	m.noticeKind = kind
}

func (m *Model) setError(err error) {
	if err == nil {
		return
	}
	m.setNotice(noticeError, describeError(err))
}

// showPanel displays command output below the conversation until the
// next submission.
func (m *Model) showPanel(text string) {
	m.panel = strings.TrimRight(text, "\n")
	m.refreshViewport(true)
}

func forcedPlaceholder(awaitingReply bool) string {
	if awaitingReply {
		return "Reply to store (esc to discard)"
	}
	return "Message to store (forced mode)"
}
