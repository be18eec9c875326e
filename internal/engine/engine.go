// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"time"

	"github.com/jeranaias/streamchat/internal/model"
	"github.com/jeranaias/streamchat/internal/transport"
	"github.com/jeranaias/streamchat/internal/util"
)

// Sender opens a reply stream for a history. *transport.Client implements it.
type Sender interface {
	Send(ctx context.Context, history []model.Message, directive string, ts time.Time) (transport.Stream, error)
}

// =============================================================================
// OPTIONS
// =============================================================================

// Options configures an Engine.
type Options struct {
	// OnRender is the throttled side effect fired per accepted fragment.
	OnRender func()

	// RenderInterval is the throttle window (default: 300ms).
	RenderInterval time.Duration

	// Now overrides the clock. Used by tests.
	Now func() time.Time
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine owns the conversation, the in-progress buffer and the single
// active stream session. Every transition runs under one mutex; the reply
// is consumed on a goroutine owned by the engine.
//
// Listeners run outside the lock and may call back into the engine.
type Engine struct {
	mu sync.Mutex

	sender   Sender
	conv     *model.Conversation
	phase    Phase
	session  *session
	stream   transport.Stream
	cancel   context.CancelFunc
	editing  bool
	throttle *util.Throttle
	now      func() time.Time

	wg sync.WaitGroup

	// Event dispatch
	listeners  map[int]Listener
	nextID     int
	queue      []Event
	dispatchMu sync.Mutex
}

// New creates an idle engine with an empty conversation.
func New(sender Sender, opts Options) (*Engine, error) {
	if sender == nil {
		return nil, ErrNoSender
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	var throttle *util.Throttle
	if opts.OnRender != nil {
		throttle = util.NewThrottle(opts.RenderInterval, opts.OnRender).WithClock(now)
	}
	return &Engine{
		sender:    sender,
		conv:      model.NewConversation(),
		phase:     PhaseIdle,
		throttle:  throttle,
		now:       now,
		listeners: make(map[int]Listener),
	}, nil
}

// Subscribe registers a listener and returns its unsubscribe func.
func (e *Engine) Subscribe(l Listener) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = l
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.listeners, id)
		e.mu.Unlock()
	}
}

// =============================================================================
// USER TRANSITIONS
// =============================================================================

// Submit appends a user message and starts a reply stream. Empty text or an
// open directive editor make it a silent no-op. ErrBusy is returned while a
// previous reply is still streaming.
//
// ctx bounds the whole stream, not just the call.
func (e *Engine) Submit(ctx context.Context, text string) error {
	e.mu.Lock()
	if text == "" || e.editing {
		e.mu.Unlock()
		return nil
	}
	if e.busyLocked() {
		e.mu.Unlock()
		return ErrBusy
	}

	msg := model.NewUserMessage(text)
	e.conv.Append(msg)
	e.enqueue(Event{Type: EventMessageAppended, Message: msg})
	e.startLocked(ctx)
	e.mu.Unlock()

	e.flush()
	return nil
}

// Retry drops the last assistant reply and re-sends the history before it.
// It is a no-op when the conversation is empty or ends with a non-assistant
// message.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	if e.busyLocked() {
		e.mu.Unlock()
		return ErrBusy
	}
	last, ok := e.conv.Last()
	if !ok || last.Role != model.RoleAssistant {
		e.mu.Unlock()
		return nil
	}

	e.conv.TrimLast()
	e.enqueue(Event{Type: EventMessageRemoved, Message: last})
	e.startLocked(ctx)
	e.mu.Unlock()

	e.flush()
	return nil
}

// ForceAssistant appends a user and assistant pair without contacting the
// endpoint. Either text empty makes it a no-op.
func (e *Engine) ForceAssistant(userText, assistantText string) error {
	if userText == "" || assistantText == "" {
		return nil
	}
	e.mu.Lock()
	if e.busyLocked() {
		e.mu.Unlock()
		return ErrBusy
	}

	user := model.NewUserMessage(userText)
	reply := model.NewAssistantMessage(assistantText)
	e.conv.Append(user, reply)
	e.enqueue(Event{Type: EventMessageAppended, Message: user})
	e.enqueue(Event{Type: EventMessageAppended, Message: reply})
	e.mu.Unlock()

	e.flush()
	return nil
}

// Cancel stops the active stream and archives whatever arrived so far.
// Safe to call when nothing is streaming.
func (e *Engine) Cancel() {
	e.mu.Lock()
	sess := e.session
	if sess == nil || sess.status != StatusStreaming {
		e.mu.Unlock()
		return
	}
	e.archiveLocked(sess, StatusCancelled)
	e.mu.Unlock()

	e.flush()
}

// Clear resets conversation, directive and buffer, and closes the
// directive editor. An active stream is cancelled and its partial output
// dropped.
func (e *Engine) Clear() {
	e.mu.Lock()
	if sess := e.session; sess != nil && sess.status == StatusStreaming {
		sess.status = StatusCancelled
		sess.buf.Reset()
		sess.stats.Finalize(e.now())
		e.releaseLocked()
		e.enqueue(Event{Type: EventLoadingChanged, SessionID: sess.id, Loading: false})
	}
	e.conv.Reset()
	e.editing = false
	e.phase = PhaseIdle
	e.enqueue(Event{Type: EventCleared})
	e.mu.Unlock()

	e.flush()
}

// =============================================================================
// SYSTEM DIRECTIVE
// =============================================================================

// SetDirective is the one-shot external setter. It applies only when v is a
// non-empty string, the conversation is empty and no directive is set yet;
// anything else is silently ignored. Reports whether it applied.
func (e *Engine) SetDirective(v any) bool {
	s, ok := v.(string)
	if !ok || s == "" {
		return false
	}
	e.mu.Lock()
	if !e.conv.IsEmpty() || e.conv.Directive != "" {
		e.mu.Unlock()
		return false
	}
	e.conv.Directive = s
	e.enqueue(Event{Type: EventDirectiveChanged, Directive: s})
	e.mu.Unlock()

	e.flush()
	return true
}

// EditDirective replaces the directive from the settings editor. Editing is
// only possible while the conversation is empty; an empty string clears it.
func (e *Engine) EditDirective(s string) bool {
	e.mu.Lock()
	if !e.conv.IsEmpty() || e.busyLocked() {
		e.mu.Unlock()
		return false
	}
	if e.conv.Directive == s {
		e.mu.Unlock()
		return true
	}
	e.conv.Directive = s
	e.enqueue(Event{Type: EventDirectiveChanged, Directive: s})
	e.mu.Unlock()

	e.flush()
	return true
}

// SetEditingDirective marks the directive editor open. Submit is ignored
// while it is open.
func (e *Engine) SetEditingDirective(editing bool) {
	e.mu.Lock()
	e.editing = editing
	e.mu.Unlock()
}

// CanEditDirective reports whether EditDirective would be accepted.
func (e *Engine) CanEditDirective() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.IsEmpty() && !e.busyLocked()
}

// =============================================================================
// PERSISTENCE
// =============================================================================

// Restore replaces the conversation with persisted state. Only allowed
// while idle.
func (e *Engine) Restore(conv *model.Conversation) error {
	if conv == nil {
		conv = model.NewConversation()
	}
	e.mu.Lock()
	if e.busyLocked() {
		e.mu.Unlock()
		return ErrBusy
	}
	e.conv = conv.Clone()
	e.enqueue(Event{Type: EventRestored, Directive: e.conv.Directive})
	e.mu.Unlock()

	e.flush()
	return nil
}

// Snapshot returns a deep copy of the conversation. The in-progress buffer
// is never part of it.
func (e *Engine) Snapshot() *model.Conversation {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Clone()
}

// =============================================================================
// QUERIES
// =============================================================================

// Messages returns a copy of the conversation log.
func (e *Engine) Messages() []model.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.History()
}

// Directive returns the system directive.
func (e *Engine) Directive() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.conv.Directive
}

// Buffer returns the in-progress reply text.
func (e *Engine) Buffer() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return ""
	}
	return e.session.buf.String()
}

// Loading reports whether a request is in flight.
func (e *Engine) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.busyLocked()
}

// Phase returns the current state machine phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Session returns a snapshot of the most recent session. ok is false
// before the first request or after Clear on an idle engine.
func (e *Engine) Session() (StreamSession, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return StreamSession{Status: StatusIdle}, false
	}
	return e.session.snapshot(), true
}

// Wait blocks until the stream goroutine, if any, has returned.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// =============================================================================
// STREAM LIFECYCLE
// =============================================================================

func (e *Engine) busyLocked() bool {
	return e.session != nil && e.session.status == StatusStreaming
}

// currentLocked reports whether sess may still mutate state.
func (e *Engine) currentLocked(sess *session) bool {
	return e.session == sess && sess.status == StatusStreaming
}

// startLocked opens a new session and spawns its reader.
func (e *Engine) startLocked(ctx context.Context) {
	sess := newSession(e.now())
	sessCtx, cancel := context.WithCancel(ctx)

	e.session = sess
	e.stream = nil
	e.cancel = cancel
	e.phase = PhaseAwaitingStream
	e.enqueue(Event{Type: EventLoadingChanged, SessionID: sess.id, Loading: true})

	history := e.conv.History()
	directive := e.conv.Directive

	e.wg.Add(1)
	go e.run(sessCtx, sess, history, directive)
}

// run is the decode loop for one session.
func (e *Engine) run(ctx context.Context, sess *session, history []model.Message, directive string) {
	defer e.wg.Done()

	stream, err := e.sender.Send(ctx, history, directive, e.now())
	if err != nil {
		e.fail(sess, err)
		return
	}
	if !e.attach(sess, stream) {
		stream.Cancel()
		return
	}

	for {
		text, err := stream.Next()
		if errors.Is(err, io.EOF) {
			e.complete(sess)
			return
		}
		if err != nil {
			e.fail(sess, err)
			return
		}
		if !e.fragment(sess, text) {
			stream.Cancel()
			return
		}
	}
}

// attach records the cancel handle once the endpoint answered.
func (e *Engine) attach(sess *session, stream transport.Stream) bool {
	e.mu.Lock()
	if !e.currentLocked(sess) {
		e.mu.Unlock()
		return false
	}
	e.stream = stream
	e.phase = PhaseStreaming
	sess.buf.Reset()
	e.enqueue(Event{Type: EventStreamStarted, SessionID: sess.id})
	e.mu.Unlock()

	e.flush()
	return true
}

// fragment applies one decoded chunk. Returns false once sess is stale.
func (e *Engine) fragment(sess *session, text string) bool {
	e.mu.Lock()
	if !e.currentLocked(sess) {
		e.mu.Unlock()
		return false
	}
	// Collapse a bare newline that follows a newline
	if text == "\n" && sess.endsWithNewline() {
		e.mu.Unlock()
		return true
	}
	if text != "" {
		sess.buf.WriteString(text)
		sess.stats.RecordFragment(e.now(), text)
		e.enqueue(Event{Type: EventFragment, SessionID: sess.id, Fragment: text, Buffer: sess.buf.String()})
	}
	throttle := e.throttle
	e.mu.Unlock()

	e.flush()
	throttle.Trigger()
	return true
}

func (e *Engine) complete(sess *session) {
	e.mu.Lock()
	if !e.currentLocked(sess) {
		e.mu.Unlock()
		return
	}
	e.archiveLocked(sess, StatusCompleted)
	e.mu.Unlock()

	e.flush()
}

// fail ends sess on a transport or read error. The buffer is discarded.
// A cancelled context is not a failure and archives like Cancel.
func (e *Engine) fail(sess *session, err error) {
	e.mu.Lock()
	if !e.currentLocked(sess) {
		e.mu.Unlock()
		return
	}
	if errors.Is(err, context.Canceled) {
		e.archiveLocked(sess, StatusCancelled)
		e.mu.Unlock()
		e.flush()
		return
	}

	log.Printf("[engine] session %s failed: %v", sess.id, err)
	e.phase = PhaseIdle
	sess.buf.Reset()
	sess.status = StatusErrored
	sess.err = err
	sess.stats.Finalize(e.now())
	e.releaseLocked()
	e.enqueue(Event{Type: EventError, SessionID: sess.id, Err: err, Status: StatusErrored})
	e.enqueue(Event{Type: EventLoadingChanged, SessionID: sess.id, Loading: false})
	e.mu.Unlock()

	e.flush()
}

// archiveLocked moves a non-empty buffer into the conversation and ends sess.
func (e *Engine) archiveLocked(sess *session, status Status) {
	e.phase = PhaseArchiving
	e.releaseLocked()

	if text := sess.buf.String(); text != "" {
		msg := model.NewAssistantMessage(text)
		e.conv.Append(msg)
		e.enqueue(Event{Type: EventMessageAppended, SessionID: sess.id, Message: msg})
	}
	sess.buf.Reset()
	sess.status = status
	sess.stats.Finalize(e.now())

	e.phase = PhaseIdle
	e.enqueue(Event{Type: EventStreamEnded, SessionID: sess.id, Status: status, Stats: *sess.stats})
	e.enqueue(Event{Type: EventLoadingChanged, SessionID: sess.id, Loading: false})
}

// releaseLocked cancels the stream handle and forgets it.
func (e *Engine) releaseLocked() {
	if e.stream != nil {
		e.stream.Cancel()
		e.stream = nil
	}
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

// =============================================================================
// EVENT DISPATCH
// =============================================================================

func (e *Engine) enqueue(ev Event) {
	e.queue = append(e.queue, ev)
}

// flush delivers queued events in order. A single goroutine drains at a
// time; a listener that re-enters the engine finds the drain busy and its
// events are picked up by the outer loop.
func (e *Engine) flush() {
	for {
		if !e.dispatchMu.TryLock() {
			return
		}
		for {
			e.mu.Lock()
			events := e.queue
			e.queue = nil
			listeners := make([]Listener, 0, len(e.listeners))
			for id := 0; id < e.nextID; id++ {
				if l, ok := e.listeners[id]; ok {
					listeners = append(listeners, l)
				}
			}
			e.mu.Unlock()

			if len(events) == 0 {
				break
			}
			for _, ev := range events {
				for _, l := range listeners {
					l(ev)
				}
			}
		}
		e.dispatchMu.Unlock()

		e.mu.Lock()
		pending := len(e.queue) > 0
		e.mu.Unlock()
		if !pending {
			return
		}
	}
}
