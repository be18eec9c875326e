// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/streamchat/internal/engine"
)

// EngineBatchMsg carries every engine event queued since the last batch.
type EngineBatchMsg struct {
	Events []engine.Event

	// Render is set when the throttled render hook fired in between.
	Render bool
}

// EventPump moves engine events onto the Bubble Tea loop. Push and
// RenderNow never block.
type EventPump struct {
	mu     sync.Mutex
	queue  []engine.Event
	render bool

	notify chan struct{}
	done   chan struct{}
	once   sync.Once
}

// NewEventPump creates an empty pump.
func NewEventPump() *EventPump {
	return &EventPump{
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Push is an engine.Listener.
func (p *EventPump) Push(ev engine.Event) {
	p.mu.Lock()
	p.queue = append(p.queue, ev)
	p.mu.Unlock()
	p.wake()
}

// RenderNow is the engine's throttled render hook.
func (p *EventPump) RenderNow() {
	p.mu.Lock()
	p.render = true
	p.mu.Unlock()
	p.wake()
}

func (p *EventPump) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Wait returns a command that blocks until something is queued. It
// yields nil once the pump is closed.
func (p *EventPump) Wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case <-p.notify:
		case <-p.done:
			return nil
		}
		batch, _ := p.Drain()
		return batch
	}
}

// Drain takes whatever is queued without blocking. ok is false when
// nothing was pending.
func (p *EventPump) Drain() (EngineBatchMsg, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	batch := EngineBatchMsg{Events: p.queue, Render: p.render}
	p.queue = nil
	p.render = false
	return batch, len(batch.Events) > 0 || batch.Render
}

// Close releases a pending Wait.
func (p *EventPump) Close() {
	p.once.Do(func() { close(p.done) })
}
