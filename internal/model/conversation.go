// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is the ordered message log plus the optional system directive.
// Insertion order is semantic: the last message decides retry eligibility.
//
// Conversation is not safe for concurrent use; the engine owns it.
type Conversation struct {
	Messages  []Message `json:"messages"`
	Directive string    `json:"directive,omitempty"`
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{Messages: make([]Message, 0)}
}

// =============================================================================
// MESSAGE MANAGEMENT
// =============================================================================

// Append adds messages to the end of the log.
func (c *Conversation) Append(msgs ...Message) {
	c.Messages = append(c.Messages, msgs...)
}

// Last returns the most recent message and whether one exists.
func (c *Conversation) Last() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	return c.Messages[len(c.Messages)-1], true
}

// LastRole returns the role of the most recent message, or "" when empty.
func (c *Conversation) LastRole() Role {
	last, ok := c.Last()
	if !ok {
		return ""
	}
	return last.Role
}

// TrimLast removes the most recent message. Returns false when empty.
func (c *Conversation) TrimLast() bool {
	if len(c.Messages) == 0 {
		return false
	}
	c.Messages = c.Messages[:len(c.Messages)-1]
	return true
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.Messages)
}

// IsEmpty returns true if there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// Reset empties the log and the directive.
func (c *Conversation) Reset() {
	c.Messages = make([]Message, 0)
	c.Directive = ""
}

// History returns a copy of the message log.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.Messages))
	copy(out, c.Messages)
	return out
}

// =============================================================================
// REQUEST CONVERSION
// =============================================================================

// RequestMessages returns the history as sent to the endpoint: the directive
// as a system message first (when set), then the log in order.
func (c *Conversation) RequestMessages() []Message {
	return BuildRequest(c.Messages, c.Directive)
}

// BuildRequest prepends directive as a system message when non-empty.
func BuildRequest(history []Message, directive string) []Message {
	out := make([]Message, 0, len(history)+1)
	if directive != "" {
		out = append(out, NewSystemMessage(directive))
	}
	return append(out, history...)
}

// Clone creates a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	return &Conversation{
		Messages:  c.History(),
		Directive: c.Directive,
	}
}
