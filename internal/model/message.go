// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/jeranaias/streamchat/internal/util"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is one entry of the conversation log. The JSON form is both the
// persisted shape and the wire shape sent to the endpoint.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// Preview shortens the content to maxLen runes for one-line listings.
func (m Message) Preview(maxLen int) string {
	return util.TruncateRunes(m.Content, maxLen)
}

// =============================================================================
// STATISTICS TYPE
// =============================================================================

// Statistics holds timing and fragment counts for one stream session.
type Statistics struct {
	StartTime      time.Time
	FirstTokenTime time.Time
	EndTime        time.Time

	Fragments int
	Bytes     int

	// Derived on Finalize
	TTFT          time.Duration
	TotalDuration time.Duration
}

// NewStatistics creates a new Statistics with the start time set.
func NewStatistics(now time.Time) *Statistics {
	return &Statistics{StartTime: now}
}

// RecordFragment counts an accepted fragment and marks the first arrival.
func (s *Statistics) RecordFragment(now time.Time, text string) {
	if s.FirstTokenTime.IsZero() {
		s.FirstTokenTime = now
		s.TTFT = now.Sub(s.StartTime)
	}
	s.Fragments++
	s.Bytes += len(text)
}

// Finalize computes the final statistics.
func (s *Statistics) Finalize(now time.Time) {
	s.EndTime = now
	s.TotalDuration = now.Sub(s.StartTime)
}

// statsPrinter groups digits in byte counts ("12,480 bytes").
var statsPrinter = message.NewPrinter(language.English)

// Format renders the statistics for a status line:
// "2.5s | 128 fragments | 12,480 bytes | TTFT 234ms"
func (s *Statistics) Format() string {
	return statsPrinter.Sprintf("%s | %d fragments | %d bytes | TTFT %dms",
		formatDuration(s.TotalDuration), s.Fragments, s.Bytes, s.TTFT.Milliseconds())
}

// formatDuration shows milliseconds under a second and tenths of a second
// above, truncating rather than rounding.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return strconv.FormatInt(d.Milliseconds(), 10) + "ms"
	}
	return strconv.FormatFloat(float64(d.Truncate(100*time.Millisecond))/float64(time.Second), 'f', 1, 64) + "s"
}
