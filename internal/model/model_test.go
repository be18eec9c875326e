// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
package model

import (
	"encoding/json"
	"strconv"
	"testing"
	"time"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_Valid(t *testing.T) {
	tests := []struct {
		role Role
		want bool
	}{
		{RoleSystem, true},
		{RoleUser, true},
		{RoleAssistant, true},
		{Role("tool"), false},
		{Role(""), false},
	}

	for _, tc := range tests {
		if got := tc.role.Valid(); got != tc.want {
			t.Errorf("Role(%q).Valid() = %v, want %v", tc.role, got, tc.want)
		}
	}
}

func TestMessage_JSONShape(t *testing.T) {
	data, err := json.Marshal(NewUserMessage("hi"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(data) != `{"role":"user","content":"hi"}` {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestMessage_Preview(t *testing.T) {
	m := NewAssistantMessage("héllo wörld")
	if got := m.Preview(20); got != "héllo wörld" {
		t.Errorf("Preview(20) = %q", got)
	}
	if got := m.Preview(8); got != "héllo..." {
		t.Errorf("Preview(8) = %q", got)
	}
	if got := m.Preview(2); got != "hé" {
		t.Errorf("Preview(2) = %q", got)
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_RequestMessages(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("Q"), NewAssistantMessage("A"))

	req := conv.RequestMessages()
	if len(req) != 2 {
		t.Fatalf("expected 2 messages without directive, got %d", len(req))
	}

	conv.Directive = "be concise"
	req = conv.RequestMessages()
	if len(req) != 3 {
		t.Fatalf("expected 3 messages with directive, got %d", len(req))
	}
	if req[0].Role != RoleSystem || req[0].Content != "be concise" {
		t.Errorf("first message should be the directive, got %+v", req[0])
	}
	if req[2].Content != "A" {
		t.Errorf("order not preserved: %+v", req)
	}
	if conv.Len() != 2 {
		t.Errorf("RequestMessages must not mutate the log")
	}
}

func TestConversation_LastAndTrim(t *testing.T) {
	conv := NewConversation()
	if conv.LastRole() != "" {
		t.Errorf("empty conversation should have no last role")
	}
	if conv.TrimLast() {
		t.Errorf("TrimLast on empty conversation should report false")
	}

	conv.Append(NewUserMessage("Q"), NewAssistantMessage("A"))
	if conv.LastRole() != RoleAssistant {
		t.Errorf("LastRole() = %q, want assistant", conv.LastRole())
	}
	if !conv.TrimLast() || conv.LastRole() != RoleUser {
		t.Errorf("TrimLast should drop the assistant reply")
	}
}

func TestConversation_CloneIsDeep(t *testing.T) {
	conv := NewConversation()
	conv.Append(NewUserMessage("Q"))
	clone := conv.Clone()
	clone.Messages[0].Content = "changed"
	clone.Append(NewAssistantMessage("A"))

	if conv.Messages[0].Content != "Q" || conv.Len() != 1 {
		t.Errorf("clone shares state with original: %+v", conv.Messages)
	}
}

func TestConversation_AppendKeepsEverything(t *testing.T) {
	conv := NewConversation()
	for i := 0; i < 1500; i++ {
		conv.Append(NewUserMessage(strconv.Itoa(i)))
	}
	if conv.Len() != 1500 {
		t.Fatalf("Len() = %d, want 1500", conv.Len())
	}
	if conv.Messages[0].Content != "0" {
		t.Errorf("first message = %q, want 0", conv.Messages[0].Content)
	}
}

func TestConversation_Reset(t *testing.T) {
	conv := NewConversation()
	conv.Directive = "x"
	conv.Append(NewUserMessage("Q"))
	conv.Reset()
	if !conv.IsEmpty() || conv.Directive != "" {
		t.Errorf("Reset left state behind: %+v", conv)
	}
}

// =============================================================================
// STATISTICS TESTS
// =============================================================================

func TestStatistics(t *testing.T) {
	start := time.Unix(1000, 0)
	s := NewStatistics(start)
	s.RecordFragment(start.Add(250*time.Millisecond), "ab")
	s.RecordFragment(start.Add(400*time.Millisecond), "cde")
	s.Finalize(start.Add(2500 * time.Millisecond))

	if s.Fragments != 2 || s.Bytes != 5 {
		t.Errorf("counts = %d/%d, want 2/5", s.Fragments, s.Bytes)
	}
	if s.TTFT != 250*time.Millisecond {
		t.Errorf("TTFT = %v", s.TTFT)
	}
	if got := s.Format(); got != "2.5s | 2 fragments | 5 bytes | TTFT 250ms" {
		t.Errorf("Format() = %q", got)
	}
}

func TestStatistics_FormatGroupsBytes(t *testing.T) {
	s := &Statistics{Fragments: 1500, Bytes: 1234567, TTFT: 80 * time.Millisecond, TotalDuration: 750 * time.Millisecond}
	if got := s.Format(); got != "750ms | 1,500 fragments | 1,234,567 bytes | TTFT 80ms" {
		t.Errorf("Format() = %q", got)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                       "0ms",
		999 * time.Millisecond:  "999ms",
		time.Second:             "1.0s",
		2590 * time.Millisecond: "2.5s",
		61 * time.Second:        "61.0s",
	}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
