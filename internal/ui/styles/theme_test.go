// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import "testing"

func TestNewTheme_ExplicitNames(t *testing.T) {
	tests := []struct {
		name     string
		wantName string
		wantDark bool
		glamour  string
	}{
		{"dark", "dark", true, "dark"},
		{"LIGHT", "light", false, "light"},
		{" dark ", "dark", true, "dark"},
	}
	for _, tt := range tests {
		th := NewTheme(tt.name)
		if th.Name != tt.wantName || th.IsDark != tt.wantDark {
			t.Errorf("NewTheme(%q) = {%s, dark=%v}, want {%s, dark=%v}", tt.name, th.Name, th.IsDark, tt.wantName, tt.wantDark)
		}
		if got := th.GlamourStyle(); got != tt.glamour {
			t.Errorf("NewTheme(%q).GlamourStyle() = %s, want %s", tt.name, got, tt.glamour)
		}
	}
}

func TestNewTheme_UnknownFallsBackToAuto(t *testing.T) {
	if th := NewTheme("neon"); th.Name != "auto" {
		t.Errorf("Name = %s, want auto", th.Name)
	}
}

func TestTheme_ContentWidth(t *testing.T) {
	th := NewTheme("dark")
	th.SetSize(100, 40)
	if got := th.ContentWidth(); got != 96 {
		t.Errorf("ContentWidth() = %d, want 96", got)
	}
	th.SetSize(10, 40)
	if got := th.ContentWidth(); got != 20 {
		t.Errorf("ContentWidth() narrow = %d, want 20", got)
	}
}
