// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the streamchat application.
package util

import (
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// =============================================================================
// THROTTLE TESTS
// =============================================================================

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestThrottle_LeadingEdge(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	calls := 0
	th := NewThrottle(300*time.Millisecond, func() { calls++ }).WithClock(clock.Now)

	if !th.Trigger() {
		t.Fatal("first trigger should run immediately")
	}
	for i := 0; i < 5; i++ {
		clock.Advance(50 * time.Millisecond)
		if th.Trigger() {
			t.Fatalf("trigger %d inside the window should be dropped", i)
		}
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}

	// 250ms into the window; the window closes at 300ms
	clock.Advance(51 * time.Millisecond)
	if !th.Trigger() {
		t.Fatal("trigger after the window should run")
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestThrottle_NoTrailingCall(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	calls := 0
	th := NewThrottle(300*time.Millisecond, func() { calls++ }).WithClock(clock.Now)

	th.Trigger()
	th.Trigger()
	th.Trigger()
	clock.Advance(time.Second)

	// Dropped triggers are never replayed
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestThrottle_DefaultInterval(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1700000000, 0)}
	calls := 0
	th := NewThrottle(0, func() { calls++ }).WithClock(clock.Now)

	th.Trigger()
	clock.Advance(DefaultThrottleInterval - 10*time.Millisecond)
	th.Trigger()
	clock.Advance(20 * time.Millisecond)
	th.Trigger()

	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestThrottle_NilSafe(t *testing.T) {
	var th *Throttle
	if th.Trigger() {
		t.Error("nil throttle should never run")
	}
	if NewThrottle(time.Second, nil).Trigger() {
		t.Error("throttle without callback should report false")
	}
}

func TestThrottle_Concurrent(t *testing.T) {
	var calls int32
	th := NewThrottle(time.Hour, func() { atomic.AddInt32(&calls, 1) })

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			th.Trigger()
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("calls = %d, want exactly 1 within one window", got)
	}
}

// =============================================================================
// ATOMIC WRITE TESTS
// =============================================================================

func TestAtomicWriteFile_Basic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	data := []byte(`{"messageList":"[]"}`)

	if err := AtomicWriteFile(path, data, 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != string(data) {
		t.Errorf("Content mismatch: got %q, want %q", content, data)
	}
}

func TestAtomicWriteFile_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "deep", "state.json")

	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("File not created: %v", err)
	}
}

func TestAtomicWriteFile_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")

	if err := AtomicWriteFile(path, []byte("initial"), 0600); err != nil {
		t.Fatalf("First write failed: %v", err)
	}
	if err := AtomicWriteFile(path, []byte("updated"), 0600); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}

	content, _ := os.ReadFile(path)
	if string(content) != "updated" {
		t.Errorf("Content not updated: got %q", content)
	}

	// No temp files left behind
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the target file, found %d entries", len(entries))
	}
}

func TestAtomicWriteFile_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("POSIX permissions not enforced on Windows")
	}
	path := filepath.Join(t.TempDir(), "secret.json")
	if err := AtomicWriteFile(path, []byte("x"), 0600); err != nil {
		t.Fatalf("AtomicWriteFile failed: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

// =============================================================================
// STRING TESTS
// =============================================================================

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"short", "hello", 10, "hello"},
		{"exact", "hello", 5, "hello"},
		{"ellipsis", "hello world", 8, "hello..."},
		{"tiny", "hello", 2, "he"},
		{"zero", "hello", 0, ""},
		{"utf8", "日本語テキスト", 5, "日本..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateRunes(tc.in, tc.max); got != tc.want {
				t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}

func TestTruncateWidth(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int
		want string
	}{
		{"fits", "hello", 10, "hello"},
		{"ascii", "hello world", 8, "hello..."},
		{"wide", "日本語テキスト", 7, "日本..."},
		{"zero", "hello", 0, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := TruncateWidth(tc.in, tc.max); got != tc.want {
				t.Errorf("TruncateWidth(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
			}
		})
	}
}

func TestStringWidth(t *testing.T) {
	if got := StringWidth("abc"); got != 3 {
		t.Errorf("StringWidth(abc) = %d", got)
	}
	if got := StringWidth("日本"); got != 4 {
		t.Errorf("StringWidth(日本) = %d", got)
	}
}

func TestOneLine(t *testing.T) {
	if got := OneLine("a\n\n b\tc  "); got != "a b c" {
		t.Errorf("OneLine() = %q", got)
	}
}

func TestPadRight(t *testing.T) {
	if got := PadRight("日", 4); got != "日  " {
		t.Errorf("PadRight() = %q", got)
	}
}
