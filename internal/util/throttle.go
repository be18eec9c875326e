// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides utility functions for the streamchat application.
package util

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultThrottleInterval is the render throttle window used when none is configured.
const DefaultThrottleInterval = 300 * time.Millisecond

// =============================================================================
// THROTTLE
// =============================================================================

// Throttle is a leading-edge rate limiter around a side-effecting callback.
// The first Trigger in a window runs fn immediately; every other Trigger in
// that window is dropped. There is no trailing invocation.
//
// PERFORMANCE: Backed by a burst-1 token bucket so dropped triggers cost one
// mutex acquisition and no allocation.
type Throttle struct {
	mu      sync.Mutex
	limiter *rate.Limiter
	fn      func()
	now     func() time.Time
}

// NewThrottle creates a throttle that runs fn at most once per interval.
// A non-positive interval falls back to DefaultThrottleInterval.
func NewThrottle(interval time.Duration, fn func()) *Throttle {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttle{
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		fn:      fn,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (t *Throttle) WithClock(now func() time.Time) *Throttle {
	t.mu.Lock()
	t.now = now
	t.mu.Unlock()
	return t
}

// Trigger runs the callback if the current window is open and reports
// whether it ran. The callback runs outside the throttle's lock.
func (t *Throttle) Trigger() bool {
	if t == nil {
		return false
	}
	t.mu.Lock()
	allowed := t.limiter.AllowN(t.now(), 1)
	fn := t.fn
	t.mu.Unlock()

	if !allowed || fn == nil {
		return false
	}
	fn()
	return true
}
