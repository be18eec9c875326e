// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jeranaias/streamchat/internal/model"
)

// =============================================================================
// PHASE
// =============================================================================

// Phase is the state machine position.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseAwaitingStream
	PhaseStreaming
	PhaseArchiving
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseAwaitingStream:
		return "awaiting-stream"
	case PhaseStreaming:
		return "streaming"
	case PhaseArchiving:
		return "archiving"
	default:
		return "unknown"
	}
}

// =============================================================================
// STREAM SESSION
// =============================================================================

// Status is the lifecycle status of one stream session.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusStreaming Status = "streaming"
	StatusCancelled Status = "cancelled"
	StatusErrored   Status = "errored"
	StatusCompleted Status = "completed"
)

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusErrored || s == StatusCompleted
}

// session is the engine-owned bookkeeping for one request.
type session struct {
	id     string
	status Status
	// PERFORMANCE: strings.Builder avoids quadratic allocations
	buf   strings.Builder
	stats *model.Statistics
	err   error
}

func newSession(now time.Time) *session {
	return &session{
		id:     uuid.New().String(),
		status: StatusStreaming,
		stats:  model.NewStatistics(now),
	}
}

// endsWithNewline reports whether the buffer's last byte is '\n'.
func (s *session) endsWithNewline() bool {
	n := s.buf.Len()
	if n == 0 {
		return false
	}
	return s.buf.String()[n-1] == '\n'
}

// StreamSession is a read-only snapshot of a session.
type StreamSession struct {
	ID     string
	Status Status
	Buffer string
	Stats  model.Statistics
	Err    error
}

func (s *session) snapshot() StreamSession {
	return StreamSession{
		ID:     s.id,
		Status: s.status,
		Buffer: s.buf.String(),
		Stats:  *s.stats,
		Err:    s.err,
	}
}
