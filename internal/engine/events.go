// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package engine

import "github.com/jeranaias/streamchat/internal/model"

// EventType identifies a state change.
type EventType int

const (
	// EventMessageAppended carries a message added to the conversation.
	EventMessageAppended EventType = iota
	// EventMessageRemoved carries the assistant reply dropped by Retry.
	EventMessageRemoved
	// EventLoadingChanged fires when the loading flag flips.
	EventLoadingChanged
	// EventStreamStarted fires once the endpoint accepted the request.
	EventStreamStarted
	// EventFragment carries an accepted fragment and the buffer after it.
	EventFragment
	// EventStreamEnded fires on completion or cancellation, after archiving.
	EventStreamEnded
	// EventError carries a transport or stream read failure.
	EventError
	// EventDirectiveChanged carries the new system directive.
	EventDirectiveChanged
	// EventCleared fires after Clear.
	EventCleared
	// EventRestored fires after persisted state replaced the conversation.
	EventRestored
)

// String returns the event name.
func (t EventType) String() string {
	switch t {
	case EventMessageAppended:
		return "message-appended"
	case EventMessageRemoved:
		return "message-removed"
	case EventLoadingChanged:
		return "loading-changed"
	case EventStreamStarted:
		return "stream-started"
	case EventFragment:
		return "fragment"
	case EventStreamEnded:
		return "stream-ended"
	case EventError:
		return "error"
	case EventDirectiveChanged:
		return "directive-changed"
	case EventCleared:
		return "cleared"
	case EventRestored:
		return "restored"
	default:
		return "unknown"
	}
}

// Event describes one state change. Only the fields relevant to Type are set.
type Event struct {
	Type      EventType
	SessionID string

	Message   model.Message
	Fragment  string
	Buffer    string
	Loading   bool
	Status    Status
	Directive string
	Stats     model.Statistics
	Err       error
}

// Listener receives events in the order the engine produced them.
type Listener func(Event)
