package dto

import (
	"github.com/google/uuid"
)

type StreamEventType string

const (
	StreamEventDelta StreamEventType = "delta"
	StreamEventDone  StreamEventType = "done"
	StreamEventError StreamEventType = "error"
)

// StreamEvent is one frame of a chat turn as seen by the client. A turn is a
// sequence of delta events closed by exactly one done or error event.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Delta     string          `json:"delta,omitempty"`
	SessionId *uuid.UUID      `json:"session_id,omitempty"`
	MessageId *uuid.UUID      `json:"message_id,omitempty"`
	Error     *StreamError    `json:"error,omitempty"`
}

type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// RetryAfter is a hint in whole seconds, 0 when unknown.
	RetryAfter int `json:"retry_after,omitempty"`
}

func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamEventDone || e.Type == StreamEventError
}
