package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	SessionCreated = "SESSION_CREATED"
	SessionDeleted = "SESSION_DELETED"
	TurnCompleted  = "TURN_COMPLETED"
	TurnAborted    = "TURN_ABORTED"
)

func NewSessionEvent(eventType string, userId, sessionId uuid.UUID) BaseEvent {
	return BaseEvent{
		Type: eventType,
		Data: map[string]interface{}{
			"user_id":    userId,
			"session_id": sessionId,
		},
		OccurredAt: time.Now(),
	}
}

// TurnOutcome describes how a chat turn ended.
type TurnOutcome struct {
	UserId     uuid.UUID
	SessionId  uuid.UUID
	Provider   string
	Model      string
	Chunks     int
	MessageId  uuid.UUID // zero for aborted turns
	ErrorCode  string    // empty for completed turns
	DurationMs int64
}

func NewTurnEvent(outcome TurnOutcome) BaseEvent {
	eventType := TurnCompleted
	data := map[string]interface{}{
		"user_id":     outcome.UserId,
		"session_id":  outcome.SessionId,
		"provider":    outcome.Provider,
		"model":       outcome.Model,
		"chunks":      outcome.Chunks,
		"duration_ms": outcome.DurationMs,
	}
	if outcome.ErrorCode != "" {
		eventType = TurnAborted
		data["error_code"] = outcome.ErrorCode
	} else {
		data["message_id"] = outcome.MessageId
	}
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}
