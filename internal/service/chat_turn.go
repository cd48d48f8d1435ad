package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type TurnState string

const (
	TurnValidating TurnState = "VALIDATING"
	TurnStreaming  TurnState = "STREAMING"
	TurnFinalizing TurnState = "FINALIZING"
	TurnCompleted  TurnState = "COMPLETED"
	TurnRejected   TurnState = "REJECTED"
	TurnAborted    TurnState = "ABORTED"
)

var turnTransitions = map[TurnState][]TurnState{
	TurnValidating: {TurnStreaming, TurnRejected},
	TurnStreaming:  {TurnFinalizing, TurnAborted},
	TurnFinalizing: {TurnCompleted, TurnAborted},
}

func (s TurnState) Terminal() bool {
	return s == TurnCompleted || s == TurnRejected || s == TurnAborted
}

func (s TurnState) CanTransitionTo(next TurnState) bool {
	for _, allowed := range turnTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// chatTurn is the per-request state of one prompt/answer exchange. The
// accumulated answer only lives here until Finalizing commits it.
type chatTurn struct {
	state     TurnState
	userId    uuid.UUID
	sessionId uuid.UUID
	provider  string
	model     string
	startedAt time.Time

	chunks int
	answer strings.Builder
}

func newChatTurn(userId, sessionId uuid.UUID, provider, model string) *chatTurn {
	return &chatTurn{
		state:     TurnValidating,
		userId:    userId,
		sessionId: sessionId,
		provider:  provider,
		model:     model,
		startedAt: time.Now(),
	}
}

func (t *chatTurn) transition(next TurnState) error {
	if !t.state.CanTransitionTo(next) {
		return fmt.Errorf("invalid turn transition %s -> %s", t.state, next)
	}
	t.state = next
	return nil
}

func (t *chatTurn) appendChunk(content string) {
	t.chunks++
	t.answer.WriteString(content)
}

func (t *chatTurn) details() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     t.userId,
		"session_id":  t.sessionId,
		"provider":    t.provider,
		"model":       t.model,
		"state":       t.state,
		"chunks":      t.chunks,
		"duration_ms": time.Since(t.startedAt).Milliseconds(),
	}
}
