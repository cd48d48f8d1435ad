package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateSessionRequest struct {
	Title string `json:"title" validate:"omitempty,max=200"`
}

type RenameSessionRequest struct {
	Title string `json:"title" validate:"required,max=200"`
}

// ListSessionsRequest pages the session list; a zero Limit returns everything.
type ListSessionsRequest struct {
	Limit  int `query:"limit" validate:"omitempty,min=1,max=100"`
	Offset int `query:"offset" validate:"omitempty,min=0"`
}

type SessionResponse struct {
	Id        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type MessageResponse struct {
	Id        uuid.UUID              `json:"id"`
	Role      string                 `json:"role"`
	Content   string                 `json:"content"`
	Position  int64                  `json:"position"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type SessionDetailResponse struct {
	SessionResponse
	Messages []*MessageResponse `json:"messages"`
}

type StreamChatRequest struct {
	SessionId uuid.UUID `json:"session_id" validate:"required"`
	Prompt    string    `json:"prompt" validate:"required,max=32000"`
	Provider  string    `json:"provider" validate:"required"`
	Model     string    `json:"model" validate:"required"`
}

type ProviderResponse struct {
	Id     string   `json:"id"`
	Models []string `json:"models"`
}

// PublishTurnCompletedMessage is the in-process payload emitted after a turn
// is committed.
type PublishTurnCompletedMessage struct {
	SessionId uuid.UUID `json:"session_id"`
	UserId    uuid.UUID `json:"user_id"`
	MessageId uuid.UUID `json:"message_id"`
	Prompt    string    `json:"prompt"`
}
