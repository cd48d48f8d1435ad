package entity

import (
	"time"

	"github.com/google/uuid"
)

type ChatRole string

const (
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

func (r ChatRole) Valid() bool {
	return r == ChatRoleUser || r == ChatRoleAssistant
}

type ChatMessage struct {
	Id            uuid.UUID
	ChatSessionId uuid.UUID
	Position      int64
	Role          ChatRole
	Content       string
	Metadata      map[string]interface{}
	CreatedAt     time.Time
}
