package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type ChatMessage struct {
	Id            uuid.UUID    `gorm:"type:uuid;primaryKey"`
	ChatSessionId uuid.UUID    `gorm:"type:uuid;not null;uniqueIndex:idx_chat_messages_session_position,priority:1"`
	ChatSession   *ChatSession `gorm:"foreignKey:ChatSessionId;constraint:OnDelete:CASCADE"`
	Position      int64        `gorm:"not null;uniqueIndex:idx_chat_messages_session_position,priority:2"`
	Role          string       `gorm:"type:varchar(20);not null"`
	Content       string       `gorm:"type:text;not null"`
	// Metadata records provider, model and chunk count for assistant messages.
	Metadata  datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt time.Time         `gorm:"autoCreateTime"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}
