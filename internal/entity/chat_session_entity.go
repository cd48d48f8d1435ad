package entity

import (
	"time"

	"github.com/google/uuid"
)

const DefaultChatTitle = "New Chat"

type ChatSession struct {
	Id           uuid.UUID
	UserId       uuid.UUID
	Title        string
	LastPosition int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasDefaultTitle reports whether the user has not named the session yet.
func (s *ChatSession) HasDefaultTitle() bool {
	return s.Title == DefaultChatTitle
}
