package model

import (
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	Id     uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId uuid.UUID `gorm:"type:uuid;not null;index:idx_chat_sessions_user_updated,priority:1"` // User ownership for data isolation
	User   *User     `gorm:"foreignKey:UserId;constraint:OnDelete:RESTRICT"`
	Title  string    `gorm:"type:text;not null"`
	// LastPosition is the position of the newest message, 0 for an empty session.
	LastPosition int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime;index:idx_chat_sessions_user_updated,priority:2"`
}

func (ChatSession) TableName() string {
	return "chat_sessions"
}
