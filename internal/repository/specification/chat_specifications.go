package specification

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ByChatSessionID struct {
	ChatSessionID uuid.UUID
}

func (s ByChatSessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("chat_session_id = ?", s.ChatSessionID)
}

// OwnedSession scopes a session lookup to its owner, so a foreign session
// looks exactly like a missing one.
type OwnedSession struct {
	SessionID uuid.UUID
	UserID    uuid.UUID
}

func (s OwnedSession) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("id = ? AND user_id = ?", s.SessionID, s.UserID)
}

type ByTitle struct {
	Title string
}

func (s ByTitle) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("title = ?", s.Title)
}

// InPositionOrder orders messages by their sequence position.
type InPositionOrder struct{}

func (s InPositionOrder) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

// RecentlyUpdated orders sessions newest first with id as a tiebreaker.
type RecentlyUpdated struct{}

func (s RecentlyUpdated) Apply(db *gorm.DB) *gorm.DB {
	return db.Order("updated_at DESC").Order("id DESC")
}
