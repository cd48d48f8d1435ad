package contract

import (
	"context"

	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/repository/specification"

	"github.com/google/uuid"
)

type ChatSessionRepository interface {
	Create(ctx context.Context, session *entity.ChatSession) error
	// UpdateTitle changes the title only when every specification matches; it reports
	// whether a row was changed.
	UpdateTitle(ctx context.Context, title string, specs ...specification.Specification) (bool, error)
	// NextPosition reserves the next message position of a session and bumps
	// its updated_at. It returns 0 when the session does not exist.
	NextPosition(ctx context.Context, id uuid.UUID) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error)
}
