package contract

import (
	"context"

	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/repository/specification"

	"github.com/google/uuid"
)

// Messages are append-only: there is no Update.
type ChatMessageRepository interface {
	Create(ctx context.Context, message *entity.ChatMessage) error
	DeleteByChatSessionId(ctx context.Context, sessionId uuid.UUID) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatMessage, error)
	FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatMessage, error)
	Count(ctx context.Context, specs ...specification.Specification) (int64, error)
}
