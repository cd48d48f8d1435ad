package contract

import (
	"context"

	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/repository/specification"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindOne(ctx context.Context, specs ...specification.Specification) (*entity.User, error)
}
