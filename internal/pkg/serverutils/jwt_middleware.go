package serverutils

import (
	"context"
	"strings"

	"ai-chatstream-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const userIdLocal = "user_id"

// IdentityResolver is the part of the identity service the middleware needs.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, bearerToken string) (uuid.UUID, error)
}

// BearerToken reads the token from the Authorization header, falling back to
// the token query parameter for browser WebSocket and EventSource clients.
func BearerToken(ctx *fiber.Ctx) string {
	authHeader := ctx.Get("Authorization")
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "Bearer ") {
		return authHeader[7:]
	}
	return ctx.Query("token")
}

func JwtMiddleware(identity IdentityResolver) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		tokenStr := BearerToken(ctx)
		if tokenStr == "" {
			return apperror.Unauthenticated("missing token")
		}

		userId, err := identity.ResolveIdentity(ctx.UserContext(), tokenStr)
		if err != nil {
			return err
		}

		ctx.Locals(userIdLocal, userId.String())
		return ctx.Next()
	}
}

// UserId returns the caller resolved by JwtMiddleware.
func UserId(ctx *fiber.Ctx) uuid.UUID {
	userIdStr, _ := ctx.Locals(userIdLocal).(string)
	userId, _ := uuid.Parse(userIdStr)
	return userId
}
