package serverutils

import (
	"strconv"

	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/pkg/logger"
	"ai-chatstream-be/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
)

// RateLimitMiddleware limits authenticated callers per user id. It must run
// after JwtMiddleware. Limiter failures let the request through.
func RateLimitMiddleware(limiter ratelimit.Limiter, log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		key := UserId(ctx).String()

		res, err := limiter.Allow(ctx.UserContext(), key)
		if err != nil {
			log.Warn("RATE_LIMIT", "Limiter unavailable, allowing request", map[string]interface{}{"error": err.Error()})
			return ctx.Next()
		}

		ctx.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		ctx.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		if !res.Allowed {
			return apperror.RateLimited(res.RetryAfter)
		}
		return ctx.Next()
	}
}
