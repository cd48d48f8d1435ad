package serverutils

import (
	"errors"
	"strconv"

	"ai-chatstream-be/internal/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandlerMiddleware turns errors returned by handlers into JSON bodies.
func ErrorHandlerMiddleware() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}
		return WriteError(ctx, err)
	}
}

func WriteError(ctx *fiber.Ctx, err error) error {
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return ctx.Status(fiberErr.Code).JSON(ErrorResponse(fiberErr.Code, fiberErr.Message))
	}

	appErr := apperror.As(err)
	status := apperror.HTTPStatus(appErr.Code)
	if appErr.RetryAfter > 0 {
		ctx.Set(fiber.HeaderRetryAfter, strconv.Itoa(RetryAfterSeconds(appErr.RetryAfter.Seconds())))
	}

	res := ErrorResponse(status, appErr.Message)
	res.ErrorType = string(appErr.Code)
	return ctx.Status(status).JSON(res)
}

// RetryAfterSeconds rounds a retry hint up to whole seconds.
func RetryAfterSeconds(seconds float64) int {
	s := int(seconds)
	if float64(s) < seconds {
		s++
	}
	if s < 1 {
		s = 1
	}
	return s
}
