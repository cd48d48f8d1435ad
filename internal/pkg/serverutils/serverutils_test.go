package serverutils

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/pkg/logger"
	"ai-chatstream-be/pkg/llm"
	"ai-chatstream-be/pkg/ratelimit"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticIdentity struct {
	userId uuid.UUID
}

func (s staticIdentity) ResolveIdentity(ctx context.Context, bearerToken string) (uuid.UUID, error) {
	if bearerToken != "good" {
		return uuid.Nil, apperror.Unauthenticated("invalid token")
	}
	return s.userId, nil
}

func errorApp(err error) *fiber.App {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Get("/", func(ctx *fiber.Ctx) error { return err })
	return app
}

func TestErrorHandlerMiddleware(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		errorType string
	}{
		{"not found", apperror.NotFound("chat session"), http.StatusNotFound, "NOT_FOUND"},
		{"validation", apperror.Validation("Title is required"), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"provider", llm.Unavailable(llm.ProviderOpenAI, errors.New("dial")), http.StatusBadGateway, "PROVIDER_UNAVAILABLE"},
		{"storage", apperror.StorageFailure(errors.New("disk")), http.StatusInternalServerError, "STORAGE_FAILURE"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
		{"fiber", fiber.NewError(http.StatusBadRequest, "Invalid request body"), http.StatusBadRequest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := errorApp(tt.err).Test(httptest.NewRequest(http.MethodGet, "/", nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)

			var body BaseResponse[any]
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.False(t, body.Success)
			assert.Equal(t, tt.status, body.Code)
			assert.Equal(t, tt.errorType, body.ErrorType)
		})
	}
}

func TestErrorHandlerMiddleware_RetryAfter(t *testing.T) {
	resp, err := errorApp(apperror.RateLimited(1500*time.Millisecond)).Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "2", resp.Header.Get("Retry-After"))
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		Title string `validate:"required,max=5"`
	}

	assert.NoError(t, ValidateRequest(request{Title: "ok"}))

	err := ValidateRequest(request{})
	assert.Equal(t, apperror.CodeValidation, apperror.CodeOf(err))
	assert.Contains(t, err.Error(), "Title is required")

	err = ValidateRequest(request{Title: "too long"})
	assert.Contains(t, err.Error(), "at most 5")
}

func TestJwtMiddleware(t *testing.T) {
	userId := uuid.New()
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Use(JwtMiddleware(staticIdentity{userId: userId}))
	app.Get("/me", func(ctx *fiber.Ctx) error {
		return ctx.SendString(UserId(ctx).String())
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/me?token=good", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/me", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer bad")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimitMiddleware(t *testing.T) {
	app := fiber.New()
	app.Use(ErrorHandlerMiddleware())
	app.Use(JwtMiddleware(staticIdentity{userId: uuid.New()}))
	app.Use(RateLimitMiddleware(ratelimit.NewMemoryLimiter(2, time.Minute), logger.NewNopLogger()))
	app.Get("/", func(ctx *fiber.Ctx) error { return ctx.SendStatus(http.StatusNoContent) })

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer good")
		resp, err := app.Test(req)
		require.NoError(t, err)
		statuses = append(statuses, resp.StatusCode)
	}

	assert.Equal(t, []int{http.StatusNoContent, http.StatusNoContent, http.StatusTooManyRequests}, statuses)
}
