package apperror

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-chatstream-be/pkg/llm"

	"github.com/gofiber/fiber/v2"
)

// Code is a stable, machine-readable error identifier exposed to clients.
type Code string

const (
	CodeUnauthenticated           Code = "UNAUTHENTICATED"
	CodeNotFound                  Code = "NOT_FOUND"
	CodeUnsupportedModel          Code = "UNSUPPORTED_MODEL"
	CodeProviderUnavailable       Code = "PROVIDER_UNAVAILABLE"
	CodeProviderStreamInterrupted Code = "PROVIDER_STREAM_INTERRUPTED"
	CodeRateLimited               Code = "RATE_LIMITED"
	CodeStorageFailure            Code = "STORAGE_FAILURE"
	CodeValidation                Code = "VALIDATION_ERROR"
	CodeCancelled                 Code = "CANCELLED"
	CodeInternal                  Code = "INTERNAL_ERROR"
)

type Error struct {
	Code       Code
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func Unauthenticated(message string) *Error {
	return New(CodeUnauthenticated, message)
}

func NotFound(resource string) *Error {
	return New(CodeNotFound, resource+" not found")
}

func Validation(message string) *Error {
	return New(CodeValidation, message)
}

func StorageFailure(err error) *Error {
	return Wrap(CodeStorageFailure, "failed to persist chat data", err)
}

func RateLimited(retryAfter time.Duration) *Error {
	return &Error{Code: CodeRateLimited, Message: "too many requests, please retry later", RetryAfter: retryAfter}
}

// CodeOf returns the code attached to err, INTERNAL_ERROR when none is.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// As converts any error into an *Error, mapping provider and context
// failures onto their codes.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	if providerErr := FromProvider(err); providerErr != nil {
		return providerErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(CodeCancelled, "request cancelled", err)
	}
	return Wrap(CodeInternal, "internal server error", err)
}

// FromProvider maps a pkg/llm error to its client-facing code, or nil if err
// did not come from a provider.
func FromProvider(err error) *Error {
	switch {
	case errors.Is(err, llm.ErrUnsupportedModel):
		return Wrap(CodeUnsupportedModel, "the requested provider or model is not supported", err)
	case errors.Is(err, llm.ErrRateLimited):
		return &Error{Code: CodeRateLimited, Message: "the AI provider is rate limiting requests", RetryAfter: llm.RetryAfterOf(err), Err: err}
	case errors.Is(err, llm.ErrProviderUnavailable):
		return Wrap(CodeProviderUnavailable, "the AI provider is unavailable", err)
	case errors.Is(err, llm.ErrStreamInterrupted):
		return Wrap(CodeProviderStreamInterrupted, "the AI provider stream was interrupted", err)
	}
	return nil
}

func HTTPStatus(code Code) int {
	switch code {
	case CodeUnauthenticated:
		return fiber.StatusUnauthorized
	case CodeNotFound:
		return fiber.StatusNotFound
	case CodeUnsupportedModel, CodeValidation:
		return fiber.StatusBadRequest
	case CodeRateLimited:
		return fiber.StatusTooManyRequests
	case CodeProviderUnavailable, CodeProviderStreamInterrupted:
		return fiber.StatusBadGateway
	case CodeCancelled:
		return 499
	default:
		return fiber.StatusInternalServerError
	}
}
