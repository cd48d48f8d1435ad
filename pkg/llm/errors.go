package llm

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrStreamInterrupted   = errors.New("provider stream interrupted")
	ErrUnsupportedModel    = errors.New("unsupported model")
	ErrRateLimited         = errors.New("provider rate limited")
)

// ProviderError annotates a failure with the provider that produced it.
// errors.Is(err, Kind) holds for the matching sentinel.
type ProviderError struct {
	Provider   ProviderID
	Kind       error
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Provider, e.Kind)
}

func (e *ProviderError) Is(target error) bool {
	return target == e.Kind
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

func Unavailable(provider ProviderID, err error) error {
	return &ProviderError{Provider: provider, Kind: ErrProviderUnavailable, Err: err}
}

func Interrupted(provider ProviderID, err error) error {
	return &ProviderError{Provider: provider, Kind: ErrStreamInterrupted, Err: err}
}

func UnsupportedModel(provider ProviderID, model string) error {
	return &ProviderError{Provider: provider, Kind: ErrUnsupportedModel, Err: fmt.Errorf("model %q is not available", model)}
}

func RateLimited(provider ProviderID, retryAfter time.Duration, err error) error {
	return &ProviderError{Provider: provider, Kind: ErrRateLimited, RetryAfter: retryAfter, Err: err}
}

// RetryAfterOf returns the retry hint carried by a rate limit error, if any.
func RetryAfterOf(err error) time.Duration {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.RetryAfter
	}
	return 0
}

// FromStatus classifies a non-2xx upstream response received before any chunk.
func FromStatus(provider ProviderID, status int, header http.Header, body string) error {
	err := fmt.Errorf("status %d: %s", status, body)
	switch {
	case status == http.StatusTooManyRequests:
		return RateLimited(provider, ParseRetryAfter(header.Get("Retry-After")), err)
	case status == http.StatusNotFound:
		return &ProviderError{Provider: provider, Kind: ErrUnsupportedModel, Err: err}
	default:
		return Unavailable(provider, err)
	}
}

// ParseRetryAfter accepts both delta-seconds and HTTP-date forms.
func ParseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}
