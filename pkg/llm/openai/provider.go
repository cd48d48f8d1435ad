package openai

import (
	"ai-chatstream-be/pkg/llm"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	goopenai "github.com/sashabaranov/go-openai"
)

type OpenAIProvider struct {
	client     *goopenai.Client
	ModelNames llm.ModelSet
}

var _ llm.Provider = &OpenAIProvider{}

// NewOpenAIProvider builds an adapter for the OpenAI chat completions API or
// any server speaking the same protocol when baseURL is set.
func NewOpenAIProvider(apiKey, baseURL string, models []string) *OpenAIProvider {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIProvider{
		client:     goopenai.NewClientWithConfig(cfg),
		ModelNames: models,
	}
}

func (o *OpenAIProvider) ID() llm.ProviderID { return llm.ProviderOpenAI }

func (o *OpenAIProvider) Models() []string { return o.ModelNames }

func (o *OpenAIProvider) SupportsModel(model string) bool {
	return len(o.ModelNames) > 0 && o.ModelNames.Supports(model)
}

func (o *OpenAIProvider) Stream(ctx context.Context, request llm.StreamRequest, opts ...llm.Option) (*llm.ChatStream, error) {
	options := llm.ApplyOptions(opts...)

	history := request.Messages()
	messages := make([]goopenai.ChatCompletionMessage, len(history))
	for i, msg := range history {
		messages[i] = goopenai.ChatCompletionMessage{Role: msg.Role, Content: msg.Content}
	}

	stream, err := o.client.CreateChatCompletionStream(ctx, goopenai.ChatCompletionRequest{
		Model:       request.Model,
		Messages:    messages,
		Stream:      true,
		Temperature: float32(options.Temperature),
		MaxTokens:   options.MaxTokens,
	})
	if err != nil {
		return nil, classify(err)
	}

	return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
		defer stream.Close()

		finishReason := ""
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				// The library reports [DONE] and a dropped connection the same
				// way; only a finish reason proves the answer is complete.
				if finishReason != "" {
					yield(llm.StreamEvent{Type: llm.StreamEventDone, FinishReason: finishReason}, nil)
				}
				return
			}
			if err != nil {
				yield(llm.StreamEvent{}, classify(err))
				return
			}

			for _, choice := range resp.Choices {
				if choice.FinishReason != "" {
					finishReason = string(choice.FinishReason)
				}
				if choice.Delta.Content == "" {
					continue
				}
				if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: choice.Delta.Content}, nil) {
					return
				}
			}
		}
	}), nil
}

func classify(err error) error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return fromStatus(apiErr.HTTPStatusCode, err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) {
		return fromStatus(reqErr.HTTPStatusCode, err)
	}
	return llm.Unavailable(llm.ProviderOpenAI, err)
}

func fromStatus(status int, err error) error {
	switch status {
	case http.StatusTooManyRequests:
		return llm.RateLimited(llm.ProviderOpenAI, 0, err)
	case http.StatusNotFound:
		return &llm.ProviderError{Provider: llm.ProviderOpenAI, Kind: llm.ErrUnsupportedModel, Err: err}
	case 0:
		return llm.Unavailable(llm.ProviderOpenAI, err)
	default:
		return llm.Unavailable(llm.ProviderOpenAI, fmt.Errorf("status %d: %w", status, err))
	}
}
