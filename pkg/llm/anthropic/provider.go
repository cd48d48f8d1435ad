package anthropic

import (
	"ai-chatstream-be/pkg/llm"
	"ai-chatstream-be/pkg/llm/sse"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	DefaultBaseURL   = "https://api.anthropic.com"
	messagesEndpoint = "/v1/messages"
	apiVersion       = "2023-06-01"
	defaultMaxTokens = 4096
)

type AnthropicProvider struct {
	BaseURL    string
	APIKey     string
	ModelNames llm.ModelSet
	Client     *http.Client
}

var _ llm.Provider = &AnthropicProvider{}

func NewAnthropicProvider(apiKey, baseURL string, models []string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &AnthropicProvider{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		ModelNames: models,
		Client:     &http.Client{},
	}
}

type messagesRequest struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature,omitempty"`
	Stream      bool      `json:"stream"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type streamEvent struct {
	Type  string `json:"type"`
	Delta *struct {
		Type       string `json:"type"`
		Text       string `json:"text,omitempty"`
		StopReason string `json:"stop_reason,omitempty"`
	} `json:"delta,omitempty"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (a *AnthropicProvider) ID() llm.ProviderID { return llm.ProviderAnthropic }

func (a *AnthropicProvider) Models() []string { return a.ModelNames }

func (a *AnthropicProvider) SupportsModel(model string) bool {
	return len(a.ModelNames) > 0 && a.ModelNames.Supports(model)
}

func (a *AnthropicProvider) Stream(ctx context.Context, request llm.StreamRequest, opts ...llm.Option) (*llm.ChatStream, error) {
	if a.APIKey == "" {
		return nil, llm.Unavailable(llm.ProviderAnthropic, errors.New("ANTHROPIC_API_KEY is not set"))
	}
	options := llm.ApplyOptions(opts...)

	// System prompts travel in a dedicated field; the messages array only
	// accepts user and assistant turns.
	payload := messagesRequest{
		Model:       request.Model,
		MaxTokens:   defaultMaxTokens,
		Temperature: options.Temperature,
		Stream:      true,
	}
	if options.MaxTokens > 0 {
		payload.MaxTokens = options.MaxTokens
	}
	for _, msg := range request.Messages() {
		if msg.Role == llm.RoleSystem {
			payload.System = msg.Content
			continue
		}
		payload.Messages = append(payload.Messages, message{Role: msg.Role, Content: msg.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+messagesEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("x-api-key", a.APIKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, llm.Unavailable(llm.ProviderAnthropic, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, llm.FromStatus(llm.ProviderAnthropic, resp.StatusCode, resp.Header, string(errBody))
	}

	scanner := sse.NewScanner(resp.Body)

	// message_start → content_block_start → content_block_delta(s) →
	// content_block_stop → message_delta → message_stop
	return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
		defer resp.Body.Close()

		finishReason := ""
		for {
			raw, err := scanner.Next()
			if err == io.EOF {
				return
			}
			if err != nil {
				yield(llm.StreamEvent{}, err)
				return
			}

			var event streamEvent
			if err := json.Unmarshal([]byte(raw.Data), &event); err != nil {
				yield(llm.StreamEvent{}, fmt.Errorf("parse stream event: %w", err))
				return
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta == nil || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
					continue
				}
				if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: event.Delta.Text}, nil) {
					return
				}
			case "message_delta":
				if event.Delta != nil {
					finishReason = event.Delta.StopReason
				}
			case "message_stop":
				yield(llm.StreamEvent{Type: llm.StreamEventDone, FinishReason: finishReason}, nil)
				return
			case "error":
				msg := "unknown error"
				if event.Error != nil {
					msg = event.Error.Type + ": " + event.Error.Message
				}
				yield(llm.StreamEvent{}, errors.New(msg))
				return
			}
		}
	}), nil
}
