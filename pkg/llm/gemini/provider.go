package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ai-chatstream-be/pkg/llm"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

type GeminiProvider struct {
	client     *genai.Client
	ModelNames llm.ModelSet
}

var _ llm.Provider = &GeminiProvider{}

func NewGeminiProvider(ctx context.Context, apiKey string, models []string, opts ...option.ClientOption) (*GeminiProvider, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{client: client, ModelNames: models}, nil
}

func (g *GeminiProvider) Close() error {
	return g.client.Close()
}

func (g *GeminiProvider) ID() llm.ProviderID { return llm.ProviderGemini }

func (g *GeminiProvider) Models() []string { return g.ModelNames }

func (g *GeminiProvider) SupportsModel(model string) bool {
	return len(g.ModelNames) > 0 && g.ModelNames.Supports(model)
}

func (g *GeminiProvider) Stream(ctx context.Context, request llm.StreamRequest, opts ...llm.Option) (*llm.ChatStream, error) {
	options := llm.ApplyOptions(opts...)

	model := g.client.GenerativeModel(request.Model)
	model.SetTemperature(float32(options.Temperature))
	if options.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(options.MaxTokens))
	}

	system, history := toContents(request.History)
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	chatSession := model.StartChat()
	chatSession.History = history

	it := chatSession.SendMessageStream(ctx, genai.Text(request.Prompt))

	// The request is only issued on the first Next call, so the first response
	// is pulled here to surface connection failures as pre-stream errors.
	first, err := it.Next()
	if err != nil && !errors.Is(err, iterator.Done) {
		return nil, classify(err)
	}

	return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
		resp, err := first, err
		finishReason := ""
		for {
			if errors.Is(err, iterator.Done) {
				yield(llm.StreamEvent{Type: llm.StreamEventDone, FinishReason: finishReason}, nil)
				return
			}
			if err != nil {
				yield(llm.StreamEvent{}, classify(err))
				return
			}

			text, reason := extract(resp)
			if reason != "" {
				finishReason = reason
			}
			if text != "" {
				if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: text}, nil) {
					return
				}
			}

			resp, err = it.Next()
		}
	}), nil
}

// toContents maps provider-agnostic history onto Gemini roles. Gemini calls
// the assistant "model" and takes system text out of band.
func toContents(history []llm.Message) (string, []*genai.Content) {
	var system []string
	contents := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case llm.RoleSystem:
			system = append(system, msg.Content)
		case llm.RoleAssistant:
			contents = append(contents, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(msg.Content)}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(msg.Content)}})
		}
	}
	return strings.Join(system, "\n"), contents
}

func extract(resp *genai.GenerateContentResponse) (string, string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ""
	}
	candidate := resp.Candidates[0]

	reason := ""
	if candidate.FinishReason != genai.FinishReasonUnspecified {
		reason = candidate.FinishReason.String()
	}
	if candidate.Content == nil {
		return "", reason
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	return sb.String(), reason
}

func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusTooManyRequests:
			return llm.RateLimited(llm.ProviderGemini, llm.ParseRetryAfter(apiErr.Header.Get("Retry-After")), err)
		case http.StatusNotFound:
			return &llm.ProviderError{Provider: llm.ProviderGemini, Kind: llm.ErrUnsupportedModel, Err: err}
		}
	}
	return llm.Unavailable(llm.ProviderGemini, err)
}
