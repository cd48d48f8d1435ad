package ollama

import (
	"ai-chatstream-be/pkg/llm"
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const DefaultBaseURL = "http://localhost:11434"

type OllamaProvider struct {
	BaseURL    string
	ModelNames llm.ModelSet
	Client     *http.Client
}

// Ensure OllamaProvider implements Provider
var _ llm.Provider = &OllamaProvider{}

// NewOllamaProvider builds a local Ollama adapter. An empty model list accepts
// any model name, since local installs pull models on demand.
func NewOllamaProvider(baseURL string, models []string) *OllamaProvider {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OllamaProvider{
		BaseURL:    baseURL,
		ModelNames: models,
		// No client timeout: streams are bounded by the caller's context.
		Client: &http.Client{},
	}
}

// --- Request/Response structs (Internal to this package) ---

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model      string        `json:"model"`
	Message    ollamaMessage `json:"message"`
	Done       bool          `json:"done"`
	DoneReason string        `json:"done_reason,omitempty"`
	Error      string        `json:"error,omitempty"`
}

// --- Interface Implementation ---

func (o *OllamaProvider) ID() llm.ProviderID { return llm.ProviderOllama }

func (o *OllamaProvider) Models() []string { return o.ModelNames }

func (o *OllamaProvider) SupportsModel(model string) bool { return o.ModelNames.Supports(model) }

func (o *OllamaProvider) Stream(ctx context.Context, request llm.StreamRequest, opts ...llm.Option) (*llm.ChatStream, error) {
	options := llm.ApplyOptions(opts...)

	history := request.Messages()
	ollamaMessages := make([]ollamaMessage, len(history))
	for i, msg := range history {
		ollamaMessages[i] = ollamaMessage{Role: msg.Role, Content: msg.Content}
	}

	reqPayload := ollamaChatRequest{
		Model:    request.Model,
		Messages: ollamaMessages,
		Stream:   true,
		Options: &ollamaOptions{
			Temperature: options.Temperature,
			NumPredict:  options.MaxTokens,
		},
	}

	payloadBytes, err := json.Marshal(reqPayload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BaseURL+"/api/chat", bytes.NewBuffer(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.Client.Do(req)
	if err != nil {
		return nil, llm.Unavailable(llm.ProviderOllama, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return nil, llm.FromStatus(llm.ProviderOllama, resp.StatusCode, resp.Header, string(body))
	}

	return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
		defer resp.Body.Close()

		// One JSON object per line.
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}

			var chunk ollamaChatResponse
			if err := json.Unmarshal(line, &chunk); err != nil {
				yield(llm.StreamEvent{}, fmt.Errorf("unmarshal chunk: %w", err))
				return
			}
			if chunk.Error != "" {
				yield(llm.StreamEvent{}, errors.New(chunk.Error))
				return
			}

			if chunk.Message.Content != "" {
				if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: chunk.Message.Content}, nil) {
					return
				}
			}

			if chunk.Done {
				yield(llm.StreamEvent{Type: llm.StreamEventDone, FinishReason: chunk.DoneReason}, nil)
				return
			}
		}

		if err := scanner.Err(); err != nil {
			yield(llm.StreamEvent{}, fmt.Errorf("read stream: %w", err))
		}
	}), nil
}
