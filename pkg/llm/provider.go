package llm

import (
	"context"
)

// ProviderID identifies an upstream generative-AI backend.
type ProviderID string

const (
	ProviderOpenAI    ProviderID = "openai"
	ProviderAnthropic ProviderID = "anthropic"
	ProviderGemini    ProviderID = "gemini"
	ProviderOllama    ProviderID = "ollama"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// StreamRequest is one provider call: the prior conversation plus the new prompt.
// History is passed explicitly on every call; providers keep no session state.
type StreamRequest struct {
	Model   string
	History []Message
	Prompt  string
}

// Messages returns the history followed by the prompt as a user message.
func (r StreamRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+1)
	msgs = append(msgs, r.History...)
	return append(msgs, Message{Role: RoleUser, Content: r.Prompt})
}

// Provider defines the contract for any streaming LLM backend.
//
// Stream returns pre-stream failures (unreachable upstream, bad credentials,
// throttling) as an error. Once a stream is returned, later failures arrive
// through its iterator.
type Provider interface {
	ID() ProviderID
	Models() []string
	SupportsModel(model string) bool
	Stream(ctx context.Context, request StreamRequest, opts ...Option) (*ChatStream, error)
}

// Options holds optional parameters for a provider call
type Options struct {
	Temperature float64
	MaxTokens   int
}

type Option func(*Options)

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(tokens int) Option {
	return func(o *Options) {
		o.MaxTokens = tokens
	}
}

// ApplyOptions resolves opts over the package defaults.
func ApplyOptions(opts ...Option) *Options {
	options := &Options{Temperature: 0.7}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// ModelSet is an allowlist of model names. An empty set accepts any non-empty name.
type ModelSet []string

func (s ModelSet) Supports(model string) bool {
	if model == "" {
		return false
	}
	if len(s) == 0 {
		return true
	}
	for _, m := range s {
		if m == model {
			return true
		}
	}
	return false
}
