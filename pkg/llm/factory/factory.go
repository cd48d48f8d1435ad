package factory

import (
	"context"
	"fmt"

	"ai-chatstream-be/pkg/llm"
	"ai-chatstream-be/pkg/llm/anthropic"
	"ai-chatstream-be/pkg/llm/gemini"
	"ai-chatstream-be/pkg/llm/ollama"
	"ai-chatstream-be/pkg/llm/openai"
)

// ProviderConfig is the connection data for one upstream.
type ProviderConfig struct {
	APIKey  string
	BaseURL string
	Models  []string
}

type Config struct {
	OpenAI    ProviderConfig
	Anthropic ProviderConfig
	Gemini    ProviderConfig
	Ollama    ProviderConfig
	// OllamaEnabled registers Ollama even without an explicit base URL.
	OllamaEnabled bool
}

func NewLLMProvider(ctx context.Context, providerType llm.ProviderID, cfg ProviderConfig) (llm.Provider, error) {
	switch providerType {
	case llm.ProviderOpenAI:
		return openai.NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Models), nil
	case llm.ProviderAnthropic:
		return anthropic.NewAnthropicProvider(cfg.APIKey, cfg.BaseURL, cfg.Models), nil
	case llm.ProviderGemini:
		return gemini.NewGeminiProvider(ctx, cfg.APIKey, cfg.Models)
	case llm.ProviderOllama:
		return ollama.NewOllamaProvider(cfg.BaseURL, cfg.Models), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", providerType)
	}
}

// NewRegistry registers every provider that has credentials configured.
// Providers that fail to initialize are skipped and reported through onError.
func NewRegistry(ctx context.Context, cfg Config, onError func(llm.ProviderID, error)) *llm.Registry {
	registry := llm.NewRegistry()

	candidates := []struct {
		id      llm.ProviderID
		cfg     ProviderConfig
		enabled bool
	}{
		{llm.ProviderOpenAI, cfg.OpenAI, cfg.OpenAI.APIKey != ""},
		{llm.ProviderAnthropic, cfg.Anthropic, cfg.Anthropic.APIKey != ""},
		{llm.ProviderGemini, cfg.Gemini, cfg.Gemini.APIKey != ""},
		{llm.ProviderOllama, cfg.Ollama, cfg.OllamaEnabled || cfg.Ollama.BaseURL != ""},
	}

	for _, c := range candidates {
		if !c.enabled {
			continue
		}
		p, err := NewLLMProvider(ctx, c.id, c.cfg)
		if err != nil {
			if onError != nil {
				onError(c.id, err)
			}
			continue
		}
		registry.Register(p)
	}

	return registry
}
