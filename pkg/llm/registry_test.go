package llm

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Resolve(t *testing.T) {
	gemini := &FuncProvider{ProviderID: ProviderGemini, ModelNames: ModelSet{"gemini-pro", "gemini-1.5-flash"}}
	ollama := &FuncProvider{ProviderID: ProviderOllama}
	registry := NewRegistry(gemini, ollama)

	tests := []struct {
		name     string
		provider ProviderID
		model    string
		wantErr  error
	}{
		{name: "known model", provider: ProviderGemini, model: "gemini-pro"},
		{name: "unknown model", provider: ProviderGemini, model: "gpt-4o", wantErr: ErrUnsupportedModel},
		{name: "unknown provider", provider: "mistral", model: "any", wantErr: ErrUnsupportedModel},
		{name: "open allowlist", provider: ProviderOllama, model: "llama3"},
		{name: "empty model", provider: ProviderOllama, model: "", wantErr: ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := registry.Resolve(tt.provider, tt.model)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.provider, p.ID())
		})
	}
}

func TestRegistry_Catalog(t *testing.T) {
	registry := NewRegistry(
		&FuncProvider{ProviderID: ProviderOpenAI, ModelNames: ModelSet{"gpt-4o"}},
		&FuncProvider{ProviderID: ProviderOllama},
	)

	catalog := registry.Catalog()
	require.Len(t, catalog, 2)
	assert.Equal(t, ProviderOpenAI, catalog[0].ID)
	assert.Equal(t, []string{"gpt-4o"}, catalog[0].Models)
	assert.Equal(t, []string{}, catalog[1].Models)
}

func TestFromStatus(t *testing.T) {
	header := http.Header{}
	header.Set("Retry-After", "12")

	err := FromStatus(ProviderAnthropic, http.StatusTooManyRequests, header, "slow down")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 12*time.Second, RetryAfterOf(err))

	assert.ErrorIs(t, FromStatus(ProviderAnthropic, http.StatusNotFound, http.Header{}, ""), ErrUnsupportedModel)
	assert.ErrorIs(t, FromStatus(ProviderAnthropic, http.StatusBadGateway, http.Header{}, ""), ErrProviderUnavailable)
}
