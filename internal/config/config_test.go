package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STREAM_FIRST_CHUNK_TIMEOUT", "")
	t.Setenv("OLLAMA_MODELS", "")

	cfg := Load()

	assert.Equal(t, 30*time.Second, cfg.Stream.FirstChunkTimeout)
	assert.Equal(t, 20*time.Second, cfg.Stream.IdleTimeout)
	assert.Empty(t, cfg.Providers.Ollama.Models)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STREAM_IDLE_TIMEOUT", "5")
	t.Setenv("STREAM_HEARTBEAT_INTERVAL", "250ms")
	t.Setenv("GEMINI_MODELS", "gemini-pro, gemini-1.5-pro ,")
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("OTEL_ENABLED", "true")

	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.Stream.IdleTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.Stream.HeartbeatInterval)
	assert.Equal(t, []string{"gemini-pro", "gemini-1.5-pro"}, cfg.Providers.Gemini.Models)
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.True(t, cfg.App.OtelEnabled)
}
