package anthropic

import (
	"ai-chatstream-be/pkg/llm"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEvent(w http.ResponseWriter, name, data string) {
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
}

func TestAnthropicProvider_Stream(t *testing.T) {
	var received messagesRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, messagesEndpoint, r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, apiVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		w.Header().Set("Content-Type", "text/event-stream")
		writeEvent(w, "message_start", `{"type":"message_start","message":{"usage":{"input_tokens":3}}}`)
		writeEvent(w, "content_block_start", `{"type":"content_block_start","index":0,"content_block":{"type":"text","text":""}}`)
		writeEvent(w, "ping", `{"type":"ping"}`)
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Bonjour"}}`)
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" monde"}}`)
		writeEvent(w, "content_block_stop", `{"type":"content_block_stop","index":0}`)
		writeEvent(w, "message_delta", `{"type":"message_delta","delta":{"stop_reason":"end_turn"}}`)
		writeEvent(w, "message_stop", `{"type":"message_stop"}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL, []string{"claude-3-5-sonnet"})
	stream, err := p.Stream(context.Background(), llm.StreamRequest{
		Model:   "claude-3-5-sonnet",
		History: []llm.Message{{Role: llm.RoleSystem, Content: "be brief"}},
		Prompt:  "hello in french",
	})
	require.NoError(t, err)

	var chunks []string
	var finish string
	for event, err := range stream.Iter() {
		require.NoError(t, err)
		if event.Type == llm.StreamEventDone {
			finish = event.FinishReason
			break
		}
		chunks = append(chunks, event.Content)
	}

	assert.Equal(t, []string{"Bonjour", " monde"}, chunks)
	assert.Equal(t, "end_turn", finish)
	assert.Equal(t, "be brief", received.System)
	assert.True(t, received.Stream)
	require.Len(t, received.Messages, 1)
	assert.Equal(t, "user", received.Messages[0].Role)
}

func TestAnthropicProvider_RateLimited(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL, []string{"claude-3-5-sonnet"})
	_, err := p.Stream(context.Background(), llm.StreamRequest{Model: "claude-3-5-sonnet", Prompt: "x"})
	assert.ErrorIs(t, err, llm.ErrRateLimited)
	assert.Equal(t, 30*time.Second, llm.RetryAfterOf(err))
}

func TestAnthropicProvider_ErrorEvent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEvent(w, "content_block_delta", `{"type":"content_block_delta","delta":{"type":"text_delta","text":"Hi"}}`)
		writeEvent(w, "error", `{"type":"error","error":{"type":"overloaded_error","message":"Overloaded"}}`)
	}))
	defer server.Close()

	p := NewAnthropicProvider("test-key", server.URL, []string{"claude-3-5-sonnet"})
	stream, err := p.Stream(context.Background(), llm.StreamRequest{Model: "claude-3-5-sonnet", Prompt: "x"})
	require.NoError(t, err)

	text, err := stream.Collect()
	assert.Equal(t, "Hi", text)
	assert.EqualError(t, err, "overloaded_error: Overloaded")
}

func TestAnthropicProvider_MissingKey(t *testing.T) {
	_, err := NewAnthropicProvider("", "", nil).Stream(context.Background(), llm.StreamRequest{Model: "m", Prompt: "x"})
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
}
