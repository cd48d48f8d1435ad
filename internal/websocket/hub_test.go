package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"ai-chatstream-be/internal/dto"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub(logger.NewNopLogger())
	go hub.Run()

	userID := uuid.New()
	first := NewClient(hub, nil, userID, nil, nil)
	second := NewClient(hub, nil, userID, nil, nil)

	hub.register <- first
	hub.register <- second
	assert.Eventually(t, func() bool { return hub.Connections(userID) == 2 }, time.Second, 10*time.Millisecond)

	hub.unregister <- first
	assert.Eventually(t, func() bool { return hub.Connections(userID) == 1 }, time.Second, 10*time.Millisecond)

	hub.CloseAll()
	assert.ErrorIs(t, second.ctx.Err(), context.Canceled)
	assert.NoError(t, first.ctx.Err())
}

func readEvent(t *testing.T, c *Client) dto.StreamEvent {
	t.Helper()
	select {
	case data := <-c.Send:
		var event dto.StreamEvent
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(time.Second):
		t.Fatal("no event sent")
		return dto.StreamEvent{}
	}
}

func TestClient_HandleRequest(t *testing.T) {
	release := make(chan struct{})
	runTurn := func(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest) <-chan dto.StreamEvent {
		events := make(chan dto.StreamEvent, 2)
		go func() {
			defer close(events)
			events <- dto.StreamEvent{Type: dto.StreamEventDelta, Delta: req.Prompt}
			<-release
			events <- dto.StreamEvent{Type: dto.StreamEventDone}
		}()
		return events
	}

	client := NewClient(nil, nil, uuid.New(), runTurn, nil)
	defer client.cancel()

	request, err := json.Marshal(dto.StreamChatRequest{SessionId: uuid.New(), Prompt: "hi", Provider: "ollama", Model: "llama3"})
	require.NoError(t, err)

	client.handleRequest(request)
	assert.Equal(t, dto.StreamEvent{Type: dto.StreamEventDelta, Delta: "hi"}, readEvent(t, client))

	// A second request while the first is streaming is refused.
	client.handleRequest(request)
	busy := readEvent(t, client)
	require.NotNil(t, busy.Error)
	assert.Equal(t, string(apperror.CodeValidation), busy.Error.Code)

	close(release)
	assert.Equal(t, dto.StreamEventDone, readEvent(t, client).Type)
	assert.Eventually(t, func() bool { return !client.busy.Load() }, time.Second, 10*time.Millisecond)
}

func TestClient_HandleRequest_Rejects(t *testing.T) {
	client := NewClient(nil, nil, uuid.New(), nil, func(req *dto.StreamChatRequest) error {
		return apperror.Validation("Prompt is required")
	})
	defer client.cancel()

	client.handleRequest([]byte("{not json"))
	event := readEvent(t, client)
	require.NotNil(t, event.Error)
	assert.Equal(t, string(apperror.CodeValidation), event.Error.Code)

	client.handleRequest([]byte(`{"prompt":""}`))
	event = readEvent(t, client)
	require.NotNil(t, event.Error)
	assert.Equal(t, "Prompt is required", event.Error.Message)
}
