package nats

import (
	"encoding/json"
	"testing"

	"ai-chatstream-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	evt := events.NewSessionEvent(events.SessionCreated, uuid.New(), uuid.New())

	data, err := Encode(evt)
	require.NoError(t, err)

	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	assert.Equal(t, events.SessionCreated, env.Type)
	assert.Contains(t, env.Data, "session_id")
	assert.Equal(t, "events.SESSION_CREATED", Subject(evt.EventType()))
}
