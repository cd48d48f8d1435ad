package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ai-chatstream-be/internal/dto"
	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/pkg/logger"
	pkgEvents "ai-chatstream-be/pkg/events"
	"ai-chatstream-be/pkg/llm"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type streamFixture struct {
	svc       IChatStreamService
	sessions  ISessionService
	audit     *recordingAudit
	publisher *recordingPublisher
	userId    uuid.UUID
	sessionId uuid.UUID
}

func newStreamFixture(t *testing.T, providers ...llm.Provider) *streamFixture {
	t.Helper()
	sessions, db, auditLog := newTestSessionService(t)
	userId := createTestUser(t, db)

	session, err := sessions.CreateSession(context.Background(), userId, &dto.CreateSessionRequest{})
	require.NoError(t, err)

	publisher := &recordingPublisher{}
	svc := NewChatStreamService(
		sessions,
		llm.NewRegistry(providers...),
		publisher,
		auditLog,
		StreamSettings{FirstChunkTimeout: time.Second, IdleTimeout: time.Second, FinalizeTimeout: time.Second},
		logger.NewNopLogger(),
	)

	return &streamFixture{
		svc:       svc,
		sessions:  sessions,
		audit:     auditLog,
		publisher: publisher,
		userId:    userId,
		sessionId: session.Id,
	}
}

func (f *streamFixture) request(provider, model string) *dto.StreamChatRequest {
	return &dto.StreamChatRequest{
		SessionId: f.sessionId,
		Prompt:    "Tell me a joke",
		Provider:  provider,
		Model:     model,
	}
}

func (f *streamFixture) history(t *testing.T) []*entity.ChatMessage {
	t.Helper()
	messages, err := f.sessions.LoadHistory(context.Background(), f.sessionId)
	require.NoError(t, err)
	return messages
}

func geminiProvider(fn func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error)) *llm.FuncProvider {
	return &llm.FuncProvider{ProviderID: llm.ProviderGemini, ModelNames: llm.ModelSet{"gemini-pro"}, StreamFunc: fn}
}

func collectEvents(t *testing.T, events <-chan dto.StreamEvent) []dto.StreamEvent {
	t.Helper()
	var got []dto.StreamEvent
	timeout := time.After(5 * time.Second)
	for {
		select {
		case event, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, event)
		case <-timeout:
			t.Fatal("stream did not terminate")
			return got
		}
	}
}

func deltas(events []dto.StreamEvent) []string {
	var out []string
	for _, event := range events {
		if event.Type == dto.StreamEventDelta {
			out = append(out, event.Delta)
		}
	}
	return out
}

func assertSingleTerminal(t *testing.T, events []dto.StreamEvent) dto.StreamEvent {
	t.Helper()
	require.NotEmpty(t, events)
	terminals := 0
	for _, event := range events {
		if event.IsTerminal() {
			terminals++
		}
	}
	require.Equal(t, 1, terminals)
	last := events[len(events)-1]
	require.True(t, last.IsTerminal())
	return last
}

func TestChatStream_CompletedTurn(t *testing.T) {
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		return llm.ChunksStream("Why", " don't", " scientists"), nil
	}))

	events := collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	assert.Equal(t, []string{"Why", " don't", " scientists"}, deltas(events))
	done := assertSingleTerminal(t, events)
	require.Equal(t, dto.StreamEventDone, done.Type)
	require.NotNil(t, done.MessageId)
	assert.Equal(t, f.sessionId, *done.SessionId)

	history := f.history(t)
	require.Len(t, history, 2)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
	assert.Equal(t, "Tell me a joke", history[0].Content)
	assert.Equal(t, entity.ChatRoleAssistant, history[1].Role)
	assert.Equal(t, "Why don't scientists", history[1].Content)
	assert.Equal(t, *done.MessageId, history[1].Id)
	assert.Equal(t, "gemini", history[1].Metadata["provider"])

	assert.Equal(t, 1, f.publisher.Count())
	assert.Contains(t, f.audit.Events(), pkgEvents.TurnCompleted)
}

func TestChatStream_PassesPriorHistory(t *testing.T) {
	var mu sync.Mutex
	var seen [][]llm.Message
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		mu.Lock()
		seen = append(seen, request.Messages())
		mu.Unlock()
		return llm.ChunksStream("ok"), nil
	}))

	collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))
	collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	require.Len(t, seen, 2)
	assert.Len(t, seen[0], 1)
	require.Len(t, seen[1], 3)
	assert.Equal(t, llm.RoleUser, seen[1][0].Role)
	assert.Equal(t, llm.RoleAssistant, seen[1][1].Role)
	assert.Equal(t, "ok", seen[1][1].Content)
	assert.Equal(t, llm.RoleUser, seen[1][2].Role)

	// The consumer is not running, so the session is still untitled.
	assert.Equal(t, 2, f.publisher.Count())
}

func TestChatStream_ProviderUnavailable(t *testing.T) {
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		return nil, errors.New("connection refused")
	}))

	events := collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	require.Len(t, events, 1)
	terminal := assertSingleTerminal(t, events)
	assert.Equal(t, dto.StreamEventError, terminal.Type)
	assert.Equal(t, string(apperror.CodeProviderUnavailable), terminal.Error.Code)

	history := f.history(t)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
	assert.Contains(t, f.audit.Events(), pkgEvents.TurnAborted)
	assert.Zero(t, f.publisher.Count())
}

func TestChatStream_InterruptedMidStreamDiscardsPartialAnswer(t *testing.T) {
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
			if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: "Why"}, nil) {
				return
			}
			if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: " don't"}, nil) {
				return
			}
			yield(llm.StreamEvent{}, errors.New("connection reset by peer"))
		}), nil
	}))

	events := collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	assert.Equal(t, []string{"Why", " don't"}, deltas(events))
	terminal := assertSingleTerminal(t, events)
	assert.Equal(t, string(apperror.CodeProviderStreamInterrupted), terminal.Error.Code)

	history := f.history(t)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
}

// failingAnswerStore lets prompts through but refuses to store answers.
type failingAnswerStore struct {
	ISessionService
}

func (s failingAnswerStore) AppendMessage(ctx context.Context, sessionId uuid.UUID, role entity.ChatRole, content string, metadata map[string]interface{}) (*entity.ChatMessage, error) {
	if role == entity.ChatRoleAssistant {
		return nil, apperror.StorageFailure(errors.New("disk full"))
	}
	return s.ISessionService.AppendMessage(ctx, sessionId, role, content, metadata)
}

func TestChatStream_FinalizeStorageFailure(t *testing.T) {
	f := newStreamFixture(t)
	svc := NewChatStreamService(
		failingAnswerStore{ISessionService: f.sessions},
		llm.NewRegistry(geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
			return llm.ChunksStream("Why", " don't"), nil
		})),
		f.publisher,
		f.audit,
		StreamSettings{FirstChunkTimeout: time.Second, IdleTimeout: time.Second, FinalizeTimeout: time.Second},
		logger.NewNopLogger(),
	)

	events := collectEvents(t, svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	assert.Equal(t, []string{"Why", " don't"}, deltas(events))
	terminal := assertSingleTerminal(t, events)
	require.Equal(t, dto.StreamEventError, terminal.Type)
	assert.Equal(t, string(apperror.CodeStorageFailure), terminal.Error.Code)

	history := f.history(t)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ChatRoleUser, history[0].Role)
	assert.Contains(t, f.audit.Events(), pkgEvents.TurnAborted)
	assert.Zero(t, f.publisher.Count())
}

func TestChatStream_IdleTimeoutAborts(t *testing.T) {
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
			if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: "Why"}, nil) {
				return
			}
			<-ctx.Done()
			yield(llm.StreamEvent{}, ctx.Err())
		}), nil
	}))

	events := collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	terminal := assertSingleTerminal(t, events)
	assert.Equal(t, string(apperror.CodeProviderStreamInterrupted), terminal.Error.Code)
	assert.Len(t, f.history(t), 1)
}

func TestChatStream_RateLimitedCarriesRetryAfter(t *testing.T) {
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		return nil, llm.RateLimited(llm.ProviderGemini, 30*time.Second, errors.New("quota exceeded"))
	}))

	events := collectEvents(t, f.svc.Stream(context.Background(), f.userId, f.request("gemini", "gemini-pro")))

	terminal := assertSingleTerminal(t, events)
	assert.Equal(t, string(apperror.CodeRateLimited), terminal.Error.Code)
	assert.Equal(t, 30, terminal.Error.RetryAfter)
}

func TestChatStream_Rejections(t *testing.T) {
	called := false
	provider := geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		called = true
		return llm.ChunksStream("x"), nil
	})

	tests := []struct {
		name   string
		mutate func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID
		code   apperror.Code
	}{
		{
			name: "unknown session",
			mutate: func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID {
				req.SessionId = uuid.New()
				return f.userId
			},
			code: apperror.CodeNotFound,
		},
		{
			name: "foreign session",
			mutate: func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID {
				return uuid.New()
			},
			code: apperror.CodeNotFound,
		},
		{
			name: "unsupported model",
			mutate: func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID {
				req.Model = "gemini-ultra-9000"
				return f.userId
			},
			code: apperror.CodeUnsupportedModel,
		},
		{
			name: "unknown provider",
			mutate: func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID {
				req.Provider = "mistral"
				return f.userId
			},
			code: apperror.CodeUnsupportedModel,
		},
		{
			name: "missing identity",
			mutate: func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID {
				return uuid.Nil
			},
			code: apperror.CodeUnauthenticated,
		},
		{
			name: "blank prompt",
			mutate: func(f *streamFixture, req *dto.StreamChatRequest) uuid.UUID {
				req.Prompt = "  "
				return f.userId
			},
			code: apperror.CodeValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			f := newStreamFixture(t, provider)
			req := f.request("gemini", "gemini-pro")
			userId := tt.mutate(f, req)

			events := collectEvents(t, f.svc.Stream(context.Background(), userId, req))

			require.Len(t, events, 1)
			assert.Equal(t, dto.StreamEventError, events[0].Type)
			assert.Equal(t, string(tt.code), events[0].Error.Code)
			assert.False(t, called)
			assert.Empty(t, f.history(t))
			assert.Empty(t, f.audit.turns)
		})
	}
}

func TestChatStream_CallerCancelStopsProvider(t *testing.T) {
	providerDone := make(chan struct{})
	f := newStreamFixture(t, geminiProvider(func(ctx context.Context, request llm.StreamRequest) (*llm.ChatStream, error) {
		return llm.NewChatStream(func(yield func(llm.StreamEvent, error) bool) {
			defer close(providerDone)
			if !yield(llm.StreamEvent{Type: llm.StreamEventContent, Content: "Why"}, nil) {
				return
			}
			<-ctx.Done()
			yield(llm.StreamEvent{}, ctx.Err())
		}), nil
	}))

	ctx, cancel := context.WithCancel(context.Background())
	events := f.svc.Stream(ctx, f.userId, f.request("gemini", "gemini-pro"))

	first := <-events
	require.Equal(t, dto.StreamEventDelta, first.Type)
	cancel()

	select {
	case <-providerDone:
	case <-time.After(time.Second):
		t.Fatal("provider call was not cancelled")
	}
	collectEvents(t, events)

	assert.Len(t, f.history(t), 1)
}

func TestChatStream_Providers(t *testing.T) {
	f := newStreamFixture(t,
		geminiProvider(nil),
		&llm.FuncProvider{ProviderID: llm.ProviderOllama},
	)

	providers := f.svc.Providers(context.Background())
	require.Len(t, providers, 2)
	assert.Equal(t, "gemini", providers[0].Id)
	assert.Equal(t, []string{"gemini-pro"}, providers[0].Models)
	assert.Equal(t, "ollama", providers[1].Id)
	assert.Equal(t, []string{}, providers[1].Models)
}

func TestTurnState_Transitions(t *testing.T) {
	assert.True(t, TurnValidating.CanTransitionTo(TurnStreaming))
	assert.True(t, TurnValidating.CanTransitionTo(TurnRejected))
	assert.True(t, TurnStreaming.CanTransitionTo(TurnAborted))
	assert.True(t, TurnFinalizing.CanTransitionTo(TurnAborted))
	assert.False(t, TurnValidating.CanTransitionTo(TurnCompleted))
	assert.False(t, TurnCompleted.CanTransitionTo(TurnAborted))
	assert.False(t, TurnStreaming.CanTransitionTo(TurnRejected))

	turn := newChatTurn(uuid.New(), uuid.New(), "gemini", "gemini-pro")
	require.NoError(t, turn.transition(TurnStreaming))
	assert.Error(t, turn.transition(TurnCompleted))
	assert.True(t, TurnAborted.Terminal())
	assert.False(t, TurnStreaming.Terminal())
}
