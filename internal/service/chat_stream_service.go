package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"ai-chatstream-be/internal/dto"
	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/pkg/logger"
	"ai-chatstream-be/pkg/audit"
	pkgEvents "ai-chatstream-be/pkg/events"
	"ai-chatstream-be/pkg/llm"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const chatStreamModule = "CHAT_STREAM"

// StreamSettings bounds every turn handled by the chat stream service.
type StreamSettings struct {
	FirstChunkTimeout time.Duration
	IdleTimeout       time.Duration
	// FinalizeTimeout bounds the commit of a completed answer, which runs
	// detached from the request so a late disconnect cannot lose it.
	FinalizeTimeout time.Duration
}

type IChatStreamService interface {
	// Stream runs one turn and returns its events. The channel yields deltas
	// followed by exactly one done or error event, then closes. Cancelling ctx
	// stops the provider call.
	Stream(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest) <-chan dto.StreamEvent
	Providers(ctx context.Context) []*dto.ProviderResponse
}

type chatStreamService struct {
	sessionService   ISessionService
	registry         *llm.Registry
	publisherService IPublisherService
	audit            audit.Publisher
	settings         StreamSettings
	logger           logger.ILogger
	tracer           trace.Tracer
}

func NewChatStreamService(
	sessionService ISessionService,
	registry *llm.Registry,
	publisherService IPublisherService,
	auditPublisher audit.Publisher,
	settings StreamSettings,
	logger logger.ILogger,
) IChatStreamService {
	if settings.FinalizeTimeout <= 0 {
		settings.FinalizeTimeout = 10 * time.Second
	}
	return &chatStreamService{
		sessionService:   sessionService,
		registry:         registry,
		publisherService: publisherService,
		audit:            auditPublisher,
		settings:         settings,
		logger:           logger,
		tracer:           otel.Tracer("ai-chatstream-be/chat-stream"),
	}
}

func (s *chatStreamService) Providers(ctx context.Context) []*dto.ProviderResponse {
	catalog := s.registry.Catalog()
	res := make([]*dto.ProviderResponse, 0, len(catalog))
	for _, info := range catalog {
		res = append(res, &dto.ProviderResponse{
			Id:     string(info.ID),
			Models: info.Models,
		})
	}
	return res
}

func (s *chatStreamService) Stream(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest) <-chan dto.StreamEvent {
	events := make(chan dto.StreamEvent, 8)

	go func() {
		defer close(events)
		s.runTurn(ctx, userId, req, events)
	}()

	return events
}

func (s *chatStreamService) runTurn(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest, events chan<- dto.StreamEvent) {
	turn := newChatTurn(userId, req.SessionId, req.Provider, req.Model)

	ctx, span := s.tracer.Start(ctx, "ChatStream.Turn", trace.WithAttributes(
		attribute.String("chat.session_id", req.SessionId.String()),
		attribute.String("chat.provider", req.Provider),
		attribute.String("chat.model", req.Model),
	))
	defer span.End()

	// Validating
	session, provider, err := s.validate(ctx, userId, req)
	if err != nil {
		s.reject(ctx, span, turn, events, err)
		return
	}

	history, err := s.sessionService.LoadHistory(ctx, session.Id)
	if err != nil {
		s.reject(ctx, span, turn, events, err)
		return
	}

	// Streaming
	s.moveTo(turn, TurnStreaming)

	if _, err := s.sessionService.AppendMessage(ctx, session.Id, entity.ChatRoleUser, req.Prompt, nil); err != nil {
		s.abort(ctx, span, turn, events, err)
		return
	}

	stream, err := llm.StreamWithTimeouts(ctx, provider, llm.StreamRequest{
		Model:   req.Model,
		History: toLLMHistory(history),
		Prompt:  req.Prompt,
	}, llm.Timeouts{
		FirstChunk: s.settings.FirstChunkTimeout,
		Idle:       s.settings.IdleTimeout,
	})
	if err != nil {
		s.abort(ctx, span, turn, events, err)
		return
	}

	finishReason := ""
	for event, err := range stream.Iter() {
		if err != nil {
			s.abort(ctx, span, turn, events, err)
			return
		}

		if event.Type == llm.StreamEventDone {
			finishReason = event.FinishReason
			break
		}
		if event.Content == "" {
			continue
		}

		turn.appendChunk(event.Content)
		if !emit(ctx, events, dto.StreamEvent{Type: dto.StreamEventDelta, Delta: event.Content}) {
			// Leaving the range loop cancels the provider call.
			s.abort(ctx, span, turn, events, context.Cause(ctx))
			return
		}
	}

	// Finalizing
	s.moveTo(turn, TurnFinalizing)

	commitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.settings.FinalizeTimeout)
	defer cancel()

	metadata := map[string]interface{}{
		"provider": req.Provider,
		"model":    req.Model,
		"chunks":   turn.chunks,
	}
	if finishReason != "" {
		metadata["finish_reason"] = finishReason
	}

	message, err := s.sessionService.AppendMessage(commitCtx, session.Id, entity.ChatRoleAssistant, turn.answer.String(), metadata)
	if err != nil {
		s.abort(ctx, span, turn, events, err)
		return
	}

	// Completed
	s.moveTo(turn, TurnCompleted)
	span.SetAttributes(attribute.Int("chat.chunks", turn.chunks))
	s.logger.Info(chatStreamModule, "Chat turn completed", turn.details())

	if session.HasDefaultTitle() {
		s.publishTurnCompleted(commitCtx, turn, message.Id, req.Prompt)
	}
	s.audit.PublishTurn(commitCtx, pkgEvents.TurnOutcome{
		UserId:     userId,
		SessionId:  session.Id,
		Provider:   req.Provider,
		Model:      req.Model,
		Chunks:     turn.chunks,
		MessageId:  message.Id,
		DurationMs: time.Since(turn.startedAt).Milliseconds(),
	})

	sessionId := session.Id
	messageId := message.Id
	emit(ctx, events, dto.StreamEvent{
		Type:      dto.StreamEventDone,
		SessionId: &sessionId,
		MessageId: &messageId,
	})
}

func (s *chatStreamService) validate(ctx context.Context, userId uuid.UUID, req *dto.StreamChatRequest) (*entity.ChatSession, llm.Provider, error) {
	if userId == uuid.Nil {
		return nil, nil, apperror.Unauthenticated("missing identity")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, nil, apperror.Validation("Prompt is required")
	}

	session, err := s.sessionService.FindOwnedSession(ctx, userId, req.SessionId)
	if err != nil {
		return nil, nil, err
	}

	provider, err := s.registry.Resolve(llm.ProviderID(req.Provider), req.Model)
	if err != nil {
		return nil, nil, err
	}

	return session, provider, nil
}

func (s *chatStreamService) moveTo(turn *chatTurn, next TurnState) {
	if err := turn.transition(next); err != nil {
		s.logger.Error(chatStreamModule, err.Error(), turn.details())
		return
	}
	s.logger.Debug(chatStreamModule, "Chat turn state changed", turn.details())
}

func (s *chatStreamService) reject(ctx context.Context, span trace.Span, turn *chatTurn, events chan<- dto.StreamEvent, err error) {
	s.moveTo(turn, TurnRejected)
	s.fail(ctx, span, turn, events, err)
}

// abort ends a turn that got past validation. The partial answer is dropped.
func (s *chatStreamService) abort(ctx context.Context, span trace.Span, turn *chatTurn, events chan<- dto.StreamEvent, err error) {
	s.moveTo(turn, TurnAborted)
	s.fail(ctx, span, turn, events, err)

	s.audit.PublishTurn(context.WithoutCancel(ctx), pkgEvents.TurnOutcome{
		UserId:     turn.userId,
		SessionId:  turn.sessionId,
		Provider:   turn.provider,
		Model:      turn.model,
		Chunks:     turn.chunks,
		ErrorCode:  string(apperror.As(err).Code),
		DurationMs: time.Since(turn.startedAt).Milliseconds(),
	})
}

func (s *chatStreamService) fail(ctx context.Context, span trace.Span, turn *chatTurn, events chan<- dto.StreamEvent, err error) {
	appErr := apperror.As(err)

	details := turn.details()
	details["code"] = appErr.Code
	details["error"] = appErr.Error()
	switch appErr.Code {
	case apperror.CodeCancelled:
		s.logger.Info(chatStreamModule, "Chat turn cancelled by caller", details)
	case apperror.CodeStorageFailure, apperror.CodeInternal:
		s.logger.Error(chatStreamModule, "Chat turn failed", details)
	default:
		s.logger.Warn(chatStreamModule, "Chat turn failed", details)
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, string(appErr.Code))

	emit(ctx, events, ErrorEvent(appErr))
}

// ErrorEvent converts err into the terminal error event of a turn.
func ErrorEvent(err error) dto.StreamEvent {
	appErr := apperror.As(err)
	streamErr := &dto.StreamError{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	}
	if appErr.RetryAfter > 0 {
		streamErr.RetryAfter = int((appErr.RetryAfter + time.Second - 1) / time.Second)
	}
	return dto.StreamEvent{Type: dto.StreamEventError, Error: streamErr}
}

func (s *chatStreamService) publishTurnCompleted(ctx context.Context, turn *chatTurn, messageId uuid.UUID, prompt string) {
	payload, err := json.Marshal(dto.PublishTurnCompletedMessage{
		SessionId: turn.sessionId,
		UserId:    turn.userId,
		MessageId: messageId,
		Prompt:    prompt,
	})
	if err != nil {
		return
	}
	if err := s.publisherService.Publish(ctx, payload); err != nil {
		s.logger.Warn(chatStreamModule, "Failed to publish turn completed message", map[string]interface{}{
			"session_id": turn.sessionId,
			"error":      err.Error(),
		})
	}
}

// emit delivers one event unless the caller has gone away.
func emit(ctx context.Context, events chan<- dto.StreamEvent, event dto.StreamEvent) bool {
	select {
	case events <- event:
		return true
	case <-ctx.Done():
		return false
	}
}

func toLLMHistory(messages []*entity.ChatMessage) []llm.Message {
	history := make([]llm.Message, 0, len(messages))
	for _, msg := range messages {
		history = append(history, llm.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		})
	}
	return history
}
