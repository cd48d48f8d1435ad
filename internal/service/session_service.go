package service

import (
	"context"
	"strings"

	"ai-chatstream-be/internal/dto"
	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/repository/specification"
	"ai-chatstream-be/internal/repository/unitofwork"
	"ai-chatstream-be/pkg/audit"
	"ai-chatstream-be/pkg/database"

	"github.com/google/uuid"
)

type ISessionService interface {
	CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error)
	GetAllSessions(ctx context.Context, userId uuid.UUID, page *dto.ListSessionsRequest) ([]*dto.SessionResponse, error)
	GetSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionDetailResponse, error)
	RenameSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.RenameSessionRequest) (*dto.SessionResponse, error)
	DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error

	// Used by the chat turn pipeline.
	FindOwnedSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*entity.ChatSession, error)
	LoadHistory(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error)
	AppendMessage(ctx context.Context, sessionId uuid.UUID, role entity.ChatRole, content string, metadata map[string]interface{}) (*entity.ChatMessage, error)
	RenameIfDefault(ctx context.Context, sessionId uuid.UUID, title string) (bool, error)
}

type sessionService struct {
	uowFactory unitofwork.RepositoryFactory
	audit      audit.Publisher
}

func NewSessionService(uowFactory unitofwork.RepositoryFactory, auditPublisher audit.Publisher) ISessionService {
	return &sessionService{
		uowFactory: uowFactory,
		audit:      auditPublisher,
	}
}

func (s *sessionService) CreateSession(ctx context.Context, userId uuid.UUID, req *dto.CreateSessionRequest) (*dto.SessionResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = entity.DefaultChatTitle
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	session := entity.ChatSession{
		Id:     uuid.New(),
		UserId: userId,
		Title:  title,
	}
	if err := uow.ChatSessionRepository().Create(ctx, &session); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.Unauthenticated("unknown user")
		}
		return nil, apperror.StorageFailure(err)
	}

	s.audit.PublishSessionCreated(ctx, userId, session.Id)

	return toSessionResponse(&session), nil
}

func (s *sessionService) GetAllSessions(ctx context.Context, userId uuid.UUID, page *dto.ListSessionsRequest) ([]*dto.SessionResponse, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)

	specs := []specification.Specification{
		specification.UserOwnedBy{UserID: userId},
		specification.RecentlyUpdated{},
	}
	if page != nil && page.Limit > 0 {
		specs = append(specs, specification.Pagination{Limit: page.Limit, Offset: page.Offset})
	}

	sessions, err := uow.ChatSessionRepository().FindAll(ctx, specs...)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}

	result := make([]*dto.SessionResponse, 0, len(sessions))
	for _, session := range sessions {
		result = append(result, toSessionResponse(session))
	}
	return result, nil
}

func (s *sessionService) GetSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*dto.SessionDetailResponse, error) {
	session, err := s.FindOwnedSession(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}

	messages, err := s.LoadHistory(ctx, session.Id)
	if err != nil {
		return nil, err
	}

	res := &dto.SessionDetailResponse{
		SessionResponse: *toSessionResponse(session),
		Messages:        make([]*dto.MessageResponse, 0, len(messages)),
	}
	for _, msg := range messages {
		res.Messages = append(res.Messages, &dto.MessageResponse{
			Id:        msg.Id,
			Role:      string(msg.Role),
			Content:   msg.Content,
			Position:  msg.Position,
			Metadata:  msg.Metadata,
			CreatedAt: msg.CreatedAt,
		})
	}
	return res, nil
}

func (s *sessionService) RenameSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID, req *dto.RenameSessionRequest) (*dto.SessionResponse, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, apperror.Validation("Title is required")
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	updated, err := uow.ChatSessionRepository().UpdateTitle(ctx, title,
		specification.OwnedSession{SessionID: sessionId, UserID: userId},
	)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	if !updated {
		return nil, apperror.NotFound("chat session")
	}

	session, err := s.FindOwnedSession(ctx, userId, sessionId)
	if err != nil {
		return nil, err
	}
	return toSessionResponse(session), nil
}

func (s *sessionService) DeleteSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) error {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return apperror.StorageFailure(err)
	}
	defer uow.Rollback()

	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.OwnedSession{SessionID: sessionId, UserID: userId},
	)
	if err != nil {
		return apperror.StorageFailure(err)
	}
	if session == nil {
		return apperror.NotFound("chat session")
	}

	if err := uow.ChatMessageRepository().DeleteByChatSessionId(ctx, session.Id); err != nil {
		return apperror.StorageFailure(err)
	}
	if err := uow.ChatSessionRepository().Delete(ctx, session.Id); err != nil {
		return apperror.StorageFailure(err)
	}
	if err := uow.Commit(); err != nil {
		return apperror.StorageFailure(err)
	}

	s.audit.PublishSessionDeleted(ctx, userId, session.Id)
	return nil
}

// FindOwnedSession returns NOT_FOUND both for missing sessions and for
// sessions owned by someone else.
func (s *sessionService) FindOwnedSession(ctx context.Context, userId uuid.UUID, sessionId uuid.UUID) (*entity.ChatSession, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	session, err := uow.ChatSessionRepository().FindOne(ctx,
		specification.OwnedSession{SessionID: sessionId, UserID: userId},
	)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	if session == nil {
		return nil, apperror.NotFound("chat session")
	}
	return session, nil
}

func (s *sessionService) LoadHistory(ctx context.Context, sessionId uuid.UUID) ([]*entity.ChatMessage, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	messages, err := uow.ChatMessageRepository().FindAll(ctx,
		specification.ByChatSessionID{ChatSessionID: sessionId},
		specification.InPositionOrder{},
	)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	return messages, nil
}

// AppendMessage reserves the next position and inserts the message in one
// transaction, so a message is either fully visible or absent.
func (s *sessionService) AppendMessage(ctx context.Context, sessionId uuid.UUID, role entity.ChatRole, content string, metadata map[string]interface{}) (*entity.ChatMessage, error) {
	if !role.Valid() {
		return nil, apperror.Validation("invalid message role: " + string(role))
	}

	uow := s.uowFactory.NewUnitOfWork(ctx)
	if err := uow.Begin(ctx); err != nil {
		return nil, apperror.StorageFailure(err)
	}
	defer uow.Rollback()

	position, err := uow.ChatSessionRepository().NextPosition(ctx, sessionId)
	if err != nil {
		return nil, apperror.StorageFailure(err)
	}
	if position == 0 {
		return nil, apperror.NotFound("chat session")
	}

	message := entity.ChatMessage{
		Id:            uuid.New(),
		ChatSessionId: sessionId,
		Position:      position,
		Role:          role,
		Content:       content,
		Metadata:      metadata,
	}
	if err := uow.ChatMessageRepository().Create(ctx, &message); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound("chat session")
		}
		return nil, apperror.StorageFailure(err)
	}

	if err := uow.Commit(); err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, apperror.NotFound("chat session")
		}
		return nil, apperror.StorageFailure(err)
	}
	return &message, nil
}

// RenameIfDefault only touches sessions still carrying the default title.
func (s *sessionService) RenameIfDefault(ctx context.Context, sessionId uuid.UUID, title string) (bool, error) {
	uow := s.uowFactory.NewUnitOfWork(ctx)
	updated, err := uow.ChatSessionRepository().UpdateTitle(ctx, title,
		specification.ByID{ID: sessionId},
		specification.ByTitle{Title: entity.DefaultChatTitle},
	)
	if err != nil {
		return false, apperror.StorageFailure(err)
	}
	return updated, nil
}

func toSessionResponse(session *entity.ChatSession) *dto.SessionResponse {
	return &dto.SessionResponse{
		Id:        session.Id,
		Title:     session.Title,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}
}
