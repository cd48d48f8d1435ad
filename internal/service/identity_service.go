package service

import (
	"context"
	"errors"
	"time"

	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/repository/specification"
	"ai-chatstream-be/internal/repository/unitofwork"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenExpiry = 24 * time.Hour

// IIdentityService is the Auth Gate: it turns bearer tokens into user ids.
type IIdentityService interface {
	ResolveIdentity(ctx context.Context, bearerToken string) (uuid.UUID, error)
	IssueToken(userId uuid.UUID, ttl time.Duration) (string, error)
}

type identityService struct {
	secret     []byte
	uowFactory unitofwork.RepositoryFactory
}

// NewIdentityService validates HS256 tokens signed with secret. When
// uowFactory is set, the user must also exist and be active.
func NewIdentityService(secret string, uowFactory unitofwork.RepositoryFactory) IIdentityService {
	if secret == "" {
		secret = "default_secret"
	}
	return &identityService{secret: []byte(secret), uowFactory: uowFactory}
}

func (s *identityService) ResolveIdentity(ctx context.Context, bearerToken string) (uuid.UUID, error) {
	if bearerToken == "" {
		return uuid.Nil, apperror.Unauthenticated("missing token")
	}

	token, err := jwt.Parse(bearerToken, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return uuid.Nil, apperror.Unauthenticated("token expired")
		}
		return uuid.Nil, apperror.Unauthenticated("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return uuid.Nil, apperror.Unauthenticated("invalid claims")
	}
	rawId, _ := claims["user_id"].(string)
	userId, err := uuid.Parse(rawId)
	if err != nil || userId == uuid.Nil {
		return uuid.Nil, apperror.Unauthenticated("invalid claims")
	}

	if s.uowFactory != nil {
		uow := s.uowFactory.NewUnitOfWork(ctx)
		user, err := uow.UserRepository().FindOne(ctx, specification.ByID{ID: userId})
		if err != nil {
			return uuid.Nil, apperror.StorageFailure(err)
		}
		if user == nil || user.Status == entity.UserStatusBlocked {
			return uuid.Nil, apperror.Unauthenticated("unknown user")
		}
	}

	return userId, nil
}

func (s *identityService) IssueToken(userId uuid.UUID, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = defaultTokenExpiry
	}
	claims := jwt.MapClaims{
		"user_id": userId.String(),
		"iat":     time.Now().Unix(),
		"exp":     time.Now().Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}
