package service

import (
	"context"
	"testing"
	"time"

	"ai-chatstream-be/internal/pkg/apperror"
	"ai-chatstream-be/internal/repository/unitofwork"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityService_RoundTrip(t *testing.T) {
	db := newTestDB(t)
	userId := createTestUser(t, db)
	identity := NewIdentityService("secret", unitofwork.NewRepositoryFactory(db))

	token, err := identity.IssueToken(userId, time.Hour)
	require.NoError(t, err)

	got, err := identity.ResolveIdentity(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userId, got)
}

func TestIdentityService_Rejects(t *testing.T) {
	db := newTestDB(t)
	userId := createTestUser(t, db)
	identity := NewIdentityService("secret", unitofwork.NewRepositoryFactory(db))

	other := NewIdentityService("other-secret", nil)
	wrongKey, err := other.IssueToken(userId, time.Hour)
	require.NoError(t, err)

	unknownUser, err := identity.IssueToken(uuid.New(), time.Hour)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"exp":     time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	badClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": "not-a-uuid",
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)

	tests := map[string]string{
		"empty":        "",
		"garbage":      "not.a.token",
		"wrong key":    wrongKey,
		"unknown user": unknownUser,
		"expired":      expired,
		"no expiry":    noExpiry,
		"bad claim":    badClaim,
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := identity.ResolveIdentity(context.Background(), token)
			assert.Equal(t, apperror.CodeUnauthenticated, apperror.CodeOf(err))
		})
	}
}

func TestIdentityService_BlockedUser(t *testing.T) {
	db := newTestDB(t)
	userId := createTestUser(t, db)
	require.NoError(t, db.Table("users").Where("id = ?", userId).Update("status", "blocked").Error)

	identity := NewIdentityService("secret", unitofwork.NewRepositoryFactory(db))
	token, err := identity.IssueToken(userId, time.Hour)
	require.NoError(t, err)

	_, err = identity.ResolveIdentity(context.Background(), token)
	assert.Equal(t, apperror.CodeUnauthenticated, apperror.CodeOf(err))
}
