package service

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"ai-chatstream-be/internal/model"
	"ai-chatstream-be/internal/repository/unitofwork"
	"ai-chatstream-be/pkg/database"
	pkgEvents "ai-chatstream-be/pkg/events"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.NewSQLiteDB(filepath.Join(t.TempDir(), "chat.db"))
	require.NoError(t, err)
	require.NoError(t, model.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func createTestUser(t *testing.T, db *gorm.DB) uuid.UUID {
	t.Helper()
	user := model.User{
		Id:       uuid.New(),
		Email:    uuid.NewString() + "@example.com",
		FullName: "Test User",
		Status:   "active",
	}
	require.NoError(t, db.Create(&user).Error)
	return user.Id
}

type recordingAudit struct {
	mu     sync.Mutex
	events []string
	turns  []pkgEvents.TurnOutcome
}

func (r *recordingAudit) PublishSessionCreated(ctx context.Context, userId, sessionId uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, pkgEvents.SessionCreated)
}

func (r *recordingAudit) PublishSessionDeleted(ctx context.Context, userId, sessionId uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, pkgEvents.SessionDeleted)
}

func (r *recordingAudit) PublishTurn(ctx context.Context, outcome pkgEvents.TurnOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns = append(r.turns, outcome)
	if outcome.ErrorCode != "" {
		r.events = append(r.events, pkgEvents.TurnAborted)
	} else {
		r.events = append(r.events, pkgEvents.TurnCompleted)
	}
}

func (r *recordingAudit) Events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events...)
}

type recordingPublisher struct {
	mu       sync.Mutex
	payloads [][]byte
}

func (r *recordingPublisher) Publish(ctx context.Context, payload []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, payload)
	return nil
}

func (r *recordingPublisher) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

func newTestSessionService(t *testing.T) (ISessionService, *gorm.DB, *recordingAudit) {
	t.Helper()
	db := newTestDB(t)
	auditLog := &recordingAudit{}
	return NewSessionService(unitofwork.NewRepositoryFactory(db), auditLog), db, auditLog
}
