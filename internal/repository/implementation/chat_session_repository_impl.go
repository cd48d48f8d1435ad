package implementation

import (
	"context"
	"errors"
	"time"

	"ai-chatstream-be/internal/entity"
	"ai-chatstream-be/internal/mapper"
	"ai-chatstream-be/internal/model"
	"ai-chatstream-be/internal/repository/contract"
	"ai-chatstream-be/internal/repository/specification"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type ChatSessionRepositoryImpl struct {
	db     *gorm.DB
	mapper *mapper.ChatMapper
}

func NewChatSessionRepository(db *gorm.DB) contract.ChatSessionRepository {
	return &ChatSessionRepositoryImpl{
		db:     db,
		mapper: mapper.NewChatMapper(),
	}
}

func (r *ChatSessionRepositoryImpl) applySpecifications(db *gorm.DB, specs ...specification.Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}

func (r *ChatSessionRepositoryImpl) Create(ctx context.Context, session *entity.ChatSession) error {
	if session.Id == uuid.Nil {
		session.Id = uuid.New()
	}
	m := r.mapper.ChatSessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return err
	}
	*session = *r.mapper.ChatSessionToEntity(m)
	return nil
}

func (r *ChatSessionRepositoryImpl) UpdateTitle(ctx context.Context, title string, specs ...specification.Specification) (bool, error) {
	query := r.applySpecifications(r.db.WithContext(ctx).Model(&model.ChatSession{}), specs...)
	res := query.UpdateColumns(map[string]interface{}{
		"title":      title,
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *ChatSessionRepositoryImpl) NextPosition(ctx context.Context, id uuid.UUID) (int64, error) {
	// The increment takes the row lock, so concurrent appends to one session
	// queue behind each other until the surrounding transaction ends.
	res := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Where("id = ?", id).
		UpdateColumns(map[string]interface{}{
			"last_position": gorm.Expr("last_position + ?", 1),
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, nil
	}

	var position int64
	if err := r.db.WithContext(ctx).
		Model(&model.ChatSession{}).
		Select("last_position").
		Where("id = ?", id).
		Scan(&position).Error; err != nil {
		return 0, err
	}
	return position, nil
}

// Delete is a hard delete; messages must be removed first or cascade.
func (r *ChatSessionRepositoryImpl) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.ChatSession{}).Error
}

func (r *ChatSessionRepositoryImpl) FindOne(ctx context.Context, specs ...specification.Specification) (*entity.ChatSession, error) {
	var m model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return r.mapper.ChatSessionToEntity(&m), nil
}

func (r *ChatSessionRepositoryImpl) FindAll(ctx context.Context, specs ...specification.Specification) ([]*entity.ChatSession, error) {
	var models []*model.ChatSession
	query := r.applySpecifications(r.db.WithContext(ctx), specs...)
	if err := query.Find(&models).Error; err != nil {
		return nil, err
	}
	entities := make([]*entity.ChatSession, len(models))
	for i, m := range models {
		entities[i] = r.mapper.ChatSessionToEntity(m)
	}
	return entities, nil
}
