package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"qwery/internal/model"
)

type ConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func (r *ConversationRepository) Create(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Create(conversation).Error; err != nil {
		return wrapWriteErr("create", "conversation", err)
	}
	return nil
}

func (r *ConversationRepository) GetByID(ctx context.Context, id string) (*model.Conversation, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ConversationRepository) GetBySlug(ctx context.Context, slug string) (*model.Conversation, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *ConversationRepository) ListByProjectID(ctx context.Context, projectID string) ([]model.Conversation, error) {
	var list []model.Conversation
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list conversations failed: %w", err)
	}
	return list, nil
}

func (r *ConversationRepository) Update(ctx context.Context, conversation *model.Conversation) error {
	if err := r.db.WithContext(ctx).Save(conversation).Error; err != nil {
		return wrapWriteErr("update", "conversation", err)
	}
	return nil
}

// Touch bumps updated_at so the conversation sorts first in its project.
func (r *ConversationRepository) Touch(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Model(&model.Conversation{}).Where("id = ?", id).Update("updated_at", time.Now()).Error; err != nil {
		return fmt.Errorf("touch conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Conversation{}).Error; err != nil {
		return fmt.Errorf("delete conversation failed: %w", err)
	}
	return nil
}

func (r *ConversationRepository) first(ctx context.Context, query string, args ...any) (*model.Conversation, error) {
	var conversation model.Conversation
	if err := r.db.WithContext(ctx).Where(query, args...).First(&conversation).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get conversation failed: %w", err)
	}
	return &conversation, nil
}
