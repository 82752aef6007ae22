package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"qwery/internal/model"
)

type AgentSessionRepository struct {
	db *gorm.DB
}

func NewAgentSessionRepository(db *gorm.DB) *AgentSessionRepository {
	return &AgentSessionRepository{db: db}
}

func (r *AgentSessionRepository) GetByConversationID(ctx context.Context, conversationID string) (*model.AgentSession, error) {
	var session model.AgentSession
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).First(&session).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get agent session failed: %w", err)
	}
	return &session, nil
}

// Save upserts the session keyed by conversation id in one statement. The
// stored id and creation time are copied back onto session.
func (r *AgentSessionRepository) Save(ctx context.Context, session *model.AgentSession) error {
	now := time.Now()
	session.UpdatedAt = now
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "conversation_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"state", "steps", "context", "last_error", "updated_at"}),
	}).Create(session).Error
	if err != nil {
		return wrapWriteErr("save", "agent session", err)
	}

	var stored struct {
		ID        string
		CreatedAt time.Time
	}
	if err := r.db.WithContext(ctx).Model(&model.AgentSession{}).
		Select("id", "created_at").
		Where("conversation_id = ?", session.ConversationID).
		Take(&stored).Error; err != nil {
		return fmt.Errorf("reload agent session failed: %w", err)
	}
	session.ID = stored.ID
	session.CreatedAt = stored.CreatedAt
	return nil
}

func (r *AgentSessionRepository) DeleteByConversationID(ctx context.Context, conversationID string) error {
	if err := r.db.WithContext(ctx).Where("conversation_id = ?", conversationID).Delete(&model.AgentSession{}).Error; err != nil {
		return fmt.Errorf("delete agent session failed: %w", err)
	}
	return nil
}
