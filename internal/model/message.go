package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

type Message struct {
	ID             string            `gorm:"primaryKey;size:26" json:"id"`
	ConversationID string            `gorm:"size:36;not null;index" json:"conversation_id"`
	Role           string            `gorm:"size:16;not null;index" json:"role"`
	Content        string            `gorm:"type:text;not null" json:"content"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedBy      string            `gorm:"size:36" json:"created_by"`
	CreatedAt      time.Time         `json:"created_at"`

	Conversation *Conversation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// AssignID fills ID and CreatedAt before the message leaves the process,
// so asynchronously persisted messages keep their identity.
func (m *Message) AssignID() {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.ID == "" {
		m.ID = newMessageID(m.CreatedAt)
	}
}

func (m *Message) BeforeCreate(*gorm.DB) error {
	m.AssignID()
	return nil
}
