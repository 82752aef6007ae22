package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AgentSession struct {
	ID             string         `gorm:"primaryKey;size:36" json:"id"`
	ConversationID string         `gorm:"size:36;not null;uniqueIndex" json:"conversation_id"`
	State          string         `gorm:"size:32;not null" json:"state"`
	Steps          int            `gorm:"not null;default:0" json:"steps"`
	Context        datatypes.JSON `json:"context,omitempty"`
	LastError      string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Conversation *Conversation `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (s *AgentSession) BeforeCreate(*gorm.DB) error {
	if s.ID == "" {
		s.ID = newID()
	}
	return nil
}
