package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Conversation struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string                      `gorm:"size:36;not null;index" json:"project_id"`
	Title       string                      `gorm:"size:256;not null" json:"title"`
	Slug        string                      `gorm:"size:300;not null;uniqueIndex" json:"slug"`
	SeedMessage string                      `gorm:"type:text" json:"seed_message"`
	Datasources datatypes.JSONSlice[string] `json:"datasources"`
	CreatedBy   string                      `gorm:"size:36;not null" json:"created_by"`
	UpdatedBy   string                      `gorm:"size:36;not null" json:"updated_by"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (c *Conversation) BeforeCreate(*gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}
