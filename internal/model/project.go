package model

import (
	"time"

	"gorm.io/gorm"
)

const (
	ProjectStatusActive   = "active"
	ProjectStatusArchived = "archived"
)

type Project struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	OrganizationID string    `gorm:"size:36;not null;index" json:"organization_id"`
	Name           string    `gorm:"size:128;not null" json:"name"`
	Slug           string    `gorm:"size:160;not null;uniqueIndex" json:"slug"`
	Description    string    `gorm:"type:text" json:"description"`
	Status         string    `gorm:"size:16;not null;default:active" json:"status"`
	CreatedBy      string    `gorm:"size:36;not null" json:"created_by"`
	UpdatedBy      string    `gorm:"size:36;not null" json:"updated_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	Organization *Organization `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (p *Project) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = newID()
	}
	if p.Status == "" {
		p.Status = ProjectStatusActive
	}
	return nil
}
