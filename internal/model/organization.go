package model

import (
	"time"

	"gorm.io/gorm"
)

type Organization struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Slug      string    `gorm:"size:160;not null;uniqueIndex" json:"slug"`
	OwnerID   string    `gorm:"size:36;not null;index" json:"owner_id"`
	CreatedBy string    `gorm:"size:36;not null" json:"created_by"`
	UpdatedBy string    `gorm:"size:36;not null" json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (o *Organization) BeforeCreate(*gorm.DB) error {
	if o.ID == "" {
		o.ID = newID()
	}
	return nil
}
