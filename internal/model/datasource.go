package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	ProviderSQLite     = "sqlite"
	ProviderPostgreSQL = "postgresql"
	ProviderMySQL      = "mysql"

	DatasourceKindEmbedded = "embedded"
	DatasourceKindRemote   = "remote"
)

// DatasourceConfig is the connection payload stored with a datasource.
// DSN is a driver connection string; Path is used by embedded sqlite files.
type DatasourceConfig struct {
	DSN      string `json:"dsn,omitempty"`
	Path     string `json:"path,omitempty"`
	ReadOnly *bool  `json:"read_only,omitempty"`
}

// IsReadOnly defaults to true when unset.
func (c DatasourceConfig) IsReadOnly() bool {
	return c.ReadOnly == nil || *c.ReadOnly
}

type Datasource struct {
	ID          string                                `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string                                `gorm:"size:36;not null;index" json:"project_id"`
	Name        string                                `gorm:"size:128;not null" json:"name"`
	Slug        string                                `gorm:"size:160;not null;uniqueIndex" json:"slug"`
	Description string                                `gorm:"type:text" json:"description"`
	Provider    string                                `gorm:"size:32;not null" json:"provider"`
	Kind        string                                `gorm:"size:16;not null" json:"kind"`
	Config      datatypes.JSONType[DatasourceConfig] `json:"-"`
	CreatedBy   string                                `gorm:"size:36;not null" json:"created_by"`
	UpdatedBy   string                                `gorm:"size:36;not null" json:"updated_by"`
	CreatedAt   time.Time                             `json:"created_at"`
	UpdatedAt   time.Time                             `json:"updated_at"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (d *Datasource) BeforeCreate(*gorm.DB) error {
	if d.ID == "" {
		d.ID = newID()
	}
	return nil
}
