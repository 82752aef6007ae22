package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	CellTypeQuery  = "query"
	CellTypeText   = "text"
	CellTypePrompt = "prompt"

	RunModeDefault = "default"
	RunModeFixit   = "fixit"
)

type Cell struct {
	CellID      int      `json:"cell_id"`
	CellType    string   `json:"cell_type"`
	Query       string   `json:"query"`
	Datasources []string `json:"datasources"`
	IsActive    bool     `json:"is_active"`
	RunMode     string   `json:"run_mode"`
}

type Notebook struct {
	ID          string                      `gorm:"primaryKey;size:36" json:"id"`
	ProjectID   string                      `gorm:"size:36;not null;index" json:"project_id"`
	Title       string                      `gorm:"size:256;not null" json:"title"`
	Slug        string                      `gorm:"size:300;not null;uniqueIndex" json:"slug"`
	Description string                      `gorm:"type:text" json:"description"`
	Cells       datatypes.JSONSlice[Cell]   `json:"cells"`
	Datasources datatypes.JSONSlice[string] `json:"datasources"`
	Version     int                         `gorm:"not null;default:1" json:"version"`
	CreatedBy   string                      `gorm:"size:36;not null" json:"created_by"`
	UpdatedBy   string                      `gorm:"size:36;not null" json:"updated_by"`
	CreatedAt   time.Time                   `json:"created_at"`
	UpdatedAt   time.Time                   `json:"updated_at"`

	Project *Project `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (n *Notebook) BeforeCreate(*gorm.DB) error {
	if n.ID == "" {
		n.ID = newID()
	}
	if n.Version == 0 {
		n.Version = 1
	}
	return nil
}

// Cell returns the cell with the given id.
func (n *Notebook) Cell(cellID int) (Cell, bool) {
	for _, c := range n.Cells {
		if c.CellID == cellID {
			return c, true
		}
	}
	return Cell{}, false
}
