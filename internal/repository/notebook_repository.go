package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"qwery/internal/apperr"
	"qwery/internal/model"
)

type NotebookRepository struct {
	db *gorm.DB
}

func NewNotebookRepository(db *gorm.DB) *NotebookRepository {
	return &NotebookRepository{db: db}
}

func (r *NotebookRepository) Create(ctx context.Context, notebook *model.Notebook) error {
	if err := r.db.WithContext(ctx).Create(notebook).Error; err != nil {
		return wrapWriteErr("create", "notebook", err)
	}
	return nil
}

func (r *NotebookRepository) GetByID(ctx context.Context, id string) (*model.Notebook, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *NotebookRepository) GetBySlug(ctx context.Context, slug string) (*model.Notebook, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *NotebookRepository) ListByProjectID(ctx context.Context, projectID string) ([]model.Notebook, error) {
	var list []model.Notebook
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list notebooks failed: %w", err)
	}
	return list, nil
}

// Update writes the notebook only while the stored version still equals
// expectedVersion. A lost race is reported as a conflict.
func (r *NotebookRepository) Update(ctx context.Context, notebook *model.Notebook, expectedVersion int) error {
	notebook.UpdatedAt = time.Now()
	res := r.db.WithContext(ctx).
		Model(&model.Notebook{}).
		Where("id = ? AND version = ?", notebook.ID, expectedVersion).
		Updates(map[string]any{
			"title":       notebook.Title,
			"slug":        notebook.Slug,
			"description": notebook.Description,
			"cells":       notebook.Cells,
			"datasources": notebook.Datasources,
			"version":     notebook.Version,
			"updated_by":  notebook.UpdatedBy,
			"updated_at":  notebook.UpdatedAt,
		})
	if res.Error != nil {
		return wrapWriteErr("update", "notebook", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.Conflict(fmt.Sprintf("notebook was modified: version %d is stale", expectedVersion))
	}
	return nil
}

func (r *NotebookRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Notebook{}).Error; err != nil {
		return fmt.Errorf("delete notebook failed: %w", err)
	}
	return nil
}

func (r *NotebookRepository) first(ctx context.Context, query string, args ...any) (*model.Notebook, error) {
	var notebook model.Notebook
	if err := r.db.WithContext(ctx).Where(query, args...).First(&notebook).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get notebook failed: %w", err)
	}
	return &notebook, nil
}
