package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"qwery/internal/model"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Create(project).Error; err != nil {
		return wrapWriteErr("create", "project", err)
	}
	return nil
}

func (r *ProjectRepository) GetByID(ctx context.Context, id string) (*model.Project, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *ProjectRepository) GetBySlug(ctx context.Context, slug string) (*model.Project, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *ProjectRepository) ListByOrganizationID(ctx context.Context, organizationID string) ([]model.Project, error) {
	var list []model.Project
	if err := r.db.WithContext(ctx).Where("organization_id = ?", organizationID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	return list, nil
}

func (r *ProjectRepository) Update(ctx context.Context, project *model.Project) error {
	if err := r.db.WithContext(ctx).Save(project).Error; err != nil {
		return wrapWriteErr("update", "project", err)
	}
	return nil
}

func (r *ProjectRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Project{}).Error; err != nil {
		return fmt.Errorf("delete project failed: %w", err)
	}
	return nil
}

func (r *ProjectRepository) first(ctx context.Context, query string, args ...any) (*model.Project, error) {
	var project model.Project
	if err := r.db.WithContext(ctx).Where(query, args...).First(&project).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project failed: %w", err)
	}
	return &project, nil
}
