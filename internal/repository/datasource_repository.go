package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"qwery/internal/model"
)

type DatasourceRepository struct {
	db *gorm.DB
}

func NewDatasourceRepository(db *gorm.DB) *DatasourceRepository {
	return &DatasourceRepository{db: db}
}

func (r *DatasourceRepository) Create(ctx context.Context, ds *model.Datasource) error {
	if err := r.db.WithContext(ctx).Create(ds).Error; err != nil {
		return wrapWriteErr("create", "datasource", err)
	}
	return nil
}

func (r *DatasourceRepository) GetByID(ctx context.Context, id string) (*model.Datasource, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *DatasourceRepository) GetBySlug(ctx context.Context, slug string) (*model.Datasource, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *DatasourceRepository) ListByProjectID(ctx context.Context, projectID string) ([]model.Datasource, error) {
	var list []model.Datasource
	if err := r.db.WithContext(ctx).Where("project_id = ?", projectID).Order("created_at ASC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list datasources failed: %w", err)
	}
	return list, nil
}

func (r *DatasourceRepository) Update(ctx context.Context, ds *model.Datasource) error {
	if err := r.db.WithContext(ctx).Save(ds).Error; err != nil {
		return wrapWriteErr("update", "datasource", err)
	}
	return nil
}

func (r *DatasourceRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Datasource{}).Error; err != nil {
		return fmt.Errorf("delete datasource failed: %w", err)
	}
	return nil
}

func (r *DatasourceRepository) first(ctx context.Context, query string, args ...any) (*model.Datasource, error) {
	var ds model.Datasource
	if err := r.db.WithContext(ctx).Where(query, args...).First(&ds).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get datasource failed: %w", err)
	}
	return &ds, nil
}
