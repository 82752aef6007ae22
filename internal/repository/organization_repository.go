package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"qwery/internal/model"
)

type OrganizationRepository struct {
	db *gorm.DB
}

func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

func (r *OrganizationRepository) Create(ctx context.Context, org *model.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return wrapWriteErr("create", "organization", err)
	}
	return nil
}

func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*model.Organization, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *OrganizationRepository) GetBySlug(ctx context.Context, slug string) (*model.Organization, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *OrganizationRepository) ListByOwnerID(ctx context.Context, ownerID string) ([]model.Organization, error) {
	var list []model.Organization
	if err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list organizations failed: %w", err)
	}
	return list, nil
}

func (r *OrganizationRepository) Update(ctx context.Context, org *model.Organization) error {
	if err := r.db.WithContext(ctx).Save(org).Error; err != nil {
		return wrapWriteErr("update", "organization", err)
	}
	return nil
}

func (r *OrganizationRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Organization{}).Error; err != nil {
		return fmt.Errorf("delete organization failed: %w", err)
	}
	return nil
}

func (r *OrganizationRepository) first(ctx context.Context, query string, args ...any) (*model.Organization, error) {
	var org model.Organization
	if err := r.db.WithContext(ctx).Where(query, args...).First(&org).Error; err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get organization failed: %w", err)
	}
	return &org, nil
}
