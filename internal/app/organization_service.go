package app

import (
	"context"
	"strings"

	"qwery/internal/model"
	"qwery/internal/pkg/slug"
)

type OrganizationService struct {
	orgs   OrganizationRepository
	access access
}

func NewOrganizationService(orgs OrganizationRepository, projects ProjectRepository) *OrganizationService {
	return &OrganizationService{orgs: orgs, access: access{orgs: orgs, projects: projects}}
}

type CreateOrganizationInput struct {
	UserID string
	Name   string
}

type UpdateOrganizationInput struct {
	UserID string
	ID     string
	Name   *string
}

func (s *OrganizationService) Create(ctx context.Context, input CreateOrganizationInput) (*OrganizationOutput, error) {
	name, err := requireText("name", input.Name)
	if err != nil {
		return nil, err
	}
	org := &model.Organization{
		Name:      name,
		Slug:      slug.Make(name),
		OwnerID:   input.UserID,
		CreatedBy: input.UserID,
		UpdatedBy: input.UserID,
	}
	if err := s.orgs.Create(ctx, org); err != nil {
		return nil, err
	}
	return newOrganizationOutput(org), nil
}

// Get accepts an id or a slug.
func (s *OrganizationService) Get(ctx context.Context, userID, idOrSlug string) (*OrganizationOutput, error) {
	org, err := s.access.organization(ctx, userID, idOrSlug)
	if err != nil {
		return nil, err
	}
	return newOrganizationOutput(org), nil
}

func (s *OrganizationService) List(ctx context.Context, userID string) ([]*OrganizationOutput, error) {
	orgs, err := s.orgs.ListByOwnerID(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]*OrganizationOutput, 0, len(orgs))
	for i := range orgs {
		out = append(out, newOrganizationOutput(&orgs[i]))
	}
	return out, nil
}

func (s *OrganizationService) Update(ctx context.Context, input UpdateOrganizationInput) (*OrganizationOutput, error) {
	org, err := s.access.organization(ctx, input.UserID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name, err := requireText("name", *input.Name)
		if err != nil {
			return nil, err
		}
		if name != org.Name {
			org.Name = name
			org.Slug = slug.Make(name)
		}
	}
	org.UpdatedBy = input.UserID
	if err := s.orgs.Update(ctx, org); err != nil {
		return nil, err
	}
	return newOrganizationOutput(org), nil
}

func (s *OrganizationService) Delete(ctx context.Context, userID, idOrSlug string) error {
	org, err := s.access.organization(ctx, userID, strings.TrimSpace(idOrSlug))
	if err != nil {
		return err
	}
	return s.orgs.Delete(ctx, org.ID)
}
