package app

import (
	"context"

	"qwery/internal/apperr"
	"qwery/internal/model"
	"qwery/internal/pkg/slug"
)

type ProjectService struct {
	projects ProjectRepository
	access   access
}

func NewProjectService(orgs OrganizationRepository, projects ProjectRepository) *ProjectService {
	return &ProjectService{projects: projects, access: access{orgs: orgs, projects: projects}}
}

type CreateProjectInput struct {
	UserID         string
	OrganizationID string
	Name           string
	Description    string
}

type UpdateProjectInput struct {
	UserID      string
	ID          string
	Name        *string
	Description *string
	Status      *string
}

func (s *ProjectService) Create(ctx context.Context, input CreateProjectInput) (*ProjectOutput, error) {
	org, err := s.access.organization(ctx, input.UserID, input.OrganizationID)
	if err != nil {
		return nil, err
	}
	name, err := requireText("name", input.Name)
	if err != nil {
		return nil, err
	}
	project := &model.Project{
		OrganizationID: org.ID,
		Name:           name,
		Slug:           slug.Make(name),
		Description:    input.Description,
		Status:         model.ProjectStatusActive,
		CreatedBy:      input.UserID,
		UpdatedBy:      input.UserID,
	}
	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}
	return newProjectOutput(project), nil
}

func (s *ProjectService) Get(ctx context.Context, userID, idOrSlug string) (*ProjectOutput, error) {
	project, err := s.access.project(ctx, userID, idOrSlug)
	if err != nil {
		return nil, err
	}
	return newProjectOutput(project), nil
}

func (s *ProjectService) ListByOrganization(ctx context.Context, userID, organizationID string) ([]*ProjectOutput, error) {
	org, err := s.access.organization(ctx, userID, organizationID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListByOrganizationID(ctx, org.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*ProjectOutput, 0, len(projects))
	for i := range projects {
		out = append(out, newProjectOutput(&projects[i]))
	}
	return out, nil
}

func (s *ProjectService) Update(ctx context.Context, input UpdateProjectInput) (*ProjectOutput, error) {
	project, err := s.access.project(ctx, input.UserID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name, err := requireText("name", *input.Name)
		if err != nil {
			return nil, err
		}
		if name != project.Name {
			project.Name = name
			project.Slug = slug.Make(name)
		}
	}
	if input.Description != nil {
		project.Description = *input.Description
	}
	if input.Status != nil {
		switch *input.Status {
		case model.ProjectStatusActive, model.ProjectStatusArchived:
			project.Status = *input.Status
		default:
			return nil, apperr.BadRequest("status must be active or archived")
		}
	}
	project.UpdatedBy = input.UserID
	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}
	return newProjectOutput(project), nil
}

func (s *ProjectService) Delete(ctx context.Context, userID, idOrSlug string) error {
	project, err := s.access.project(ctx, userID, idOrSlug)
	if err != nil {
		return err
	}
	return s.projects.Delete(ctx, project.ID)
}
