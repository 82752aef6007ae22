package app

import (
	"context"
	"strings"

	"qwery/internal/apperr"
	"qwery/internal/model"
)

// access resolves records through the tenancy chain. A record the user may
// not see is reported exactly like a missing one.
type access struct {
	orgs     OrganizationRepository
	projects ProjectRepository
}

func (a access) organization(ctx context.Context, userID, idOrSlug string) (*model.Organization, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if userID == "" {
		return nil, apperr.Unauthorized("missing user")
	}
	if idOrSlug == "" {
		return nil, apperr.BadRequest("organization id is required")
	}

	org, err := a.orgs.GetByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if org == nil {
		if org, err = a.orgs.GetBySlug(ctx, idOrSlug); err != nil {
			return nil, err
		}
	}
	if org == nil || org.OwnerID != userID {
		return nil, apperr.NotFound(apperr.CodeOrganizationNotFound, "organization", idOrSlug)
	}
	return org, nil
}

func (a access) project(ctx context.Context, userID, idOrSlug string) (*model.Project, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	if idOrSlug == "" {
		return nil, apperr.BadRequest("project id is required")
	}

	project, err := a.projects.GetByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if project == nil {
		if project, err = a.projects.GetBySlug(ctx, idOrSlug); err != nil {
			return nil, err
		}
	}
	if project == nil {
		return nil, apperr.NotFound(apperr.CodeProjectNotFound, "project", idOrSlug)
	}
	if _, err := a.organization(ctx, userID, project.OrganizationID); err != nil {
		if apperr.Is(err, apperr.CodeOrganizationNotFound) {
			return nil, apperr.NotFound(apperr.CodeProjectNotFound, "project", idOrSlug)
		}
		return nil, err
	}
	return project, nil
}

// child checks that the project owning a child record is visible; the
// child's own not-found code is used otherwise.
func (a access) child(ctx context.Context, userID, projectID string, code int, entity, id string) error {
	if _, err := a.project(ctx, userID, projectID); err != nil {
		if apperr.Is(err, apperr.CodeProjectNotFound) {
			return apperr.NotFound(code, entity, id)
		}
		return err
	}
	return nil
}

func requireText(field, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", apperr.BadRequest(field + " is required")
	}
	return value, nil
}
