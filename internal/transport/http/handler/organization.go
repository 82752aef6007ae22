package handler

import (
	"github.com/gin-gonic/gin"

	"qwery/internal/app"
	"qwery/internal/transport/http/middleware"
	"qwery/internal/transport/http/response"
)

type OrganizationHandler struct {
	orgs     *app.OrganizationService
	projects *app.ProjectService
}

type OrganizationRequest struct {
	Name *string `json:"name" binding:"omitempty,max=128"`
}

type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required,max=128"`
	Description string `json:"description"`
}

func NewOrganizationHandler(orgs *app.OrganizationService, projects *app.ProjectService) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, projects: projects}
}

func (h *OrganizationHandler) Create(c *gin.Context) {
	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Name == nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	org, err := h.orgs.Create(c.Request.Context(), app.CreateOrganizationInput{
		UserID: middleware.UserID(c),
		Name:   *req.Name,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, org)
}

func (h *OrganizationHandler) List(c *gin.Context) {
	orgs, err := h.orgs.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, orgs)
}

func (h *OrganizationHandler) Get(c *gin.Context) {
	org, err := h.orgs.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, org)
}

func (h *OrganizationHandler) Update(c *gin.Context) {
	var req OrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	org, err := h.orgs.Update(c.Request.Context(), app.UpdateOrganizationInput{
		UserID: middleware.UserID(c),
		ID:     c.Param("id"),
		Name:   req.Name,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, org)
}

func (h *OrganizationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.orgs.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_organization_id": id})
}

func (h *OrganizationHandler) ListProjects(c *gin.Context) {
	projects, err := h.projects.ListByOrganization(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, projects)
}

func (h *OrganizationHandler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	project, err := h.projects.Create(c.Request.Context(), app.CreateProjectInput{
		UserID:         middleware.UserID(c),
		OrganizationID: c.Param("id"),
		Name:           req.Name,
		Description:    req.Description,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, project)
}
