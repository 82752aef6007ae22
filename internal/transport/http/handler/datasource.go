package handler

import (
	"github.com/gin-gonic/gin"

	"qwery/internal/app"
	"qwery/internal/transport/http/middleware"
	"qwery/internal/transport/http/response"
)

type DatasourceHandler struct {
	datasources *app.DatasourceService
}

type CreateDatasourceRequest struct {
	ProjectID   string                    `json:"project_id"`
	Name        string                    `json:"name" binding:"required,max=128"`
	Description string                    `json:"description"`
	Provider    string                    `json:"provider" binding:"required"`
	Config      app.DatasourceConfigInput `json:"config"`
}

type UpdateDatasourceRequest struct {
	Name        *string                    `json:"name" binding:"omitempty,max=128"`
	Description *string                    `json:"description"`
	Config      *app.DatasourceConfigInput `json:"config"`
}

func NewDatasourceHandler(datasources *app.DatasourceService) *DatasourceHandler {
	return &DatasourceHandler{datasources: datasources}
}

// List requires ?projectId=.
func (h *DatasourceHandler) List(c *gin.Context) {
	projectID := c.Query("projectId")
	if projectID == "" {
		response.BadRequest(c, "projectId is required")
		return
	}
	list, err := h.datasources.ListByProject(c.Request.Context(), middleware.UserID(c), projectID)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, list)
}

func (h *DatasourceHandler) Create(c *gin.Context) {
	var req CreateDatasourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	projectID := req.ProjectID
	if projectID == "" {
		projectID = c.Query("projectId")
	}
	ds, err := h.datasources.Create(c.Request.Context(), app.CreateDatasourceInput{
		UserID:      middleware.UserID(c),
		ProjectID:   projectID,
		Name:        req.Name,
		Description: req.Description,
		Provider:    req.Provider,
		Config:      req.Config,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, ds)
}

func (h *DatasourceHandler) Get(c *gin.Context) {
	ds, err := h.datasources.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, ds)
}

func (h *DatasourceHandler) Update(c *gin.Context) {
	var req UpdateDatasourceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	ds, err := h.datasources.Update(c.Request.Context(), app.UpdateDatasourceInput{
		UserID:      middleware.UserID(c),
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, ds)
}

func (h *DatasourceHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.datasources.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_datasource_id": id})
}

func (h *DatasourceHandler) Test(c *gin.Context) {
	result, err := h.datasources.Test(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}
