package handler

import (
	"github.com/gin-gonic/gin"

	"qwery/internal/app"
	"qwery/internal/transport/http/middleware"
	"qwery/internal/transport/http/response"
)

type ProjectHandler struct {
	projects      *app.ProjectService
	notebooks     *app.NotebookService
	conversations *app.ConversationService
}

type UpdateProjectRequest struct {
	Name        *string `json:"name" binding:"omitempty,max=128"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

func NewProjectHandler(projects *app.ProjectService, notebooks *app.NotebookService, conversations *app.ConversationService) *ProjectHandler {
	return &ProjectHandler{projects: projects, notebooks: notebooks, conversations: conversations}
}

func (h *ProjectHandler) Get(c *gin.Context) {
	project, err := h.projects.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	project, err := h.projects.Update(c.Request.Context(), app.UpdateProjectInput{
		UserID:      middleware.UserID(c),
		ID:          c.Param("id"),
		Name:        req.Name,
		Description: req.Description,
		Status:      req.Status,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.projects.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_project_id": id})
}

func (h *ProjectHandler) ListNotebooks(c *gin.Context) {
	notebooks, err := h.notebooks.ListByProject(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, notebooks)
}

func (h *ProjectHandler) CreateNotebook(c *gin.Context) {
	var req NotebookRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Title == nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	input := app.CreateNotebookInput{
		UserID:    middleware.UserID(c),
		ProjectID: c.Param("id"),
		Title:     *req.Title,
	}
	if req.Description != nil {
		input.Description = *req.Description
	}
	if req.Cells != nil {
		input.Cells = *req.Cells
	}
	if req.Datasources != nil {
		input.Datasources = *req.Datasources
	}
	notebook, err := h.notebooks.Create(c.Request.Context(), input)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, notebook)
}

func (h *ProjectHandler) ListConversations(c *gin.Context) {
	conversations, err := h.conversations.ListByProject(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, conversations)
}

func (h *ProjectHandler) CreateConversation(c *gin.Context) {
	var req CreateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	conversation, err := h.conversations.Create(c.Request.Context(), app.CreateConversationInput{
		UserID:      middleware.UserID(c),
		ProjectID:   c.Param("id"),
		Title:       req.Title,
		SeedMessage: req.SeedMessage,
		Datasources: req.Datasources,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, conversation)
}
