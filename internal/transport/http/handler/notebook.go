package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qwery/internal/app"
	"qwery/internal/model"
	"qwery/internal/transport/http/middleware"
	"qwery/internal/transport/http/response"
)

type NotebookHandler struct {
	notebooks *app.NotebookService
}

// NotebookRequest serves create and update; absent fields are left alone.
type NotebookRequest struct {
	Title       *string       `json:"title" binding:"omitempty,max=256"`
	Description *string       `json:"description"`
	Cells       *[]model.Cell `json:"cells"`
	Datasources *[]string     `json:"datasources"`
	Version     *int          `json:"version"`
}

type RunCellRequest struct {
	Limit int `json:"limit"`
}

func NewNotebookHandler(notebooks *app.NotebookService) *NotebookHandler {
	return &NotebookHandler{notebooks: notebooks}
}

func (h *NotebookHandler) Get(c *gin.Context) {
	notebook, err := h.notebooks.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, notebook)
}

func (h *NotebookHandler) Update(c *gin.Context) {
	var req NotebookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	notebook, err := h.notebooks.Update(c.Request.Context(), app.UpdateNotebookInput{
		UserID:      middleware.UserID(c),
		ID:          c.Param("id"),
		Title:       req.Title,
		Description: req.Description,
		Cells:       req.Cells,
		Datasources: req.Datasources,
		Version:     req.Version,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, notebook)
}

func (h *NotebookHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.notebooks.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_notebook_id": id})
}

func (h *NotebookHandler) RunCell(c *gin.Context) {
	cellID, err := strconv.Atoi(c.Param("cellId"))
	if err != nil || cellID <= 0 {
		response.BadRequest(c, "invalid cell id")
		return
	}
	var req RunCellRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request payload")
			return
		}
	}
	result, err := h.notebooks.RunCell(c.Request.Context(), app.RunCellInput{
		UserID:     middleware.UserID(c),
		NotebookID: c.Param("id"),
		CellID:     cellID,
		Limit:      req.Limit,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, result)
}

func (h *NotebookHandler) Export(c *gin.Context) {
	page, err := h.notebooks.ExportHTML(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", page)
}
