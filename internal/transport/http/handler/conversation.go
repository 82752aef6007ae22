package handler

import (
	"github.com/gin-gonic/gin"

	"qwery/internal/app"
	"qwery/internal/transport/http/middleware"
	"qwery/internal/transport/http/response"
)

type ConversationHandler struct {
	conversations *app.ConversationService
}

type CreateConversationRequest struct {
	Title       string   `json:"title" binding:"max=256"`
	SeedMessage string   `json:"seed_message"`
	Datasources []string `json:"datasources"`
}

type UpdateConversationRequest struct {
	Title       *string   `json:"title" binding:"omitempty,max=256"`
	Datasources *[]string `json:"datasources"`
}

func NewConversationHandler(conversations *app.ConversationService) *ConversationHandler {
	return &ConversationHandler{conversations: conversations}
}

func (h *ConversationHandler) Get(c *gin.Context) {
	conversation, err := h.conversations.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, conversation)
}

func (h *ConversationHandler) Update(c *gin.Context) {
	var req UpdateConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}
	conversation, err := h.conversations.Update(c.Request.Context(), app.UpdateConversationInput{
		UserID:      middleware.UserID(c),
		ID:          c.Param("id"),
		Title:       req.Title,
		Datasources: req.Datasources,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, conversation)
}

func (h *ConversationHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.conversations.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, gin.H{"deleted_conversation_id": id})
}

func (h *ConversationHandler) AgentSession(c *gin.Context) {
	session, err := h.conversations.AgentSession(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, session)
}
