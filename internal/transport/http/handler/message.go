package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"qwery/internal/agent"
	"qwery/internal/app"
	"qwery/internal/apperr"
	"qwery/internal/transport/http/middleware"
	"qwery/internal/transport/http/response"
)

type MessageHandler struct {
	messages *app.MessageService
}

type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
	// Role and Metadata are honoured with ?run=false, which stores the
	// message without running the agent.
	Role     string         `json:"role"`
	Metadata map[string]any `json:"metadata"`
}

func NewMessageHandler(messages *app.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

func (h *MessageHandler) List(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if parsed, parseErr := strconv.Atoi(raw); parseErr == nil {
			limit = parsed
		}
	}
	history, err := h.messages.ListByConversation(c.Request.Context(), middleware.UserID(c), c.Param("id"), limit)
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, history)
}

func (h *MessageHandler) Get(c *gin.Context) {
	msg, err := h.messages.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.OK(c, msg)
}

// Send stores the user message and answers it with the agent.
func (h *MessageHandler) Send(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}

	if c.Query("run") == "false" {
		msg, err := h.messages.Create(c.Request.Context(), app.CreateMessageInput{
			UserID:         middleware.UserID(c),
			ConversationID: c.Param("id"),
			Role:           req.Role,
			Content:        req.Content,
			Metadata:       req.Metadata,
		})
		if err != nil {
			response.Fail(c, err)
			return
		}
		response.Created(c, msg)
		return
	}

	result, err := h.messages.SendMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         middleware.UserID(c),
		ConversationID: c.Param("id"),
		Content:        req.Content,
	})
	if err != nil {
		response.Fail(c, err)
		return
	}
	response.Created(c, result)
}

// Stream answers like Send and forwards agent events as server-sent events.
func (h *MessageHandler) Stream(c *gin.Context) {
	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, apperr.CodeInternal, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	writeEvent := func(name string, payload any) error {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", name, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	result, err := h.messages.StreamMessage(c.Request.Context(), app.SendMessageInput{
		UserID:         middleware.UserID(c),
		ConversationID: c.Param("id"),
		Content:        req.Content,
	}, func(e agent.Event) error {
		return writeEvent(e.Type, e)
	})
	if err != nil {
		_ = c.Error(err)
		code, message := response.Describe(err)
		_ = writeEvent("error", response.APIResponse{Code: code, Message: message})
		return
	}
	_ = writeEvent("done", result)
}
