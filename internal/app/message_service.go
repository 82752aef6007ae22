package app

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"qwery/internal/agent"
	"qwery/internal/apperr"
	"qwery/internal/model"
)

// historyWindow is the most recent slice of a conversation that listings and
// the history cache hold.
const historyWindow = 500

type MessageService struct {
	conversations ConversationRepository
	messages      MessageRepository
	publisher     MessagePublisher
	historyCache  HistoryCache
	agents        AgentFactory
	runner        AgentRunner
	access        access
	maxContext    int
	logger        zerolog.Logger
}

type MessageDeps struct {
	Organizations OrganizationRepository
	Projects      ProjectRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Publisher     MessagePublisher
	HistoryCache  HistoryCache
	Agents        AgentFactory
	Runner        AgentRunner
	MaxContext    int
	Logger        zerolog.Logger
}

func NewMessageService(deps MessageDeps) *MessageService {
	if deps.MaxContext <= 0 {
		deps.MaxContext = 20
	}
	return &MessageService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		publisher:     deps.Publisher,
		historyCache:  deps.HistoryCache,
		agents:        deps.Agents,
		runner:        deps.Runner,
		access:        access{orgs: deps.Organizations, projects: deps.Projects},
		maxContext:    deps.MaxContext,
		logger:        deps.Logger,
	}
}

type CreateMessageInput struct {
	UserID         string
	ConversationID string
	Role           string
	Content        string
	Metadata       map[string]any
}

type SendMessageInput struct {
	UserID         string
	ConversationID string
	Content        string
}

type SendMessageOutput struct {
	UserMessage *MessageOutput   `json:"user_message"`
	Messages    []*MessageOutput `json:"messages"`
	Steps       int              `json:"steps"`
}

// Create appends a message without running the agent.
func (s *MessageService) Create(ctx context.Context, input CreateMessageInput) (*MessageOutput, error) {
	conversation, err := loadConversation(ctx, s.conversations, s.access, input.UserID, input.ConversationID)
	if err != nil {
		return nil, err
	}
	content, err := requireText("content", input.Content)
	if err != nil {
		return nil, err
	}
	role := input.Role
	if role == "" {
		role = model.RoleUser
	}
	switch role {
	case model.RoleUser, model.RoleAssistant, model.RoleSystem, model.RoleTool:
	default:
		return nil, apperr.BadRequest("role must be one of user, assistant, system, tool")
	}

	msg := model.Message{
		ConversationID: conversation.ID,
		Role:           role,
		Content:        content,
		Metadata:       input.Metadata,
		CreatedBy:      input.UserID,
	}
	if err := s.persist(ctx, &msg); err != nil {
		return nil, err
	}
	s.touch(ctx, conversation.ID)
	return newMessageOutput(&msg), nil
}

func (s *MessageService) Get(ctx context.Context, userID, id string) (*MessageOutput, error) {
	msg, err := s.messages.GetByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, apperr.NotFound(apperr.CodeMessageNotFound, "message", id)
	}
	if _, err := loadConversation(ctx, s.conversations, s.access, userID, msg.ConversationID); err != nil {
		if apperr.Is(err, apperr.CodeConversationNotFound) {
			return nil, apperr.NotFound(apperr.CodeMessageNotFound, "message", id)
		}
		return nil, err
	}
	return newMessageOutput(msg), nil
}

// ListByConversation returns the latest limit messages, oldest first. It
// serves from the history cache unless a write marked it dirty.
func (s *MessageService) ListByConversation(ctx context.Context, userID, conversationID string, limit int) ([]*MessageOutput, error) {
	conversation, err := loadConversation(ctx, s.conversations, s.access, userID, conversationID)
	if err != nil {
		return nil, err
	}
	id := conversation.ID
	if limit <= 0 || limit > historyWindow {
		limit = historyWindow
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, id)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, id); cacheErr == nil && hit {
				return newMessageOutputs(trimMessages(cached, limit)), nil
			}
		}
	}

	messages, err := s.messages.ListRecentByConversationID(ctx, id, historyWindow)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, id); dirtyErr == nil && !dirty {
			if err := s.historyCache.SetHistory(ctx, id, messages); err != nil {
				s.logger.Debug().Err(err).Str("conversation_id", id).Msg("cache history")
			}
		}
	}
	return newMessageOutputs(trimMessages(messages, limit)), nil
}

// SendMessage stores the user's message, runs the agent and stores the tool
// traces and the answer.
func (s *MessageService) SendMessage(ctx context.Context, input SendMessageInput) (*SendMessageOutput, error) {
	return s.converse(ctx, input, nil)
}

// StreamMessage is SendMessage with agent events forwarded to emit.
func (s *MessageService) StreamMessage(ctx context.Context, input SendMessageInput, emit agent.EmitFunc) (*SendMessageOutput, error) {
	return s.converse(ctx, input, emit)
}

func (s *MessageService) converse(ctx context.Context, input SendMessageInput, emit agent.EmitFunc) (*SendMessageOutput, error) {
	conversation, err := loadConversation(ctx, s.conversations, s.access, input.UserID, input.ConversationID)
	if err != nil {
		return nil, err
	}
	content, err := requireText("content", input.Content)
	if err != nil {
		return nil, err
	}

	history, err := s.messages.ListRecentByConversationID(ctx, conversation.ID, s.maxContext)
	if err != nil {
		return nil, err
	}

	userMessage := model.Message{
		ConversationID: conversation.ID,
		Role:           model.RoleUser,
		Content:        content,
		CreatedBy:      input.UserID,
	}
	if err := s.persist(ctx, &userMessage); err != nil {
		return nil, err
	}

	a, err := s.agents.Create(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	result, err := s.runner.Run(ctx, a, agent.RunInput{Prompt: content, History: history}, emit)
	if err != nil {
		return nil, err
	}

	out := &SendMessageOutput{
		UserMessage: newMessageOutput(&userMessage),
		Steps:       result.Steps,
	}
	replies := append(result.ToolTraces, model.Message{
		ConversationID: conversation.ID,
		Role:           model.RoleAssistant,
		Content:        result.Answer,
		Metadata: datatypes.JSONMap{
			"steps":      result.Steps,
			"step_limit": result.StepLimit,
		},
	})
	// The run may outlive a disconnected client; its results are kept.
	persistCtx := context.WithoutCancel(ctx)
	for i := range replies {
		if err := s.persist(persistCtx, &replies[i]); err != nil {
			return nil, err
		}
		out.Messages = append(out.Messages, newMessageOutput(&replies[i]))
	}
	s.touch(persistCtx, conversation.ID)
	return out, nil
}

// persist assigns the message id and hands it to the publisher.
func (s *MessageService) persist(ctx context.Context, msg *model.Message) error {
	msg.CreatedAt = time.Now()
	msg.AssignID()
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, msg.ConversationID)
		_ = s.historyCache.DeleteHistory(ctx, msg.ConversationID)
	}
	if err := s.publisher.Publish(ctx, *msg); err != nil {
		return apperr.Wrap(apperr.CodeInternal, "store message", err)
	}
	return nil
}

func (s *MessageService) touch(ctx context.Context, conversationID string) {
	if err := s.conversations.Touch(ctx, conversationID); err != nil {
		s.logger.Warn().Err(err).Str("conversation_id", conversationID).Msg("touch conversation")
	}
}

func trimMessages(messages []model.Message, limit int) []model.Message {
	if limit <= 0 || limit >= len(messages) {
		return messages
	}
	return messages[len(messages)-limit:]
}
