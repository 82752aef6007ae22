package agent

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"qwery/internal/apperr"
	"qwery/internal/model"
)

type ConversationStore interface {
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
}

type DatasourceStore interface {
	ListByProjectID(ctx context.Context, projectID string) ([]model.Datasource, error)
}

type SessionStore interface {
	GetByConversationID(ctx context.Context, conversationID string) (*model.AgentSession, error)
	Save(ctx context.Context, session *model.AgentSession) error
}

// Factory assembles agents from persisted conversation state.
type Factory struct {
	conversations ConversationStore
	datasources   DatasourceStore
	sessions      SessionStore
	logger        zerolog.Logger
}

func NewFactory(conversations ConversationStore, datasources DatasourceStore, sessions SessionStore, logger zerolog.Logger) *Factory {
	return &Factory{
		conversations: conversations,
		datasources:   datasources,
		sessions:      sessions,
		logger:        logger,
	}
}

// Create loads the conversation, the datasources it is attached to (all of
// the project's when none are attached) and the agent session.
func (f *Factory) Create(ctx context.Context, conversationID string) (*Agent, error) {
	conversation, err := f.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		return nil, apperr.NotFound(apperr.CodeConversationNotFound, "conversation", conversationID)
	}

	all, err := f.datasources.ListByProjectID(ctx, conversation.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("load datasources: %w", err)
	}
	datasources := all
	if len(conversation.Datasources) > 0 {
		attached := make(map[string]bool, len(conversation.Datasources))
		for _, id := range conversation.Datasources {
			attached[id] = true
		}
		datasources = datasources[:0:0]
		for _, ds := range all {
			if attached[ds.ID] {
				datasources = append(datasources, ds)
			}
		}
	}

	session, err := f.sessions.GetByConversationID(ctx, conversationID)
	if err != nil {
		return nil, fmt.Errorf("load agent session: %w", err)
	}
	if session == nil {
		session = &model.AgentSession{ConversationID: conversationID, State: StateIdle}
	}

	logger := f.logger.With().Str("conversation_id", conversationID).Logger()
	state, interrupted := restoredState(session.State)
	if interrupted {
		logger.Warn().Str("state", session.State).Msg("previous agent run was interrupted")
		session.LastError = "previous run interrupted in state " + session.State
	}
	session.State = state

	return &Agent{
		Conversation: conversation,
		Datasources:  datasources,
		Session:      session,
		machine:      newMachine(state, logger),
		sessions:     f.sessions,
		logger:       logger,
	}, nil
}
