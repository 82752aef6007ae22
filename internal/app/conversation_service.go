package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"qwery/internal/agent"
	"qwery/internal/apperr"
	"qwery/internal/model"
	"qwery/internal/pkg/slug"
)

type ConversationService struct {
	conversations ConversationRepository
	messages      MessageRepository
	sessions      AgentSessionRepository
	datasources   DatasourceRepository
	historyCache  HistoryCache
	titles        TitleGenerator
	access        access
	logger        zerolog.Logger
}

type ConversationDeps struct {
	Organizations OrganizationRepository
	Projects      ProjectRepository
	Conversations ConversationRepository
	Messages      MessageRepository
	Sessions      AgentSessionRepository
	Datasources   DatasourceRepository
	HistoryCache  HistoryCache
	Titles        TitleGenerator
	Logger        zerolog.Logger
}

func NewConversationService(deps ConversationDeps) *ConversationService {
	return &ConversationService{
		conversations: deps.Conversations,
		messages:      deps.Messages,
		sessions:      deps.Sessions,
		datasources:   deps.Datasources,
		historyCache:  deps.HistoryCache,
		titles:        deps.Titles,
		access:        access{orgs: deps.Organizations, projects: deps.Projects},
		logger:        deps.Logger,
	}
}

type CreateConversationInput struct {
	UserID      string
	ProjectID   string
	Title       string
	SeedMessage string
	Datasources []string
}

type UpdateConversationInput struct {
	UserID      string
	ID          string
	Title       *string
	Datasources *[]string
}

// Create names the conversation after its seed message when no title is
// given.
func (s *ConversationService) Create(ctx context.Context, input CreateConversationInput) (*ConversationOutput, error) {
	project, err := s.access.project(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}
	datasources, err := attachDatasources(ctx, s.datasources, project.ID, input.Datasources)
	if err != nil {
		return nil, err
	}

	seed := strings.TrimSpace(input.SeedMessage)
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = agent.DefaultTitle
		if seed != "" && s.titles != nil {
			title = s.titles.Generate(ctx, seed)
		}
	}

	conversation := &model.Conversation{
		ProjectID:   project.ID,
		Title:       title,
		Slug:        slug.Make(title),
		SeedMessage: seed,
		Datasources: datasources,
		CreatedBy:   input.UserID,
		UpdatedBy:   input.UserID,
	}
	if err := s.conversations.Create(ctx, conversation); err != nil {
		return nil, err
	}
	return newConversationOutput(conversation), nil
}

func (s *ConversationService) Get(ctx context.Context, userID, idOrSlug string) (*ConversationOutput, error) {
	conversation, err := loadConversation(ctx, s.conversations, s.access, userID, idOrSlug)
	if err != nil {
		return nil, err
	}
	return newConversationOutput(conversation), nil
}

func (s *ConversationService) ListByProject(ctx context.Context, userID, projectID string) ([]*ConversationOutput, error) {
	project, err := s.access.project(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	list, err := s.conversations.ListByProjectID(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*ConversationOutput, 0, len(list))
	for i := range list {
		out = append(out, newConversationOutput(&list[i]))
	}
	return out, nil
}

func (s *ConversationService) Update(ctx context.Context, input UpdateConversationInput) (*ConversationOutput, error) {
	conversation, err := loadConversation(ctx, s.conversations, s.access, input.UserID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Title != nil {
		title, err := requireText("title", *input.Title)
		if err != nil {
			return nil, err
		}
		if title != conversation.Title {
			conversation.Title = title
			conversation.Slug = slug.Make(title)
		}
	}
	if input.Datasources != nil {
		datasources, err := attachDatasources(ctx, s.datasources, conversation.ProjectID, *input.Datasources)
		if err != nil {
			return nil, err
		}
		conversation.Datasources = datasources
	}
	conversation.UpdatedBy = input.UserID
	if err := s.conversations.Update(ctx, conversation); err != nil {
		return nil, err
	}
	return newConversationOutput(conversation), nil
}

// Delete removes the conversation with its messages, agent session and
// cached history.
func (s *ConversationService) Delete(ctx context.Context, userID, idOrSlug string) error {
	conversation, err := loadConversation(ctx, s.conversations, s.access, userID, idOrSlug)
	if err != nil {
		return err
	}
	if err := s.messages.DeleteByConversationID(ctx, conversation.ID); err != nil {
		return err
	}
	if err := s.sessions.DeleteByConversationID(ctx, conversation.ID); err != nil {
		return err
	}
	if err := s.conversations.Delete(ctx, conversation.ID); err != nil {
		return err
	}
	if s.historyCache != nil {
		if err := s.historyCache.DeleteHistory(ctx, conversation.ID); err != nil {
			s.logger.Warn().Err(err).Str("conversation_id", conversation.ID).Msg("drop cached history")
		}
	}
	return nil
}

// AgentSession reports the persisted agent state of a conversation.
func (s *ConversationService) AgentSession(ctx context.Context, userID, conversationID string) (*AgentSessionOutput, error) {
	conversation, err := loadConversation(ctx, s.conversations, s.access, userID, conversationID)
	if err != nil {
		return nil, err
	}
	session, err := s.sessions.GetByConversationID(ctx, conversation.ID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, apperr.NotFound(apperr.CodeAgentSessionNotFound, "agent session", conversation.ID)
	}
	return newAgentSessionOutput(session), nil
}

// attachDatasources resolves datasource ids or slugs inside the project and
// returns the distinct ids in order.
func attachDatasources(ctx context.Context, repo DatasourceRepository, projectID string, refs []string) ([]string, error) {
	ids := make([]string, 0, len(refs))
	seen := make(map[string]bool, len(refs))
	for _, ref := range refs {
		ds, err := resolveDatasource(ctx, repo, projectID, strings.TrimSpace(ref))
		if err != nil {
			return nil, err
		}
		if !seen[ds.ID] {
			seen[ds.ID] = true
			ids = append(ids, ds.ID)
		}
	}
	return ids, nil
}

func loadConversation(ctx context.Context, repo ConversationRepository, acc access, userID, idOrSlug string) (*model.Conversation, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	conversation, err := repo.GetByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if conversation == nil {
		if conversation, err = repo.GetBySlug(ctx, idOrSlug); err != nil {
			return nil, err
		}
	}
	if conversation == nil {
		return nil, apperr.NotFound(apperr.CodeConversationNotFound, "conversation", idOrSlug)
	}
	if err := acc.child(ctx, userID, conversation.ProjectID, apperr.CodeConversationNotFound, "conversation", idOrSlug); err != nil {
		return nil, err
	}
	return conversation, nil
}
