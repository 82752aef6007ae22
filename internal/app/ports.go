package app

import (
	"context"

	"qwery/internal/agent"
	"qwery/internal/datasource"
	"qwery/internal/model"
)

type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id string) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type OrganizationRepository interface {
	Create(ctx context.Context, org *model.Organization) error
	GetByID(ctx context.Context, id string) (*model.Organization, error)
	GetBySlug(ctx context.Context, slug string) (*model.Organization, error)
	ListByOwnerID(ctx context.Context, ownerID string) ([]model.Organization, error)
	Update(ctx context.Context, org *model.Organization) error
	Delete(ctx context.Context, id string) error
}

type ProjectRepository interface {
	Create(ctx context.Context, project *model.Project) error
	GetByID(ctx context.Context, id string) (*model.Project, error)
	GetBySlug(ctx context.Context, slug string) (*model.Project, error)
	ListByOrganizationID(ctx context.Context, organizationID string) ([]model.Project, error)
	Update(ctx context.Context, project *model.Project) error
	Delete(ctx context.Context, id string) error
}

type DatasourceRepository interface {
	Create(ctx context.Context, ds *model.Datasource) error
	GetByID(ctx context.Context, id string) (*model.Datasource, error)
	GetBySlug(ctx context.Context, slug string) (*model.Datasource, error)
	ListByProjectID(ctx context.Context, projectID string) ([]model.Datasource, error)
	Update(ctx context.Context, ds *model.Datasource) error
	Delete(ctx context.Context, id string) error
}

type NotebookRepository interface {
	Create(ctx context.Context, notebook *model.Notebook) error
	GetByID(ctx context.Context, id string) (*model.Notebook, error)
	GetBySlug(ctx context.Context, slug string) (*model.Notebook, error)
	ListByProjectID(ctx context.Context, projectID string) ([]model.Notebook, error)
	Update(ctx context.Context, notebook *model.Notebook, expectedVersion int) error
	Delete(ctx context.Context, id string) error
}

type ConversationRepository interface {
	Create(ctx context.Context, conversation *model.Conversation) error
	GetByID(ctx context.Context, id string) (*model.Conversation, error)
	GetBySlug(ctx context.Context, slug string) (*model.Conversation, error)
	ListByProjectID(ctx context.Context, projectID string) ([]model.Conversation, error)
	Update(ctx context.Context, conversation *model.Conversation) error
	Touch(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	Create(ctx context.Context, message *model.Message) error
	GetByID(ctx context.Context, id string) (*model.Message, error)
	ListRecentByConversationID(ctx context.Context, conversationID string, n int) ([]model.Message, error)
	DeleteByConversationID(ctx context.Context, conversationID string) error
}

type AgentSessionRepository interface {
	GetByConversationID(ctx context.Context, conversationID string) (*model.AgentSession, error)
	Save(ctx context.Context, session *model.AgentSession) error
	DeleteByConversationID(ctx context.Context, conversationID string) error
}

// MessagePublisher hands a message to the persistence path. The message
// carries its final id before it is published.
type MessagePublisher interface {
	Publish(ctx context.Context, msg model.Message) error
}

type HistoryCache interface {
	GetHistory(ctx context.Context, conversationID string) ([]model.Message, bool, error)
	SetHistory(ctx context.Context, conversationID string, messages []model.Message) error
	DeleteHistory(ctx context.Context, conversationID string) error
	MarkDirty(ctx context.Context, conversationID string) error
	IsDirty(ctx context.Context, conversationID string) (bool, error)
}

type QueryExecutor interface {
	Validate(ds *model.Datasource) error
	Query(ctx context.Context, ds *model.Datasource, query string, limit int) (*datasource.Result, error)
	Schema(ctx context.Context, ds *model.Datasource) ([]datasource.Table, error)
	Ping(ctx context.Context, ds *model.Datasource) error
	Evict(datasourceID string)
}

type AgentFactory interface {
	Create(ctx context.Context, conversationID string) (*agent.Agent, error)
}

type AgentRunner interface {
	Run(ctx context.Context, a *agent.Agent, input agent.RunInput, emit agent.EmitFunc) (*agent.RunResult, error)
}

type TitleGenerator interface {
	Generate(ctx context.Context, seed string) string
}
