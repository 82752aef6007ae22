package app

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qwery/internal/agent"
	"qwery/internal/ai"
	"qwery/internal/apperr"
	"qwery/internal/datasource"
	"qwery/internal/model"
	"qwery/internal/platform/database"
	sqliteClient "qwery/internal/platform/sqlite"
	"qwery/internal/repository"
)

type services struct {
	db            *gorm.DB
	auth          *AuthService
	orgs          *OrganizationService
	projects      *ProjectService
	datasources   *DatasourceService
	notebooks     *NotebookService
	conversations *ConversationService
	messages      *MessageService
	llm           *fakeLLM
	root          string
	seeded        int
}

type fakeLLM struct {
	replies []*ai.ChatResponse
	title   string
}

func (f *fakeLLM) Complete(context.Context, ai.ChatConfig, []ai.ChatMessage) (string, error) {
	return f.title, nil
}

func (f *fakeLLM) Chat(context.Context, ai.ChatConfig, []ai.ChatMessage, []ai.ToolSpec) (*ai.ChatResponse, error) {
	if len(f.replies) == 0 {
		return &ai.ChatResponse{Content: "ok"}, nil
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	return r, nil
}

func newServices(t *testing.T) *services {
	t.Helper()
	ctx := context.Background()
	db, err := sqliteClient.New(ctx, filepath.Join(t.TempDir(), "meta.db"), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = database.Close(db) })

	users := repository.NewUserRepository(db)
	orgs := repository.NewOrganizationRepository(db)
	projects := repository.NewProjectRepository(db)
	datasources := repository.NewDatasourceRepository(db)
	notebooks := repository.NewNotebookRepository(db)
	conversations := repository.NewConversationRepository(db)
	messages := repository.NewMessageRepository(db)
	sessions := repository.NewAgentSessionRepository(db)

	root := t.TempDir()
	exec := datasource.NewExecutor(zerolog.Nop(), datasource.Options{SQLiteRoot: root})
	t.Cleanup(func() { _ = exec.Close() })

	llm := &fakeLLM{title: "Sales Questions"}
	factory := agent.NewFactory(conversations, datasources, sessions, zerolog.Nop())
	runner := agent.NewRunner(llm, ai.ChatConfig{}, exec, agent.RunnerOptions{}, zerolog.Nop())
	titles := agent.NewTitleGenerator(llm, ai.ChatConfig{}, time.Second, zerolog.Nop())

	return &services{
		db:          db,
		auth:        NewAuthService(users, "secret", time.Hour),
		orgs:        NewOrganizationService(orgs, projects),
		projects:    NewProjectService(orgs, projects),
		datasources: NewDatasourceService(orgs, projects, datasources, exec),
		notebooks:   NewNotebookService(orgs, projects, notebooks, datasources, exec),
		conversations: NewConversationService(ConversationDeps{
			Organizations: orgs, Projects: projects, Conversations: conversations,
			Messages: messages, Sessions: sessions, Datasources: datasources,
			Titles: titles, Logger: zerolog.Nop(),
		}),
		messages: NewMessageService(MessageDeps{
			Organizations: orgs, Projects: projects, Conversations: conversations,
			Messages: messages, Publisher: NewDirectMessageWriter(messages),
			Agents: factory, Runner: runner, Logger: zerolog.Nop(),
		}),
		llm:  llm,
		root: root,
	}
}

func (s *services) register(t *testing.T, name string) string {
	t.Helper()
	out, err := s.auth.Register(context.Background(), RegisterInput{Username: name, Email: name + "@example.com", Password: "password123"})
	require.NoError(t, err)
	return out.User.ID
}

func (s *services) project(t *testing.T, userID string) *ProjectOutput {
	t.Helper()
	ctx := context.Background()
	org, err := s.orgs.Create(ctx, CreateOrganizationInput{UserID: userID, Name: "Acme Corp"})
	require.NoError(t, err)
	project, err := s.projects.Create(ctx, CreateProjectInput{UserID: userID, OrganizationID: org.ID, Name: "Sales"})
	require.NoError(t, err)
	return project
}

// seedWarehouse writes a small sqlite warehouse under the datasource root.
func (s *services) seedWarehouse(t *testing.T) string {
	t.Helper()
	s.seeded++
	path := filepath.Join(s.root, fmt.Sprintf("warehouse-%d.db", s.seeded))
	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	defer db.Close()
	_, err = db.Exec(`CREATE TABLE orders (id INTEGER PRIMARY KEY, total REAL)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO orders VALUES (1, 10), (2, 32)`)
	require.NoError(t, err)
	return path
}

func TestAuthRegisterLogin(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()

	out, err := s.auth.Register(ctx, RegisterInput{Username: "ada", Email: "ADA@example.com", Password: "password123"})
	require.NoError(t, err)
	assert.NotEmpty(t, out.Token)
	assert.Equal(t, "ada@example.com", out.User.Email)

	_, err = s.auth.Register(ctx, RegisterInput{Username: "ada", Email: "x@example.com", Password: "password123"})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	_, err = s.auth.Register(ctx, RegisterInput{Username: "bob", Email: "bob@example.com", Password: "short"})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	_, err = s.auth.Login(ctx, LoginInput{Username: "ada", Password: "wrong-password"})
	assert.True(t, apperr.Is(err, apperr.CodeUnauthorized))

	login, err := s.auth.Login(ctx, LoginInput{Username: "ada", Password: "password123"})
	require.NoError(t, err)
	me, err := s.auth.GetUser(ctx, login.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada", me.Username)

	_, err = s.auth.GetUser(ctx, "nope")
	assert.True(t, apperr.Is(err, apperr.CodeUserNotFound))
}

func TestTenancyHidesOtherOwners(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	eve := s.register(t, "eve")
	project := s.project(t, ada)

	_, err := s.projects.Get(ctx, eve, project.ID)
	assert.True(t, apperr.Is(err, apperr.CodeProjectNotFound), "got %v", err)

	_, err = s.orgs.Get(ctx, eve, project.OrganizationID)
	assert.True(t, apperr.Is(err, apperr.CodeOrganizationNotFound))

	list, err := s.orgs.List(ctx, eve)
	require.NoError(t, err)
	assert.Empty(t, list)

	nb, err := s.notebooks.Create(ctx, CreateNotebookInput{UserID: ada, ProjectID: project.ID, Title: "Revenue"})
	require.NoError(t, err)
	_, err = s.notebooks.Get(ctx, eve, nb.ID)
	assert.True(t, apperr.Is(err, apperr.CodeNotebookNotFound))

	_, err = s.projects.Create(ctx, CreateProjectInput{UserID: eve, OrganizationID: project.OrganizationID, Name: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeOrganizationNotFound))
}

func TestOrganizationGetBySlugAndUpdate(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")

	org, err := s.orgs.Create(ctx, CreateOrganizationInput{UserID: ada, Name: "Acme Corp"})
	require.NoError(t, err)
	assert.Regexp(t, `^acme-corp-[0-9a-f]{8}$`, org.Slug)

	bySlug, err := s.orgs.Get(ctx, ada, org.Slug)
	require.NoError(t, err)
	assert.Equal(t, org.ID, bySlug.ID)

	name := "Acme Labs"
	updated, err := s.orgs.Update(ctx, UpdateOrganizationInput{UserID: ada, ID: org.ID, Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "Acme Labs", updated.Name)
	assert.NotEqual(t, org.Slug, updated.Slug)

	require.NoError(t, s.orgs.Delete(ctx, ada, org.ID))
	_, err = s.orgs.Get(ctx, ada, org.ID)
	assert.True(t, apperr.Is(err, apperr.CodeOrganizationNotFound))
}

func TestProjectUpdateValidatesStatus(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	project := s.project(t, ada)

	bogus := "paused"
	_, err := s.projects.Update(ctx, UpdateProjectInput{UserID: ada, ID: project.ID, Status: &bogus})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	archived := model.ProjectStatusArchived
	out, err := s.projects.Update(ctx, UpdateProjectInput{UserID: ada, ID: project.ID, Status: &archived})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectStatusArchived, out.Status)

	list, err := s.projects.ListByOrganization(ctx, ada, project.OrganizationID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestDatasourceLifecycleAndTest(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	project := s.project(t, ada)

	_, err := s.datasources.Create(ctx, CreateDatasourceInput{UserID: ada, ProjectID: project.ID, Name: "x", Provider: "oracle"})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	ds, err := s.datasources.Create(ctx, CreateDatasourceInput{
		UserID: ada, ProjectID: project.ID, Name: "Warehouse", Provider: "sqlite",
		Config: DatasourceConfigInput{Path: s.seedWarehouse(t)},
	})
	require.NoError(t, err)
	assert.Equal(t, model.DatasourceKindEmbedded, ds.Kind)
	assert.True(t, ds.Config.ReadOnly)

	res, err := s.datasources.Test(ctx, ada, ds.ID)
	require.NoError(t, err)
	assert.True(t, res.OK, res.Error)
	assert.Equal(t, 1, res.Tables)

	missing := DatasourceConfigInput{Path: "nope.db"}
	_, err = s.datasources.Update(ctx, UpdateDatasourceInput{UserID: ada, ID: ds.ID, Config: &missing})
	require.NoError(t, err)
	res, err = s.datasources.Test(ctx, ada, ds.ID)
	require.NoError(t, err)
	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Error)

	list, err := s.datasources.ListByProject(ctx, ada, project.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	require.NoError(t, s.datasources.Delete(ctx, ada, ds.ID))
	_, err = s.datasources.Get(ctx, ada, ds.ID)
	assert.True(t, apperr.Is(err, apperr.CodeDatasourceNotFound))
}

func TestNotebookRunCellExportAndVersion(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	project := s.project(t, ada)
	ds, err := s.datasources.Create(ctx, CreateDatasourceInput{
		UserID: ada, ProjectID: project.ID, Name: "Warehouse", Provider: "sqlite",
		Config: DatasourceConfigInput{Path: s.seedWarehouse(t)},
	})
	require.NoError(t, err)

	nb, err := s.notebooks.Create(ctx, CreateNotebookInput{
		UserID: ada, ProjectID: project.ID, Title: "Revenue",
		Datasources: []string{ds.ID},
		Cells: []model.Cell{
			{CellType: model.CellTypeText, Query: "# Revenue\nTotal by **order**"},
			{CellType: model.CellTypeQuery, Query: "SELECT SUM(total) AS revenue FROM orders"},
		},
	})
	require.NoError(t, err)
	require.Len(t, nb.Cells, 2)
	assert.Equal(t, 1, nb.Cells[0].CellID)
	assert.Equal(t, 2, nb.Cells[1].CellID)
	assert.Equal(t, 1, nb.Version)

	run, err := s.notebooks.RunCell(ctx, RunCellInput{UserID: ada, NotebookID: nb.ID, CellID: 2})
	require.NoError(t, err)
	assert.Equal(t, ds.ID, run.DatasourceID)
	assert.EqualValues(t, 42, run.Result.Rows[0][0])

	_, err = s.notebooks.RunCell(ctx, RunCellInput{UserID: ada, NotebookID: nb.ID, CellID: 1})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	page, err := s.notebooks.ExportHTML(ctx, ada, nb.ID)
	require.NoError(t, err)
	assert.Contains(t, string(page), "<h1>Revenue</h1>")
	assert.Contains(t, string(page), "<strong>order</strong>")
	assert.Contains(t, string(page), `<code class="language-sql">SELECT SUM(total)`)

	title := "Revenue 2024"
	stale := 7
	_, err = s.notebooks.Update(ctx, UpdateNotebookInput{UserID: ada, ID: nb.ID, Title: &title, Version: &stale})
	assert.True(t, apperr.Is(err, apperr.CodeConflict))

	current := 1
	updated, err := s.notebooks.Update(ctx, UpdateNotebookInput{UserID: ada, ID: nb.ID, Title: &title, Version: &current})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)
}

func TestConversationTitleAndCascade(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	project := s.project(t, ada)

	conv, err := s.conversations.Create(ctx, CreateConversationInput{UserID: ada, ProjectID: project.ID, SeedMessage: "How are sales?"})
	require.NoError(t, err)
	assert.Equal(t, "Sales Questions", conv.Title)

	blank, err := s.conversations.Create(ctx, CreateConversationInput{UserID: ada, ProjectID: project.ID})
	require.NoError(t, err)
	assert.Equal(t, agent.DefaultTitle, blank.Title)

	_, err = s.conversations.Create(ctx, CreateConversationInput{UserID: ada, ProjectID: project.ID, Datasources: []string{"ghost"}})
	assert.True(t, apperr.Is(err, apperr.CodeDatasourceNotFound))

	_, err = s.messages.SendMessage(ctx, SendMessageInput{UserID: ada, ConversationID: conv.ID, Content: "hi"})
	require.NoError(t, err)

	session, err := s.conversations.AgentSession(ctx, ada, conv.ID)
	require.NoError(t, err)
	assert.Equal(t, agent.StateIdle, session.State)

	require.NoError(t, s.conversations.Delete(ctx, ada, conv.ID))
	var count int64
	require.NoError(t, s.db.Model(&model.Message{}).Where("conversation_id = ?", conv.ID).Count(&count).Error)
	assert.Zero(t, count)
	_, err = s.conversations.AgentSession(ctx, ada, conv.ID)
	assert.True(t, apperr.Is(err, apperr.CodeConversationNotFound))
}

func TestSendMessageRunsAgentWithTools(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	project := s.project(t, ada)
	ds, err := s.datasources.Create(ctx, CreateDatasourceInput{
		UserID: ada, ProjectID: project.ID, Name: "Warehouse", Provider: "sqlite",
		Config: DatasourceConfigInput{Path: s.seedWarehouse(t)},
	})
	require.NoError(t, err)
	conv, err := s.conversations.Create(ctx, CreateConversationInput{UserID: ada, ProjectID: project.ID, Title: "Revenue"})
	require.NoError(t, err)

	s.llm.replies = []*ai.ChatResponse{
		{ToolCalls: []ai.ToolCall{{ID: "call-1", Type: "function", Function: ai.FunctionCall{
			Name: agent.ToolRunQuery, Arguments: `{"datasourceId":"` + ds.ID + `","query":"SELECT SUM(total) AS revenue FROM orders"}`,
		}}}},
		{Content: "Revenue is 42."},
	}

	var events []agent.Event
	out, err := s.messages.StreamMessage(ctx, SendMessageInput{UserID: ada, ConversationID: conv.ID, Content: "What is revenue?"},
		func(e agent.Event) error {
			events = append(events, e)
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Steps)
	require.Len(t, out.Messages, 2)
	assert.Equal(t, model.RoleTool, out.Messages[0].Role)
	assert.Equal(t, "Revenue is 42.", out.Messages[1].Content)
	assert.NotEmpty(t, events)

	history, err := s.messages.ListByConversation(ctx, ada, conv.ID, 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, model.RoleUser, history[0].Role)
	assert.Equal(t, model.RoleTool, history[1].Role)
	assert.Equal(t, model.RoleAssistant, history[2].Role)

	last, err := s.messages.ListByConversation(ctx, ada, conv.ID, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "Revenue is 42.", last[0].Content)

	got, err := s.messages.Get(ctx, ada, history[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "What is revenue?", got.Content)

	eve := s.register(t, "eve")
	_, err = s.messages.Get(ctx, eve, history[0].ID)
	assert.True(t, apperr.Is(err, apperr.CodeMessageNotFound))
}

func TestCreateMessageValidatesRole(t *testing.T) {
	s := newServices(t)
	ctx := context.Background()
	ada := s.register(t, "ada")
	project := s.project(t, ada)
	conv, err := s.conversations.Create(ctx, CreateConversationInput{UserID: ada, ProjectID: project.ID, Title: "Notes"})
	require.NoError(t, err)

	_, err = s.messages.Create(ctx, CreateMessageInput{UserID: ada, ConversationID: conv.ID, Role: "robot", Content: "x"})
	assert.True(t, apperr.Is(err, apperr.CodeBadRequest))

	msg, err := s.messages.Create(ctx, CreateMessageInput{UserID: ada, ConversationID: conv.ID, Content: "remember this"})
	require.NoError(t, err)
	assert.Len(t, msg.ID, 26)
	assert.Equal(t, model.RoleUser, msg.Role)
}

func TestMaskDSN(t *testing.T) {
	assert.Equal(t, "postgres://ada:****@db:5432/shop", maskDSN("postgres://ada:secret@db:5432/shop"))
	assert.Equal(t, "root:****@tcp(db:3306)/shop", maskDSN("root:pw@tcp(db:3306)/shop"))
	assert.Equal(t, "postgres://ada@db/shop", maskDSN("postgres://ada@db/shop"))
	assert.Equal(t, "/tmp/x.db", maskDSN("/tmp/x.db"))
}
