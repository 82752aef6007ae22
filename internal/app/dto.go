package app

import (
	"encoding/json"
	"strings"
	"time"

	"qwery/internal/model"
)

type UserOutput struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserOutput(u *model.User) *UserOutput {
	return &UserOutput{ID: u.ID, Username: u.Username, Email: u.Email, CreatedAt: u.CreatedAt}
}

type AuthOutput struct {
	Token string      `json:"token"`
	User  *UserOutput `json:"user"`
}

type OrganizationOutput struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	OwnerID   string    `json:"owner_id"`
	CreatedBy string    `json:"created_by"`
	UpdatedBy string    `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func newOrganizationOutput(o *model.Organization) *OrganizationOutput {
	return &OrganizationOutput{
		ID:        o.ID,
		Name:      o.Name,
		Slug:      o.Slug,
		OwnerID:   o.OwnerID,
		CreatedBy: o.CreatedBy,
		UpdatedBy: o.UpdatedBy,
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

type ProjectOutput struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Name           string    `json:"name"`
	Slug           string    `json:"slug"`
	Description    string    `json:"description"`
	Status         string    `json:"status"`
	CreatedBy      string    `json:"created_by"`
	UpdatedBy      string    `json:"updated_by"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func newProjectOutput(p *model.Project) *ProjectOutput {
	return &ProjectOutput{
		ID:             p.ID,
		OrganizationID: p.OrganizationID,
		Name:           p.Name,
		Slug:           p.Slug,
		Description:    p.Description,
		Status:         p.Status,
		CreatedBy:      p.CreatedBy,
		UpdatedBy:      p.UpdatedBy,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

type DatasourceConfigOutput struct {
	DSN      string `json:"dsn,omitempty"`
	Path     string `json:"path,omitempty"`
	ReadOnly bool   `json:"read_only"`
}

type DatasourceOutput struct {
	ID          string                 `json:"id"`
	ProjectID   string                 `json:"project_id"`
	Name        string                 `json:"name"`
	Slug        string                 `json:"slug"`
	Description string                 `json:"description"`
	Provider    string                 `json:"provider"`
	Kind        string                 `json:"kind"`
	Config      DatasourceConfigOutput `json:"config"`
	CreatedBy   string                 `json:"created_by"`
	UpdatedBy   string                 `json:"updated_by"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func newDatasourceOutput(d *model.Datasource) *DatasourceOutput {
	cfg := d.Config.Data()
	return &DatasourceOutput{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		Name:        d.Name,
		Slug:        d.Slug,
		Description: d.Description,
		Provider:    d.Provider,
		Kind:        d.Kind,
		Config: DatasourceConfigOutput{
			DSN:      maskDSN(cfg.DSN),
			Path:     cfg.Path,
			ReadOnly: cfg.IsReadOnly(),
		},
		CreatedBy: d.CreatedBy,
		UpdatedBy: d.UpdatedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

type NotebookOutput struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	Title       string       `json:"title"`
	Slug        string       `json:"slug"`
	Description string       `json:"description"`
	Cells       []model.Cell `json:"cells"`
	Datasources []string     `json:"datasources"`
	Version     int          `json:"version"`
	CreatedBy   string       `json:"created_by"`
	UpdatedBy   string       `json:"updated_by"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

func newNotebookOutput(n *model.Notebook) *NotebookOutput {
	cells := []model.Cell(n.Cells)
	if cells == nil {
		cells = []model.Cell{}
	}
	datasources := []string(n.Datasources)
	if datasources == nil {
		datasources = []string{}
	}
	return &NotebookOutput{
		ID:          n.ID,
		ProjectID:   n.ProjectID,
		Title:       n.Title,
		Slug:        n.Slug,
		Description: n.Description,
		Cells:       cells,
		Datasources: datasources,
		Version:     n.Version,
		CreatedBy:   n.CreatedBy,
		UpdatedBy:   n.UpdatedBy,
		CreatedAt:   n.CreatedAt,
		UpdatedAt:   n.UpdatedAt,
	}
}

type ConversationOutput struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"project_id"`
	Title       string    `json:"title"`
	Slug        string    `json:"slug"`
	SeedMessage string    `json:"seed_message"`
	Datasources []string  `json:"datasources"`
	CreatedBy   string    `json:"created_by"`
	UpdatedBy   string    `json:"updated_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newConversationOutput(c *model.Conversation) *ConversationOutput {
	datasources := []string(c.Datasources)
	if datasources == nil {
		datasources = []string{}
	}
	return &ConversationOutput{
		ID:          c.ID,
		ProjectID:   c.ProjectID,
		Title:       c.Title,
		Slug:        c.Slug,
		SeedMessage: c.SeedMessage,
		Datasources: datasources,
		CreatedBy:   c.CreatedBy,
		UpdatedBy:   c.UpdatedBy,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

type MessageOutput struct {
	ID             string         `json:"id"`
	ConversationID string         `json:"conversation_id"`
	Role           string         `json:"role"`
	Content        string         `json:"content"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	CreatedBy      string         `json:"created_by,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}

func newMessageOutput(m *model.Message) *MessageOutput {
	return &MessageOutput{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Role:           m.Role,
		Content:        m.Content,
		Metadata:       m.Metadata,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

func newMessageOutputs(messages []model.Message) []*MessageOutput {
	out := make([]*MessageOutput, 0, len(messages))
	for i := range messages {
		out = append(out, newMessageOutput(&messages[i]))
	}
	return out
}

type AgentSessionOutput struct {
	ConversationID string          `json:"conversation_id"`
	State          string          `json:"state"`
	Steps          int             `json:"steps"`
	Context        json.RawMessage `json:"context,omitempty"`
	LastError      string          `json:"last_error,omitempty"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

func newAgentSessionOutput(s *model.AgentSession) *AgentSessionOutput {
	out := &AgentSessionOutput{
		ConversationID: s.ConversationID,
		State:          s.State,
		Steps:          s.Steps,
		LastError:      s.LastError,
		UpdatedAt:      s.UpdatedAt,
	}
	if len(s.Context) > 0 {
		out.Context = json.RawMessage(s.Context)
	}
	return out
}

// maskDSN hides the password of a user:pass@ style connection string.
func maskDSN(dsn string) string {
	at := strings.LastIndex(dsn, "@")
	if at < 0 {
		return dsn
	}
	creds := dsn[:at]
	colon := strings.LastIndex(creds, ":")
	if colon < 0 || strings.HasSuffix(creds[:colon+1], "//:") {
		return dsn
	}
	if slash := strings.LastIndex(creds, "/"); slash > colon {
		return dsn
	}
	return creds[:colon+1] + maskSecret(creds[colon+1:]) + dsn[at:]
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
