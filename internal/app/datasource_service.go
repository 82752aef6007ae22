package app

import (
	"context"
	"strings"
	"time"

	"gorm.io/datatypes"

	"qwery/internal/apperr"
	"qwery/internal/datasource"
	"qwery/internal/model"
	"qwery/internal/pkg/slug"
)

type DatasourceService struct {
	datasources DatasourceRepository
	executor    QueryExecutor
	access      access
}

func NewDatasourceService(orgs OrganizationRepository, projects ProjectRepository, datasources DatasourceRepository, executor QueryExecutor) *DatasourceService {
	return &DatasourceService{
		datasources: datasources,
		executor:    executor,
		access:      access{orgs: orgs, projects: projects},
	}
}

type DatasourceConfigInput struct {
	DSN      string `json:"dsn"`
	Path     string `json:"path"`
	ReadOnly *bool  `json:"read_only"`
}

type CreateDatasourceInput struct {
	UserID      string
	ProjectID   string
	Name        string
	Description string
	Provider    string
	Config      DatasourceConfigInput
}

type UpdateDatasourceInput struct {
	UserID      string
	ID          string
	Name        *string
	Description *string
	Config      *DatasourceConfigInput
}

type TestDatasourceOutput struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
	Tables    int    `json:"tables"`
}

func (s *DatasourceService) Create(ctx context.Context, input CreateDatasourceInput) (*DatasourceOutput, error) {
	project, err := s.access.project(ctx, input.UserID, input.ProjectID)
	if err != nil {
		return nil, err
	}
	name, err := requireText("name", input.Name)
	if err != nil {
		return nil, err
	}
	provider := strings.ToLower(strings.TrimSpace(input.Provider))
	kind, err := kindOf(provider)
	if err != nil {
		return nil, err
	}
	cfg, err := buildDatasourceConfig(provider, input.Config)
	if err != nil {
		return nil, err
	}

	ds := &model.Datasource{
		ProjectID:   project.ID,
		Name:        name,
		Slug:        slug.Make(name),
		Description: input.Description,
		Provider:    provider,
		Kind:        kind,
		Config:      datatypes.NewJSONType(cfg),
		CreatedBy:   input.UserID,
		UpdatedBy:   input.UserID,
	}
	if err := s.executor.Validate(ds); err != nil {
		return nil, err
	}
	if err := s.datasources.Create(ctx, ds); err != nil {
		return nil, err
	}
	return newDatasourceOutput(ds), nil
}

func (s *DatasourceService) Get(ctx context.Context, userID, idOrSlug string) (*DatasourceOutput, error) {
	ds, err := s.load(ctx, userID, idOrSlug)
	if err != nil {
		return nil, err
	}
	return newDatasourceOutput(ds), nil
}

func (s *DatasourceService) ListByProject(ctx context.Context, userID, projectID string) ([]*DatasourceOutput, error) {
	project, err := s.access.project(ctx, userID, projectID)
	if err != nil {
		return nil, err
	}
	list, err := s.datasources.ListByProjectID(ctx, project.ID)
	if err != nil {
		return nil, err
	}
	out := make([]*DatasourceOutput, 0, len(list))
	for i := range list {
		out = append(out, newDatasourceOutput(&list[i]))
	}
	return out, nil
}

func (s *DatasourceService) Update(ctx context.Context, input UpdateDatasourceInput) (*DatasourceOutput, error) {
	ds, err := s.load(ctx, input.UserID, input.ID)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name, err := requireText("name", *input.Name)
		if err != nil {
			return nil, err
		}
		if name != ds.Name {
			ds.Name = name
			ds.Slug = slug.Make(name)
		}
	}
	if input.Description != nil {
		ds.Description = *input.Description
	}
	if input.Config != nil {
		cfg, err := buildDatasourceConfig(ds.Provider, *input.Config)
		if err != nil {
			return nil, err
		}
		ds.Config = datatypes.NewJSONType(cfg)
		if err := s.executor.Validate(ds); err != nil {
			return nil, err
		}
	}
	ds.UpdatedBy = input.UserID
	if err := s.datasources.Update(ctx, ds); err != nil {
		return nil, err
	}
	s.executor.Evict(ds.ID)
	return newDatasourceOutput(ds), nil
}

func (s *DatasourceService) Delete(ctx context.Context, userID, idOrSlug string) error {
	ds, err := s.load(ctx, userID, idOrSlug)
	if err != nil {
		return err
	}
	if err := s.datasources.Delete(ctx, ds.ID); err != nil {
		return err
	}
	s.executor.Evict(ds.ID)
	return nil
}

// Test pings the datasource and counts its tables. A failing connection is
// a successful call with OK=false.
func (s *DatasourceService) Test(ctx context.Context, userID, idOrSlug string) (*TestDatasourceOutput, error) {
	ds, err := s.load(ctx, userID, idOrSlug)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := &TestDatasourceOutput{}
	if err := s.executor.Ping(ctx, ds); err != nil {
		out.Error = err.Error()
		out.LatencyMS = time.Since(start).Milliseconds()
		s.executor.Evict(ds.ID)
		return out, nil
	}
	tables, err := s.executor.Schema(ctx, ds)
	out.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		out.Error = err.Error()
		return out, nil
	}
	out.OK = true
	out.Tables = len(tables)
	return out, nil
}

func (s *DatasourceService) load(ctx context.Context, userID, idOrSlug string) (*model.Datasource, error) {
	idOrSlug = strings.TrimSpace(idOrSlug)
	ds, err := s.datasources.GetByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		if ds, err = s.datasources.GetBySlug(ctx, idOrSlug); err != nil {
			return nil, err
		}
	}
	if ds == nil {
		return nil, apperr.NotFound(apperr.CodeDatasourceNotFound, "datasource", idOrSlug)
	}
	if err := s.access.child(ctx, userID, ds.ProjectID, apperr.CodeDatasourceNotFound, "datasource", idOrSlug); err != nil {
		return nil, err
	}
	return ds, nil
}

func kindOf(provider string) (string, error) {
	switch provider {
	case model.ProviderSQLite:
		return model.DatasourceKindEmbedded, nil
	case model.ProviderPostgreSQL, model.ProviderMySQL:
		return model.DatasourceKindRemote, nil
	default:
		return "", apperr.BadRequest("provider must be one of sqlite, postgresql, mysql")
	}
}

func buildDatasourceConfig(provider string, in DatasourceConfigInput) (model.DatasourceConfig, error) {
	cfg := model.DatasourceConfig{
		DSN:      strings.TrimSpace(in.DSN),
		Path:     strings.TrimSpace(in.Path),
		ReadOnly: in.ReadOnly,
	}
	if provider == model.ProviderSQLite {
		if cfg.Path == "" && cfg.DSN == "" {
			return cfg, apperr.BadRequest("sqlite datasource needs a path")
		}
		return cfg, nil
	}
	if cfg.DSN == "" {
		return cfg, apperr.BadRequest(provider + " datasource needs a dsn")
	}
	return cfg, nil
}

// resolveDatasource is shared by services that run queries on behalf of a
// project member.
func resolveDatasource(ctx context.Context, repo DatasourceRepository, projectID, idOrSlug string) (*model.Datasource, error) {
	ds, err := repo.GetByID(ctx, idOrSlug)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		if ds, err = repo.GetBySlug(ctx, idOrSlug); err != nil {
			return nil, err
		}
	}
	if ds == nil || ds.ProjectID != projectID {
		return nil, apperr.NotFound(apperr.CodeDatasourceNotFound, "datasource", idOrSlug)
	}
	return ds, nil
}

var _ QueryExecutor = (*datasource.Executor)(nil)
